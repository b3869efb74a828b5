package vendors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maplenou/maplenou-api/internal/models"
	"github.com/maplenou/maplenou-api/pkg/logger"
)

// mockFinder holds vendors in insertion order; the first match wins.
type mockFinder struct {
	vendors []models.User
	err     error
	calls   []string
}

func (m *mockFinder) FindVendor(_ context.Context, institut, parcours string) (*models.User, error) {
	m.calls = append(m.calls, "exact:"+institut+"/"+parcours)
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.vendors {
		if m.vendors[i].Institut == institut && m.vendors[i].Parcours == parcours {
			return &m.vendors[i], nil
		}
	}
	return nil, nil
}

func (m *mockFinder) FindVendorByInstitut(_ context.Context, institut string) (*models.User, error) {
	m.calls = append(m.calls, "institut:"+institut)
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.vendors {
		if m.vendors[i].Institut == institut {
			return &m.vendors[i], nil
		}
	}
	return nil, nil
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name                       string
		institut, parcours         string
		wantInstitut, wantParcours string
	}{
		{"well formed", "ISEG", "Licence 1", "ISEG", "Licence 1"},
		{"program stored as institut", "Master 2", "", "", "Master 2"},
		{"institute stored as parcours", "", "ISSJ", "ISSJ", ""},
		{"unknown value left alone", "Faculté", "", "Faculté", ""},
		{"whitespace trimmed", "  HEC ", " Licence 3", "HEC", "Licence 3"},
		{"both set, no swap", "Licence 1", "ISSJ", "Licence 1", "ISSJ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotI, gotP := Normalize(tt.institut, tt.parcours)
			assert.Equal(t, tt.wantInstitut, gotI)
			assert.Equal(t, tt.wantParcours, gotP)
		})
	}
}

func TestResolve(t *testing.T) {
	finder := &mockFinder{vendors: []models.User{
		{ID: 10, Role: models.RoleVendor, Institut: "ISSJ"},
		{ID: 11, Role: models.RoleVendor, Institut: "ISEG", Parcours: "Licence 1"},
		{ID: 12, Role: models.RoleVendor, Institut: "ISEG", Parcours: "Master 1"},
	}}
	r := NewResolverWithInterfaces(finder, logger.Nop())
	ctx := context.Background()

	t.Run("exact match", func(t *testing.T) {
		v, err := r.Resolve(ctx, &models.User{Institut: "ISEG", Parcours: "Master 1"})
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, uint(12), v.ID)
	})

	t.Run("falls back to institut", func(t *testing.T) {
		v, err := r.Resolve(ctx, &models.User{Institut: "ISEG", Parcours: "Doctorat"})
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, uint(11), v.ID)
	})

	t.Run("swapped fields are normalized first", func(t *testing.T) {
		finder.calls = nil
		v, err := r.Resolve(ctx, &models.User{Institut: "", Parcours: "ISSJ"})
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, uint(10), v.ID)
		assert.Equal(t, []string{"institut:ISSJ"}, finder.calls)
	})

	t.Run("no institut means no vendor", func(t *testing.T) {
		finder.calls = nil
		v, err := r.Resolve(ctx, &models.User{Institut: "Licence 2"})
		require.NoError(t, err)
		assert.Nil(t, v)
		assert.Empty(t, finder.calls)
	})

	t.Run("unknown institut", func(t *testing.T) {
		v, err := r.Resolve(ctx, &models.User{Institut: "IAEC", Parcours: "Licence 1"})
		require.NoError(t, err)
		assert.Nil(t, v)
	})
}

func TestResolve_StoreError(t *testing.T) {
	r := NewResolverWithInterfaces(&mockFinder{err: errors.New("connection refused")}, logger.Nop())

	_, err := r.Resolve(context.Background(), &models.User{Institut: "ISEG", Parcours: "Licence 1"})
	assert.Error(t, err)
}
