package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maplenou/maplenou-api/internal/models"
	"github.com/maplenou/maplenou-api/internal/repository"
	"github.com/maplenou/maplenou-api/pkg/logger"
	"github.com/maplenou/maplenou-api/test/testdb"
)

const sample = `
badges:
  - niveau: 1
    nom: Nouveau
    jours_requis: 1
  - niveau: 2
    nom: Débutant
    jours_requis: 7
product:
  nom: Pain au chocolat
  prix: 700
  stock_total_du_jour: 50
vendors:
  - email: vendeur.iseg@maplenou.mg
    nom: Rasoa
    prenom: Vola
    institut: ISEG
    parcours: Licence 1
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	data, err := Load(writeFile(t, sample))
	require.NoError(t, err)
	assert.Len(t, data.Badges, 2)
	assert.Equal(t, "Débutant", data.Badges[1].Nom)
	require.NotNil(t, data.Product)
	assert.Equal(t, int64(700), data.Product.Prix)
	require.Len(t, data.Vendors, 1)
	assert.Equal(t, "Licence 1", data.Vendors[0].Parcours)

	data, err = Load("")
	require.NoError(t, err)
	assert.Len(t, data.Badges, 6)
	assert.Equal(t, "Champion", data.Badges[5].Nom)
	assert.Equal(t, 120, data.Badges[5].JoursRequis)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"duplicate level", "badges:\n  - {niveau: 1, nom: a, jours_requis: 1}\n  - {niveau: 1, nom: b, jours_requis: 7}\n"},
		{"zero threshold", "badges:\n  - {niveau: 1, nom: a, jours_requis: 0}\n"},
		{"free product", "product: {nom: x, prix: 0}\n"},
		{"vendor without institut", "vendors:\n  - {email: v@x.mg, nom: v}\n"},
		{"not yaml", "badges: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApply_Idempotent(t *testing.T) {
	db := testdb.New(t)
	ctx := context.Background()
	data, err := Load(writeFile(t, sample))
	require.NoError(t, err)

	require.NoError(t, Apply(ctx, db, data, logger.Nop()))

	// Second run changes a vendor profile and keeps a single product
	data.Vendors[0].Parcours = "Master 1"
	data.Product.Prix = 999
	require.NoError(t, Apply(ctx, db, data, logger.Nop()))

	defs, err := repository.NewBadgeRepository(db).ListDefinitions(ctx)
	require.NoError(t, err)
	assert.Len(t, defs, 2)

	product, err := repository.NewProductRepository(db).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Pain au chocolat", product.Nom)
	assert.Equal(t, int64(700), product.Prix)
	assert.Equal(t, 50, product.StockRestantDuJour)

	vendors, err := repository.NewUserRepository(db).ListVendors(ctx)
	require.NoError(t, err)
	require.Len(t, vendors, 1)
	assert.Equal(t, "Master 1", vendors[0].Parcours)
}

func TestApply_VendorEmailOwnedByClient(t *testing.T) {
	db := testdb.New(t)
	ctx := context.Background()
	data, err := Load(writeFile(t, sample))
	require.NoError(t, err)

	client := testdb.Client(t, db, "rasoa", "ISEG", "Licence 1")
	data.Vendors[0].Email = client.Email

	err = Apply(ctx, db, data, logger.Nop())
	assert.ErrorIs(t, err, repository.ErrRoleConflict)

	stored := testdb.Reload(t, db, client)
	assert.Equal(t, models.RoleClient, stored.Role)
}
