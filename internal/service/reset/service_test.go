package reset

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maplenou/maplenou-api/internal/models"
	"github.com/maplenou/maplenou-api/internal/repository"
	"github.com/maplenou/maplenou-api/internal/service/vendors"
	"github.com/maplenou/maplenou-api/pkg/logger"
	"github.com/maplenou/maplenou-api/test/testdb"
)

const (
	today     = "2025-03-10"
	yesterday = "2025-03-09"
)

func setupService(t *testing.T) (*Service, *repository.DB) {
	t.Helper()

	db := testdb.New(t)
	users := repository.NewUserRepository(db)
	svc := NewService(
		repository.NewProductRepository(db),
		repository.NewAllocationRepository(db),
		repository.NewOrderRepository(db),
		users,
		vendors.NewResolver(users, logger.Nop()),
		logger.Nop(),
	)
	svc.SetClock(testdb.Clock(today))
	return svc, db
}

func allocate(t *testing.T, db *repository.DB, vendor *models.User, day string, quantity int) {
	t.Helper()
	_, err := repository.NewAllocationRepository(db).Allocate(context.Background(), vendor.ID, day, quantity)
	require.NoError(t, err)
}

func TestRun_RevocationRules(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	testdb.Product(t, db, 500, models.ProductActive, 100)

	stocked := testdb.Vendor(t, db, "vendeur-iseg", "ISEG", "")
	empty := testdb.Vendor(t, db, "vendeur-hec", "HEC", "")
	allocate(t, db, stocked, yesterday, 10)
	allocate(t, db, empty, today, 10) // today's stock is no opportunity for yesterday

	missed := testdb.Client(t, db, "missed", "ISEG", "Licence 1")
	testdb.Streak(t, db, missed, 65, 4, "2025-03-08")

	ordered := testdb.Client(t, db, "ordered", "ISEG", "")
	testdb.Streak(t, db, ordered, 8, 2, yesterday)
	testdb.Order(t, db, ordered, stocked, yesterday, models.OrderAccepted)

	rejected := testdb.Client(t, db, "rejected", "ISEG", "")
	testdb.Streak(t, db, rejected, 3, 1, "2025-03-08")
	testdb.Order(t, db, rejected, stocked, yesterday, models.OrderRejected)

	noStock := testdb.Client(t, db, "no-stock", "HEC", "")
	testdb.Streak(t, db, noStock, 12, 2, "2025-03-07")

	noVendor := testdb.Client(t, db, "no-vendor", "IAEC", "")
	testdb.Streak(t, db, noVendor, 5, 1, "2025-03-01")

	noProfile := testdb.Client(t, db, "no-profile", "", "")
	testdb.Streak(t, db, noProfile, 2, 1, "2025-03-01")

	idle := testdb.Client(t, db, "idle", "ISEG", "")

	report, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, today, report.Day)
	assert.Equal(t, yesterday, report.Yesterday)
	assert.Equal(t, 6, report.Checked)
	assert.Equal(t, 2, report.Revoked)
	assert.Equal(t, 1, report.SkippedOrdered)
	assert.Equal(t, 1, report.SkippedNoStock)
	assert.Equal(t, 2, report.SkippedNoVendor)
	assert.Equal(t, 0, report.Failed)

	fresh := testdb.Reload(t, db, missed)
	assert.Equal(t, 0, fresh.StreakConsecutif)
	assert.Equal(t, 0, fresh.BadgeNiveau)
	assert.False(t, fresh.EligibleLoterie)
	// The last purchase date is history, not gamification state
	require.NotNil(t, fresh.DernierAchatDate)
	assert.Equal(t, "2025-03-08", *fresh.DernierAchatDate)

	assert.Equal(t, 0, testdb.Reload(t, db, rejected).StreakConsecutif)
	assert.Equal(t, 8, testdb.Reload(t, db, ordered).StreakConsecutif)
	assert.Equal(t, 12, testdb.Reload(t, db, noStock).StreakConsecutif)
	assert.Equal(t, 5, testdb.Reload(t, db, noVendor).StreakConsecutif)
	assert.Equal(t, 2, testdb.Reload(t, db, noProfile).StreakConsecutif)
	assert.Equal(t, 0, testdb.Reload(t, db, idle).StreakConsecutif)
}

func TestRun_ZeroAllocationIsNoOpportunity(t *testing.T) {
	svc, db := setupService(t)
	vendor := testdb.Vendor(t, db, "vendeur-esi", "ESI/DGI", "")
	client := testdb.Client(t, db, "client", "ESI/DGI", "")
	testdb.Streak(t, db, client, 30, 3, "2025-03-08")

	// Vendor row exists for yesterday but with nothing granted
	require.NoError(t, db.Create(&models.VendorAllocation{VendeurID: vendor.ID, DateJour: yesterday}).Error)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Revoked)
	assert.Equal(t, 30, testdb.Reload(t, db, client).StreakConsecutif)
}

func TestRun_RollsGlobalStockOver(t *testing.T) {
	svc, db := setupService(t)
	product := testdb.Product(t, db, 500, models.ProductActive, 100)
	require.NoError(t, db.Model(product).Update("stock_restant_du_jour", 3).Error)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.ProductsReset)

	fresh, err := repository.NewProductRepository(db).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, fresh.StockRestantDuJour)
}

func TestRun_IsIdempotent(t *testing.T) {
	svc, db := setupService(t)
	vendor := testdb.Vendor(t, db, "vendeur-iseg", "ISEG", "")
	allocate(t, db, vendor, yesterday, 1)
	client := testdb.Client(t, db, "client", "ISEG", "")
	testdb.Streak(t, db, client, 4, 1, "2025-03-08")

	first, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Revoked)

	second, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Checked)
}

// Mocks for failure paths

type stubProducts struct{ err error }

func (s *stubProducts) RolloverDailyStock(ctx context.Context) (int64, error) { return 1, s.err }

type stubAllocations struct{ stocked map[uint]bool }

func (s *stubAllocations) VendorsWithStock(ctx context.Context, day string) (map[uint]bool, error) {
	return s.stocked, nil
}

type stubOrders struct{ failFor uint }

func (s *stubOrders) HasAcceptedOnDay(ctx context.Context, userID uint, day string) (bool, error) {
	if userID == s.failFor {
		return false, errors.New("connection reset")
	}
	return false, nil
}

type stubUsers struct {
	clients []models.User
	revoked []uint
}

func (s *stubUsers) ListClientsWithStreak(ctx context.Context) ([]models.User, error) {
	return s.clients, nil
}

func (s *stubUsers) RevokeStreak(ctx context.Context, userID uint, notBefore string) (bool, error) {
	s.revoked = append(s.revoked, userID)
	return true, nil
}

type stubResolver struct{ vendor *models.User }

func (s *stubResolver) Resolve(ctx context.Context, user *models.User) (*models.User, error) {
	return s.vendor, nil
}

func TestRun_ContinuesAfterUserFailure(t *testing.T) {
	users := &stubUsers{clients: []models.User{
		{ID: 1, StreakConsecutif: 3},
		{ID: 2, StreakConsecutif: 3},
		{ID: 3, StreakConsecutif: 3},
	}}
	svc := NewServiceWithInterfaces(
		&stubProducts{},
		&stubAllocations{stocked: map[uint]bool{50: true}},
		&stubOrders{failFor: 2},
		users,
		&stubResolver{vendor: &models.User{ID: 50, Role: models.RoleVendor}},
		logger.Nop(),
	)

	report, err := svc.RunForDay(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 2, report.Revoked)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []uint{1, 3}, users.revoked)
}

func TestRun_RolloverFailureAborts(t *testing.T) {
	users := &stubUsers{clients: []models.User{{ID: 1, StreakConsecutif: 3}}}
	svc := NewServiceWithInterfaces(
		&stubProducts{err: errors.New("disk full")},
		&stubAllocations{stocked: map[uint]bool{50: true}},
		&stubOrders{},
		users,
		&stubResolver{vendor: &models.User{ID: 50}},
		logger.Nop(),
	)

	report, err := svc.RunForDay(context.Background(), today)
	assert.Error(t, err)
	assert.Nil(t, report)
	assert.Empty(t, users.revoked)
}

func TestRunForDay_InvalidDay(t *testing.T) {
	svc, _ := setupService(t)
	_, err := svc.RunForDay(context.Background(), "not-a-day")
	assert.Error(t, err)
}
