package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maplenou/maplenou-api/internal/errs"
	"github.com/maplenou/maplenou-api/internal/models"
	"github.com/maplenou/maplenou-api/internal/repository"
	"github.com/maplenou/maplenou-api/internal/service/badges"
	"github.com/maplenou/maplenou-api/internal/service/vendors"
	"github.com/maplenou/maplenou-api/pkg/logger"
	"github.com/maplenou/maplenou-api/test/testdb"
)

const (
	today     = "2025-03-10"
	yesterday = "2025-03-09"
)

type fixture struct {
	svc     *Service
	db      *repository.DB
	product *models.Product
	vendor  *models.User
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db := testdb.New(t)
	testdb.Badges(t, db)
	product := testdb.Product(t, db, 500, models.ProductActive, 0)
	vendor := testdb.Vendor(t, db, "vendeur-iseg", "ISEG", "Licence 3")

	users := repository.NewUserRepository(db)
	svc := NewService(
		db,
		vendors.NewResolver(users, logger.Nop()),
		badges.NewService(repository.NewBadgeRepository(db), 4, logger.Nop()),
		logger.Nop(),
	)
	svc.SetClock(testdb.Clock(today))

	return &fixture{svc: svc, db: db, product: product, vendor: vendor}
}

func (f *fixture) allocate(t *testing.T, quantity int) {
	t.Helper()
	_, err := repository.NewAllocationRepository(f.db).Allocate(context.Background(), f.vendor.ID, today, quantity)
	require.NoError(t, err)
}

func (f *fixture) remaining(t *testing.T) int {
	t.Helper()
	n, err := repository.NewAllocationRepository(f.db).Remaining(context.Background(), f.vendor.ID, today)
	require.NoError(t, err)
	return n
}

func TestPlaceOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	client := testdb.Client(t, f.db, "alice", "ISEG", "Licence 3")

	order, err := f.svc.PlaceOrder(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, order.Statut)
	assert.Equal(t, today, order.JourCommande)
	assert.Equal(t, 1, order.Quantite)
	assert.Equal(t, int64(500), order.PrixUnitaire)
	assert.Equal(t, int64(500), order.PrixTotal)
	require.NotNil(t, order.VendeurID)
	assert.Equal(t, f.vendor.ID, *order.VendeurID)
	assert.Nil(t, order.DateTraitement)

	// Placing does not touch stock
	assert.Equal(t, 0, f.remaining(t))

	_, err = f.svc.PlaceOrder(ctx, client.ID)
	assert.ErrorIs(t, err, errs.ErrDuplicateOrder)
}

func TestPlaceOrder_DuplicateAcrossStatuses(t *testing.T) {
	for _, status := range []string{models.OrderPending, models.OrderAccepted, models.OrderRejected} {
		t.Run(status, func(t *testing.T) {
			f := setup(t)
			client := testdb.Client(t, f.db, "bob", "ISEG", "")
			testdb.Order(t, f.db, client, f.vendor, today, status)

			_, err := f.svc.PlaceOrder(context.Background(), client.ID)
			assert.ErrorIs(t, err, errs.ErrDuplicateOrder)
		})
	}
}

func TestPlaceOrder_ConcurrentSubmissions(t *testing.T) {
	f := setup(t)
	client := testdb.Client(t, f.db, "carol", "ISEG", "")

	const attempts = 10
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PlaceOrder(context.Background(), client.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, errs.ErrDuplicateOrder):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, duplicates)

	var count int64
	require.NoError(t, f.db.Model(&models.Order{}).Where("utilisateur_id = ?", client.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPlaceOrder_ProductUnavailable(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	client := testdb.Client(t, f.db, "dan", "ISEG", "")

	require.NoError(t, f.db.Model(f.product).Update("statut", "inactif").Error)

	_, err := f.svc.PlaceOrder(ctx, client.ID)
	assert.ErrorIs(t, err, errs.ErrProductUnavailable)

	_, err = f.svc.PlaceOrder(ctx, 9999)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPlaceOrder_PriceIsSnapshotted(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	client := testdb.Client(t, f.db, "erin", "ISEG", "")

	order, err := f.svc.PlaceOrder(ctx, client.ID)
	require.NoError(t, err)

	require.NoError(t, f.db.Model(f.product).Update("prix", 900).Error)
	f.allocate(t, 1)

	result, err := f.svc.ProcessOrder(ctx, order.ID, f.vendor.ID, models.RoleVendor, models.ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, int64(500), result.Order.PrixTotal)
}

func TestPlaceOrder_WithoutVendor(t *testing.T) {
	f := setup(t)
	client := testdb.Client(t, f.db, "frank", "", "")

	order, err := f.svc.PlaceOrder(context.Background(), client.ID)
	require.NoError(t, err)
	assert.Nil(t, order.VendeurID)
}

func TestProcessOrder_AcceptUpdatesStockAndStreak(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	client := testdb.Client(t, f.db, "gina", "ISEG", "Licence 3")
	testdb.Streak(t, f.db, client, 6, 1, yesterday)
	f.allocate(t, 5)

	order, err := f.svc.PlaceOrder(ctx, client.ID)
	require.NoError(t, err)

	result, err := f.svc.ProcessOrder(ctx, order.ID, f.vendor.ID, models.RoleVendor, models.ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, models.OrderAccepted, result.Order.Statut)
	assert.NotNil(t, result.Order.DateTraitement)
	require.NotNil(t, result.Streak)
	assert.True(t, result.Streak.Promoted)

	assert.Equal(t, 4, f.remaining(t))

	fresh := testdb.Reload(t, f.db, client)
	assert.Equal(t, 7, fresh.StreakConsecutif)
	assert.Equal(t, 2, fresh.BadgeNiveau)
	require.NotNil(t, fresh.DernierAchatDate)
	assert.Equal(t, today, *fresh.DernierAchatDate)
}

func TestProcessOrder_StockExhaustedUnderConcurrency(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.allocate(t, 5)

	orders := make([]*models.Order, 6)
	for i := range orders {
		client := testdb.Client(t, f.db, fmt.Sprintf("client-%d", i), "ISEG", "Licence 3")
		order, err := f.svc.PlaceOrder(ctx, client.ID)
		require.NoError(t, err)
		orders[i] = order
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 5)
	for _, order := range orders[:5] {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := f.svc.ProcessOrder(ctx, id, f.vendor.ID, models.RoleVendor, models.ActionAccept)
			errCh <- err
		}(order.ID)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		assert.NoError(t, err)
	}
	assert.Equal(t, 0, f.remaining(t))

	last := orders[5]
	_, err := f.svc.ProcessOrder(ctx, last.ID, f.vendor.ID, models.RoleVendor, models.ActionAccept)
	assert.ErrorIs(t, err, errs.ErrStockExhausted)

	// The refused acceptance is rolled back entirely
	stored, err := repository.NewOrderRepository(f.db).GetByID(ctx, last.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, stored.Statut)
	assert.Nil(t, stored.DateTraitement)
	assert.Equal(t, 0, testdb.Reload(t, f.db, &models.User{ID: last.UtilisateurID}).StreakConsecutif)
	assert.Equal(t, 0, f.remaining(t))

	// A later allocation lets the vendor accept it
	f.allocate(t, 1)
	_, err = f.svc.ProcessOrder(ctx, last.ID, f.vendor.ID, models.RoleVendor, models.ActionAccept)
	assert.NoError(t, err)
}

func TestProcessOrder_ConcurrentAcceptsNeverOversell(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.allocate(t, 3)

	var ids []uint
	for i := 0; i < 8; i++ {
		client := testdb.Client(t, f.db, fmt.Sprintf("rush-%d", i), "ISEG", "")
		order, err := f.svc.PlaceOrder(ctx, client.ID)
		require.NoError(t, err)
		ids = append(ids, order.ID)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		exhausted int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := f.svc.ProcessOrder(ctx, id, 0, models.RoleAdmin, models.ActionAccept)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if errors.Is(err, errs.ErrStockExhausted) {
				exhausted++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 3, successes)
	assert.Equal(t, 5, exhausted)
	assert.Equal(t, 0, f.remaining(t))
}

func TestProcessOrder_TerminalOrders(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	client := testdb.Client(t, f.db, "hugo", "ISEG", "")
	f.allocate(t, 5)

	order, err := f.svc.PlaceOrder(ctx, client.ID)
	require.NoError(t, err)
	_, err = f.svc.ProcessOrder(ctx, order.ID, f.vendor.ID, models.RoleVendor, models.ActionAccept)
	require.NoError(t, err)

	for _, action := range []string{models.ActionAccept, models.ActionReject} {
		_, err = f.svc.ProcessOrder(ctx, order.ID, f.vendor.ID, models.RoleVendor, action)
		assert.ErrorIs(t, err, errs.ErrAlreadyProcessed, action)
	}

	// Effects were applied exactly once
	assert.Equal(t, 4, f.remaining(t))
	assert.Equal(t, 1, testdb.Reload(t, f.db, client).StreakConsecutif)
}

func TestProcessOrder_Reject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	client := testdb.Client(t, f.db, "iris", "ISEG", "")
	testdb.Streak(t, f.db, client, 3, 1, yesterday)
	f.allocate(t, 2)

	order, err := f.svc.PlaceOrder(ctx, client.ID)
	require.NoError(t, err)

	result, err := f.svc.ProcessOrder(ctx, order.ID, f.vendor.ID, models.RoleVendor, models.ActionReject)
	require.NoError(t, err)
	assert.Equal(t, models.OrderRejected, result.Order.Statut)
	assert.NotNil(t, result.Order.DateTraitement)
	assert.Nil(t, result.Streak)

	assert.Equal(t, 2, f.remaining(t))
	assert.Equal(t, 3, testdb.Reload(t, f.db, client).StreakConsecutif)

	_, err = f.svc.ProcessOrder(ctx, order.ID, f.vendor.ID, models.RoleVendor, models.ActionAccept)
	assert.ErrorIs(t, err, errs.ErrAlreadyProcessed)
}

func TestProcessOrder_Refusals(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	other := testdb.Vendor(t, f.db, "vendeur-hec", "HEC", "")
	client := testdb.Client(t, f.db, "jules", "ISEG", "")
	f.allocate(t, 1)

	order, err := f.svc.PlaceOrder(ctx, client.ID)
	require.NoError(t, err)

	tests := []struct {
		name    string
		orderID uint
		actorID uint
		role    string
		action  string
		wantErr error
	}{
		{"unknown order", 9999, f.vendor.ID, models.RoleVendor, models.ActionAccept, errs.ErrNotFound},
		{"another vendor", order.ID, other.ID, models.RoleVendor, models.ActionAccept, errs.ErrForbidden},
		{"client cannot process", order.ID, client.ID, models.RoleClient, models.ActionReject, errs.ErrForbidden},
		{"unknown action", order.ID, f.vendor.ID, models.RoleVendor, "cancel", errs.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ProcessOrder(ctx, tt.orderID, tt.actorID, tt.role, tt.action)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Admins may process any order
	_, err = f.svc.ProcessOrder(ctx, order.ID, 0, models.RoleAdmin, models.ActionAccept)
	assert.NoError(t, err)
}

func TestProcessOrder_GlobalCounterFallback(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.db.Model(f.product).Updates(map[string]interface{}{
		"stock_total_du_jour":   1,
		"stock_restant_du_jour": 1,
	}).Error)

	first := testdb.Client(t, f.db, "kim", "", "")
	second := testdb.Client(t, f.db, "leo", "", "")
	o1, err := f.svc.PlaceOrder(ctx, first.ID)
	require.NoError(t, err)
	o2, err := f.svc.PlaceOrder(ctx, second.ID)
	require.NoError(t, err)

	_, err = f.svc.ProcessOrder(ctx, o1.ID, 0, models.RoleAdmin, models.ActionAccept)
	require.NoError(t, err)
	_, err = f.svc.ProcessOrder(ctx, o2.ID, 0, models.RoleAdmin, models.ActionAccept)
	assert.ErrorIs(t, err, errs.ErrStockExhausted)

	// A vendor cannot process an order nobody owns
	_, err = f.svc.ProcessOrder(ctx, o2.ID, f.vendor.ID, models.RoleVendor, models.ActionReject)
	assert.ErrorIs(t, err, errs.ErrForbidden)

	product, err := repository.NewProductRepository(f.db).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, product.StockRestantDuJour)
}

func TestProcessOrder_GlobalCounterIsTodayOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.db.Model(f.product).Updates(map[string]interface{}{
		"stock_total_du_jour":   5,
		"stock_restant_du_jour": 5,
	}).Error)

	client := testdb.Client(t, f.db, "nora", "", "")
	stale := testdb.Order(t, f.db, client, nil, yesterday, models.OrderPending)

	_, err := f.svc.ProcessOrder(ctx, stale.ID, 0, models.RoleAdmin, models.ActionAccept)
	assert.ErrorIs(t, err, errs.ErrStockExhausted)

	var order models.Order
	require.NoError(t, f.db.First(&order, stale.ID).Error)
	assert.Equal(t, models.OrderPending, order.Statut)

	product, err := repository.NewProductRepository(f.db).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, product.StockRestantDuJour)
	assert.Equal(t, 0, testdb.Reload(t, f.db, client).StreakConsecutif)

	// Rejecting it still works
	_, err = f.svc.ProcessOrder(ctx, stale.ID, 0, models.RoleAdmin, models.ActionReject)
	require.NoError(t, err)
}

func TestStreakAcrossConsecutiveDays(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	client := testdb.Client(t, f.db, "mia", "ISEG", "")
	allocations := repository.NewAllocationRepository(f.db)

	days := []string{"2025-03-01", "2025-03-02", "2025-03-03", "2025-03-04", "2025-03-05", "2025-03-06", "2025-03-07"}
	for i, day := range days {
		f.svc.SetClock(testdb.Clock(day))
		_, err := allocations.Allocate(ctx, f.vendor.ID, day, 1)
		require.NoError(t, err)

		order, err := f.svc.PlaceOrder(ctx, client.ID)
		require.NoError(t, err)
		_, err = f.svc.ProcessOrder(ctx, order.ID, f.vendor.ID, models.RoleVendor, models.ActionAccept)
		require.NoError(t, err)

		assert.Equal(t, i+1, testdb.Reload(t, f.db, client).StreakConsecutif)
	}

	fresh := testdb.Reload(t, f.db, client)
	assert.Equal(t, 2, fresh.BadgeNiveau)
	assert.False(t, fresh.EligibleLoterie)
}

func TestPendingAndVendorOrders(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	other := testdb.Vendor(t, f.db, "vendeur-hec", "HEC", "")
	client := testdb.Client(t, f.db, "nina", "ISEG", "Licence 3")

	pending, err := f.svc.PendingOrder(ctx, client.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)

	order, err := f.svc.PlaceOrder(ctx, client.ID)
	require.NoError(t, err)

	pending, err = f.svc.PendingOrder(ctx, client.ID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, order.ID, pending.ID)

	list, err := f.svc.VendorOrders(ctx, f.vendor.ID, f.vendor.ID, models.RoleVendor)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "nina", list[0].ClientNom)
	assert.Equal(t, "ISEG", list[0].ClientInstitut)
	assert.Equal(t, "Licence 3", list[0].ClientParcours)

	list, err = f.svc.VendorOrders(ctx, f.vendor.ID, 0, models.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.VendorOrders(ctx, f.vendor.ID, other.ID, models.RoleVendor)
	assert.ErrorIs(t, err, errs.ErrForbidden)
	_, err = f.svc.VendorOrders(ctx, f.vendor.ID, client.ID, models.RoleClient)
	assert.ErrorIs(t, err, errs.ErrForbidden)
}
