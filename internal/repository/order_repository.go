package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/maplenou/maplenou-api/internal/models"
)

// VendorDayStats aggregates one vendor's orders of one status on one day.
// VendeurID is nil for orders without a vendor.
type VendorDayStats struct {
	VendeurID *uint
	Statut    string
	Count     int
	Revenue   int64
}

// OrderRepository handles order-related database operations.
type OrderRepository struct {
	db *DB
}

// NewOrderRepository creates a new order repository.
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *OrderRepository) WithTx(tx *DB) *OrderRepository {
	return &OrderRepository{db: tx}
}

// Create inserts a new order. A second order for the same user and day fails
// with gorm.ErrDuplicatedKey.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by ID.
func (r *OrderRepository) GetByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get order by id %d: %w", id, err)
	}
	return &order, nil
}

// ExistsForUserDay reports whether the user already has an order on day, in any status.
func (r *OrderRepository) ExistsForUserDay(ctx context.Context, userID uint, day string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("utilisateur_id = ? AND jour_commande = ?", userID, day).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check order of user %d on %s: %w", userID, day, err)
	}
	return count > 0, nil
}

// GetPendingForUserDay returns the user's pending order on day, or nil.
func (r *OrderRepository) GetPendingForUserDay(ctx context.Context, userID uint, day string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("utilisateur_id = ? AND jour_commande = ? AND statut = ?", userID, day, models.OrderPending).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending order of user %d: %w", userID, err)
	}
	return &order, nil
}

// HasAcceptedOnDay reports whether the user has an accepted order on day.
func (r *OrderRepository) HasAcceptedOnDay(ctx context.Context, userID uint, day string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("utilisateur_id = ? AND jour_commande = ? AND statut = ?", userID, day, models.OrderAccepted).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check accepted order of user %d on %s: %w", userID, day, err)
	}
	return count > 0, nil
}

// ListPendingByVendor returns the vendor's pending orders, oldest first, with
// the ordering client preloaded.
func (r *OrderRepository) ListPendingByVendor(ctx context.Context, vendorID uint) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Utilisateur").
		Where("vendeur_id = ? AND statut = ?", vendorID, models.OrderPending).
		Order("date_commande ASC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending orders of vendor %d: %w", vendorID, err)
	}
	return orders, nil
}

// TransitionStatus moves an order from one status to another and stamps
// date_traitement. It reports false when the order is no longer in from.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id uint, from, to string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND statut = ?", id, from).
		Updates(map[string]interface{}{
			"statut":          to,
			"date_traitement": at,
			"updated_at":      at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update status of order %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// StatsByVendor groups the orders of day by vendor and status.
func (r *OrderRepository) StatsByVendor(ctx context.Context, day string) ([]VendorDayStats, error) {
	var rows []struct {
		VendeurID *uint
		Statut    string
		Count     int
		Revenue   int64
	}
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select("vendeur_id, statut, COUNT(*) AS count, COALESCE(SUM(prix_total), 0) AS revenue").
		Where("jour_commande = ?", day).
		Group("vendeur_id, statut").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate orders of %s: %w", day, err)
	}

	stats := make([]VendorDayStats, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, VendorDayStats(row))
	}
	return stats, nil
}

// Revenue returns the number and total price of accepted orders on day.
func (r *OrderRepository) Revenue(ctx context.Context, day string) (int, int64, error) {
	var row struct {
		Count   int
		Revenue int64
	}
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select("COUNT(*) AS count, COALESCE(SUM(prix_total), 0) AS revenue").
		Where("jour_commande = ? AND statut = ?", day, models.OrderAccepted).
		Scan(&row).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to compute revenue of %s: %w", day, err)
	}
	return row.Count, row.Revenue, nil
}
