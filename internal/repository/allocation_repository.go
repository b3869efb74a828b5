package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/maplenou/maplenou-api/internal/models"
)

// AllocationRepository handles the per-vendor daily stock ledger.
// stock_restant is only ever written through Allocate and Consume.
type AllocationRepository struct {
	db *DB
}

// NewAllocationRepository creates a new allocation repository.
func NewAllocationRepository(db *DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *AllocationRepository) WithTx(tx *DB) *AllocationRepository {
	return &AllocationRepository{db: tx}
}

// Allocate adds quantity to both counters of the (vendor, day) record,
// creating it when absent, in a single upsert statement.
func (r *AllocationRepository) Allocate(ctx context.Context, vendorID uint, day string, quantity int) (*models.VendorAllocation, error) {
	now := time.Now().UTC()
	row := &models.VendorAllocation{
		VendeurID:    vendorID,
		DateJour:     day,
		StockAlloue:  quantity,
		StockRestant: quantity,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "vendeur_id"}, {Name: "date_jour"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"stock_alloue":  gorm.Expr("allocations_vendeurs.stock_alloue + ?", quantity),
			"stock_restant": gorm.Expr("allocations_vendeurs.stock_restant + ?", quantity),
			"updated_at":    now,
		}),
	}).Create(row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to allocate %d to vendor %d on %s: %w", quantity, vendorID, day, err)
	}

	return r.Get(ctx, vendorID, day)
}

// Consume takes one unit from the vendor's stock of day if any remains.
// The check and the decrement are one conditional UPDATE.
func (r *AllocationRepository) Consume(ctx context.Context, vendorID uint, day string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.VendorAllocation{}).
		Where("vendeur_id = ? AND date_jour = ? AND stock_restant > 0", vendorID, day).
		Updates(map[string]interface{}{
			"stock_restant": gorm.Expr("stock_restant - ?", 1),
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to consume stock of vendor %d on %s: %w", vendorID, day, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Get returns the (vendor, day) record, or nil when the vendor has no allocation that day.
func (r *AllocationRepository) Get(ctx context.Context, vendorID uint, day string) (*models.VendorAllocation, error) {
	var alloc models.VendorAllocation
	err := r.db.WithContext(ctx).
		Where("vendeur_id = ? AND date_jour = ?", vendorID, day).
		First(&alloc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get allocation of vendor %d on %s: %w", vendorID, day, err)
	}
	return &alloc, nil
}

// Remaining returns the vendor's remaining stock on day, 0 without a record.
func (r *AllocationRepository) Remaining(ctx context.Context, vendorID uint, day string) (int, error) {
	alloc, err := r.Get(ctx, vendorID, day)
	if err != nil || alloc == nil {
		return 0, err
	}
	return alloc.StockRestant, nil
}

// ListByDay returns every allocation of day with the vendor preloaded.
func (r *AllocationRepository) ListByDay(ctx context.Context, day string) ([]models.VendorAllocation, error) {
	var allocs []models.VendorAllocation
	err := r.db.WithContext(ctx).
		Preload("Vendeur").
		Where("date_jour = ?", day).
		Order("vendeur_id ASC").
		Find(&allocs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations of %s: %w", day, err)
	}
	return allocs, nil
}

// VendorsWithStock returns the ids of vendors granted a non-empty allocation on day.
func (r *AllocationRepository) VendorsWithStock(ctx context.Context, day string) (map[uint]bool, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.VendorAllocation{}).
		Where("date_jour = ? AND stock_alloue > 0", day).
		Pluck("vendeur_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors with stock on %s: %w", day, err)
	}

	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// Totals returns the summed allocated and remaining stock of day.
func (r *AllocationRepository) Totals(ctx context.Context, day string) (int, int, error) {
	var row struct {
		Alloue  int
		Restant int
	}
	err := r.db.WithContext(ctx).Model(&models.VendorAllocation{}).
		Select("COALESCE(SUM(stock_alloue), 0) AS alloue, COALESCE(SUM(stock_restant), 0) AS restant").
		Where("date_jour = ?", day).
		Scan(&row).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to total allocations of %s: %w", day, err)
	}
	return row.Alloue, row.Restant, nil
}
