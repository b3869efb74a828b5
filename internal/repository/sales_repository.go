package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/maplenou/maplenou-api/internal/models"
)

// SalesRepository stores the end-of-day vendor snapshots.
type SalesRepository struct {
	db *DB
}

// NewSalesRepository creates a new sales repository.
func NewSalesRepository(db *DB) *SalesRepository {
	return &SalesRepository{db: db}
}

// CreateOrUpdate stores the snapshot, replacing any previous one for the same day and vendor.
func (r *SalesRepository) CreateOrUpdate(ctx context.Context, sales *models.DailySales) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date_jour"}, {Name: "vendeur_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"commandes_traitees", "commandes_annulees", "commandes_en_attente",
			"chiffre_affaires", "stock_alloue", "stock_restant", "updated_at",
		}),
	}).Create(sales).Error
	if err != nil {
		return fmt.Errorf("failed to store daily sales of vendor %d on %s: %w", sales.VendeurID, sales.DateJour, err)
	}
	return nil
}

// ListByDay returns the snapshots of day by vendor.
func (r *SalesRepository) ListByDay(ctx context.Context, day string) ([]models.DailySales, error) {
	var sales []models.DailySales
	if err := r.db.WithContext(ctx).Where("date_jour = ?", day).Order("vendeur_id ASC").Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("failed to list daily sales of %s: %w", day, err)
	}
	return sales, nil
}
