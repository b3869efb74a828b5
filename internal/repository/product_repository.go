package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/maplenou/maplenou-api/internal/models"
)

// ProductRepository handles the single product and its legacy global counter.
type ProductRepository struct {
	db *DB
}

// NewProductRepository creates a new product repository.
func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *ProductRepository) WithTx(tx *DB) *ProductRepository {
	return &ProductRepository{db: tx}
}

// Create creates the product.
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Get returns the product. The catalog holds a single item.
func (r *ProductRepository) Get(ctx context.Context) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Order("id ASC").First(&product).Error; err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &product, nil
}

// UpdateDetails updates the descriptive fields present in fields.
func (r *ProductRepository) UpdateDetails(ctx context.Context, id uint, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now().UTC()
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return fmt.Errorf("failed to update product %d: %w", id, err)
	}
	return nil
}

// SetDailyStock sets both the total and the remaining global counter.
func (r *ProductRepository) SetDailyStock(ctx context.Context, id uint, total int) error {
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"stock_total_du_jour":   total,
			"stock_restant_du_jour": total,
			"updated_at":            time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to set daily stock of product %d: %w", id, err)
	}
	return nil
}

// RolloverDailyStock resets the remaining global counter to its daily total.
func (r *ProductRepository) RolloverDailyStock(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("1 = 1").
		Updates(map[string]interface{}{
			"stock_restant_du_jour": gorm.Expr("stock_total_du_jour"),
			"updated_at":            time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to roll over product stock: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ConsumeGlobal takes one unit from the global counter if any remains.
func (r *ProductRepository) ConsumeGlobal(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND stock_restant_du_jour > 0", id).
		Updates(map[string]interface{}{
			"stock_restant_du_jour": gorm.Expr("stock_restant_du_jour - ?", 1),
			"updated_at":            time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to consume global stock of product %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}
