package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/maplenou/maplenou-api/internal/models"
)

// BadgeRepository handles badge definitions.
type BadgeRepository struct {
	db *DB
}

// NewBadgeRepository creates a new badge repository.
func NewBadgeRepository(db *DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// ListDefinitions returns the badge definitions by ascending threshold.
func (r *BadgeRepository) ListDefinitions(ctx context.Context) ([]models.BadgeDefinition, error) {
	var defs []models.BadgeDefinition
	err := r.db.WithContext(ctx).Order("jours_requis ASC").Order("niveau ASC").Find(&defs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list badge definitions: %w", err)
	}
	return defs, nil
}

// UpsertDefinition creates the definition of a tier or replaces its fields.
func (r *BadgeRepository) UpsertDefinition(ctx context.Context, def *models.BadgeDefinition) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "niveau"}},
		DoUpdates: clause.AssignmentColumns([]string{"nom", "jours_requis", "description", "updated_at"}),
	}).Create(def).Error
	if err != nil {
		return fmt.Errorf("failed to upsert badge definition %d: %w", def.Niveau, err)
	}
	return nil
}
