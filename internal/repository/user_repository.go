package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/maplenou/maplenou-api/internal/models"
)

// ErrRoleConflict is returned when a vendor email already belongs to a non-vendor account.
var ErrRoleConflict = errors.New("account already exists with another role")

// UserRepository handles user-related database operations.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *UserRepository) WithTx(tx *DB) *UserRepository {
	return &UserRepository{db: tx}
}

// Create creates a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by id %d: %w", id, err)
	}
	return &user, nil
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by email %s: %w", email, err)
	}
	return &user, nil
}

// List retrieves all users, optionally filtered by role.
func (r *UserRepository) List(ctx context.Context, role string) ([]models.User, error) {
	query := r.db.WithContext(ctx).Model(&models.User{})
	if role != "" {
		query = query.Where("role = ?", role)
	}

	var users []models.User
	if err := query.Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ListVendors retrieves all vendors.
func (r *UserRepository) ListVendors(ctx context.Context) ([]models.User, error) {
	return r.List(ctx, models.RoleVendor)
}

// FindVendor returns the vendor with the lowest id matching institut and
// parcours exactly, or nil when none matches.
func (r *UserRepository) FindVendor(ctx context.Context, institut, parcours string) (*models.User, error) {
	return r.firstVendor(ctx, r.db.Where("role = ? AND institut = ? AND parcours = ?", models.RoleVendor, institut, parcours))
}

// FindVendorByInstitut returns the vendor with the lowest id attached to
// institut, whatever its parcours, or nil when none matches.
func (r *UserRepository) FindVendorByInstitut(ctx context.Context, institut string) (*models.User, error) {
	return r.firstVendor(ctx, r.db.Where("role = ? AND institut = ?", models.RoleVendor, institut))
}

func (r *UserRepository) firstVendor(ctx context.Context, query *gorm.DB) (*models.User, error) {
	var vendor models.User
	err := query.WithContext(ctx).Order("id ASC").First(&vendor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find vendor: %w", err)
	}
	return &vendor, nil
}

// ListClientsWithStreak retrieves clients holding a streak.
func (r *UserRepository) ListClientsWithStreak(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND streak_consecutif > 0", models.RoleClient).
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list clients with streak: %w", err)
	}
	return users, nil
}

// UpdateGamification persists the streak fields of user if its version is
// still expectedVersion. It reports false when another writer got there first.
func (r *UserRepository) UpdateGamification(ctx context.Context, user *models.User, expectedVersion int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND version = ?", user.ID, expectedVersion).
		Updates(map[string]interface{}{
			"streak_consecutif":  user.StreakConsecutif,
			"badge_niveau":       user.BadgeNiveau,
			"dernier_achat_date": user.DernierAchatDate,
			"eligible_loterie":   user.EligibleLoterie,
			"version":            expectedVersion + 1,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update gamification of user %d: %w", user.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	user.Version = expectedVersion + 1
	return true, nil
}

// RevokeStreak zeroes the streak, badge and lottery eligibility of a user in a
// single statement. Users whose last accepted order is on or after notBefore
// are left untouched, so an acceptance racing the reset is never undone.
func (r *UserRepository) RevokeStreak(ctx context.Context, userID uint, notBefore string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND streak_consecutif > 0", userID).
		Where("dernier_achat_date IS NULL OR dernier_achat_date < ?", notBefore).
		Updates(map[string]interface{}{
			"streak_consecutif": 0,
			"badge_niveau":      0,
			"eligible_loterie":  false,
			"version":           gorm.Expr("version + 1"),
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to revoke streak of user %d: %w", userID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Ranking returns clients ordered by streak, badge and recency of last purchase.
func (r *UserRepository) Ranking(ctx context.Context, limit int) ([]models.User, error) {
	query := r.db.WithContext(ctx).
		Where("role = ?", models.RoleClient).
		Order("streak_consecutif DESC").
		Order("badge_niveau DESC").
		Order("CASE WHEN dernier_achat_date IS NULL THEN 1 ELSE 0 END").
		Order("dernier_achat_date DESC").
		Order("nom ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to rank users: %w", err)
	}
	return users, nil
}

// CreateOrUpdateVendor creates a vendor account, or refreshes the profile of
// the existing vendor with the same email. Accounts of other roles are left
// untouched and reported as ErrRoleConflict.
func (r *UserRepository) CreateOrUpdateVendor(ctx context.Context, vendor *models.User) error {
	vendor.Role = models.RoleVendor

	existing, err := r.GetByEmail(ctx, vendor.Email)
	if err != nil && !IsNotFound(err) {
		return err
	}
	if existing == nil {
		return r.Create(ctx, vendor)
	}
	if !existing.IsVendor() {
		return fmt.Errorf("vendor %s is a %s account: %w", vendor.Email, existing.Role, ErrRoleConflict)
	}

	err = r.db.WithContext(ctx).Model(existing).Updates(map[string]interface{}{
		"nom":       vendor.Nom,
		"prenom":    vendor.Prenom,
		"telephone": vendor.Telephone,
		"institut":  vendor.Institut,
		"parcours":  vendor.Parcours,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update vendor %s: %w", vendor.Email, err)
	}
	vendor.ID = existing.ID
	return nil
}
