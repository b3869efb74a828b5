// Package leaderboard provides the streak ranking and the daily admin reports.
package leaderboard

import (
	"context"
	"fmt"

	"github.com/maplenou/maplenou-api/internal/errs"
	"github.com/maplenou/maplenou-api/internal/models"
	"github.com/maplenou/maplenou-api/internal/repository"
	"github.com/maplenou/maplenou-api/internal/service/badges"
	"github.com/maplenou/maplenou-api/pkg/logger"
)

// UserRepository interface for user operations.
type UserRepository interface {
	Ranking(ctx context.Context, limit int) ([]models.User, error)
	ListVendors(ctx context.Context) ([]models.User, error)
}

// OrderRepository interface for order statistics.
type OrderRepository interface {
	Revenue(ctx context.Context, day string) (int, int64, error)
	StatsByVendor(ctx context.Context, day string) ([]repository.VendorDayStats, error)
}

// AllocationRepository interface for allocation statistics.
type AllocationRepository interface {
	ListByDay(ctx context.Context, day string) ([]models.VendorAllocation, error)
	Totals(ctx context.Context, day string) (int, int, error)
}

// BadgeCatalog provides the badge definitions.
type BadgeCatalog interface {
	Definitions(ctx context.Context) ([]models.BadgeDefinition, error)
}

// Entry represents a single entry in the ranking.
type Entry struct {
	Rank             int     `json:"rank"`
	UserID           uint    `json:"user_id"`
	Nom              string  `json:"nom"`
	Prenom           string  `json:"prenom"`
	Institut         string  `json:"institut"`
	Parcours         string  `json:"parcours"`
	StreakConsecutif int     `json:"streak_consecutif"`
	BadgeNiveau      int     `json:"badge_niveau"`
	BadgeNom         string  `json:"badge_nom"`
	DernierAchatDate *string `json:"dernier_achat_date"`
	EligibleLoterie  bool    `json:"eligible_loterie"`
}

// Service handles rankings and reports.
type Service struct {
	userRepo       UserRepository
	orderRepo      OrderRepository
	allocationRepo AllocationRepository
	catalog        BadgeCatalog
	log            *logger.Logger
}

// NewService creates a new leaderboard service with concrete repository types.
func NewService(
	userRepo *repository.UserRepository,
	orderRepo *repository.OrderRepository,
	allocationRepo *repository.AllocationRepository,
	catalog *badges.Service,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(userRepo, orderRepo, allocationRepo, catalog, log)
}

// NewServiceWithInterfaces creates a new leaderboard service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	userRepo UserRepository,
	orderRepo OrderRepository,
	allocationRepo AllocationRepository,
	catalog BadgeCatalog,
	log *logger.Logger,
) *Service {
	return &Service{
		userRepo:       userRepo,
		orderRepo:      orderRepo,
		allocationRepo: allocationRepo,
		catalog:        catalog,
		log:            log,
	}
}

// GetRanking returns clients ranked by streak, then badge, then most recent
// purchase, then name. limit <= 0 returns everyone.
func (s *Service) GetRanking(ctx context.Context, limit int) ([]Entry, error) {
	users, err := s.userRepo.Ranking(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}
	defs, err := s.catalog.Definitions(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(users))
	for i, u := range users {
		entries = append(entries, Entry{
			Rank:             i + 1,
			UserID:           u.ID,
			Nom:              u.Nom,
			Prenom:           u.Prenom,
			Institut:         u.Institut,
			Parcours:         u.Parcours,
			StreakConsecutif: u.StreakConsecutif,
			BadgeNiveau:      u.BadgeNiveau,
			BadgeNom:         badges.Label(u.BadgeNiveau, defs),
			DernierAchatDate: u.DernierAchatDate,
			EligibleLoterie:  u.EligibleLoterie,
		})
	}

	s.log.Debug().
		Int("entries", len(entries)).
		Int("limit", limit).
		Msg("Generated ranking")

	return entries, nil
}

// ListVendors returns every vendor account.
func (s *Service) ListVendors(ctx context.Context) ([]models.User, error) {
	vendors, err := s.userRepo.ListVendors(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}
	return vendors, nil
}
