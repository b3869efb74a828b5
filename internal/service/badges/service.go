// Package badges maintains consecutive-day streaks and badge levels.
package badges

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/maplenou/maplenou-api/internal/errs"
	prommetrics "github.com/maplenou/maplenou-api/internal/metrics"
	"github.com/maplenou/maplenou-api/internal/models"
	"github.com/maplenou/maplenou-api/internal/repository"
	"github.com/maplenou/maplenou-api/pkg/logger"
)

// DefaultLotteryTier is the level from which users enter the lottery.
const DefaultLotteryTier = 4

// BadgeRepository interface for badge definition operations.
type BadgeRepository interface {
	ListDefinitions(ctx context.Context) ([]models.BadgeDefinition, error)
}

// UserStore is the user access the engine needs, usually bound to the
// transaction that accepts the order.
type UserStore interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	UpdateGamification(ctx context.Context, user *models.User, expectedVersion int) (bool, error)
}

// Service handles streak updates and the badge catalog.
type Service struct {
	badgeRepo   BadgeRepository
	lotteryTier int
	log         *logger.Logger

	mu   sync.RWMutex
	defs []models.BadgeDefinition
}

// NewService creates a new badge service.
func NewService(badgeRepo *repository.BadgeRepository, lotteryTier int, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(badgeRepo, lotteryTier, log)
}

// NewServiceWithInterfaces creates a new badge service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(badgeRepo BadgeRepository, lotteryTier int, log *logger.Logger) *Service {
	if lotteryTier <= 0 {
		lotteryTier = DefaultLotteryTier
	}
	return &Service{
		badgeRepo:   badgeRepo,
		lotteryTier: lotteryTier,
		log:         log,
	}
}

// Definitions returns the badge definitions by ascending threshold. They are
// read once and kept in memory; call Reload after changing them.
func (s *Service) Definitions(ctx context.Context) ([]models.BadgeDefinition, error) {
	s.mu.RLock()
	defs := s.defs
	s.mu.RUnlock()
	if defs != nil {
		return defs, nil
	}
	return s.Reload(ctx)
}

// Reload re-reads the badge definitions.
func (s *Service) Reload(ctx context.Context) ([]models.BadgeDefinition, error) {
	defs, err := s.badgeRepo.ListDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}
	if defs == nil {
		defs = []models.BadgeDefinition{}
	}

	s.mu.Lock()
	s.defs = defs
	s.mu.Unlock()

	s.log.Debug().Int("definitions", len(defs)).Msg("Loaded badge definitions")
	return defs, nil
}

// GetBadgeCatalog returns the badge definitions for display.
func (s *Service) GetBadgeCatalog(ctx context.Context) ([]models.BadgeDefinition, error) {
	return s.Definitions(ctx)
}

// RecordAcceptance updates the streak and badge of userID for an order
// accepted on today. users must be bound to the caller's transaction; a
// concurrent write to the same user yields errs.ErrConcurrentUpdate.
func (s *Service) RecordAcceptance(ctx context.Context, users UserStore, defs []models.BadgeDefinition, userID uint, today string) (Outcome, error) {
	yesterday, err := models.PreviousDay(today)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", errs.ErrInvalidInput, err)
	}

	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return Outcome{}, fmt.Errorf("user %d: %w", userID, errs.ErrNotFound)
		}
		return Outcome{}, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}

	version := user.Version
	out := Apply(user, today, yesterday, defs, s.lotteryTier)
	if !out.Changed {
		s.log.Debug().Uint("user_id", userID).Str("day", today).Msg("Streak already recorded for today")
		return out, nil
	}

	ok, err := users.UpdateGamification(ctx, user, version)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}
	if !ok {
		return Outcome{}, fmt.Errorf("user %d: %w", userID, errs.ErrConcurrentUpdate)
	}

	if out.Promoted {
		prommetrics.RecordBadgeAwarded(strconv.Itoa(out.Level))
		s.log.Info().
			Uint("user_id", userID).
			Int("level", out.Level).
			Int("streak", out.Streak).
			Bool("eligible_loterie", out.EligibleLoterie).
			Msg("Badge level awarded")
	}

	return out, nil
}
