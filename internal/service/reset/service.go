// Package reset implements the daily job that rolls the global stock counter
// over and revokes the streaks of clients who missed an opportunity to order.
package reset

import (
	"context"
	"fmt"
	"time"

	prommetrics "github.com/maplenou/maplenou-api/internal/metrics"
	"github.com/maplenou/maplenou-api/internal/models"
	"github.com/maplenou/maplenou-api/internal/repository"
	"github.com/maplenou/maplenou-api/internal/service/vendors"
	"github.com/maplenou/maplenou-api/pkg/logger"
)

// ProductRepository interface for the global counter.
type ProductRepository interface {
	RolloverDailyStock(ctx context.Context) (int64, error)
}

// AllocationRepository interface for allocation lookups.
type AllocationRepository interface {
	VendorsWithStock(ctx context.Context, day string) (map[uint]bool, error)
}

// OrderRepository interface for order lookups.
type OrderRepository interface {
	HasAcceptedOnDay(ctx context.Context, userID uint, day string) (bool, error)
}

// UserRepository interface for streak operations.
type UserRepository interface {
	ListClientsWithStreak(ctx context.Context) ([]models.User, error)
	RevokeStreak(ctx context.Context, userID uint, notBefore string) (bool, error)
}

// VendorResolver finds the vendor of a user.
type VendorResolver interface {
	Resolve(ctx context.Context, user *models.User) (*models.User, error)
}

// Report summarizes one run.
type Report struct {
	Day             string `json:"day"`
	Yesterday       string `json:"yesterday"`
	ProductsReset   int64  `json:"products_reset"`
	Checked         int    `json:"checked"`
	Revoked         int    `json:"revoked"`
	SkippedNoVendor int    `json:"skipped_no_vendor"`
	SkippedNoStock  int    `json:"skipped_no_stock"`
	SkippedOrdered  int    `json:"skipped_ordered"`
	Failed          int    `json:"failed"`
}

// Service runs the daily reset.
type Service struct {
	products    ProductRepository
	allocations AllocationRepository
	orders      OrderRepository
	users       UserRepository
	resolver    VendorResolver
	now         func() time.Time
	log         *logger.Logger
}

// NewService creates a new reset service.
func NewService(
	products *repository.ProductRepository,
	allocations *repository.AllocationRepository,
	orders *repository.OrderRepository,
	users *repository.UserRepository,
	resolver *vendors.Resolver,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(products, allocations, orders, users, resolver, log)
}

// NewServiceWithInterfaces creates a new reset service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	products ProductRepository,
	allocations AllocationRepository,
	orders OrderRepository,
	users UserRepository,
	resolver VendorResolver,
	log *logger.Logger,
) *Service {
	return &Service{
		products:    products,
		allocations: allocations,
		orders:      orders,
		users:       users,
		resolver:    resolver,
		now:         time.Now,
		log:         log,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Run resets for the current day.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	return s.RunForDay(ctx, models.DayOf(s.now()))
}

// RunForDay resets for day, judging opportunities on the day before it.
// A rollover failure aborts the run; a failure on one user is logged and the
// run moves on to the next user.
func (s *Service) RunForDay(ctx context.Context, day string) (*Report, error) {
	yesterday, err := models.PreviousDay(day)
	if err != nil {
		return nil, err
	}
	report := &Report{Day: day, Yesterday: yesterday}

	s.log.Info().Str("day", day).Str("yesterday", yesterday).Msg("Starting daily reset")

	reset, err := s.products.RolloverDailyStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to roll over daily stock: %w", err)
	}
	report.ProductsReset = reset

	stocked, err := s.allocations.VendorsWithStock(ctx, yesterday)
	if err != nil {
		return report, fmt.Errorf("failed to load allocations of %s: %w", yesterday, err)
	}

	clients, err := s.users.ListClientsWithStreak(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list clients with a streak: %w", err)
	}

	for i := range clients {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		client := &clients[i]
		report.Checked++

		revoked, reason, err := s.checkClient(ctx, client, yesterday, stocked)
		if err != nil {
			report.Failed++
			s.log.Error().Err(err).Uint("user_id", client.ID).Msg("Failed to check streak")
			continue
		}

		switch {
		case revoked:
			report.Revoked++
			s.log.Info().
				Uint("user_id", client.ID).
				Int("previous_streak", client.StreakConsecutif).
				Int("previous_level", client.BadgeNiveau).
				Msg("Streak revoked")
		case reason == skipNoVendor:
			report.SkippedNoVendor++
		case reason == skipNoStock:
			report.SkippedNoStock++
		case reason == skipOrdered:
			report.SkippedOrdered++
		}
	}

	prommetrics.RecordStreakRevocations(report.Revoked)
	s.log.Info().
		Str("day", day).
		Int64("products_reset", report.ProductsReset).
		Int("checked", report.Checked).
		Int("revoked", report.Revoked).
		Int("skipped_no_vendor", report.SkippedNoVendor).
		Int("skipped_no_stock", report.SkippedNoStock).
		Int("skipped_ordered", report.SkippedOrdered).
		Int("failed", report.Failed).
		Msg("Daily reset completed")

	return report, nil
}

type skipReason int

const (
	skipNone skipReason = iota
	skipNoVendor
	skipNoStock
	skipOrdered
)

// checkClient revokes the client's streak only if their vendor had stock
// yesterday and they had no accepted order that day.
func (s *Service) checkClient(ctx context.Context, client *models.User, yesterday string, stocked map[uint]bool) (bool, skipReason, error) {
	vendor, err := s.resolver.Resolve(ctx, client)
	if err != nil {
		return false, skipNone, err
	}
	if vendor == nil {
		return false, skipNoVendor, nil
	}
	if !stocked[vendor.ID] {
		return false, skipNoStock, nil
	}

	ordered, err := s.orders.HasAcceptedOnDay(ctx, client.ID, yesterday)
	if err != nil {
		return false, skipNone, err
	}
	if ordered {
		return false, skipOrdered, nil
	}

	revoked, err := s.users.RevokeStreak(ctx, client.ID, yesterday)
	if err != nil {
		return false, skipNone, err
	}
	if !revoked {
		// Bought yesterday or later in the meantime.
		return false, skipOrdered, nil
	}
	return true, skipNone, nil
}
