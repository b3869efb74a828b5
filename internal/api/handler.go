// Package api provides the REST handlers of the order engine and the gin
// router that mounts them.
package api

import (
	"context"

	"github.com/maplenou/maplenou-api/internal/models"
	"github.com/maplenou/maplenou-api/internal/repository"
	"github.com/maplenou/maplenou-api/internal/service/allocation"
	"github.com/maplenou/maplenou-api/internal/service/badges"
	"github.com/maplenou/maplenou-api/internal/service/leaderboard"
	"github.com/maplenou/maplenou-api/internal/service/orders"
	"github.com/maplenou/maplenou-api/internal/service/reset"
	"github.com/maplenou/maplenou-api/internal/service/scheduler"
	"github.com/maplenou/maplenou-api/pkg/logger"
)

// OrderService interface for order operations.
type OrderService interface {
	PlaceOrder(ctx context.Context, userID uint) (*models.Order, error)
	PendingOrder(ctx context.Context, userID uint) (*models.Order, error)
	VendorOrders(ctx context.Context, vendorID, actorID uint, actorRole string) ([]orders.VendorOrder, error)
	ProcessOrder(ctx context.Context, orderID, actorID uint, actorRole, action string) (*orders.ProcessResult, error)
}

// StockService interface for the allocation ledger and the product.
type StockService interface {
	Remaining(ctx context.Context, userID uint) (*allocation.StockView, error)
	Allocate(ctx context.Context, vendorID uint, quantity int) (*models.VendorAllocation, error)
	AllocateForDay(ctx context.Context, vendorID uint, day string, quantity int) (*models.VendorAllocation, error)
	ListByDay(ctx context.Context, day string) ([]models.VendorAllocation, error)
	Product(ctx context.Context) (*models.Product, error)
	UpdateProduct(ctx context.Context, upd allocation.ProductUpdate) (*models.Product, error)
	SetDailyStock(ctx context.Context, total int) (*models.Product, error)
}

// ReportService interface for rankings and admin reports.
type ReportService interface {
	GetRanking(ctx context.Context, limit int) ([]leaderboard.Entry, error)
	ListVendors(ctx context.Context) ([]models.User, error)
	GetRevenue(ctx context.Context, day string) (*leaderboard.RevenueReport, error)
	GetProductStats(ctx context.Context, day string) (*leaderboard.ProductStats, error)
	GetVendorStats(ctx context.Context, day string) ([]leaderboard.VendorStats, error)
}

// BadgeService interface for the badge catalog.
type BadgeService interface {
	GetBadgeCatalog(ctx context.Context) ([]models.BadgeDefinition, error)
}

// UserReader loads the profile of the caller.
type UserReader interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// JobRunner triggers the daily jobs by hand.
type JobRunner interface {
	RunDailyReset(ctx context.Context) (*reset.Report, error)
}

// Handler handles the REST API requests.
type Handler struct {
	orders      OrderService
	stock       StockService
	reports     ReportService
	badges      BadgeService
	users       UserReader
	jobs        JobRunner
	development bool
	log         *logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	orderService *orders.Service,
	stockService *allocation.Service,
	reportService *leaderboard.Service,
	badgeService *badges.Service,
	userRepo *repository.UserRepository,
	sched *scheduler.Service,
	development bool,
	log *logger.Logger,
) *Handler {
	return NewHandlerWithInterfaces(orderService, stockService, reportService, badgeService, userRepo, sched, development, log)
}

// NewHandlerWithInterfaces creates a new API handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(
	orderService OrderService,
	stockService StockService,
	reportService ReportService,
	badgeService BadgeService,
	users UserReader,
	jobs JobRunner,
	development bool,
	log *logger.Logger,
) *Handler {
	return &Handler{
		orders:      orderService,
		stock:       stockService,
		reports:     reportService,
		badges:      badgeService,
		users:       users,
		jobs:        jobs,
		development: development,
		log:         log,
	}
}
