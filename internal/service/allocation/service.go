// Package allocation exposes the per-vendor daily stock ledger and the
// legacy global counter of the product.
package allocation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/maplenou/maplenou-api/internal/errs"
	prommetrics "github.com/maplenou/maplenou-api/internal/metrics"
	"github.com/maplenou/maplenou-api/internal/models"
	"github.com/maplenou/maplenou-api/internal/repository"
	"github.com/maplenou/maplenou-api/internal/service/vendors"
	"github.com/maplenou/maplenou-api/pkg/logger"
)

// maxAllocated is the most a vendor can hold on one day; the ledger columns are 32-bit.
const maxAllocated = math.MaxInt32

// Stock scopes reported by Remaining.
const (
	ScopeVendor = "vendor"
	ScopeGlobal = "global"
)

// AllocationRepository interface for ledger operations.
type AllocationRepository interface {
	Allocate(ctx context.Context, vendorID uint, day string, quantity int) (*models.VendorAllocation, error)
	Get(ctx context.Context, vendorID uint, day string) (*models.VendorAllocation, error)
	Remaining(ctx context.Context, vendorID uint, day string) (int, error)
	ListByDay(ctx context.Context, day string) ([]models.VendorAllocation, error)
}

// ProductRepository interface for product operations.
type ProductRepository interface {
	Get(ctx context.Context) (*models.Product, error)
	UpdateDetails(ctx context.Context, id uint, fields map[string]interface{}) error
	SetDailyStock(ctx context.Context, id uint, total int) error
}

// UserRepository interface for user lookups.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// VendorResolver finds the vendor of a user.
type VendorResolver interface {
	Resolve(ctx context.Context, user *models.User) (*models.User, error)
}

// StockView is the remaining stock visible to a client.
type StockView struct {
	Scope     string `json:"scope"`
	Stock     int    `json:"stock"`
	VendeurID *uint  `json:"vendeur_id,omitempty"`
	Day       string `json:"day"`
}

// ProductUpdate carries the product fields an admin may change. Nil fields are left as is.
type ProductUpdate struct {
	Nom         *string `json:"nom"`
	Description *string `json:"description"`
	Prix        *int64  `json:"prix"`
	Statut      *string `json:"statut"`
}

// Service handles allocations and the product.
type Service struct {
	allocations AllocationRepository
	products    ProductRepository
	users       UserRepository
	resolver    VendorResolver
	now         func() time.Time
	log         *logger.Logger
}

// NewService creates a new allocation service.
func NewService(
	allocations *repository.AllocationRepository,
	products *repository.ProductRepository,
	users *repository.UserRepository,
	resolver *vendors.Resolver,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(allocations, products, users, resolver, log)
}

// NewServiceWithInterfaces creates a new allocation service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	allocations AllocationRepository,
	products ProductRepository,
	users UserRepository,
	resolver VendorResolver,
	log *logger.Logger,
) *Service {
	return &Service{
		allocations: allocations,
		products:    products,
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

// Today returns the current day key.
func (s *Service) Today() string {
	return models.DayOf(s.now())
}

// Allocate grants quantity units to vendorID for today.
func (s *Service) Allocate(ctx context.Context, vendorID uint, quantity int) (*models.VendorAllocation, error) {
	return s.AllocateForDay(ctx, vendorID, s.Today(), quantity)
}

// AllocateForDay grants quantity units to vendorID on day. Concurrent grants add up.
func (s *Service) AllocateForDay(ctx context.Context, vendorID uint, day string, quantity int) (*models.VendorAllocation, error) {
	if vendorID == 0 {
		return nil, fmt.Errorf("%w: vendeur_id is required", errs.ErrInvalidInput)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", errs.ErrInvalidInput)
	}
	if quantity > maxAllocated {
		return nil, fmt.Errorf("%w: quantity must not exceed %d", errs.ErrInvalidInput, maxAllocated)
	}
	if _, err := models.ParseDay(day); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidInput, err)
	}

	vendor, err := s.users.GetByID(ctx, vendorID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("vendor %d: %w", vendorID, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}
	if !vendor.IsVendor() {
		return nil, fmt.Errorf("vendor %d: %w", vendorID, errs.ErrNotFound)
	}

	current, err := s.allocations.Get(ctx, vendorID, day)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}
	if current != nil && quantity > maxAllocated-current.StockAlloue {
		return nil, fmt.Errorf("%w: vendor %d already holds %d units on %s, at most %d more can be granted",
			errs.ErrInvalidInput, vendorID, current.StockAlloue, day, maxAllocated-current.StockAlloue)
	}

	alloc, err := s.allocations.Allocate(ctx, vendorID, day, quantity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}

	prommetrics.RecordAllocation(quantity)
	s.log.Info().
		Uint("vendor_id", vendorID).
		Str("day", day).
		Int("quantity", quantity).
		Int("stock_alloue", alloc.StockAlloue).
		Int("stock_restant", alloc.StockRestant).
		Msg("Stock allocated")

	return alloc, nil
}

// Remaining returns the stock left today for the vendor of userID, or the
// global counter when no vendor resolves.
func (s *Service) Remaining(ctx context.Context, userID uint) (*StockView, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("user %d: %w", userID, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}

	day := s.Today()
	vendor, err := s.resolver.Resolve(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}

	if vendor != nil {
		stock, err := s.allocations.Remaining(ctx, vendor.ID, day)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
		}
		id := vendor.ID
		return &StockView{Scope: ScopeVendor, Stock: stock, VendeurID: &id, Day: day}, nil
	}

	product, err := s.Product(ctx)
	if err != nil {
		return nil, err
	}
	return &StockView{Scope: ScopeGlobal, Stock: product.StockRestantDuJour, Day: day}, nil
}

// ListByDay returns every allocation of day with its vendor.
func (s *Service) ListByDay(ctx context.Context, day string) ([]models.VendorAllocation, error) {
	if _, err := models.ParseDay(day); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidInput, err)
	}
	allocs, err := s.allocations.ListByDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}
	return allocs, nil
}

// Product returns the sellable product.
func (s *Service) Product(ctx context.Context) (*models.Product, error) {
	product, err := s.products.Get(ctx)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("product: %w", errs.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}
	return product, nil
}

// UpdateProduct applies the non-nil fields of upd and returns the product.
func (s *Service) UpdateProduct(ctx context.Context, upd ProductUpdate) (*models.Product, error) {
	fields := map[string]interface{}{}
	if upd.Nom != nil {
		nom := strings.TrimSpace(*upd.Nom)
		if nom == "" {
			return nil, fmt.Errorf("%w: nom cannot be empty", errs.ErrInvalidInput)
		}
		fields["nom"] = nom
	}
	if upd.Description != nil {
		fields["description"] = *upd.Description
	}
	if upd.Prix != nil {
		if *upd.Prix <= 0 {
			return nil, fmt.Errorf("%w: prix must be positive", errs.ErrInvalidInput)
		}
		fields["prix"] = *upd.Prix
	}
	if upd.Statut != nil {
		if strings.TrimSpace(*upd.Statut) == "" {
			return nil, fmt.Errorf("%w: statut cannot be empty", errs.ErrInvalidInput)
		}
		fields["statut"] = strings.TrimSpace(*upd.Statut)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", errs.ErrInvalidInput)
	}

	product, err := s.Product(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.products.UpdateDetails(ctx, product.ID, fields); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}

	s.log.Info().Uint("product_id", product.ID).Int("fields", len(fields)).Msg("Product updated")
	return s.Product(ctx)
}

// SetDailyStock sets the daily total of the global counter and refills it.
func (s *Service) SetDailyStock(ctx context.Context, total int) (*models.Product, error) {
	if total < 0 {
		return nil, fmt.Errorf("%w: stock_total_du_jour cannot be negative", errs.ErrInvalidInput)
	}

	product, err := s.Product(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.products.SetDailyStock(ctx, product.ID, total); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}

	s.log.Info().Uint("product_id", product.ID).Int("total", total).Msg("Global daily stock set")
	return s.Product(ctx)
}
