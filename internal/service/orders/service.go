// Package orders implements the daily order lifecycle: placement under the
// one-order-per-day rule and the single pending to accepted/rejected transition.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/maplenou/maplenou-api/internal/errs"
	prommetrics "github.com/maplenou/maplenou-api/internal/metrics"
	"github.com/maplenou/maplenou-api/internal/models"
	"github.com/maplenou/maplenou-api/internal/repository"
	"github.com/maplenou/maplenou-api/internal/service/badges"
	"github.com/maplenou/maplenou-api/internal/service/vendors"
	"github.com/maplenou/maplenou-api/pkg/logger"
)

// maxAttempts bounds the retries of an acceptance that lost an optimistic
// version race on the user row.
const maxAttempts = 3

// VendorOrder is a pending order as shown to its vendor.
type VendorOrder struct {
	ID             uint      `json:"id"`
	UtilisateurID  uint      `json:"utilisateur_id"`
	Quantite       int       `json:"quantite"`
	PrixTotal      int64     `json:"prix_total"`
	Statut         string    `json:"statut"`
	JourCommande   string    `json:"jour_commande"`
	DateCommande   time.Time `json:"date_commande"`
	ClientNom      string    `json:"client_nom"`
	ClientPrenom   string    `json:"client_prenom"`
	ClientInstitut string    `json:"client_institut"`
	ClientParcours string    `json:"client_parcours"`
}

// ProcessResult is the outcome of a successful transition.
type ProcessResult struct {
	Order  *models.Order   `json:"order"`
	Streak *badges.Outcome `json:"streak,omitempty"`
}

// Service handles order placement and processing.
type Service struct {
	db          *repository.DB
	orders      *repository.OrderRepository
	users       *repository.UserRepository
	products    *repository.ProductRepository
	allocations *repository.AllocationRepository
	resolver    *vendors.Resolver
	badges      *badges.Service
	now         func() time.Time
	log         *logger.Logger
}

// NewService creates a new order service. Every write path runs through db
// transactions, so the repositories are built here and bound per transaction.
func NewService(db *repository.DB, resolver *vendors.Resolver, badgeService *badges.Service, log *logger.Logger) *Service {
	return &Service{
		db:          db,
		orders:      repository.NewOrderRepository(db),
		users:       repository.NewUserRepository(db),
		products:    repository.NewProductRepository(db),
		allocations: repository.NewAllocationRepository(db),
		resolver:    resolver,
		badges:      badgeService,
		now:         time.Now,
		log:         log,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// PlaceOrder creates today's pending order for userID at the current
// product price. Stock is not touched until the order is accepted.
func (s *Service) PlaceOrder(ctx context.Context, userID uint) (*models.Order, error) {
	order, err := s.placeOrder(ctx, userID)
	if err != nil {
		prommetrics.RecordOrderPlaced(errs.Code(err))
		return nil, err
	}
	prommetrics.RecordOrderPlaced("created")
	return order, nil
}

func (s *Service) placeOrder(ctx context.Context, userID uint) (*models.Order, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("user %d: %w", userID, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}

	product, err := s.products.Get(ctx)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errs.ErrProductUnavailable
		}
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}
	if !product.IsActive() {
		return nil, errs.ErrProductUnavailable
	}

	now := s.now().UTC()
	day := models.DayOf(now)

	// Fast path only; the unique index on (utilisateur_id, jour_commande) decides races.
	exists, err := s.orders.ExistsForUserDay(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}
	if exists {
		return nil, errs.ErrDuplicateOrder
	}

	vendor, err := s.resolver.Resolve(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}

	order := &models.Order{
		UtilisateurID: userID,
		Quantite:      1,
		PrixUnitaire:  product.Prix,
		PrixTotal:     product.Prix,
		Statut:        models.OrderPending,
		JourCommande:  day,
		DateCommande:  now,
	}
	if vendor != nil {
		id := vendor.ID
		order.VendeurID = &id
	}

	if err := s.orders.Create(ctx, order); err != nil {
		if repository.IsDuplicate(err) {
			return nil, errs.ErrDuplicateOrder
		}
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}

	event := s.log.Info().
		Uint("order_id", order.ID).
		Uint("user_id", userID).
		Str("day", day).
		Int64("prix_total", order.PrixTotal)
	if order.VendeurID != nil {
		event = event.Uint("vendor_id", *order.VendeurID)
	}
	event.Msg("Order placed")

	return order, nil
}

// PendingOrder returns today's pending order of userID, or nil.
func (s *Service) PendingOrder(ctx context.Context, userID uint) (*models.Order, error) {
	order, err := s.orders.GetPendingForUserDay(ctx, userID, models.DayOf(s.now()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}
	return order, nil
}

// VendorOrders lists the pending orders of vendorID. Vendors may only list
// their own orders; admins may list anyone's.
func (s *Service) VendorOrders(ctx context.Context, vendorID, actorID uint, actorRole string) ([]VendorOrder, error) {
	switch actorRole {
	case models.RoleAdmin:
	case models.RoleVendor:
		if actorID != vendorID {
			return nil, errs.ErrForbidden
		}
	default:
		return nil, errs.ErrForbidden
	}

	orders, err := s.orders.ListPendingByVendor(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}

	views := make([]VendorOrder, 0, len(orders))
	for _, o := range orders {
		view := VendorOrder{
			ID:            o.ID,
			UtilisateurID: o.UtilisateurID,
			Quantite:      o.Quantite,
			PrixTotal:     o.PrixTotal,
			Statut:        o.Statut,
			JourCommande:  o.JourCommande,
			DateCommande:  o.DateCommande,
		}
		if o.Utilisateur != nil {
			view.ClientNom = o.Utilisateur.Nom
			view.ClientPrenom = o.Utilisateur.Prenom
			view.ClientInstitut = o.Utilisateur.Institut
			view.ClientParcours = o.Utilisateur.Parcours
		}
		views = append(views, view)
	}
	return views, nil
}

// ProcessOrder accepts or rejects a pending order on behalf of the actor.
// Acceptance consumes one unit of stock and advances the client's streak in
// the same transaction; if no stock is left the order stays pending.
func (s *Service) ProcessOrder(ctx context.Context, orderID, actorID uint, actorRole, action string) (*ProcessResult, error) {
	if action != models.ActionAccept && action != models.ActionReject {
		err := fmt.Errorf("%w: action must be %q or %q", errs.ErrInvalidInput, models.ActionAccept, models.ActionReject)
		prommetrics.RecordOrderProcessed("invalid", errs.Code(err))
		return nil, err
	}
	if actorRole != models.RoleVendor && actorRole != models.RoleAdmin {
		prommetrics.RecordOrderProcessed(action, errs.Code(errs.ErrForbidden))
		return nil, errs.ErrForbidden
	}

	var defs []models.BadgeDefinition
	if action == models.ActionAccept {
		var err error
		if defs, err = s.badges.Definitions(ctx); err != nil {
			prommetrics.RecordOrderProcessed(action, errs.Code(err))
			return nil, err
		}
	}

	var (
		result *ProcessResult
		err    error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err = s.processOnce(ctx, orderID, actorID, actorRole, action, defs)
		if !errors.Is(err, errs.ErrConcurrentUpdate) {
			break
		}
		s.log.Warn().
			Uint("order_id", orderID).
			Int("attempt", attempt).
			Msg("User updated concurrently, retrying acceptance")
	}

	if err != nil {
		prommetrics.RecordOrderProcessed(action, errs.Code(err))
		var event *zerolog.Event
		if errs.IsRetryable(err) {
			event = s.log.Error()
		} else {
			event = s.log.Warn()
		}
		event.Err(err).
			Uint("order_id", orderID).
			Uint("actor_id", actorID).
			Str("action", action).
			Msg("Order processing refused")
		return nil, err
	}

	prommetrics.RecordOrderProcessed(action, "ok")
	s.log.Info().
		Uint("order_id", orderID).
		Uint("actor_id", actorID).
		Str("action", action).
		Str("statut", result.Order.Statut).
		Msg("Order processed")
	return result, nil
}

func (s *Service) processOnce(ctx context.Context, orderID, actorID uint, actorRole, action string, defs []models.BadgeDefinition) (*ProcessResult, error) {
	var result *ProcessResult

	err := s.db.Transaction(ctx, func(tx *repository.DB) error {
		orders := s.orders.WithTx(tx)

		order, err := orders.GetByID(ctx, orderID)
		if err != nil {
			if repository.IsNotFound(err) {
				return fmt.Errorf("order %d: %w", orderID, errs.ErrNotFound)
			}
			return fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
		}
		if !order.IsPending() {
			return errs.ErrAlreadyProcessed
		}
		if actorRole == models.RoleVendor && (order.VendeurID == nil || *order.VendeurID != actorID) {
			return errs.ErrForbidden
		}

		now := s.now().UTC()
		to := models.OrderRejected
		if action == models.ActionAccept {
			to = models.OrderAccepted
		}

		ok, err := orders.TransitionStatus(ctx, order.ID, models.OrderPending, to, now)
		if err != nil {
			return fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
		}
		if !ok {
			return errs.ErrAlreadyProcessed
		}
		order.Statut = to
		order.DateTraitement = &now
		result = &ProcessResult{Order: order}

		if action == models.ActionReject {
			return nil
		}

		if err := s.consume(ctx, tx, order, now); err != nil {
			return err
		}

		outcome, err := s.badges.RecordAcceptance(ctx, s.users.WithTx(tx), defs, order.UtilisateurID, order.JourCommande)
		if err != nil {
			return err
		}
		result.Streak = &outcome
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// consume takes one unit from the order's vendor ledger, or from the global
// counter when the order has no vendor. The global counter only holds the
// current day, so a vendorless order from an earlier day finds it exhausted.
func (s *Service) consume(ctx context.Context, tx *repository.DB, order *models.Order, now time.Time) error {
	if order.VendeurID != nil {
		ok, err := s.allocations.WithTx(tx).Consume(ctx, *order.VendeurID, order.JourCommande)
		if err != nil {
			return fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
		}
		if !ok {
			prommetrics.RecordStockExhausted("vendor")
			return fmt.Errorf("vendor %d on %s: %w", *order.VendeurID, order.JourCommande, errs.ErrStockExhausted)
		}
		return nil
	}

	if order.JourCommande != models.DayOf(now) {
		prommetrics.RecordStockExhausted("global")
		return fmt.Errorf("global stock of %s was rolled over: %w", order.JourCommande, errs.ErrStockExhausted)
	}

	products := s.products.WithTx(tx)
	product, err := products.Get(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}
	ok, err := products.ConsumeGlobal(ctx, product.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}
	if !ok {
		prommetrics.RecordStockExhausted("global")
		return fmt.Errorf("global stock: %w", errs.ErrStockExhausted)
	}
	return nil
}
