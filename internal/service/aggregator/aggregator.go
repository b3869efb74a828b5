// Package aggregator builds the end-of-day sales snapshot of every vendor.
package aggregator

import (
	"context"
	"fmt"
	"sort"

	"github.com/maplenou/maplenou-api/internal/models"
	"github.com/maplenou/maplenou-api/internal/repository"
	"github.com/maplenou/maplenou-api/pkg/logger"
)

// Service aggregates orders and allocations into DailySales rows.
type Service struct {
	orderRepo      *repository.OrderRepository
	allocationRepo *repository.AllocationRepository
	salesRepo      *repository.SalesRepository
	log            *logger.Logger
}

// NewService creates a new aggregator service.
func NewService(
	orderRepo *repository.OrderRepository,
	allocationRepo *repository.AllocationRepository,
	salesRepo *repository.SalesRepository,
	log *logger.Logger,
) *Service {
	return &Service{
		orderRepo:      orderRepo,
		allocationRepo: allocationRepo,
		salesRepo:      salesRepo,
		log:            log,
	}
}

// AggregateDaily stores one DailySales row per vendor that had an allocation
// or an order on day. Running it again for the same day overwrites the rows.
func (s *Service) AggregateDaily(ctx context.Context, day string) ([]models.DailySales, error) {
	if _, err := models.ParseDay(day); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("day", day).
		Msg("Starting daily sales aggregation")

	stats, err := s.orderRepo.StatsByVendor(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to get order stats: %w", err)
	}
	allocations, err := s.allocationRepo.ListByDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to get allocations: %w", err)
	}

	byVendor := make(map[uint]*models.DailySales)
	row := func(vendorID uint) *models.DailySales {
		sales, ok := byVendor[vendorID]
		if !ok {
			sales = &models.DailySales{DateJour: day, VendeurID: vendorID}
			byVendor[vendorID] = sales
		}
		return sales
	}

	for _, a := range allocations {
		sales := row(a.VendeurID)
		sales.StockAlloue = a.StockAlloue
		sales.StockRestant = a.StockRestant
	}

	unassigned := 0
	for _, st := range stats {
		if st.VendeurID == nil {
			unassigned += st.Count
			continue
		}
		sales := row(*st.VendeurID)
		switch st.Statut {
		case models.OrderAccepted:
			sales.Accepted += st.Count
			sales.Revenue += st.Revenue
		case models.OrderRejected:
			sales.Rejected += st.Count
		case models.OrderPending:
			sales.Pending += st.Count
		}
	}

	if unassigned > 0 {
		s.log.Warn().
			Str("day", day).
			Int("orders", unassigned).
			Msg("Orders without vendor left out of the snapshot")
	}

	result := make([]models.DailySales, 0, len(byVendor))
	for vendorID, sales := range byVendor {
		if err := s.salesRepo.CreateOrUpdate(ctx, sales); err != nil {
			s.log.Error().
				Err(err).
				Uint("vendor_id", vendorID).
				Msg("Failed to save daily sales")
			continue
		}
		result = append(result, *sales)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].VendeurID < result[j].VendeurID })

	s.log.Info().
		Str("day", day).
		Int("vendors", len(result)).
		Msg("Daily sales aggregation completed")

	return result, nil
}

// Totals sums a snapshot.
func Totals(rows []models.DailySales) models.DailySales {
	var total models.DailySales
	for _, r := range rows {
		total.Accepted += r.Accepted
		total.Rejected += r.Rejected
		total.Pending += r.Pending
		total.Revenue += r.Revenue
		total.StockAlloue += r.StockAlloue
		total.StockRestant += r.StockRestant
	}
	return total
}
