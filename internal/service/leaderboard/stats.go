package leaderboard

import (
	"context"
	"fmt"

	"github.com/maplenou/maplenou-api/internal/errs"
	"github.com/maplenou/maplenou-api/internal/models"
)

// RevenueReport is the takings of one day.
type RevenueReport struct {
	Day            string `json:"date"`
	AcceptedOrders int    `json:"commandes_traitees"`
	Revenue        int64  `json:"chiffre_affaires"`
}

// ProductStats summarizes sales against allocated stock for one day.
type ProductStats struct {
	Day            string `json:"date"`
	AcceptedOrders int    `json:"commandes_traitees"`
	Revenue        int64  `json:"chiffre_affaires"`
	StockAlloue    int    `json:"stock_alloue"`
	StockRestant   int    `json:"stock_restant"`
}

// VendorStats is one vendor's day.
type VendorStats struct {
	VendeurID    uint   `json:"vendeur_id"`
	Nom          string `json:"nom"`
	Prenom       string `json:"prenom"`
	Institut     string `json:"institut"`
	Parcours     string `json:"parcours"`
	StockAlloue  int    `json:"stock_alloue"`
	StockRestant int    `json:"stock_restant"`
	Accepted     int    `json:"commandes_traitees"`
	Pending      int    `json:"commandes_en_attente"`
	Rejected     int    `json:"commandes_annulees"`
	Revenue      int64  `json:"chiffre_affaires"`
}

// GetRevenue sums the accepted orders of day.
func (s *Service) GetRevenue(ctx context.Context, day string) (*RevenueReport, error) {
	if _, err := models.ParseDay(day); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidInput, err)
	}

	count, revenue, err := s.orderRepo.Revenue(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}
	return &RevenueReport{Day: day, AcceptedOrders: count, Revenue: revenue}, nil
}

// GetProductStats reports sales and the allocated stock of day.
func (s *Service) GetProductStats(ctx context.Context, day string) (*ProductStats, error) {
	revenue, err := s.GetRevenue(ctx, day)
	if err != nil {
		return nil, err
	}

	alloue, restant, err := s.allocationRepo.Totals(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}

	return &ProductStats{
		Day:            day,
		AcceptedOrders: revenue.AcceptedOrders,
		Revenue:        revenue.Revenue,
		StockAlloue:    alloue,
		StockRestant:   restant,
	}, nil
}

// GetVendorStats reports every vendor for day, including vendors with
// neither allocation nor orders.
func (s *Service) GetVendorStats(ctx context.Context, day string) ([]VendorStats, error) {
	if _, err := models.ParseDay(day); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidInput, err)
	}

	vendors, err := s.userRepo.ListVendors(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}
	allocations, err := s.allocationRepo.ListByDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}
	orderStats, err := s.orderRepo.StatsByVendor(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransientStore, err)
	}

	index := make(map[uint]int, len(vendors))
	stats := make([]VendorStats, 0, len(vendors))
	for i, v := range vendors {
		index[v.ID] = i
		stats = append(stats, VendorStats{
			VendeurID: v.ID,
			Nom:       v.Nom,
			Prenom:    v.Prenom,
			Institut:  v.Institut,
			Parcours:  v.Parcours,
		})
	}

	for _, a := range allocations {
		if i, ok := index[a.VendeurID]; ok {
			stats[i].StockAlloue = a.StockAlloue
			stats[i].StockRestant = a.StockRestant
		}
	}

	for _, st := range orderStats {
		if st.VendeurID == nil {
			continue
		}
		i, ok := index[*st.VendeurID]
		if !ok {
			continue
		}
		switch st.Statut {
		case models.OrderAccepted:
			stats[i].Accepted += st.Count
			stats[i].Revenue += st.Revenue
		case models.OrderPending:
			stats[i].Pending += st.Count
		case models.OrderRejected:
			stats[i].Rejected += st.Count
		}
	}

	return stats, nil
}
