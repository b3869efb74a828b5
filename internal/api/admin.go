package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/maplenou/maplenou-api/internal/models"
)

const (
	defaultRankingLimit = 50
	maxRankingLimit     = 500
)

type allocateRequest struct {
	VendeurID uint   `json:"vendeur_id"`
	Quantity  int    `json:"quantity"`
	Date      string `json:"date"`
}

// Allocate grants stock to a vendor, for today unless a date is given.
// POST /api/admin/allocations.
func (h *Handler) Allocate(c *gin.Context) {
	var req allocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	var (
		alloc *models.VendorAllocation
		err   error
	)
	if req.Date == "" {
		alloc, err = h.stock.Allocate(c.Request.Context(), req.VendeurID, req.Quantity)
	} else {
		alloc, err = h.stock.AllocateForDay(c.Request.Context(), req.VendeurID, req.Date, req.Quantity)
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Stock alloué", alloc)
}

// Allocations lists the allocations of a day.
// GET /api/admin/allocations/:date.
func (h *Handler) Allocations(c *gin.Context) {
	day := c.Param("date")

	allocs, err := h.stock.ListByDay(c.Request.Context(), day)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Allocations récupérées", gin.H{
		"date":        day,
		"allocations": allocs,
		"total":       len(allocs),
	})
}

// Revenue returns the takings of a day.
// GET /api/admin/revenue/:date.
func (h *Handler) Revenue(c *gin.Context) {
	report, err := h.reports.GetRevenue(c.Request.Context(), c.Param("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Chiffre d'affaires récupéré", report)
}

// ProductStats returns sales against allocated stock for a day.
// GET /api/admin/product-stats/:date.
func (h *Handler) ProductStats(c *gin.Context) {
	stats, err := h.reports.GetProductStats(c.Request.Context(), c.Param("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Statistiques produit récupérées", stats)
}

// VendorStats returns the day of every vendor.
// GET /api/admin/vendors-stats/:date.
func (h *Handler) VendorStats(c *gin.Context) {
	day := c.Param("date")

	stats, err := h.reports.GetVendorStats(c.Request.Context(), day)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Statistiques vendeurs récupérées", gin.H{
		"date":    day,
		"vendors": stats,
	})
}

// Vendors lists the vendor accounts.
// GET /api/admin/vendors.
func (h *Handler) Vendors(c *gin.Context) {
	vendors, err := h.reports.ListVendors(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Vendeurs récupérés", gin.H{
		"vendors": vendors,
		"total":   len(vendors),
	})
}

// UsersRanking ranks clients by streak.
// GET /api/admin/users-ranking?limit=50.
func (h *Handler) UsersRanking(c *gin.Context) {
	limit := defaultRankingLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.badRequest(c, "limit must be a positive integer")
			return
		}
		if n > maxRankingLimit {
			n = maxRankingLimit
		}
		limit = n
	}

	entries, err := h.reports.GetRanking(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Classement récupéré", gin.H{
		"ranking": entries,
		"total":   len(entries),
	})
}

// RunDailyReset runs the daily reset now.
// POST /api/admin/jobs/daily-reset.
func (h *Handler) RunDailyReset(c *gin.Context) {
	report, err := h.jobs.RunDailyReset(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	h.log.Info().
		Str("day", report.Day).
		Int("revoked", report.Revoked).
		Msg("Daily reset triggered manually")

	respond(c, http.StatusOK, "Réinitialisation effectuée", report)
}
