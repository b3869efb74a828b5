package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maplenou/maplenou-api/internal/api/middleware"
	"github.com/maplenou/maplenou-api/internal/errs"
	"github.com/maplenou/maplenou-api/internal/models"
	"github.com/maplenou/maplenou-api/internal/repository"
	"github.com/maplenou/maplenou-api/internal/service/allocation"
	"github.com/maplenou/maplenou-api/internal/service/badges"
)

type stockRequest struct {
	StockTotalDuJour *int `json:"stock_total_du_jour"`
}

// meResponse is the profile of the caller with its gamification state.
type meResponse struct {
	*models.User
	BadgeNom string `json:"badge_nom"`
}

// GetProduct returns the sellable product.
// GET /api/product.
func (h *Handler) GetProduct(c *gin.Context) {
	product, err := h.stock.Product(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Produit récupéré", product)
}

// UpdateProduct changes the name, description, price or status of the product.
// PATCH /api/product.
func (h *Handler) UpdateProduct(c *gin.Context) {
	var upd allocation.ProductUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	product, err := h.stock.UpdateProduct(c.Request.Context(), upd)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Produit mis à jour", product)
}

// SetDailyStock sets the global daily stock of the product.
// PATCH /api/product/stock.
func (h *Handler) SetDailyStock(c *gin.Context) {
	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.StockTotalDuJour == nil {
		h.badRequest(c, "stock_total_du_jour is required")
		return
	}

	product, err := h.stock.SetDailyStock(c.Request.Context(), *req.StockTotalDuJour)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Stock mis à jour", product)
}

// Badges returns the badge catalog by ascending threshold.
// GET /api/badges.
func (h *Handler) Badges(c *gin.Context) {
	defs, err := h.badges.GetBadgeCatalog(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Badges récupérés", gin.H{
		"badges": defs,
		"total":  len(defs),
	})
}

// Me returns the profile and streak of the caller.
// GET /api/me.
func (h *Handler) Me(c *gin.Context) {
	p, _ := middleware.GetPrincipal(c)
	ctx := c.Request.Context()

	user, err := h.users.GetByID(ctx, p.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			h.fail(c, errs.ErrNotFound)
			return
		}
		h.fail(c, fmt.Errorf("%w: %w", errs.ErrTransientStore, err))
		return
	}

	defs, err := h.badges.GetBadgeCatalog(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Profil récupéré", meResponse{
		User:     user,
		BadgeNom: badges.Label(user.BadgeNiveau, defs),
	})
}
