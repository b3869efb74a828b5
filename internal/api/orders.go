package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/maplenou/maplenou-api/internal/api/middleware"
	"github.com/maplenou/maplenou-api/internal/models"
)

type processRequest struct {
	Action string `json:"action" binding:"required"`
}

// PlaceOrder creates today's order of the caller.
// POST /api/orders.
func (h *Handler) PlaceOrder(c *gin.Context) {
	p, _ := middleware.GetPrincipal(c)

	order, err := h.orders.PlaceOrder(c.Request.Context(), p.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond(c, http.StatusCreated, "Commande enregistrée", order)
}

// RemainingStock returns the stock the caller can still order from.
// GET /api/orders/remaining-stock.
func (h *Handler) RemainingStock(c *gin.Context) {
	p, _ := middleware.GetPrincipal(c)

	view, err := h.stock.Remaining(c.Request.Context(), p.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Stock restant récupéré", view)
}

// PendingOrder reports whether the caller has an order waiting today.
// GET /api/orders/pending.
func (h *Handler) PendingOrder(c *gin.Context) {
	p, _ := middleware.GetPrincipal(c)

	order, err := h.orders.PendingOrder(c.Request.Context(), p.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Commande du jour récupérée", gin.H{
		"hasPendingOrder": order != nil,
		"order":           order,
	})
}

// VendorOrders lists the pending orders of a vendor.
// GET /api/vendors/:id/orders.
func (h *Handler) VendorOrders(c *gin.Context) {
	vendorID, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	p, _ := middleware.GetPrincipal(c)

	list, err := h.orders.VendorOrders(c.Request.Context(), vendorID, p.ID, p.Role)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Commandes récupérées", gin.H{
		"orders": list,
		"total":  len(list),
	})
}

// ProcessOrder accepts or rejects a pending order.
// PUT /api/orders/:id/process.
func (h *Handler) ProcessOrder(c *gin.Context) {
	orderID, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "action is required")
		return
	}
	p, _ := middleware.GetPrincipal(c)

	result, err := h.orders.ProcessOrder(c.Request.Context(), orderID, p.ID, p.Role, req.Action)
	if err != nil {
		h.fail(c, err)
		return
	}

	msg := "Commande annulée"
	if req.Action == models.ActionAccept {
		msg = "Commande validée"
	}
	respond(c, http.StatusOK, msg, result)
}

func (h *Handler) parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		h.badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
