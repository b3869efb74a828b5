package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maplenou/maplenou-api/internal/api/middleware"
	"github.com/maplenou/maplenou-api/internal/config"
	"github.com/maplenou/maplenou-api/internal/errs"
	"github.com/maplenou/maplenou-api/internal/models"
	"github.com/maplenou/maplenou-api/internal/ratelimit"
	"github.com/maplenou/maplenou-api/pkg/logger"
)

// maxBodyBytes caps request bodies; every payload of the API is a few fields.
const maxBodyBytes = 64 << 10

// NewRouter builds the gin engine with the middleware chain and every route.
// Middleware order: request id, access log, recovery, body limit, CORS.
func NewRouter(
	cfg *config.Config,
	h *Handler,
	health *Health,
	verifier middleware.TokenVerifier,
	orderLimiter ratelimit.Limiter,
	log *logger.Logger,
) *gin.Engine {
	if !cfg.Server.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(limitBody(maxBodyBytes))
	r.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, envelope{Success: false, Message: "route not found", Code: errs.Code(errs.ErrNotFound)})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, envelope{Success: false, Message: "method not allowed", Code: "method_not_allowed"})
	})

	if cfg.Metrics.Prometheus.Enabled {
		r.GET(cfg.Metrics.Prometheus.Path, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	api.GET("/health", health.Handle)
	api.GET("/product", h.GetProduct)

	authed := api.Group("")
	authed.Use(middleware.Auth(verifier))
	{
		authed.GET("/me", h.Me)
		authed.GET("/badges", h.Badges)

		clients := authed.Group("/orders")
		clients.Use(middleware.RequireRole(models.RoleClient))
		clients.POST("", middleware.RateLimit(orderLimiter, "orders", log), h.PlaceOrder)
		clients.GET("/remaining-stock", h.RemainingStock)
		clients.GET("/pending", h.PendingOrder)

		vendors := authed.Group("")
		vendors.Use(middleware.RequireRole(models.RoleVendor, models.RoleAdmin))
		vendors.GET("/vendors/:id/orders", h.VendorOrders)
		vendors.PUT("/orders/:id/process", h.ProcessOrder)

		admin := authed.Group("")
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		admin.PATCH("/product", h.UpdateProduct)
		admin.PATCH("/product/stock", h.SetDailyStock)
		admin.POST("/admin/allocations", h.Allocate)
		admin.GET("/admin/allocations/:date", h.Allocations)
		admin.GET("/admin/revenue/:date", h.Revenue)
		admin.GET("/admin/product-stats/:date", h.ProductStats)
		admin.GET("/admin/vendors-stats/:date", h.VendorStats)
		admin.GET("/admin/vendors", h.Vendors)
		admin.GET("/admin/users-ranking", h.UsersRanking)
		admin.POST("/admin/jobs/daily-reset", h.RunDailyReset)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: len(origins) > 0,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
