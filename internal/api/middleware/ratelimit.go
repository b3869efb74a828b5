package middleware

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/maplenou/maplenou-api/internal/errs"
	prommetrics "github.com/maplenou/maplenou-api/internal/metrics"
	"github.com/maplenou/maplenou-api/internal/ratelimit"
	"github.com/maplenou/maplenou-api/pkg/logger"
)

// RateLimit bounds requests per principal, falling back to the client IP
// for anonymous calls. A limiter failure lets the request through.
func RateLimit(limiter ratelimit.Limiter, route string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if p, ok := GetPrincipal(c); ok {
			key = "user:" + strconv.FormatUint(uint64(p.ID), 10)
		}

		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn().
				Err(err).
				Str("route", route).
				Str("key", key).
				Msg("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if !allowed {
			prommetrics.RecordRateLimited(route)
			secs := int(math.Ceil(retryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			abort(c, errs.ErrRateLimited)
			return
		}
		c.Next()
	}
}
