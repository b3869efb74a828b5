package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker is a dependency that can be pinged.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Health reports the state of the registered dependencies.
type Health struct {
	checks map[string]HealthChecker
}

// NewHealth creates an empty health report.
func NewHealth() *Health {
	return &Health{checks: make(map[string]HealthChecker)}
}

// Register adds a dependency under name.
func (hh *Health) Register(name string, checker HealthChecker) {
	hh.checks[name] = checker
}

// Handle answers 200 when every dependency responds, 503 otherwise.
// GET /api/health.
func (hh *Health) Handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(hh.checks))
	for name := range hh.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	services := make(map[string]string, len(names))
	for _, name := range names {
		if err := hh.checks[name].Health(ctx); err != nil {
			services[name] = "down: " + err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		services[name] = "up"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"success":  status == http.StatusOK,
		"status":   state,
		"services": services,
		"time":     time.Now().UTC(),
	})
}
