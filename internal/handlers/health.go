package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/habit-tracker-api/internal/utils"
	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

// HealthHandler reports liveness. Clients also use it to detect connectivity.
type HealthHandler struct {
	ping  Pinger
	clock utils.Clock
	log   *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. ping may be nil.
func NewHealthHandler(ping Pinger, clock utils.Clock, log *zap.Logger) *HealthHandler {
	return &HealthHandler{ping: ping, clock: clock, log: log}
}

// Health returns 200 when the store answers and 503 otherwise.
func (h *HealthHandler) Health(c *gin.Context) {
	now := utils.Timestamp(h.clock())
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			h.log.Warn("health_check_failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "time": now})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": now})
}
