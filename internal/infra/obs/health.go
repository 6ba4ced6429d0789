package obs

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandlers answers liveness and readiness probes. Readiness tracks the
// storage backend: a Mongo deployment reports degraded while the ping fails,
// the in-memory fallback is always ready.
type HealthHandlers struct {
	Ready func() error
}

func (h HealthHandlers) Livez(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (h HealthHandlers) Readyz(c *gin.Context) {
	if h.Ready != nil {
		if err := h.Ready(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "reason": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
