package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelfscan/models"
)

// Version is reported by the health endpoint.
var Version = "0.1.0"

// SessionReporter exposes renderer session usage.
type SessionReporter interface {
	EngineName() string
	ActiveSessions() int
	MaxSessions() int
}

// Health returns a handler for GET /api/v1/health.
//
// Reports session usage and degrades status when every session slot is busy.
func Health(sr SessionReporter, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := models.SessionStats{
			Engine:         sr.EngineName(),
			MaxSessions:    sr.MaxSessions(),
			ActiveSessions: sr.ActiveSessions(),
		}

		status := "healthy"
		if stats.MaxSessions > 0 && stats.ActiveSessions >= stats.MaxSessions {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       status,
			Uptime:       time.Since(startTime).Round(time.Second).String(),
			SessionStats: stats,
			Version:      Version,
		})
	}
}
