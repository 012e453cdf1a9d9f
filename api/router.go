package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelfscan/api/handler"
	"github.com/use-agent/shelfscan/api/middleware"
	"github.com/use-agent/shelfscan/config"
)

// Service is what the router needs from the search layer.
type Service interface {
	handler.Searcher
	handler.SessionReporter
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics stay outside auth so probes and scrapers always work.
// metricsHandler may be nil to disable the metrics route.
func NewRouter(ctx context.Context, svc Service, metricsHandler http.Handler, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	if cfg.Metrics.Enabled && metricsHandler != nil {
		r.GET(cfg.Metrics.Path, gin.WrapH(metricsHandler))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(svc, startTime))

	protected := r.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	search := handler.Search(svc)
	protected.GET("/api/v1/search", search)
	// Legacy path kept for existing clients.
	protected.GET("/api/scrape", search)

	return r
}
