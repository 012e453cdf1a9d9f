package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/extractor"
	"github.com/use-agent/shelfscan/metrics"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/renderer"
	"golang.org/x/sync/semaphore"
)

// Service runs searches against a single engine. At most MaxSessions
// searches render at once; the rest wait for a slot or their context.
type Service struct {
	engine       renderer.Engine
	extractor    *extractor.Extractor
	siteBase     string
	defaultQuery string
	maxSessions  int
	sem          *semaphore.Weighted
	metrics      *metrics.Recorder
}

// NewService wires an engine to an extractor built from cfg. rec may be nil.
func NewService(engine renderer.Engine, cfg *config.Config, rec *metrics.Recorder) (*Service, error) {
	ext, err := extractor.New(cfg.Search.SiteBase, cfg.Search.Selectors,
		extractor.WithFallbackObserver(rec.ObserveFallback))
	if err != nil {
		return nil, err
	}

	maxSessions := cfg.Browser.MaxSessions
	if maxSessions < 1 {
		maxSessions = 1
	}
	rec.TrackSessions(engine.Name(), engine.ActiveSessions)

	return &Service{
		engine:       engine,
		extractor:    ext,
		siteBase:     cfg.Search.SiteBase,
		defaultQuery: cfg.Search.DefaultQuery,
		maxSessions:  maxSessions,
		sem:          semaphore.NewWeighted(int64(maxSessions)),
		metrics:      rec,
	}, nil
}

// Search renders the results page for query and extracts its products.
// The returned slice is never nil on success; zero matches is empty.
func (s *Service) Search(ctx context.Context, query string) ([]models.Product, error) {
	query = s.normalize(query)
	target := BuildURL(s.siteBase, query)
	start := time.Now()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, models.NewNavigationError(models.ErrCodeTimeout, target, "no rendering session became available", err)
	}
	defer s.sem.Release(1)
	s.metrics.ObserveSessionWait(time.Since(start))

	var products []models.Product
	err := s.engine.Render(ctx, target, func(page renderer.Page) error {
		var extractErr error
		products, extractErr = s.extractor.Extract(ctx, page)
		return extractErr
	})

	outcome := "ok"
	if err != nil {
		outcome = models.CodeOf(err)
		if outcome == "" {
			outcome = models.ErrCodeInternal
		}
		products = nil
	}
	s.metrics.ObserveSearch(s.engine.Name(), outcome, len(products), time.Since(start))

	if err != nil {
		slog.Warn("search failed", "query", query, "url", target, "engine", s.engine.Name(), "error", err)
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}
	slog.Info("search completed", "query", query, "products", len(products),
		"engine", s.engine.Name(), "duration", time.Since(start))
	return products, nil
}

// Normalize applies the service's default query to a blank query.
func (s *Service) Normalize(query string) string {
	return s.normalize(query)
}

func (s *Service) normalize(query string) string {
	if q := strings.TrimSpace(query); q != "" {
		return q
	}
	if s.defaultQuery != "" {
		return s.defaultQuery
	}
	return models.DefaultQuery
}

// EngineName returns the name of the engine backing the service.
func (s *Service) EngineName() string { return s.engine.Name() }

// ActiveSessions returns the engine's open session count.
func (s *Service) ActiveSessions() int { return s.engine.ActiveSessions() }

// MaxSessions returns the concurrent session limit.
func (s *Service) MaxSessions() int { return s.maxSessions }
