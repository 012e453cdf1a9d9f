package handler

import (
	"context"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelfscan/models"
)

// maxQueryLen bounds the query string in runes.
const maxQueryLen = 512

// Searcher runs a product search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.Product, error)
	Normalize(query string) string
}

// Search returns a handler for GET /api/v1/search and GET /api/scrape.
//
// Flow: read ?query= → default when blank → render + extract → respond.
// The search is bound to the request context, so a client disconnect
// tears the session down.
func Search(s Searcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		query := s.Normalize(c.Query("query"))
		if utf8.RuneCountInString(query) > maxQueryLen {
			respondError(c, query, models.NewScrapeError(models.ErrCodeInvalidInput,
				"query is too long", nil), start)
			return
		}

		products, err := s.Search(c.Request.Context(), query)
		if err != nil {
			respondError(c, query, err, start)
			return
		}

		c.JSON(http.StatusOK, models.SearchResponse{
			Products: products,
			Query:    query,
			Timing:   &models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
		})
	}
}

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response with an empty product list.
func respondError(c *gin.Context, query string, err error, start time.Time) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(scrapeErr), models.SearchResponse{
		Products: []models.Product{},
		Query:    query,
		Timing:   &models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
		Error:    scrapeErr.ToDetail(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeEngineUnavailable:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
