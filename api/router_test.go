package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/metrics"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/renderer"
	"github.com/use-agent/shelfscan/search"
)

const resultsPage = `<html><body>
<div class="s-result-item" role="listitem">
  <a href="/dp/A"><h2><span>Alpha</span></h2></a>
  <span class="a-price"><span>$10.00</span></span>
  <img class="s-image" src="https://img.test/a.jpg">
  <h2><a href="/dp/A">Alpha</a></h2>
</div>
<div class="s-result-item" role="listitem">
  <a href="/dp/B"><h2><span>Beta</span></h2></a>
</div>
</body></html>`

func newTestRouter(t *testing.T, mutate func(*config.Config)) *gin.Engine {
	t.Helper()

	storefront := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, resultsPage)
	}))
	t.Cleanup(storefront.Close)

	cfg := config.Defaults()
	cfg.Server.Mode = gin.TestMode
	cfg.Browser.Engine = "http"
	cfg.Search.SiteBase = storefront.URL
	cfg.Search.NavigationTimeout = 2 * time.Second
	cfg.RateLimit.RequestsPerSecond = 100
	cfg.RateLimit.Burst = 100
	if mutate != nil {
		mutate(cfg)
	}

	engine, err := renderer.New(cfg.Browser, cfg.Search)
	require.NoError(t, err)
	rec := metrics.New()
	svc, err := search.NewService(engine, cfg, rec)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewRouter(ctx, svc, rec.Handler(), cfg, time.Now())
}

func get(r http.Handler, target string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Search(t *testing.T) {
	r := newTestRouter(t, nil)

	for _, path := range []string{"/api/v1/search?query=laptop", "/api/scrape?query=laptop"} {
		t.Run(path, func(t *testing.T) {
			rec := get(r, path)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var body models.SearchResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Len(t, body.Products, 2)
			assert.Equal(t, "Alpha", body.Products[0].Title)
			assert.Equal(t, "N/A", body.Products[1].Price)
			assert.Equal(t, "", body.Products[1].Link)
			assert.Equal(t, "laptop", body.Query)
		})
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	r := newTestRouter(t, nil)
	require.Equal(t, http.StatusOK, get(r, "/api/v1/search").Code)

	health := get(r, "/api/v1/health")
	assert.Equal(t, http.StatusOK, health.Code)
	assert.Contains(t, health.Body.String(), `"engine":"http"`)

	m := get(r, "/metrics")
	assert.Equal(t, http.StatusOK, m.Code)
	assert.Contains(t, m.Body.String(), `shelfscan_searches_total{engine="http",outcome="ok"} 1`)
}

func TestRouter_Auth(t *testing.T) {
	r := newTestRouter(t, func(cfg *config.Config) {
		cfg.Auth.Enabled = true
		cfg.Auth.APIKeys = []string{"secret"}
	})

	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/v1/search").Code)
	assert.Equal(t, http.StatusOK, get(r, "/api/v1/search", "X-API-Key", "secret").Code)
	assert.Equal(t, http.StatusOK, get(r, "/api/v1/health").Code, "health is public")
}

func TestRouter_MetricsDisabled(t *testing.T) {
	r := newTestRouter(t, func(cfg *config.Config) { cfg.Metrics.Enabled = false })
	assert.Equal(t, http.StatusNotFound, get(r, "/metrics").Code)
}
