package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, r *Recorder) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecorder(t *testing.T) {
	r := New()
	active := 3
	r.TrackSessions("http", func() int { return active })

	r.ObserveSearch("http", "ok", 12, 1500*time.Millisecond)
	r.ObserveSearch("http", "NAVIGATION_FAILED", 0, 200*time.Millisecond)
	r.ObserveFallback("price")
	r.ObserveFallback("price")
	r.ObserveSessionWait(10 * time.Millisecond)

	out := scrape(t, r)
	assert.Contains(t, out, `shelfscan_searches_total{engine="http",outcome="ok"} 1`)
	assert.Contains(t, out, `shelfscan_searches_total{engine="http",outcome="NAVIGATION_FAILED"} 1`)
	assert.Contains(t, out, `shelfscan_products_extracted_total 12`)
	assert.Contains(t, out, `shelfscan_field_fallbacks_total{field="price"} 2`)
	assert.Contains(t, out, `shelfscan_active_sessions{engine="http"} 3`)
	assert.Contains(t, out, `shelfscan_session_wait_seconds_count 1`)
	assert.Contains(t, out, "go_goroutines")
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	r.TrackSessions("rod", func() int { return 0 })
	r.ObserveSearch("rod", "ok", 1, time.Second)
	r.ObserveFallback("title")
	r.ObserveSessionWait(time.Second)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
