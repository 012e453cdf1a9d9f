package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/use-agent/shelfscan/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(APIKeyContextKey)) })
	return r
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name    string
		keys    []string
		headers map[string]string
		want    int
		body    string
	}{
		{name: "no keys configured", keys: nil, want: http.StatusOK},
		{name: "missing key", keys: []string{"k1"}, want: http.StatusUnauthorized},
		{name: "x-api-key", keys: []string{"k1", "k2"}, headers: map[string]string{"X-API-Key": "k2"}, want: http.StatusOK, body: "k2"},
		{name: "bearer", keys: []string{"k1"}, headers: map[string]string{"Authorization": "Bearer k1"}, want: http.StatusOK, body: "k1"},
		{name: "wrong key", keys: []string{"k1"}, headers: map[string]string{"X-API-Key": "nope"}, want: http.StatusUnauthorized},
		{name: "basic auth is not bearer", keys: []string{"k1"}, headers: map[string]string{"Authorization": "Basic k1"}, want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			okRouter(Auth(tt.keys)).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, tt.body, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"code":"UNAUTHORIZED"`)
				assert.Contains(t, rec.Body.String(), `"products":[]`)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := okRouter(RateLimit(ctx, config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}))

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, do("10.0.0.1").Code)

	limited := do("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), `"code":"RATE_LIMITED"`)

	assert.Equal(t, http.StatusOK, do("10.0.0.2").Code, "identities have separate buckets")
}

func TestRateLimit_Disabled(t *testing.T) {
	r := okRouter(RateLimit(context.Background(), config.RateLimitConfig{}))
	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestLimiterSet_Sweep(t *testing.T) {
	set := &limiterSet{limiters: make(map[string]*limiterEntry), limit: 1, burst: 1}
	now := time.Now()
	set.get("old", now.Add(-2*time.Hour))
	set.get("fresh", now)

	set.sweep(now.Add(-time.Hour))

	assert.NotContains(t, set.limiters, "old")
	assert.Contains(t, set.limiters, "fresh")
}
