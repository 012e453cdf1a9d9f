// Package metrics exposes Prometheus metrics for the search pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shelfscan"

// Recorder records search metrics on its own registry. A nil *Recorder is
// valid and records nothing, so callers never need to check.
type Recorder struct {
	registry *prometheus.Registry

	searchesTotal  *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec
	productsTotal  prometheus.Counter
	fallbacksTotal *prometheus.CounterVec
	waitDuration   prometheus.Histogram
}

// New creates a Recorder with Go runtime and process collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		searchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Total searches by engine and outcome (ok or error code)",
			},
			[]string{"engine", "outcome"},
		),
		searchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "End-to-end search duration in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
			},
			[]string{"engine"},
		),
		productsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_extracted_total",
			Help:      "Total product records extracted",
		}),
		fallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "field_fallbacks_total",
				Help:      "Fields that fell back to their default value",
			},
			[]string{"field"},
		),
		waitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_wait_seconds",
			Help:      "Time spent waiting for a free rendering session",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// TrackSessions exposes fn as the live session gauge for engine.
func (r *Recorder) TrackSessions(engine string, fn func() int) {
	if r == nil {
		return
	}
	promauto.With(r.registry).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "active_sessions",
			Help:        "Rendering sessions currently open",
			ConstLabels: prometheus.Labels{"engine": engine},
		},
		func() float64 { return float64(fn()) },
	)
}

// ObserveSearch records one finished search.
func (r *Recorder) ObserveSearch(engine, outcome string, products int, d time.Duration) {
	if r == nil {
		return
	}
	r.searchesTotal.WithLabelValues(engine, outcome).Inc()
	r.searchDuration.WithLabelValues(engine).Observe(d.Seconds())
	r.productsTotal.Add(float64(products))
}

// ObserveFallback counts a field that used its default value.
func (r *Recorder) ObserveFallback(field string) {
	if r == nil {
		return
	}
	r.fallbacksTotal.WithLabelValues(field).Inc()
}

// ObserveSessionWait records time spent blocked on the session limit.
func (r *Recorder) ObserveSessionWait(d time.Duration) {
	if r == nil {
		return
	}
	r.waitDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
