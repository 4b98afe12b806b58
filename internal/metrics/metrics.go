// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aptmap_http_requests_total",
		Help: "HTTP requests by path and status code",
	}, []string{"path", "code"})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "aptmap_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	StyleFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aptmap_style_fetch_total",
		Help: "Remote style document fetches by result",
	}, []string{"result"})
	StyleCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aptmap_style_cache_hits_total",
		Help: "Composed style requests served from cache",
	})
	PopupLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aptmap_popup_lookups_total",
		Help: "Popup lookups by result (hit, miss)",
	}, []string{"result"})
	HostTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aptmap_host_transitions_total",
		Help: "Map host state transitions by target state",
	}, []string{"state"})
	ApartmentsLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aptmap_apartments_loaded",
		Help: "Apartment features currently loaded",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(StyleFetchTotal)
	prometheus.MustRegister(StyleCacheHitsTotal)
	prometheus.MustRegister(PopupLookupsTotal)
	prometheus.MustRegister(HostTransitionsTotal)
	prometheus.MustRegister(ApartmentsLoaded)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler { return promhttp.Handler() }

type codeWriter struct {
	http.ResponseWriter
	code int
}

func (w *codeWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *codeWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *codeWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Middleware counts requests and records their duration. path labels the
// route group rather than the raw URL to bound label cardinality.
func Middleware(path func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cw := &codeWriter{ResponseWriter: w, code: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(cw, r)
			RequestDurationMs.Observe(float64(time.Since(start).Milliseconds()))
			RequestsTotal.WithLabelValues(path(r), strconv.Itoa(cw.code)).Inc()
		})
	}
}
