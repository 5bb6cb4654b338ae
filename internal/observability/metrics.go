package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Metrics collects the Prometheus metrics of the ledger service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	postings        *prometheus.CounterVec
	reports         *prometheus.CounterVec
	matches         *prometheus.CounterVec
}

// NewMetrics initialises the registry with HTTP and ledger collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_postings_total",
		Help: "Business document postings by order kind and outcome.",
	}, []string{"kind", "outcome"})
	reports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_reports_total",
		Help: "Financial statements served by report and cache result.",
	}, []string{"report", "cache"})
	matches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_bank_matches_total",
		Help: "Bank statements reconciled by match mode.",
	}, []string{"mode"})
	registry.MustRegister(requests, duration, postings, reports, matches)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		postings:        postings,
		reports:         reports,
		matches:         matches,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records route and status for every request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObservePosting counts one order posting attempt. Rejections are labelled by
// error kind so precondition failures stay apart from conflicts.
func (m *Metrics) ObservePosting(kind string, err error) {
	if m == nil {
		return
	}
	m.postings.WithLabelValues(kind, outcome(err)).Inc()
}

// ReportServed counts one statement response.
func (m *Metrics) ReportServed(report string, cached bool) {
	if m == nil {
		return
	}
	result := "miss"
	if cached {
		result = "hit"
	}
	m.reports.WithLabelValues(report, result).Inc()
}

// AddMatches counts reconciled statements. Zero is ignored.
func (m *Metrics) AddMatches(auto bool, n int) {
	if m == nil || n <= 0 {
		return
	}
	mode := "manual"
	if auto {
		mode = "auto"
	}
	m.matches.WithLabelValues(mode).Add(float64(n))
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "posted"
	case errors.Is(err, shared.ErrValidation):
		return "invalid"
	case errors.Is(err, shared.ErrPrecondition):
		return "rejected"
	case errors.Is(err, shared.ErrConflict):
		return "conflict"
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
