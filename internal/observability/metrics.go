package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/receiving/internal/receiving"
)

// Metrics collects Prometheus metrics for the receiving service.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	importsTotal     *prometheus.CounterVec
	importedRows     prometheus.Histogram
	validationErrors *prometheus.CounterVec
	submissionsTotal *prometheus.CounterVec
	staleResponses   prometheus.Counter
}

// NewMetrics initialises the registry and all collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receiving_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "receiving_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	imports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receiving_imports_total",
		Help: "Spreadsheet import attempts by outcome.",
	}, []string{"outcome"})
	rows := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "receiving_imported_rows",
		Help:    "Rows per confirmed spreadsheet import.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})
	validation := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receiving_validation_errors_total",
		Help: "Row validation errors by field.",
	}, []string{"field"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receiving_submissions_total",
		Help: "Goods receipt submissions by input mode and outcome.",
	}, []string{"mode", "outcome"})
	stale := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "receiving_stale_responses_total",
		Help: "Purchase-order and remaining-quantity responses dropped because a newer selection superseded them.",
	})
	registry.MustRegister(requests, duration, imports, rows, validation, submissions, stale)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		importsTotal:     imports,
		importedRows:     rows,
		validationErrors: validation,
		submissionsTotal: submissions,
		staleResponses:   stale,
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

// Middleware records metrics for every HTTP request.
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

// ImportProcessed implements receiving.Recorder.
func (m *Metrics) ImportProcessed(outcome string, rows int, errs []receiving.ValidationError) {
	if m == nil {
		return
	}
	m.importsTotal.WithLabelValues(outcome).Inc()
	if rows > 0 {
		m.importedRows.Observe(float64(rows))
	}
	for _, e := range errs {
		m.validationErrors.WithLabelValues(string(e.Field)).Inc()
	}
}

// SubmissionFinished implements receiving.Recorder.
func (m *Metrics) SubmissionFinished(mode receiving.Mode, outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(string(mode), outcome).Inc()
}

// StaleResponseDiscarded implements receiving.Recorder.
func (m *Metrics) StaleResponseDiscarded() {
	if m == nil {
		return
	}
	m.staleResponses.Inc()
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
