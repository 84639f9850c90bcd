// Package metrics exposes the Prometheus instrumentation for the voltaic
// service: HTTP traffic, plan validation outcomes, dataset ingest runs, and
// Anthropic planner calls.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/voltaicdata/voltaic/pkg/catalog"
	"github.com/voltaicdata/voltaic/pkg/plan"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "voltaic_build_info",
			Help: "Build information of the voltaic service",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltaic_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voltaic_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voltaic_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Plan validation metrics
	PlanBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltaic_plan_builds_total",
			Help: "Total number of plan construction attempts",
		},
		[]string{"status"}, // "valid", "field", "shape", "temporal", "unknown_metric", "unknown_dataset", "other"
	)

	// Ingest metrics
	IngestFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltaic_ingest_fetches_total",
			Help: "Total number of dataset fetch attempts",
		},
		[]string{"source"}, // "cache", "download", "error"
	)

	IngestFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voltaic_ingest_fetch_duration_seconds",
			Help:    "Duration of dataset fetches in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~2.7m
		},
	)

	IngestLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltaic_ingest_loads_total",
			Help: "Total number of dataset load attempts",
		},
		[]string{"status"}, // "loaded", "skipped", "error"
	)

	IngestLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voltaic_ingest_load_duration_seconds",
			Help:    "Duration of dataset loads in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~410s
		},
	)

	IngestRowsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voltaic_ingest_rows_loaded",
			Help: "Number of rows in the most recent dataset load",
		},
	)

	// ClickHouse metrics
	ClickHouseQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltaic_clickhouse_queries_total",
			Help: "Total number of ClickHouse queries",
		},
		[]string{"status"},
	)

	ClickHouseQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voltaic_clickhouse_query_duration_seconds",
			Help:    "Duration of ClickHouse queries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~41s
		},
	)

	// Anthropic planner metrics
	AnthropicRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltaic_anthropic_requests_total",
			Help: "Total number of Anthropic API requests",
		},
		[]string{"endpoint", "status"},
	)

	AnthropicRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voltaic_anthropic_request_duration_seconds",
			Help:    "Duration of Anthropic API requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~410s
		},
		[]string{"endpoint"},
	)

	AnthropicTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltaic_anthropic_tokens_total",
			Help: "Total number of Anthropic API tokens used",
		},
		[]string{"type"}, // "input", "output"
	)

	PlannerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltaic_planner_runs_total",
			Help: "Total number of planner runs",
		},
		[]string{"outcome"}, // "ok", "repaired", "invalid", "error"
	)

	PlannerRepairsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voltaic_planner_repairs_total",
			Help: "Total number of planner repair round-trips",
		},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available so per-ID paths collapse.
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordPlanBuild records the outcome of one plan construction attempt.
func RecordPlanBuild(err error) {
	PlanBuildsTotal.WithLabelValues(planBuildStatus(err)).Inc()
}

func planBuildStatus(err error) string {
	if err == nil {
		return "valid"
	}
	var fieldErr *plan.FieldError
	var shapeErr *plan.ShapeError
	var temporalErr *plan.TemporalError
	switch {
	case errors.Is(err, catalog.ErrUnknownMetric):
		return "unknown_metric"
	case errors.Is(err, catalog.ErrUnknownDataset):
		return "unknown_dataset"
	case errors.As(err, &fieldErr):
		return "field"
	case errors.As(err, &shapeErr):
		return "shape"
	case errors.As(err, &temporalErr):
		return "temporal"
	default:
		return "other"
	}
}

// RecordFetch records a dataset fetch attempt.
func RecordFetch(fromCache bool, duration time.Duration, err error) {
	source := "download"
	if err != nil {
		source = "error"
	} else if fromCache {
		source = "cache"
	}
	IngestFetchesTotal.WithLabelValues(source).Inc()
	IngestFetchDuration.Observe(duration.Seconds())
}

// RecordLoad records a dataset load attempt.
func RecordLoad(rows uint64, skipped bool, duration time.Duration, err error) {
	status := "loaded"
	switch {
	case err != nil:
		status = "error"
	case skipped:
		status = "skipped"
	}
	IngestLoadsTotal.WithLabelValues(status).Inc()
	IngestLoadDuration.Observe(duration.Seconds())
	if err == nil && !skipped {
		IngestRowsLoaded.Set(float64(rows))
	}
}

// RecordClickHouseQuery records metrics for a ClickHouse query.
func RecordClickHouseQuery(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ClickHouseQueriesTotal.WithLabelValues(status).Inc()
	ClickHouseQueryDuration.Observe(duration.Seconds())
}

// RecordAnthropicRequest records metrics for an Anthropic API request.
func RecordAnthropicRequest(endpoint string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	AnthropicRequestsTotal.WithLabelValues(endpoint, status).Inc()
	AnthropicRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordAnthropicTokens records token usage for an Anthropic API request.
func RecordAnthropicTokens(inputTokens, outputTokens int64) {
	AnthropicTokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	AnthropicTokensTotal.WithLabelValues("output").Add(float64(outputTokens))
}

// RecordPlannerRun records the outcome of one planner run.
func RecordPlannerRun(outcome string, repairs int) {
	PlannerRunsTotal.WithLabelValues(outcome).Inc()
	if repairs > 0 {
		PlannerRepairsTotal.Add(float64(repairs))
	}
}
