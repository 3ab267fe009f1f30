// Package metrics exposes Prometheus collectors for runs, crawls, and model
// calls.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	runsTotal                  *prometheus.CounterVec
	runDurationSeconds         prometheus.Histogram
	queuePending               prometheus.Gauge
	targetsTotal               *prometheus.CounterVec
	pagesTotal                 *prometheus.CounterVec
	llmCallsTotal              *prometheus.CounterVec
	llmTokensTotal             *prometheus.CounterVec
	escalationsTotal           prometheus.Counter
	rowsAppendedTotal          prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry. It is safe to
// call more than once.
func Init() {
	once.Do(func() {
		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadgen_runs_total",
				Help: "Total number of runs that reached a terminal state, labeled by status.",
			},
			[]string{"status"},
		)

		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "leadgen_run_duration_seconds",
				Help:    "Histogram of pipeline run durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
		)

		queuePending = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "leadgen_queue_pending",
				Help: "Number of runs waiting in the queue.",
			},
		)

		targetsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadgen_targets_total",
				Help: "Total number of crawl targets processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadgen_pages_total",
				Help: "Total number of pages fetched, labeled by kind (directory or target).",
			},
			[]string{"kind"},
		)

		llmCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadgen_llm_calls_total",
				Help: "Total number of model calls that reported usage, labeled by model.",
			},
			[]string{"model"},
		)

		llmTokensTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadgen_llm_tokens_total",
				Help: "Total model tokens, labeled by model and direction.",
			},
			[]string{"model", "direction"},
		)

		escalationsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "leadgen_extraction_escalations_total",
				Help: "Total number of page extractions retried on the escalation model.",
			},
		)

		rowsAppendedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "leadgen_rows_appended_total",
				Help: "Total number of lead rows appended to the sheet.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveRun records a run that reached a terminal status.
func ObserveRun(status string, duration time.Duration) {
	Init()
	runsTotal.WithLabelValues(status).Inc()
	if duration > 0 {
		runDurationSeconds.Observe(duration.Seconds())
	}
}

// SetQueuePending sets the pending queue depth.
func SetQueuePending(n int) {
	Init()
	queuePending.Set(float64(n))
}

// ObserveTarget records the outcome ("success" or a failure kind) of one
// target.
func ObserveTarget(outcome string) {
	Init()
	targetsTotal.WithLabelValues(outcome).Inc()
}

// AddPages adds fetched pages of the given kind.
func AddPages(kind string, n int) {
	Init()
	if n > 0 {
		pagesTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveLLMCall records one model call and its tokens.
func ObserveLLMCall(model string, inputTokens, outputTokens int64) {
	Init()
	llmCallsTotal.WithLabelValues(model).Inc()
	if inputTokens > 0 {
		llmTokensTotal.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		llmTokensTotal.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}

// ObserveEscalation records an escalated extraction.
func ObserveEscalation() {
	Init()
	escalationsTotal.Inc()
}

// AddRowsAppended records rows written to the sheet.
func AddRowsAppended(n int) {
	Init()
	if n > 0 {
		rowsAppendedTotal.Add(float64(n))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
