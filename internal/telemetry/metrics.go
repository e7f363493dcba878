// Package telemetry exposes cqs's runtime metrics as Prometheus collectors:
// MCP tool call counts/errors/latency, search result-size distribution, and
// index batch duration, scraped from the HTTP MCP transport's /metrics
// endpoint.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the set of counters and histograms the MCP server updates as it
// runs; IndexBatch is registered and exported, but no indexer code records
// observations into it. Each instance owns its own registry rather than
// registering to prometheus's global default, so multiple servers in one
// process (as in tests) don't collide.
type Metrics struct {
	registry *prometheus.Registry

	ToolCalls     *prometheus.CounterVec
	ToolErrors    *prometheus.CounterVec
	ToolDuration  *prometheus.HistogramVec
	SearchResults prometheus.Histogram
	IndexBatch    prometheus.Histogram
}

// NewMetrics builds a fresh, independently registered Metrics instance.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cqs",
			Subsystem: "mcp",
			Name:      "tool_calls_total",
			Help:      "Total MCP tool invocations, by tool name.",
		}, []string{"tool"}),
		ToolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cqs",
			Subsystem: "mcp",
			Name:      "tool_errors_total",
			Help:      "Total MCP tool invocations that returned an error, by tool name.",
		}, []string{"tool"}),
		ToolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cqs",
			Subsystem: "mcp",
			Name:      "tool_duration_seconds",
			Help:      "MCP tool call latency, by tool name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		SearchResults: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cqs",
			Subsystem: "search",
			Name:      "result_count",
			Help:      "Number of results returned per search query.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		IndexBatch: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cqs",
			Subsystem: "index",
			Name:      "batch_duration_seconds",
			Help:      "Duration of one upsert_chunks_batch call.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler serves the registry's collected metrics in the Prometheus text
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe records one tool invocation's outcome and latency.
func (m *Metrics) Observe(tool string, err error, seconds float64) {
	m.ToolCalls.WithLabelValues(tool).Inc()
	if err != nil {
		m.ToolErrors.WithLabelValues(tool).Inc()
	}
	m.ToolDuration.WithLabelValues(tool).Observe(seconds)
}
