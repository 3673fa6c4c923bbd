// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testgen_requests_total",
			Help: "Total number of handled requests by route and status",
		},
		[]string{"route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "testgen_request_duration_seconds",
			Help:    "Duration of request handling in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"route"},
	)

	LLMCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testgen_llm_calls_total",
			Help: "Total number of LLM backend calls",
		},
		[]string{"backend", "mode", "outcome"},
	)

	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "testgen_llm_call_duration_seconds",
			Help:    "Duration of non-streaming LLM backend calls in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"backend"},
	)

	EnvelopeParses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testgen_envelope_parse_total",
			Help: "LLM envelope parse results by kind and branch",
		},
		[]string{"kind", "branch"},
	)

	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "testgen_streams_active",
			Help: "Number of streaming generations in flight",
		},
	)

	CollectionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testgen_collection_failures_total",
			Help: "Data collection sink failures",
		},
		[]string{"sink"},
	)
)
