package reasoning

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xsell_reasoning_requests_total",
			Help: "Reasoning service calls by stage and result",
		},
		[]string{"stage", "result"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xsell_reasoning_request_duration_seconds",
			Help:    "Reasoning service call latency including retries",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"stage"},
	)

	circuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "xsell_reasoning_circuit_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
	)
)
