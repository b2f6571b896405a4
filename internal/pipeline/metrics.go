package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xsell_pipeline_stage_duration_seconds",
		Help:    "Duration of pipeline stages.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 45, 90},
	}, []string{"stage"})

	stageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xsell_pipeline_stage_failures_total",
		Help: "Pipeline stage failures by error kind.",
	}, []string{"stage", "kind"})

	runOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xsell_pipeline_runs_total",
		Help: "Completed pipeline runs by outcome.",
	}, []string{"outcome"})

	tokensUsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xsell_pipeline_tokens_total",
		Help: "Reasoning tokens consumed by pipeline stages.",
	}, []string{"stage", "direction"})
)
