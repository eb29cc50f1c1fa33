package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cds_pipeline_runs_total",
		Help: "Pipeline runs by outcome",
	}, []string{"outcome"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cds_stage_duration_seconds",
		Help:    "Wall time spent in each pipeline stage",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"stage"})

	stageFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cds_stage_fallbacks_total",
		Help: "External dependency failures recovered inside a stage",
	}, []string{"stage", "reason"})

	safetyWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cds_safety_warnings_total",
		Help: "Rule engine warnings by kind",
	}, []string{"kind"})
)
