package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meditwin_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meditwin_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meditwin_pipeline_runs_total",
			Help: "Total analysis pipeline runs by outcome (ok, fallback, rejected).",
		},
		[]string{"outcome"},
	)

	PipelineStageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meditwin_pipeline_stage_total",
			Help: "Pipeline stage transitions by stage name.",
		},
		[]string{"stage"},
	)

	ExternalCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meditwin_external_call_duration_seconds",
			Help:    "Duration of calls to external AI services.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	ExternalCallErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meditwin_external_call_errors_total",
			Help: "Failed calls to external AI services.",
		},
		[]string{"service"},
	)

	FallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meditwin_fallbacks_total",
			Help: "Degraded results served, by component.",
		},
		[]string{"component"},
	)

	FeedbackRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meditwin_feedback_records_total",
			Help: "Feedback records processed, by outcome.",
		},
		[]string{"outcome"},
	)

	RewardBias = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meditwin_reward_bias",
			Help: "Current exponentially weighted reward bias in [-1,1].",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		PipelineRunsTotal,
		PipelineStageTotal,
		ExternalCallDuration,
		ExternalCallErrorsTotal,
		FallbacksTotal,
		FeedbackRecordsTotal,
		RewardBias,
	)
}
