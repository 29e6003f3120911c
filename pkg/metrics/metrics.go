package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineRuns counts completed pipeline runs by terminal status.
var PipelineRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "securaware_pipeline_runs_total",
		Help: "Total number of scoring pipeline runs by status",
	},
	[]string{"status"},
)

// PipelineDuration records end-to-end pipeline run latency.
var PipelineDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "securaware_pipeline_duration_seconds",
		Help:    "Latency in seconds of a full scoring pipeline run",
		Buckets: prometheus.DefBuckets,
	},
)

// UsersScored tracks the number of users in the last persisted scored table.
var UsersScored = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "securaware_users_scored",
		Help: "Number of users in the most recent scored table",
	},
)

// StateTransitions counts state-machine transition attempts by trigger and outcome.
var StateTransitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "securaware_state_transitions_total",
		Help: "Total state machine transition attempts by trigger and outcome",
	},
	[]string{"trigger", "outcome"},
)

// EmailsDispatched counts simulated-phishing emails dispatched by channel.
var EmailsDispatched = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "securaware_emails_dispatched_total",
		Help: "Total simulated phishing emails dispatched",
	},
	[]string{"sent_via"},
)

// MirrorFailures counts swallowed best-effort mirror publish failures.
var MirrorFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "securaware_mirror_failures_total",
		Help: "Total best-effort mirror publish failures by backend",
	},
	[]string{"backend"},
)

func init() {
	prometheus.MustRegister(
		PipelineRuns,
		PipelineDuration,
		UsersScored,
		StateTransitions,
		EmailsDispatched,
		MirrorFailures,
	)
}
