// Package metrics registers the process-wide Prometheus collectors shared
// across the bridge's components. Collectors are package-level vars,
// following the registration-at-import-time pattern used for Prometheus
// client metrics throughout the example pack.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AudioTranscodeErrors counts codec/resample failures by stage and reason.
	AudioTranscodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callbridge_audio_transcode_errors_total",
		Help: "Audio transcoding failures by stage and reason.",
	}, []string{"stage", "reason"})

	// ChunksForwarded counts audio chunks forwarded per direction.
	ChunksForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callbridge_chunks_forwarded_total",
		Help: "Audio chunks forwarded across the bridge, by direction.",
	}, []string{"direction"})

	// ActiveSessions tracks the current number of registered bridge sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "callbridge_active_sessions",
		Help: "Number of bridge sessions currently registered.",
	})

	// EscalationsStarted counts escalation attempts by outcome.
	EscalationsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callbridge_escalations_started_total",
		Help: "Escalation handoffs started, by outcome.",
	}, []string{"outcome"})

	// EscalationsCompleted counts escalation handoffs that reached Closed.
	EscalationsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callbridge_escalations_completed_total",
		Help: "Escalation handoffs completed, by outcome.",
	}, []string{"outcome"})

	// FuzzySearchLatency observes fuzzy-search call latency in seconds.
	FuzzySearchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "callbridge_fuzzy_search_latency_seconds",
		Help:    "Latency of fuzzy service search calls.",
		Buckets: prometheus.DefBuckets,
	})

	// BookingCommitAttempts counts booking commit attempts by outcome.
	BookingCommitAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callbridge_booking_commit_attempts_total",
		Help: "Booking commit attempts, by attempt number and outcome.",
	}, []string{"attempt", "outcome"})

	// StatsWriteFailures counts non-fatal stats-row write failures.
	StatsWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callbridge_stats_write_failures_total",
		Help: "Non-fatal failures writing the call stats row.",
	})
)
