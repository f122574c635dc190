package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReactorInvocations counts reactor runs by reactor and outcome
	// (ok, skipped, duplicate, not_found, error).
	ReactorInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialsync_reactor_invocations_total",
		Help: "Total reactor invocations by reactor and outcome",
	}, []string{"reactor", "outcome"})

	// ReactorLatency records reactor run time.
	ReactorLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "socialsync_reactor_latency_seconds",
		Help:    "Reactor latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"reactor"})

	// CounterClamps counts decrements that would have taken a counter below zero.
	CounterClamps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialsync_counter_clamps_total",
		Help: "Counter updates clamped at zero, by collection and field",
	}, []string{"collection", "field"})

	// CounterRepairs counts drifted counters overwritten by reconciliation.
	CounterRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialsync_counter_repairs_total",
		Help: "Counters repaired by reconciliation, by collection and field",
	}, []string{"collection", "field"})

	// CascadeDeletes counts dependent records removed after a post deletion.
	CascadeDeletes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialsync_cascade_deletes_total",
		Help: "Dependent records deleted by cascade, by collection",
	}, []string{"collection"})

	// PropagatedImages counts userImage rewrites on posts and comments.
	PropagatedImages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socialsync_propagated_images_total",
		Help: "Posts and comments whose userImage was rewritten",
	})

	// BlobDeleteFailures counts superseded blobs that could not be removed.
	BlobDeleteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socialsync_blob_delete_failures_total",
		Help: "Superseded blobs that failed to delete",
	})

	// EventsReceived counts events handed to the dispatcher, by source.
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialsync_events_received_total",
		Help: "Events received by source and kind",
	}, []string{"source", "kind"})

	// EventsAbandoned counts events dropped after the last redelivery attempt.
	// Counter drift they leave behind is repaired by `socialctl reconcile`.
	EventsAbandoned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialsync_events_abandoned_total",
		Help: "Events abandoned after exhausting redelivery, by collection and kind",
	}, []string{"collection", "kind"})
)

// ObserveReactor records the outcome and latency of one reactor run.
func ObserveReactor(reactor, outcome string, start time.Time) {
	ReactorInvocations.WithLabelValues(reactor, outcome).Inc()
	ReactorLatency.WithLabelValues(reactor).Observe(time.Since(start).Seconds())
}
