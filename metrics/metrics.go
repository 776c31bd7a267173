package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReactionsApplied counts committed ledger mutations by outcome
	// (created, removed, replaced).
	ReactionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threadline_reactions_applied_total",
		Help: "The total number of committed reaction mutations.",
	}, []string{"outcome"})

	// Recomputations counts counter recomputations by scope (post, thread).
	Recomputations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threadline_counter_recomputations_total",
		Help: "The total number of denormalized counter recomputations.",
	}, []string{"scope"})

	IntegrityClamps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threadline_counter_integrity_clamps_total",
		Help: "Derived counters that came out negative and were clamped to zero.",
	}, []string{"field"})

	OrphanedPosts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "threadline_thread_orphaned_posts_total",
		Help: "Posts dropped from thread views because they are unreachable from the root.",
	})

	BulkRemovalFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "threadline_bulk_removal_group_failures_total",
		Help: "Reaction groups whose bulk removal transaction failed.",
	})

	EventPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "threadline_event_publish_failures_total",
		Help: "Reaction events that could not be handed to the broker.",
	})
)

// HTTPRequests counts served requests by route template and status class.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "threadline_http_requests_total",
	Help: "HTTP requests served, by method, route and status.",
}, []string{"method", "route", "status"})
