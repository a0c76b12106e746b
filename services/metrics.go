package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	feedCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_cache_requests_total",
			Help: "Feed page reads by cache outcome",
		},
		[]string{"feed", "result"},
	)

	feedAssemblyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_assembly_duration_seconds",
			Help:    "Time spent assembling a ranked feed on cache miss",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"feed"},
	)

	feedCandidatesExcluded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_candidates_excluded_total",
			Help: "Candidates dropped from ranking because of malformed data",
		},
	)

	cacheStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_store_errors_total",
			Help: "Cache store operations that failed and degraded to a neutral result",
		},
		[]string{"operation"},
	)

	precomputeUsers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_precompute_users_total",
			Help: "Users processed by the feed precompute job",
		},
		[]string{"status"},
	)

	affinityDecayEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_decay_entries_total",
			Help: "Affinity entries touched by the decay job",
		},
		[]string{"outcome"},
	)

	jobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_jobs_processed_total",
			Help: "Background jobs taken from the queue",
		},
		[]string{"job", "status"},
	)
)
