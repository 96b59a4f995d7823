package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Cache mirror

	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounts",
		Name:      "cache_hits_total",
		Help:      "Cache mirror hits, by entity.",
	}, []string{"entity"})

	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounts",
		Name:      "cache_misses_total",
		Help:      "Cache mirror misses (including unreadable entries), by entity.",
	}, []string{"entity"})

	CacheWriteFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounts",
		Name:      "cache_write_failures_total",
		Help:      "Best-effort cache writes that failed and were swallowed.",
	}, []string{"entity"})

	// Warmup

	WarmupRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounts",
		Name:      "warmup_runs_total",
		Help:      "Warmup runs, by cache and outcome.",
	}, []string{"cache", "outcome"})

	WarmupEntitiesCached = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounts",
		Name:      "warmup_entities_cached_total",
		Help:      "Entities written to the cache mirror during warmup.",
	}, []string{"cache"})

	// Expiration sweep

	SweepExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "accounts",
		Name:      "sweep_expired_codes_total",
		Help:      "Verification codes transitioned to EXPIRED by the sweep.",
	})

	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "accounts",
		Name:      "sweep_duration_seconds",
		Help:      "Time taken for one expiration sweep.",
		Buckets:   prometheus.DefBuckets,
	})

	// Event processing

	EventsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounts",
		Name:      "events_processed_total",
		Help:      "Consumed events, by outcome (applied, duplicate, failed).",
	}, []string{"outcome"})

	EventBatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "accounts",
		Name:      "event_batch_duration_seconds",
		Help:      "Time from first fetch to batch acknowledgment.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})

	EventsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "accounts",
		Name:      "events_in_flight",
		Help:      "Events currently being applied by the consumer.",
	})

	// HTTP

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "accounts",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounts",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		CacheHitsTotal,
		CacheMissesTotal,
		CacheWriteFailuresTotal,
		WarmupRunsTotal,
		WarmupEntitiesCached,
		SweepExpiredTotal,
		SweepDuration,
		EventsProcessedTotal,
		EventBatchDuration,
		EventsInFlight,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}
