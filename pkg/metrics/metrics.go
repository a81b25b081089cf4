package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups counts cache tier lookups by family and outcome
	// (memory_hit|persistent_hit|miss|expired).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lottosync_cache_lookups_total",
			Help: "Total number of cache tier lookups",
		},
		[]string{"family", "outcome"},
	)

	// FavoriteMutations counts favorite mutations by kind (add|remove) and
	// result (success|duplicate|rate_limited|rolled_back|coalesced).
	FavoriteMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lottosync_favorite_mutations_total",
			Help: "Total number of favorite mutations",
		},
		[]string{"kind", "result"},
	)

	// Invalidations counts cache invalidations triggered by pushed events.
	Invalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lottosync_invalidations_total",
			Help: "Total number of event-driven cache invalidations",
		},
		[]string{"event"},
	)

	// StreamEvents counts realtime events received from the upstream stream.
	StreamEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lottosync_stream_events_total",
			Help: "Total number of realtime events received",
		},
		[]string{"event"},
	)

	// GatewayLatency measures upstream REST call latencies.
	GatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lottosync_gateway_latency_seconds",
			Help:    "Upstream lottery API latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)
)
