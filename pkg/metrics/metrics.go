package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Actor population metrics
	ActorsLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "thorium_actors_live",
			Help: "Number of live actors on this node (spawned minus destroyed)",
		},
	)

	ActorsSpawnedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thorium_actors_spawned_total",
			Help: "Total number of actors spawned on this node",
		},
	)

	ActorsDestroyedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thorium_actors_destroyed_total",
			Help: "Total number of actors destroyed on this node",
		},
	)

	// Worker metrics
	WorkerLoad = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thorium_worker_load",
			Help: "Owned-actor count plus pending ready-set length, per worker",
		},
		[]string{"worker_id"},
	)

	WorkerMessagesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thorium_worker_messages_processed_total",
			Help: "Total number of messages a worker's receive step has processed",
		},
		[]string{"worker_id"},
	)

	// Routing metrics
	MessagesRoutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thorium_messages_routed_total",
			Help: "Total number of messages successfully routed, by destination locality",
		},
		[]string{"locality"}, // "local" or "remote"
	)

	MessagesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thorium_messages_dropped_total",
			Help: "Total number of messages dropped, by reason",
		},
		[]string{"reason"}, // "unknown_actor", "decode_error", "queue_full"
	)

	// Memory pool metrics
	PoolBlockCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thorium_pool_block_count",
			Help: "Number of blocks (current + ready + dried) held by a memory pool",
		},
		[]string{"pool"}, // "actor", "inbound", "outbound", "ephemeral"
	)

	AllocationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thorium_allocation_failures_total",
			Help: "Total number of fatal memory pool allocation failures observed before process exit",
		},
	)

	// Transport metrics
	TransportMessagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thorium_transport_messages_sent_total",
			Help: "Total number of messages handed to the transport, by remote node",
		},
		[]string{"remote_node"},
	)

	TransportMessagesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thorium_transport_messages_received_total",
			Help: "Total number of messages received from the transport, by remote node",
		},
		[]string{"remote_node"},
	)

	TransportDecodeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thorium_transport_decode_errors_total",
			Help: "Total number of wire-format decode failures",
		},
	)

	// Raft metrics (name directory / node roster)
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "thorium_raft_is_leader",
			Help: "Whether this node is the Raft leader for the name directory (1 = leader, 0 = follower)",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thorium_raft_apply_duration_seconds",
			Help:    "Time taken to commit a name-directory reservation through Raft",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		ActorsLive,
		ActorsSpawnedTotal,
		ActorsDestroyedTotal,
		WorkerLoad,
		WorkerMessagesProcessedTotal,
		MessagesRoutedTotal,
		MessagesDroppedTotal,
		PoolBlockCount,
		AllocationFailuresTotal,
		TransportMessagesSentTotal,
		TransportMessagesReceivedTotal,
		TransportDecodeErrorsTotal,
		RaftLeader,
		RaftApplyDuration,
	)
}

// Handler returns the Prometheus HTTP handler, served by cmd/thorium when
// metrics scraping is enabled.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
