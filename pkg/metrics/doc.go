/*
Package metrics exposes Thorium's node-local Prometheus metrics and the
HTTP health/readiness/liveness handlers served alongside them.

# Metrics

Actor population:

  - thorium_actors_live (gauge): live actors on this node (spawned minus destroyed)
  - thorium_actors_spawned_total (counter)
  - thorium_actors_destroyed_total (counter)

Worker scheduling, labeled by worker_id:

  - thorium_worker_load (gauge): owned-actor count plus pending ready-set length
  - thorium_worker_messages_processed_total (counter)

Routing:

  - thorium_messages_routed_total{locality="local|remote"} (counter)
  - thorium_messages_dropped_total{reason="unknown_actor|decode_error|queue_full"} (counter)

Memory pools:

  - thorium_pool_block_count{pool="actor|inbound|outbound|ephemeral"} (gauge): current+ready+dried blocks
  - thorium_allocation_failures_total (counter, unlabeled): fatal allocation failures before process exit

Transport:

  - thorium_transport_messages_sent_total{remote_node} (counter)
  - thorium_transport_messages_received_total{remote_node} (counter)
  - thorium_transport_decode_errors_total (counter, unlabeled): wire-format decode failures

Raft (name directory):

  - thorium_raft_is_leader (gauge): 1 if this node holds Raft leadership, else 0
  - thorium_raft_apply_duration_seconds (histogram): time to commit a name reservation

All metrics are registered against the default Prometheus registry in this
package's init and served by cmd/thorium's HTTP listener at /metrics.

# Collector

A Collector polls a StatsSource — satisfied by *node.Node without pkg/metrics
importing pkg/node, avoiding an import cycle — on a 5-second tick and writes
the result into ActorsLive, RaftLeader and WorkerLoad. cmd/thorium starts one
per node alongside the metrics HTTP server.

# Health

HealthChecker tracks named components (raft, transport, workers) registered
with RegisterComponent/UpdateComponent. HealthHandler serves the aggregate
status at /health; ReadyHandler checks only the critical component set at
/ready and fails closed if a critical component hasn't registered yet;
LivenessHandler at /live always reports alive once the process is up.
*/
package metrics
