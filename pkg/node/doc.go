// Package node implements the per-process actor-runtime root: it owns the
// actors table, the worker pool, the registered scripts, the transport, the
// three memory pools (actor state, inbound, outbound), the dead-index reuse
// queue, and the node's identity. It is the one place that coordinates with
// other nodes at all — a Raft group (nameDirectoryFSM, adapted from Warren's
// pkg/manager FSM) replicates the global actor-name directory and node
// roster, orthogonal to placement and to message ordering, both of which
// stay purely local to the owning node.
package node
