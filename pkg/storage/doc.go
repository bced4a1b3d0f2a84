/*
Package storage provides BoltDB-backed persistence for the cluster state
Thorium's name-directory Raft FSM needs to survive a restart: the node
roster, the globally reserved actor-name set, and the cluster CA.

# Architecture

	┌──────────────────── BOLTDB STORAGE ──────────────────────┐
	│  BoltStore                                                │
	│  - File: <dataDir>/thorium.db                             │
	│  - Buckets: nodes, names, ca                              │
	│  - Transactions: ACID with fsync                          │
	└────────────────────────────────────────────────────────────┘

Unlike Warren's Store (services, containers, volumes, networks, ingresses,
TLS certificates — a full cluster orchestrator's state), Thorium's cluster
coordination is limited to name uniqueness and node membership; the rest
of a node's state (actors, mailboxes, pools) lives only in process memory
on the node that owns it and is never persisted.

# Usage

	store, err := storage.NewBoltStore("/var/lib/thorium/node-1")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	err = store.ReserveName(&storage.NameReservation{Name: 42, NodeID: "node-1"})
	reservations, err := store.ListNameReservations()

# See Also

  - pkg/node for the Raft FSM that applies reservations through this store
  - BoltDB documentation: https://github.com/etcd-io/bbolt
*/
package storage
