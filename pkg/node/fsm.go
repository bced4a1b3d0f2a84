package node

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/cuemby/thorium/pkg/storage"
	"github.com/hashicorp/raft"
)

// nameDirectoryCommand is a Raft log entry: a request to reserve an actor
// name globally, or to add/remove a node from the membership roster.
// Adapted from Warren's manager.Command — same envelope shape (an op
// string plus raw JSON data), generalized from cluster-entity CRUD down to
// the one thing Thorium's core actually needs replicated: name uniqueness
// and node membership.
type nameDirectoryCommand struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const (
	opReserveName = "reserve_name"
	opAddNode     = "add_node"
	opRemoveNode  = "remove_node"
)

// nameDirectoryFSM implements raft.FSM over the name/node state, and keeps
// an in-memory name->node index for the hot routing path (Node.Dispatch)
// so a remote-destination lookup never touches the store.
type nameDirectoryFSM struct {
	mu    sync.RWMutex
	store storage.Store
	index map[int32]string // actor name -> owning node ID
}

func newNameDirectoryFSM(store storage.Store) *nameDirectoryFSM {
	f := &nameDirectoryFSM{store: store, index: make(map[int32]string)}
	if reservations, err := store.ListNameReservations(); err == nil {
		for _, r := range reservations {
			f.index[r.Name] = r.NodeID
		}
	}
	return f
}

// Lookup returns the node ID that owns name, if any.
func (f *nameDirectoryFSM) Lookup(name int32) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	id, ok := f.index[name]
	return id, ok
}

// Apply applies one committed Raft log entry.
func (f *nameDirectoryFSM) Apply(l *raft.Log) interface{} {
	var cmd nameDirectoryCommand
	if err := json.Unmarshal(l.Data, &cmd); err != nil {
		return fmt.Errorf("node: failed to unmarshal raft command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case opReserveName:
		var r storage.NameReservation
		if err := json.Unmarshal(cmd.Data, &r); err != nil {
			return err
		}
		if _, exists := f.index[r.Name]; exists {
			return fmt.Errorf("node: actor name %d already reserved", r.Name)
		}
		if err := f.store.ReserveName(&r); err != nil {
			return err
		}
		f.index[r.Name] = r.NodeID
		return nil

	case opAddNode:
		var rec storage.NodeRecord
		if err := json.Unmarshal(cmd.Data, &rec); err != nil {
			return err
		}
		return f.store.CreateNode(&rec)

	case opRemoveNode:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeleteNode(id)

	default:
		return fmt.Errorf("node: unknown raft command: %s", cmd.Op)
	}
}

// Snapshot captures the full roster and reservation set.
func (f *nameDirectoryFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	nodes, err := f.store.ListNodes()
	if err != nil {
		return nil, fmt.Errorf("node: failed to list nodes: %w", err)
	}
	reservations, err := f.store.ListNameReservations()
	if err != nil {
		return nil, fmt.Errorf("node: failed to list name reservations: %w", err)
	}

	return &nameDirectorySnapshot{Nodes: nodes, Reservations: reservations}, nil
}

// Restore replaces the FSM's state from a snapshot, e.g. after a restart
// or when a newly-joined node catches up.
func (f *nameDirectoryFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap nameDirectorySnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("node: failed to decode raft snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.index = make(map[int32]string)
	for _, rec := range snap.Nodes {
		if err := f.store.CreateNode(rec); err != nil {
			return fmt.Errorf("node: failed to restore node: %w", err)
		}
	}
	for _, r := range snap.Reservations {
		if err := f.store.ReserveName(r); err != nil {
			return fmt.Errorf("node: failed to restore name reservation: %w", err)
		}
		f.index[r.Name] = r.NodeID
	}
	return nil
}

type nameDirectorySnapshot struct {
	Nodes        []*storage.NodeRecord
	Reservations []*storage.NameReservation
}

func (s *nameDirectorySnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s *nameDirectorySnapshot) Release() {}
