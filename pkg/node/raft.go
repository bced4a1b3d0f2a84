package node

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// raftTimeouts mirrors Warren's manager.Bootstrap tuning: shorter than
// hashicorp/raft's WAN-oriented defaults, appropriate for nodes on the same
// cluster network exchanging name reservations rather than large log
// entries.
func raftTimeouts(config *raft.Config) {
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond
}

// bootstrapRaft stands up a single-node Raft group over fsm, backed by
// BoltDB log/stable stores under dataDir, and bootstraps it as the sole
// initial member — adapted from Warren's manager.Manager.Bootstrap.
func bootstrapRaft(nodeName, bindAddr, dataDir string, fsm raft.FSM) (*raft.Raft, error) {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(nodeName)
	raftTimeouts(config)

	addr, err := net.ResolveTCPAddr("tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("node: failed to resolve raft bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("node: failed to create raft transport: %w", err)
	}
	snapshotStore, err := raft.NewFileSnapshotStore(dataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("node: failed to create raft snapshot store: %w", err)
	}
	logStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("node: failed to create raft log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("node: failed to create raft stable store: %w", err)
	}

	r, err := raft.NewRaft(config, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("node: failed to create raft instance: %w", err)
	}

	future := r.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: config.LocalID, Address: transport.LocalAddr()}},
	})
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("node: failed to bootstrap raft cluster: %w", err)
	}
	return r, nil
}
