package node

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/thorium/pkg/actor"
	"github.com/cuemby/thorium/pkg/events"
	"github.com/cuemby/thorium/pkg/log"
	"github.com/cuemby/thorium/pkg/mempool"
	"github.com/cuemby/thorium/pkg/metrics"
	"github.com/cuemby/thorium/pkg/storage"
	"github.com/cuemby/thorium/pkg/worker"
	"github.com/hashicorp/raft"
	"github.com/rs/zerolog"
)

// Transport is the pluggable boundary between a node and the wire: the
// node neither knows nor cares how bytes cross the wire, only that Send accepts
// a message bound for a named remote node and Poll yields messages that
// arrived for this one. pkg/transport implements it over gRPC; tests use
// an in-memory fake.
type Transport interface {
	Start() error
	Stop() error
	Send(remoteNode string, msg *actor.Message) error
	// Poll returns the next inbound message without blocking, or
	// ok=false if none is currently available.
	Poll() (msg *actor.Message, ok bool)
}

// Config configures a Node.
type Config struct {
	Name    string
	Peers   map[string]string // node name -> transport address, excluding Name itself
	Threads int

	ActorPoolBlockSize     int
	InboundPoolBlockSize   int
	OutboundPoolBlockSize  int
	EphemeralPoolBlockSize int

	DeterministicNames bool

	Transport Transport

	// Store and RaftBindAddr are both required to enable the Raft-backed
	// global name directory. A nil Store runs the
	// node in single-node mode: names are still unique locally, but no
	// cross-node reservation happens — fine for a one-node cluster or for
	// tests that don't exercise multi-node spawning.
	Store        storage.Store
	DataDir      string
	RaftBindAddr string
}

func (c *Config) setDefaults() {
	if c.Threads <= 0 {
		c.Threads = 1
	}
	if c.ActorPoolBlockSize <= 0 {
		c.ActorPoolBlockSize = 1 << 16
	}
	if c.InboundPoolBlockSize <= 0 {
		c.InboundPoolBlockSize = 1 << 16
	}
	if c.OutboundPoolBlockSize <= 0 {
		c.OutboundPoolBlockSize = 1 << 16
	}
	if c.EphemeralPoolBlockSize <= 0 {
		c.EphemeralPoolBlockSize = 1 << 14
	}
}

// Node is the per-process root. It owns the actors table (by index, with
// dead-index reuse), the name->index map, the worker pool, the registered
// scripts, the transport, and three memory pools.
type Node struct {
	cfg    Config
	logger zerolog.Logger

	scripts *actor.Registry
	workers *worker.Pool

	ActorPool    *mempool.Pool
	InboundPool  *mempool.Pool
	OutboundPool *mempool.Pool

	// outboundPoolMu guards OutboundPool. Unlike InboundPool, which is
	// only ever touched by runLoop (allocated in handleInbound, freed in
	// drainTriage — both on the same goroutine), OutboundPool is
	// allocated from inside Dispatch, which workers call directly from
	// their own goroutines when draining their outbound queue.
	outboundPoolMu sync.Mutex

	transport Transport

	// spawnMu is the spawn/death lock: guards actors, nameToIndex,
	// deadIndices, nextIndex, and the alive/spawned/destroyed counters.
	spawnMu        sync.Mutex
	actorSlots     []*actor.Actor
	nameToIndex    map[int32]int
	deadIndices    []int
	nextIndex      int
	aliveActors    int
	spawnedTotal   int
	destroyedTotal int
	nameCounter    int64

	// autoScalingMu is the auto-scaling lock; Thorium's core exposes only
	// the set itself, not a policy — auto-scaling decisions are an
	// external collaborator's concern.
	autoScalingMu sync.Mutex
	autoScaling   map[int32]bool

	initialActors *orderedNameSet

	raft *raft.Raft
	fsm  *nameDirectoryFSM

	// cleanOutbound and cleanInbound are the per-node clean buffer
	// injection queues: pooled buffers whose ownership crossed a thread
	// boundary are returned here rather than freed directly by whichever
	// goroutine last held them. cleanOutbound carries OutboundPool
	// buffers a worker or the transport is done with; cleanInbound
	// carries InboundPool buffers a worker finished delivering to a
	// script's Receive. Both are drained by runLoop.
	cleanOutbound chan *mempool.Ptr
	cleanInbound  chan *mempool.Ptr

	stopCh chan struct{}
	doneCh chan struct{}

	events *events.Broker
}

// New constructs a Node: its memory pools, worker pool, script registry,
// and — if cfg.Store is set — its Raft-backed name directory. It does not
// start anything; call Run for that.
func New(cfg Config) (*Node, error) {
	cfg.setDefaults()
	if cfg.Name == "" {
		return nil, fmt.Errorf("node: Config.Name is required")
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("node: Config.Transport is required")
	}

	n := &Node{
		cfg:           cfg,
		logger:        log.WithComponent("node").With().Str("node", cfg.Name).Logger(),
		scripts:       actor.NewRegistry(),
		ActorPool:     mempool.New(cfg.ActorPoolBlockSize),
		InboundPool:   mempool.New(cfg.InboundPoolBlockSize),
		OutboundPool:  mempool.New(cfg.OutboundPoolBlockSize),
		transport:     cfg.Transport,
		nameToIndex:   make(map[int32]int),
		autoScaling:   make(map[int32]bool),
		initialActors: newOrderedNameSet(),
		cleanOutbound: make(chan *mempool.Ptr, 1024),
		cleanInbound:  make(chan *mempool.Ptr, 1024),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		events:        events.NewBroker(),
	}
	n.workers = worker.NewPool(cfg.Threads, n, cfg.EphemeralPoolBlockSize)

	if cfg.Store != nil {
		fsm := newNameDirectoryFSM(cfg.Store)
		r, err := bootstrapRaft(cfg.Name, cfg.RaftBindAddr, cfg.DataDir, fsm)
		if err != nil {
			return nil, err
		}
		n.raft = r
		n.fsm = fsm
	}

	return n, nil
}

// RegisterScript registers s. Scripts must be registered before any actor
// of that script id is spawned.
func (n *Node) RegisterScript(s *actor.Script) error {
	if err := n.scripts.Register(s); err != nil {
		return err
	}
	n.events.Publish(&events.Event{Type: events.EventScriptRegistered, Message: s.Name})
	return nil
}

// Run starts the worker pool, the transport, and the node's main/transport
// loop.
func (n *Node) Run() error {
	n.events.Start()
	n.workers.Start()
	if err := n.transport.Start(); err != nil {
		return fmt.Errorf("node: failed to start transport: %w", err)
	}
	go n.runLoop()
	n.logger.Info().Int("threads", n.cfg.Threads).Msg("node started")
	return nil
}

// runLoop is the main/transport thread: it polls the transport and drains
// the clean-outbound triage queue.
func (n *Node) runLoop() {
	defer close(n.doneCh)
	idleWait := 5 * time.Millisecond
	for {
		select {
		case <-n.stopCh:
			return
		default:
		}

		didWork := false
		if msg, ok := n.transport.Poll(); ok {
			n.handleInbound(msg)
			didWork = true
		}
		didWork = n.drainTriage() || didWork

		if !didWork {
			select {
			case <-time.After(idleWait):
			case <-n.stopCh:
				return
			}
		}
	}
}

// handleInbound processes one message the transport received for this
// node: it copies the decoded payload into a buffer charged against the
// inbound pool (runLoop is the only goroutine that ever allocates from or
// frees InboundPool, so no locking is needed here) and dispatches it
// exactly as a locally-produced message would be.
func (n *Node) handleInbound(msg *actor.Message) {
	if len(msg.Buffer) > 0 {
		if ptr := n.InboundPool.Allocate(len(msg.Buffer)); ptr != nil {
			copy(ptr.Bytes, msg.Buffer)
			msg.Buffer = ptr.Bytes[:len(msg.Buffer)]
			msg.PoolPtr = ptr
		}
	}
	n.Dispatch(msg)
}

// drainTriage returns up to 256 pooled buffers from the clean outbound and
// clean inbound queues per call, bounding how long a single call can take
// (mirrors the worker loop's maxDrainPerTick discipline).
func (n *Node) drainTriage() bool {
	did := false
	for i := 0; i < 256; i++ {
		select {
		case ptr := <-n.cleanOutbound:
			n.outboundPoolMu.Lock()
			n.OutboundPool.Free(ptr)
			n.outboundPoolMu.Unlock()
			did = true
		case ptr := <-n.cleanInbound:
			n.InboundPool.Free(ptr)
			did = true
		default:
			return did
		}
	}
	return did
}

// Triage returns msg's pooled buffer, if any, to the outbound pool via the
// clean outbound injection queue rather than freeing it directly — used by
// Dispatch once it has handed msg to the transport for a remote send.
func (n *Node) Triage(msg *actor.Message) {
	if msg.PoolPtr == nil {
		return
	}
	select {
	case n.cleanOutbound <- msg.PoolPtr:
	default:
		// Queue full under sustained load: free synchronously rather
		// than drop the buffer.
		n.outboundPoolMu.Lock()
		n.OutboundPool.Free(msg.PoolPtr)
		n.outboundPoolMu.Unlock()
	}
	msg.PoolPtr = nil
}

// ReleaseInbound returns msg's pooled buffer, if any, to the inbound pool
// via the clean inbound injection queue. Called by a worker once it has
// finished handing an inbound-delivered message to a script's Receive, so
// InboundPool allocation and free both stay confined to runLoop while the
// actual consumption happens on the owning worker's own goroutine. It
// satisfies worker.Dispatcher.
func (n *Node) ReleaseInbound(msg *actor.Message) {
	if msg.PoolPtr == nil {
		return
	}
	select {
	case n.cleanInbound <- msg.PoolPtr:
	case <-n.stopCh:
	}
	msg.PoolPtr = nil
}

// allocateOutbound charges size bytes against OutboundPool, guarded by
// outboundPoolMu since Dispatch (the only caller) can run on any worker's
// goroutine as well as runLoop's.
func (n *Node) allocateOutbound(size int) *mempool.Ptr {
	if size == 0 {
		return nil
	}
	n.outboundPoolMu.Lock()
	defer n.outboundPoolMu.Unlock()
	return n.OutboundPool.Allocate(size)
}

// Dispatch routes msg to its destination: the owning local worker, or the
// transport if the destination actor lives on another node. System tags
// are intercepted here rather than delivered to a script.
func (n *Node) Dispatch(msg *actor.Message) {
	if actor.IsSystemTag(msg.Tag) {
		n.handleSystemTag(msg)
		return
	}

	if n.workers.Route(msg) {
		metrics.MessagesRoutedTotal.WithLabelValues("local").Inc()
		return
	}

	if n.fsm != nil {
		if nodeID, ok := n.fsm.Lookup(msg.Destination); ok && nodeID != n.cfg.Name {
			addr, ok := n.cfg.Peers[nodeID]
			if !ok {
				n.logger.Warn().Str("remote_node", nodeID).Msg("no known address for remote node, dropping message")
				metrics.MessagesDroppedTotal.WithLabelValues("unknown_actor").Inc()
				return
			}

			if msg.PoolPtr == nil && len(msg.Buffer) > 0 {
				if ptr := n.allocateOutbound(len(msg.Buffer)); ptr != nil {
					copy(ptr.Bytes, msg.Buffer)
					msg.Buffer = ptr.Bytes[:len(msg.Buffer)]
					msg.PoolPtr = ptr
				}
			}

			if err := n.transport.Send(addr, msg); err != nil {
				n.logger.Warn().Err(err).Str("remote_node", nodeID).Msg("transport send failed, dropping message")
				metrics.MessagesDroppedTotal.WithLabelValues("unknown_actor").Inc()
				n.Triage(msg)
				return
			}
			// Transport.Send encodes the wire frame before returning, so
			// msg's buffer is safe to recycle the moment Send comes back.
			n.Triage(msg)
			metrics.MessagesRoutedTotal.WithLabelValues("remote").Inc()
			metrics.TransportMessagesSentTotal.WithLabelValues(nodeID).Inc()
			return
		}
	}

	n.logger.Warn().Int32("destination", msg.Destination).Int32("tag", msg.Tag).Msg("send to unknown actor, dropping")
	metrics.MessagesDroppedTotal.WithLabelValues("unknown_actor").Inc()
}

// Send is the Node's external send API: local destinations are enqueued
// directly on the destination worker's mailbox; remote destinations are
// handed to the transport.
func (n *Node) Send(msg *actor.Message) {
	n.Dispatch(msg)
}

func (n *Node) handleSystemTag(msg *actor.Message) {
	switch msg.Tag {
	case actor.NodeAddInitialActor:
		if name, ok := actor.DecodeInt32(msg.Buffer); ok {
			n.initialActors.Add(name)
		}

	case actor.NodeAddInitialActors:
		if names, ok := actor.DecodeInt32Slice(msg.Buffer); ok {
			for _, name := range names {
				n.initialActors.Add(name)
			}
		}
		n.Dispatch(actor.NewMessage(0, msg.Source, actor.NodeAddInitialActorsReply, nil))

	case actor.NodeStart:
		for _, name := range n.initialActors.Ordered() {
			n.Dispatch(actor.NewMessage(0, name, actor.ActorStart, nil))
		}

	case actor.ActorStop:
		n.NotifyDeath(msg.Source)

	case actor.ActorSpawn:
		scriptID, ok := actor.DecodeInt32(msg.Buffer)
		if !ok {
			n.logger.Warn().Msg("malformed ACTOR_SPAWN payload")
			return
		}
		name, err := n.Spawn(scriptID)
		if err != nil {
			n.logger.Warn().Err(err).Int32("script_id", scriptID).Msg("spawn failed")
			return
		}
		n.Dispatch(actor.NewMessage(0, msg.Source, actor.ActorSpawnReply, actor.EncodeInt32(name)))

	case actor.ActorGetNodeWorkerCount:
		n.Dispatch(actor.NewMessage(0, msg.Source, actor.ActorGetNodeWorkerCountReply, actor.EncodeInt32(int32(n.workers.Size()))))
	}
}

// Spawn allocates an index (reusing from the dead-index queue if
// available), constructs the actor's state via script.Init, and places it
// on the least-loaded worker. If the node has a Raft-backed name
// directory, the name is reserved cluster-wide before Spawn returns.
func (n *Node) Spawn(scriptID int32) (int32, error) {
	script, err := n.scripts.Lookup(scriptID)
	if err != nil {
		return 0, err
	}

	n.spawnMu.Lock()
	idx := n.allocIndexLocked()
	name := n.generateNameLocked()
	n.spawnMu.Unlock()

	if n.raft != nil {
		timer := metrics.NewTimer()
		reservation, err := json.Marshal(&storage.NameReservation{Name: name, NodeID: n.cfg.Name})
		if err != nil {
			n.releaseIndex(idx)
			return 0, err
		}
		encoded, err := json.Marshal(nameDirectoryCommand{Op: opReserveName, Data: reservation})
		if err != nil {
			n.releaseIndex(idx)
			return 0, err
		}
		future := n.raft.Apply(encoded, 5*time.Second)
		if err := future.Error(); err != nil {
			n.releaseIndex(idx)
			return 0, fmt.Errorf("node: failed to reserve actor name via raft: %w", err)
		}
		if applyErr, ok := future.Response().(error); ok && applyErr != nil {
			n.releaseIndex(idx)
			return 0, fmt.Errorf("node: name reservation rejected: %w", applyErr)
		}
		timer.ObserveDuration(metrics.RaftApplyDuration)
	}

	a := actor.NewActor(name, script, n.ActorPool)

	n.spawnMu.Lock()
	n.actorSlots[idx] = a
	n.nameToIndex[name] = idx
	n.aliveActors++
	n.spawnedTotal++
	n.spawnMu.Unlock()

	n.workers.Spawn(a)

	metrics.ActorsSpawnedTotal.Inc()
	metrics.ActorsLive.Set(float64(n.aliveActors))
	n.events.Publish(&events.Event{Type: events.EventActorSpawned})

	return name, nil
}

func (n *Node) allocIndexLocked() int {
	if len(n.deadIndices) > 0 {
		idx := n.deadIndices[0]
		n.deadIndices = n.deadIndices[1:]
		return idx
	}
	idx := n.nextIndex
	n.nextIndex++
	n.actorSlots = append(n.actorSlots, nil)
	return idx
}

// releaseIndex returns idx to the dead-index queue without ever having
// occupied actorSlots[idx] with a live actor — used when Spawn allocates
// an index but then fails before constructing the actor (e.g. a rejected
// Raft name reservation), so the slot doesn't leak forever.
func (n *Node) releaseIndex(idx int) {
	n.spawnMu.Lock()
	n.deadIndices = append(n.deadIndices, idx)
	n.spawnMu.Unlock()
}

// generateNameLocked produces the next actor name. Under
// Config.DeterministicNames it is a pure function of the node's identity
// and a monotonically increasing counter, for reproducible runs;
// otherwise it is drawn from a reserved random range and checked against
// the live name set.
func (n *Node) generateNameLocked() int32 {
	if n.cfg.DeterministicNames {
		c := atomic.AddInt64(&n.nameCounter, 1)
		return deterministicName(n.cfg.Name, c)
	}
	for {
		candidate := int32(rand.Int31n(1<<30)) + (1 << 30) // reserved upper range
		if _, exists := n.nameToIndex[candidate]; !exists {
			return candidate
		}
	}
}

// deterministicName derives a stable int32 from (node name, counter) via
// FNV-1a, selected via THORIUM_NODE_USE_DETERMINISTIC_ACTOR_NAMES, the
// way Warren's env-override configuration pattern selects alternate
// behavior at boot.
func deterministicName(nodeName string, counter int64) int32 {
	var h uint32 = 2166136261
	for i := 0; i < len(nodeName); i++ {
		h ^= uint32(nodeName[i])
		h *= 16777619
	}
	h ^= uint32(counter)
	h *= 16777619
	return int32(h & 0x3fffffff) // keep it positive and out of the random reserved range
}

// Lookup resolves name to its Actor if it is live on this node.
func (n *Node) Lookup(name int32) (*actor.Actor, bool) {
	n.spawnMu.Lock()
	defer n.spawnMu.Unlock()
	idx, ok := n.nameToIndex[name]
	if !ok {
		return nil, false
	}
	return n.actorSlots[idx], true
}

// NotifyDeath runs script.destroy, returns the actor's state to the actor
// pool, and releases its index for reuse. Calling it twice for the same
// name is a no-op after the first call removes the name from
// nameToIndex.
func (n *Node) NotifyDeath(name int32) {
	n.spawnMu.Lock()
	idx, ok := n.nameToIndex[name]
	if !ok {
		n.spawnMu.Unlock()
		return
	}
	a := n.actorSlots[idx]
	delete(n.nameToIndex, name)
	n.actorSlots[idx] = nil
	n.deadIndices = append(n.deadIndices, idx)
	n.aliveActors--
	n.destroyedTotal++
	n.spawnMu.Unlock()

	n.workers.Forget(name)
	if a.Script.Destroy != nil {
		a.Script.Destroy(a)
	}
	a.MarkDead(n.ActorPool)

	metrics.ActorsDestroyedTotal.Inc()
	metrics.ActorsLive.Set(float64(n.aliveActors))
	n.events.Publish(&events.Event{Type: events.EventActorDied})
}

// BroadcastStop sends ACTOR_ASK_TO_STOP to every live actor, the first
// half of cooperative shutdown.
func (n *Node) BroadcastStop() {
	n.spawnMu.Lock()
	names := make([]int32, 0, len(n.nameToIndex))
	for name := range n.nameToIndex {
		names = append(names, name)
	}
	n.spawnMu.Unlock()

	for _, name := range names {
		n.Dispatch(actor.NewMessage(0, name, actor.ActorAskToStop, nil))
	}
}

// Shutdown stops the transport, joins the worker pool (destroying any
// actors still alive), and stops Raft if running.
func (n *Node) Shutdown() error {
	close(n.stopCh)
	<-n.doneCh

	n.workers.Stop(n.ActorPool)

	// The worker pool's Stop has destroyed every actor still alive; drop
	// them from the node's tables the way NotifyDeath does.
	n.spawnMu.Lock()
	for name, idx := range n.nameToIndex {
		delete(n.nameToIndex, name)
		n.actorSlots[idx] = nil
		n.deadIndices = append(n.deadIndices, idx)
		n.aliveActors--
		n.destroyedTotal++
	}
	n.spawnMu.Unlock()

	if err := n.transport.Stop(); err != nil {
		n.logger.Warn().Err(err).Msg("transport stop failed")
	}

	if n.raft != nil {
		if err := n.raft.Shutdown().Error(); err != nil {
			n.logger.Warn().Err(err).Msg("raft shutdown failed")
		}
	}

	n.events.Stop()
	n.logger.Info().Msg("node stopped")
	return nil
}

// Stats returns a snapshot for pkg/metrics.Collector and -print-load /
// -print-counters.
func (n *Node) Stats() metrics.NodeStats {
	n.spawnMu.Lock()
	live := n.aliveActors
	n.spawnMu.Unlock()

	isLeader := n.raft != nil && n.raft.State() == raft.Leader

	return metrics.NodeStats{
		LiveActors: live,
		IsLeader:   isLeader,
		WorkerLoad: n.workers.Load(),
	}
}

// WorkerCount returns the number of workers in this node's pool.
func (n *Node) WorkerCount() int { return n.workers.Size() }
