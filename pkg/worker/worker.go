// Package worker implements the actor-runtime's scheduling substrate:
// each Worker owns a set of actors and their mailboxes and drives their
// receive steps on its own goroutine; a Pool owns N workers and
// places/routes actors across them.
//
// The loop shape (a ticker-driven goroutine with a stopCh, bounded work
// per tick, periodic housekeeping) is adapted from Warren's
// pkg/scheduler and pkg/reconciler ticker loops and from
// pkg/worker/worker.go's heartbeat/executor goroutine pair — the content
// (container executor steps) is replaced with actor receive steps.
package worker

import (
	"strconv"
	"sync"
	"time"

	"github.com/cuemby/thorium/pkg/actor"
	"github.com/cuemby/thorium/pkg/log"
	"github.com/cuemby/thorium/pkg/mempool"
	"github.com/cuemby/thorium/pkg/metrics"
	"github.com/rs/zerolog"
)

// Dispatcher routes a message to wherever it needs to go next: another
// local worker's mailbox, or the transport for a remote destination. It
// is implemented by the Node; Worker only depends on this narrow
// interface to avoid an import cycle with pkg/node.
type Dispatcher interface {
	Dispatch(msg *actor.Message)

	// ReleaseInbound returns a delivered message's pooled buffer, if any,
	// to the node's inbound pool. Called once a worker has finished
	// handing the message to its destination actor's Receive.
	ReleaseInbound(msg *actor.Message)
}

// maxDrainPerTick bounds how many outbound/inbound messages a worker
// services per loop iteration, so housekeeping always gets a turn even
// under sustained load.
const maxDrainPerTick = 256

// Worker owns a set of actors and runs their receive steps serially on
// its own goroutine. Across workers, receive steps run truly in
// parallel.
type Worker struct {
	ID int

	dispatcher Dispatcher
	logger     zerolog.Logger

	mu      sync.RWMutex
	actors  map[int32]*actor.Actor
	ready   []int32
	inReady map[int32]bool

	inbound  chan *actor.Message
	outbound chan *actor.Message

	// Ephemeral is the per-receive-step scratch pool, wiped wholesale by
	// FreeAll at the idle edge of the loop.
	Ephemeral *mempool.Pool

	stopCh chan struct{}
	doneCh chan struct{}

	droppedUnknown uint64
	processed      uint64
}

// New creates a worker. ephemeralBlockSize sizes the per-receive-step
// scratch pool's arena.
func New(id int, dispatcher Dispatcher, ephemeralBlockSize int) *Worker {
	ephemeral := mempool.New(ephemeralBlockSize)
	ephemeral.Tracking = false
	return &Worker{
		ID:         id,
		dispatcher: dispatcher,
		logger:     log.WithComponent("worker").With().Int("worker_id", id).Logger(),
		actors:     make(map[int32]*actor.Actor),
		inReady:    make(map[int32]bool),
		inbound:    make(chan *actor.Message, 4096),
		outbound:   make(chan *actor.Message, 4096),
		Ephemeral:  ephemeral,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Own registers a, binding it to this worker until it dies or migrates.
// Binding also rebinds a's send path to this worker, so a script's
// Receive calling Actor.Send always reaches the worker that currently
// owns it.
func (w *Worker) Own(a *actor.Actor) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a.SetSender(w)
	w.actors[a.Name] = a
}

// Disown removes a from this worker, returning it for migration.
func (w *Worker) Disown(name int32) (*actor.Actor, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.actors[name]
	if ok {
		delete(w.actors, name)
		delete(w.inReady, name)
	}
	return a, ok
}

// ScheduleIfPending adds name to the ready set if it isn't already
// scheduled and its mailbox is non-empty. Used after Migrate hands an
// actor with a non-empty mailbox to a new owning worker.
func (w *Worker) ScheduleIfPending(name int32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.actors[name]
	if !ok || w.inReady[name] || a.Mailbox.Len() == 0 {
		return
	}
	w.inReady[name] = true
	w.ready = append(w.ready, name)
}

func (w *Worker) Owns(name int32) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.actors[name]
	return ok
}

func (w *Worker) ActorCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.actors)
}

// Deliver enqueues msg into the named actor's mailbox and schedules it
// if it was idle. Safe to call from any goroutine (MPSC: many producers,
// this worker's own loop is the only consumer of the ready set).
func (w *Worker) Deliver(msg *actor.Message) bool {
	w.mu.Lock()
	a, ok := w.actors[msg.Destination]
	if !ok {
		w.mu.Unlock()
		return false
	}
	a.Mailbox.Push(msg)
	if !w.inReady[msg.Destination] {
		w.inReady[msg.Destination] = true
		w.ready = append(w.ready, msg.Destination)
	}
	w.mu.Unlock()
	return true
}

// Send enqueues msg on this worker's outbound queue, to be drained and
// routed by the loop. Called by a script's Receive callback via Actor
// send helpers.
func (w *Worker) Send(msg *actor.Message) {
	w.outbound <- msg
}

// Run drives the cooperative loop until Stop is called. Intended to run
// on its own goroutine — one per worker, per the thread-per-worker
// scheduling model.
func (w *Worker) Run() {
	defer close(w.doneCh)
	idleWait := 5 * time.Millisecond
	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		didWork := w.drainOutbound()
		didWork = w.stepOneActor() || didWork
		didWork = w.drainInbound() || didWork

		if !didWork {
			w.houseKeep()
			select {
			case <-time.After(idleWait):
			case <-w.stopCh:
				return
			}
		}
	}
}

// drainOutbound hands up to maxDrainPerTick outbound messages to the
// dispatcher.
func (w *Worker) drainOutbound() bool {
	did := false
	for i := 0; i < maxDrainPerTick; i++ {
		select {
		case msg := <-w.outbound:
			w.dispatcher.Dispatch(msg)
			did = true
		default:
			return did
		}
	}
	return did
}

// drainInbound services up to maxDrainPerTick messages queued on this
// worker's inbound channel, handing each to Deliver. Pool.Route and the
// Node deliver through Deliver directly; nothing in this tree sends on the
// channel.
func (w *Worker) drainInbound() bool {
	did := false
	for i := 0; i < maxDrainPerTick; i++ {
		select {
		case msg := <-w.inbound:
			w.Deliver(msg)
			did = true
		default:
			return did
		}
	}
	return did
}

// stepOneActor picks one ready actor, dequeues one message, and invokes
// its script's Receive. The actor is rescheduled iff its mailbox still
// has messages after the call.
func (w *Worker) stepOneActor() bool {
	w.mu.Lock()
	if len(w.ready) == 0 {
		w.mu.Unlock()
		return false
	}
	name := w.ready[0]
	w.ready = w.ready[1:]
	a, ok := w.actors[name]
	if !ok || a.Dead() {
		delete(w.inReady, name)
		w.mu.Unlock()
		return true
	}
	w.mu.Unlock()

	msg, ok := a.Mailbox.Pop()
	if !ok {
		w.mu.Lock()
		delete(w.inReady, name)
		w.mu.Unlock()
		return true
	}

	// A message delivered from the transport is backed by the node's
	// inbound pool; that buffer gets recycled the moment ReleaseInbound
	// below hands it back, so copy it into this worker's own ephemeral
	// scratch space first — confined to this goroutine until the next
	// idle-edge FreeAll — and let Receive see a copy that stays valid for
	// the rest of this tick instead of one that can be clobbered out from
	// under it.
	if msg.PoolPtr != nil && len(msg.Buffer) > 0 {
		if scratch := w.Ephemeral.Allocate(len(msg.Buffer)); scratch != nil {
			copy(scratch.Bytes, msg.Buffer)
			msg.Buffer = scratch.Bytes[:len(msg.Buffer)]
		}
	}

	if a.Script.Receive != nil {
		a.Script.Receive(a, msg)
	}
	a.RecordReceive()
	w.dispatcher.ReleaseInbound(msg)
	w.processed++
	metrics.WorkerMessagesProcessedTotal.WithLabelValues(strconv.Itoa(w.ID)).Inc()

	w.mu.Lock()
	if a.Mailbox.Len() > 0 {
		w.ready = append(w.ready, name)
	} else {
		delete(w.inReady, name)
	}
	w.mu.Unlock()
	return true
}

// houseKeep runs at the idle edge of the loop: it wipes the ephemeral
// pool so per-receive-step scratch allocations never accumulate across
// idle periods.
func (w *Worker) houseKeep() {
	w.Ephemeral.FreeAll()
}

// Stop signals the loop to exit, waits for the goroutine to return, then
// runs the owned actors' Destroy hooks and frees their state back to pool.
func (w *Worker) Stop(pool *mempool.Pool) {
	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, a := range w.actors {
		if a.Dead() {
			continue
		}
		if a.Script.Destroy != nil {
			a.Script.Destroy(a)
		}
		a.MarkDead(pool)
	}
}

// Load reports a cheap instantaneous load figure for -print-load:
// owned-actor count plus pending ready-set length.
func (w *Worker) Load() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.actors) + len(w.ready)
}

func (w *Worker) Processed() uint64 { return w.processed }
