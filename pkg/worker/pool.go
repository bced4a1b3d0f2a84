package worker

import (
	"fmt"
	"sync"

	"github.com/cuemby/thorium/pkg/actor"
	"github.com/cuemby/thorium/pkg/mempool"
)

// Pool owns N workers and places/routes actors across them. Placement is
// intentionally simple — round-robin biased by per-worker actor count —
// and replaceable.
type Pool struct {
	workers []*Worker

	mu      sync.RWMutex
	ownerOf map[int32]int // actor name -> worker index
}

// NewPool creates n workers, each dispatching outbound messages through
// dispatcher, with ephemeralBlockSize sizing each worker's scratch pool.
func NewPool(n int, dispatcher Dispatcher, ephemeralBlockSize int) *Pool {
	p := &Pool{
		workers: make([]*Worker, n),
		ownerOf: make(map[int32]int),
	}
	for i := 0; i < n; i++ {
		p.workers[i] = New(i, dispatcher, ephemeralBlockSize)
	}
	return p
}

func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker's loop on its own goroutine.
func (p *Pool) Start() {
	for _, w := range p.workers {
		go w.Run()
	}
}

// pick returns the index of the least-loaded worker — round-robin
// biased by per-worker actor count.
func (p *Pool) pick() int {
	best := 0
	bestCount := p.workers[0].ActorCount()
	for i := 1; i < len(p.workers); i++ {
		if c := p.workers[i].ActorCount(); c < bestCount {
			best, bestCount = i, c
		}
	}
	return best
}

// Spawn places a onto the least-loaded worker and records ownership.
func (p *Pool) Spawn(a *actor.Actor) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.pick()
	p.workers[idx].Own(a)
	p.ownerOf[a.Name] = idx
	return idx
}

// Route delivers msg to the worker owning its destination, returning
// false if no local worker owns that name (the caller — the Node —
// treats that as either "route to the transport" or "unknown actor,
// drop with a counter", depending on whether the destination node is
// this one).
func (p *Pool) Route(msg *actor.Message) bool {
	p.mu.RLock()
	idx, ok := p.ownerOf[msg.Destination]
	p.mu.RUnlock()
	if !ok {
		return false
	}
	return p.workers[idx].Deliver(msg)
}

// Owns reports whether some worker in this pool owns name.
func (p *Pool) Owns(name int32) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.ownerOf[name]
	return ok
}

// Migrate moves an actor (and its pending mailbox, which travels with
// the *actor.Actor value itself) from its current worker to newWorker,
// atomically with respect to ownership bookkeeping. Explicit rebalancing
// only — never implicit.
func (p *Pool) Migrate(name int32, newWorker int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	oldIdx, ok := p.ownerOf[name]
	if !ok {
		return fmt.Errorf("worker: cannot migrate unknown actor %d", name)
	}
	if newWorker < 0 || newWorker >= len(p.workers) {
		return fmt.Errorf("worker: migration target %d out of range", newWorker)
	}
	a, ok := p.workers[oldIdx].Disown(name)
	if !ok {
		return fmt.Errorf("worker: actor %d not found on worker %d", name, oldIdx)
	}
	p.workers[newWorker].Own(a)
	p.ownerOf[name] = newWorker
	p.workers[newWorker].ScheduleIfPending(name)
	return nil
}

// Forget drops ownership bookkeeping for a dead actor's name, disowning it
// from whichever worker held it so the worker's own actors/ready sets
// don't keep a dangling reference to it forever.
func (p *Pool) Forget(name int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx, ok := p.ownerOf[name]; ok {
		p.workers[idx].Disown(name)
	}
	delete(p.ownerOf, name)
}

// Worker returns worker i for direct inspection (tests, Stop, Load).
func (p *Pool) Worker(i int) *Worker { return p.workers[i] }

// Stop quiesces and joins every worker in two phases: first signal every
// worker's loop to exit (quiesce), then join each goroutine and run its
// remaining owned actors' Destroy hooks, freeing their state back to
// actorPool.
func (p *Pool) Stop(actorPool *mempool.Pool) {
	for _, w := range p.workers {
		close(w.stopCh)
	}
	for _, w := range p.workers {
		<-w.doneCh
		w.mu.Lock()
		for _, a := range w.actors {
			if a.Dead() {
				continue
			}
			if a.Script.Destroy != nil {
				a.Script.Destroy(a)
			}
			a.MarkDead(actorPool)
		}
		w.mu.Unlock()
	}
}

// Load returns a per-worker load snapshot for -print-load.
func (p *Pool) Load() []int {
	loads := make([]int, len(p.workers))
	for i, w := range p.workers {
		loads[i] = w.Load()
	}
	return loads
}
