package actor

import (
	"fmt"
	"sync"
)

// Script is the immutable behavior descriptor shared by every actor of one
// kind: a state constructor, a teardown hook, a receive callback, and the
// size (in bytes) the runtime charges against the actor memory pool for
// one instance's concrete state.
type Script struct {
	ID        int32
	Name      string
	StateSize int

	// Init constructs a fresh state value for a newly spawned actor.
	Init func(a *Actor) any

	// Destroy tears the actor down. Called at most once per actor; the
	// caller must not invoke it again on an already-dead actor.
	Destroy func(a *Actor)

	// Receive handles one message. It must not block for unbounded time;
	// the worker loop calls it synchronously on the actor's owning thread.
	Receive func(a *Actor, msg *Message)
}

// Registry is the node-wide table of registered scripts, protected by a
// lock that's only ever contended at boot: registration happens once per
// script, in a batch, before any actor spawns.
type Registry struct {
	mu      sync.RWMutex
	byID    map[int32]*Script
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[int32]*Script)}
}

// Register adds a script. Duplicate registration of the same ID is a
// configuration error, fatal at boot.
func (r *Registry) Register(s *Script) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[s.ID]; exists {
		return fmt.Errorf("actor: script id %d already registered", s.ID)
	}
	r.byID[s.ID] = s
	return nil
}

// Lookup returns the script for id, or an error if it was never
// registered — the "unknown script id on spawn" configuration error.
func (r *Registry) Lookup(id int32) (*Script, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("actor: unknown script id %d", id)
	}
	return s, nil
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
