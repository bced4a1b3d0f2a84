package actor

import "github.com/cuemby/thorium/pkg/mempool"

// Sender delivers a message a script produced during a receive step
// onward. The owning Worker satisfies this with its own outbound queue,
// so a script calling Actor.Send never touches worker internals directly.
type Sender interface {
	Send(msg *Message)
}

// Actor is the unit of concurrency: a stable cluster-unique name, the
// script that defines its behavior, concrete state of script-declared
// size, and an inbound mailbox. An actor is processed by at most one
// worker at any instant; its state is mutated only during a receive step
// on its owning worker.
type Actor struct {
	Name       int32
	Script     *Script
	Supervisor int32

	// State is the script's working value, produced by Script.Init and
	// mutated in place by Script.Receive. Its lifetime memory footprint
	// is charged against the owning pool via stateSlot, kept separately
	// so the ergonomic Go-side State can be any concrete type the script
	// wants while the pool accounting still reflects a pointer to
	// concrete state of script-declared size.
	State any

	Mailbox *Mailbox

	dead      bool
	stateSlot *mempool.Ptr

	sender Sender

	received uint64
	sent     uint64
}

// NewActor constructs an actor backed by a state slot charged against
// pool (the node's actor memory pool), runs Script.Init, and returns the
// ready-to-schedule Actor.
func NewActor(name int32, script *Script, pool *mempool.Pool) *Actor {
	a := &Actor{
		Name:      name,
		Script:    script,
		Mailbox:   NewMailbox(),
		stateSlot: pool.Allocate(script.StateSize),
	}
	if script.Init != nil {
		a.State = script.Init(a)
	}
	return a
}

// SetSender binds s as a's outbound path. Called by Worker.Own as
// ownership is established or changes across workers; a script's Receive
// must not be invoked before this has run at least once.
func (a *Actor) SetSender(s Sender) { a.sender = s }

// Send builds a message from a to destination carrying tag and payload
// and hands it to a's owning worker's outbound queue, the only way a
// script can originate a message from within its own Receive callback.
func (a *Actor) Send(destination, tag int32, payload []byte) {
	a.sender.Send(NewMessage(a.Name, destination, tag, payload))
	a.RecordSend()
}

// Dead reports whether notify_death has already run for this actor.
func (a *Actor) Dead() bool { return a.dead }

// MarkDead flips the dead flag and releases the actor's state slot back
// to pool. Calling it twice is a no-op.
func (a *Actor) MarkDead(pool *mempool.Pool) {
	if a.dead {
		return
	}
	a.dead = true
	pool.Free(a.stateSlot)
	a.stateSlot = nil
}

// RecordReceive/RecordSend track per-actor counters used by -print-counters.
func (a *Actor) RecordReceive() { a.received++ }
func (a *Actor) RecordSend()    { a.sent++ }

func (a *Actor) Received() uint64 { return a.received }
func (a *Actor) Sent() uint64     { return a.sent }
