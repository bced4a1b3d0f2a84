package actor

import "github.com/cuemby/thorium/pkg/mempool"

// Message is the unit of communication between actors. It carries an
// action tag, source/destination actor names, and an opaque payload that
// backs onto a pooled buffer — ownership of Buffer transfers to whoever
// the message is handed to next (the destination worker, or the
// transport).
type Message struct {
	Tag         int32
	Source      int32
	Destination int32

	Buffer []byte
	Count  int

	// RoutingWorker is a hint set by the sender's worker so the Node can
	// skip a name->worker lookup on the hot path when it already knows
	// which worker produced the message (e.g. for a reply).
	RoutingWorker int

	// PoolPtr, if non-nil, is the pool allocation Buffer is a view over.
	// Set on a message decoded from the wire (backed by the node's
	// InboundPool) or on one Dispatch is about to hand to the transport
	// for a remote send (backed by OutboundPool), so whichever goroutine
	// finishes with the message can return the buffer to its owning pool
	// via Node.Triage/ReleaseInbound rather than freeing it directly
	// across the thread boundary the pool itself isn't safe to cross.
	PoolPtr *mempool.Ptr
}

// NewMessage builds a message with Count derived from len(payload).
func NewMessage(source, destination, tag int32, payload []byte) *Message {
	return &Message{
		Tag:         tag,
		Source:      source,
		Destination: destination,
		Buffer:      payload,
		Count:       len(payload),
	}
}
