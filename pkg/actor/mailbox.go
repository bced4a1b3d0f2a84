package actor

import "sync"

// Mailbox is an actor's inbound FIFO. Multiple producers (other workers,
// the transport thread) may push into it; only the owning worker ever
// pops, so Mailbox is a plain mutex-guarded ring rather than a channel —
// channels would force the owning worker to block on an empty mailbox
// instead of moving on to other ready actors.
type Mailbox struct {
	mu    sync.Mutex
	items []*Message
}

func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Push enqueues msg. Never blocks.
func (m *Mailbox) Push(msg *Message) {
	m.mu.Lock()
	m.items = append(m.items, msg)
	m.mu.Unlock()
}

// Pop dequeues the oldest message, or reports ok=false if the mailbox is
// empty.
func (m *Mailbox) Pop() (msg *Message, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return nil, false
	}
	msg = m.items[0]
	m.items[0] = nil
	m.items = m.items[1:]
	return msg, true
}

// Len reports the number of pending messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
