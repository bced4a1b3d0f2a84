package actor

import (
	"testing"

	"github.com/cuemby/thorium/pkg/mempool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewActorRunsScriptInit(t *testing.T) {
	pool := mempool.New(4096)
	script := &Script{
		ID:        1,
		StateSize: 32,
		Init:      func(a *Actor) any { return "initial" },
	}

	a := NewActor(7, script, pool)
	require.NotNil(t, a)
	assert.Equal(t, int32(7), a.Name)
	assert.Equal(t, "initial", a.State)
	assert.False(t, a.Dead())
}

func TestActorMarkDeadIsIdempotent(t *testing.T) {
	pool := mempool.New(4096)
	a := NewActor(1, &Script{StateSize: 16}, pool)

	a.MarkDead(pool)
	assert.True(t, a.Dead())

	assert.NotPanics(t, func() { a.MarkDead(pool) })
}

func TestActorRecordReceiveAndSend(t *testing.T) {
	pool := mempool.New(4096)
	a := NewActor(1, &Script{StateSize: 16}, pool)

	a.RecordReceive()
	a.RecordReceive()
	a.RecordSend()

	assert.Equal(t, uint64(2), a.Received())
	assert.Equal(t, uint64(1), a.Sent())
}

type recordingSender struct {
	msgs []*Message
}

func (s *recordingSender) Send(msg *Message) { s.msgs = append(s.msgs, msg) }

func TestActorSendBuildsMessageAndRecordsSentCount(t *testing.T) {
	pool := mempool.New(4096)
	a := NewActor(1, &Script{StateSize: 16}, pool)
	sender := &recordingSender{}
	a.SetSender(sender)

	a.Send(2, 0x9000, []byte("payload"))

	require.Len(t, sender.msgs, 1)
	msg := sender.msgs[0]
	assert.Equal(t, int32(1), msg.Source)
	assert.Equal(t, int32(2), msg.Destination)
	assert.Equal(t, int32(0x9000), msg.Tag)
	assert.Equal(t, []byte("payload"), msg.Buffer)
	assert.Equal(t, uint64(1), a.Sent())
}
