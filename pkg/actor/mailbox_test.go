package actor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailboxPopReturnsFIFOOrder(t *testing.T) {
	m := NewMailbox()
	for i := int32(0); i < 5; i++ {
		m.Push(NewMessage(0, 0, i, nil))
	}
	require.Equal(t, 5, m.Len())

	for i := int32(0); i < 5; i++ {
		msg, ok := m.Pop()
		require.True(t, ok)
		assert.Equal(t, i, msg.Tag)
	}
	_, ok := m.Pop()
	assert.False(t, ok)
}

func TestMailboxPopOnEmptyReturnsFalse(t *testing.T) {
	m := NewMailbox()
	_, ok := m.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMailboxConcurrentPushIsSafe(t *testing.T) {
	m := NewMailbox()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(tag int32) {
			defer wg.Done()
			m.Push(NewMessage(0, 0, tag, nil))
		}(int32(i))
	}
	wg.Wait()
	assert.Equal(t, 50, m.Len())
}
