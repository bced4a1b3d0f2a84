package worker

import (
	"testing"
	"time"

	"github.com/cuemby/thorium/pkg/actor"
	"github.com/cuemby/thorium/pkg/mempool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolSpawnPicksLeastLoadedWorker(t *testing.T) {
	p := NewPool(3, newRecordingDispatcher(), 4096)
	pool := mempool.New(4096)

	// Load workers 0 and 1 directly so Spawn must pick worker 2.
	p.Worker(0).Own(actor.NewActor(100, echoScript(), pool))
	p.Worker(1).Own(actor.NewActor(101, echoScript(), pool))

	idx := p.Spawn(actor.NewActor(1, echoScript(), pool))
	assert.Equal(t, 2, idx)
	assert.True(t, p.Owns(1))
}

func TestPoolRouteDeliversToOwningWorker(t *testing.T) {
	p := NewPool(2, newRecordingDispatcher(), 4096)
	p.Start()
	defer p.Stop(mempool.New(4096))

	pool := mempool.New(4096)
	a := actor.NewActor(1, echoScript(), pool)
	p.Spawn(a)

	assert.True(t, p.Route(actor.NewMessage(0, 1, 0x5000, nil)))

	require.Eventually(t, func() bool {
		return a.State.(int) == 1
	}, time.Second, time.Millisecond)
}

func TestPoolRouteToUnknownActorReturnsFalse(t *testing.T) {
	p := NewPool(2, newRecordingDispatcher(), 4096)
	assert.False(t, p.Route(actor.NewMessage(0, 999, 0x5000, nil)))
}

func TestPoolMigrateMovesOwnership(t *testing.T) {
	p := NewPool(2, newRecordingDispatcher(), 4096)
	pool := mempool.New(4096)
	a := actor.NewActor(1, echoScript(), pool)

	p.Worker(0).Own(a)
	p.mu.Lock()
	p.ownerOf[1] = 0
	p.mu.Unlock()

	require.NoError(t, p.Migrate(1, 1))
	assert.False(t, p.Worker(0).Owns(1))
	assert.True(t, p.Worker(1).Owns(1))
}

func TestPoolMigrateUnknownActorFails(t *testing.T) {
	p := NewPool(2, newRecordingDispatcher(), 4096)
	err := p.Migrate(999, 1)
	assert.Error(t, err)
}

func TestPoolMigrateOutOfRangeTargetFails(t *testing.T) {
	p := NewPool(2, newRecordingDispatcher(), 4096)
	pool := mempool.New(4096)
	a := actor.NewActor(1, echoScript(), pool)
	p.Spawn(a)

	err := p.Migrate(1, 5)
	assert.Error(t, err)
}

func TestPoolForgetDropsOwnership(t *testing.T) {
	p := NewPool(1, newRecordingDispatcher(), 4096)
	pool := mempool.New(4096)
	a := actor.NewActor(1, echoScript(), pool)
	p.Spawn(a)
	require.True(t, p.Owns(1))

	p.Forget(1)
	assert.False(t, p.Owns(1))
}

func TestPoolLoadReportsPerWorkerCounts(t *testing.T) {
	p := NewPool(2, newRecordingDispatcher(), 4096)
	pool := mempool.New(4096)
	p.Spawn(actor.NewActor(1, echoScript(), pool))

	loads := p.Load()
	require.Len(t, loads, 2)
	assert.Equal(t, 1, loads[0]+loads[1])
}
