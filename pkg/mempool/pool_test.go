package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateZeroReturnsNilWithoutConsumingABlock(t *testing.T) {
	p := New(4096)
	ptr := p.Allocate(0)
	assert.Nil(t, ptr)
	assert.Equal(t, 0, p.BlockCount())
}

func TestSlabLargeBlockBoundary(t *testing.T) {
	p := New(4096)

	small := p.Allocate(4095)
	assert.False(t, p.IsLarge(small))

	exact := p.Allocate(4096)
	assert.True(t, p.IsLarge(exact))

	over := p.Allocate(4097)
	assert.True(t, p.IsLarge(over))
}

func TestRecyclePreservesPointerIdentity(t *testing.T) {
	p := New(1 << 20)
	p.Normalize = false

	const n = 100
	first := make([]*Ptr, n)
	for i := range first {
		first[i] = p.Allocate(128)
	}
	blocksAfterFirstBatch := p.BlockCount()

	for _, ptr := range first {
		p.Free(ptr)
	}

	second := make([]*Ptr, n)
	for i := range second {
		second[i] = p.Allocate(128)
	}

	assert.Equal(t, blocksAfterFirstBatch, p.BlockCount(), "recycling must not grow the block count")
	assert.ElementsMatch(t, first, second, "second batch must reuse the exact pointers freed by the first")
}

func TestLargeAllocationRoutesThroughAndOutOfTheLargeSet(t *testing.T) {
	p := New(65536)
	ptr := p.Allocate(1_000_000)
	require.True(t, p.IsLarge(ptr))

	p.Free(ptr)
	assert.False(t, p.IsLarge(ptr))
}

func TestFreeAllRecyclesBlocksWithoutNewGrowth(t *testing.T) {
	p := New(1024)
	for i := 0; i < 50; i++ {
		p.Allocate(64)
	}
	blocks := p.BlockCount()
	require.Greater(t, blocks, 0)

	p.FreeAll()
	assert.Equal(t, blocks, p.BlockCount(), "FreeAll must not release arenas to the OS")

	for i := 0; i < 50; i++ {
		p.Allocate(64)
	}
	assert.LessOrEqual(t, p.BlockCount(), blocks, "demand within prior capacity must not allocate new arenas")
}

func TestFreeAllIsIdempotent(t *testing.T) {
	p := New(1024)
	p.Allocate(32)
	p.FreeAll()
	blocks := p.BlockCount()
	p.FreeAll()
	assert.Equal(t, blocks, p.BlockCount())
}

func TestFreeingAnUntrackedPointerIsANoOp(t *testing.T) {
	p := New(4096)
	p.Tracking = false
	ptr := p.Allocate(16)
	assert.NotPanics(t, func() { p.Free(ptr) })
}

func TestFreeingNilIsANoOp(t *testing.T) {
	p := New(4096)
	assert.NotPanics(t, func() { p.Free(nil) })
}

func TestDisabledPoolPassesThroughToTheSystemAllocator(t *testing.T) {
	p := New(4096)
	p.Disabled = true
	ptr := p.Allocate(16)
	require.NotNil(t, ptr)
	assert.Len(t, ptr.Bytes, 16)
	assert.Equal(t, 0, p.BlockCount())
}

func TestNormalizeRoundsUpToPowerOfTwo(t *testing.T) {
	cases := []struct{ size, want int }{
		{1, 1}, {2, 2}, {3, 4}, {5, 8}, {64, 64}, {65, 128},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, normalizeToPowerOfTwo(c.size))
	}
}
