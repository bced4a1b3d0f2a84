package actor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	s := &Script{ID: 1, Name: "echo"}
	require.NoError(t, r.Register(s))

	got, err := r.Lookup(1)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryDuplicateRegistrationFails(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Script{ID: 1, Name: "a"}))
	err := r.Register(&Script{ID: 1, Name: "b"})
	assert.Error(t, err)
}

func TestRegistryLookupUnknownFails(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup(999)
	assert.Error(t, err)
}

func TestIsSystemTag(t *testing.T) {
	systemTags := []int32{
		NodeAddInitialActor, NodeAddInitialActors, NodeStart,
		ActorStop, ActorSpawn, ActorGetNodeWorkerCount,
	}
	for _, tag := range systemTags {
		assert.True(t, IsSystemTag(tag), "tag %#x should be a system tag", tag)
	}

	userTags := []int32{
		ActorStart, ActorAskToStop,
		NodeAddInitialActorsReply, ActorSpawnReply, ActorGetNodeWorkerCountReply,
		0x5000, 1,
	}
	for _, tag := range userTags {
		assert.False(t, IsSystemTag(tag), "tag %#x should not be a system tag", tag)
	}
}
