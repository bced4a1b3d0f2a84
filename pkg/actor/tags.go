package actor

// Reserved system action tags. This set is closed: every other tag value
// is user-defined and delivered to the destination actor's script. Values
// match the originating biosal/Thorium engine's
// engine/thorium/node.h action codes where the original defines them, and
// are otherwise assigned sequentially.
const (
	NodeAddInitialActor      int32 = 0x00002438
	NodeAddInitialActors     int32 = 0x00004c19
	NodeAddInitialActorsReply int32 = 0x00003ad3
	NodeStart                int32 = 0x0000082c

	ActorStart             int32 = 0x00010001
	ActorStartReply        int32 = 0x00010002
	ActorAskToStop         int32 = 0x00010003
	ActorStop              int32 = 0x00010004
	ActorSpawn             int32 = 0x00010005
	ActorSpawnReply        int32 = 0x00010006
	ActorGetNodeWorkerCount      int32 = 0x00010007
	ActorGetNodeWorkerCountReply int32 = 0x00010008
)

// IsSystemTag reports whether tag is handled by the node itself rather
// than delivered to a user script's Receive callback.
//
// ACTOR_START, ACTOR_ASK_TO_STOP, and every *_REPLY tag are addressed to
// actors and reach Receive like any user tag — a reply is the node
// answering a request an actor sent it, so the reply's destination is
// that actor, not the node itself. ACTOR_STOP, ACTOR_SPAWN, and
// ACTOR_GET_NODE_WORKER_COUNT are caught by the node directly: spawn and
// the worker-count query are synchronous node operations, and catching
// ACTOR_STOP at the node lets an actor request its own death by sending
// itself a message rather than requiring every script to implement
// teardown logic in its Receive switch.
func IsSystemTag(tag int32) bool {
	switch tag {
	case NodeAddInitialActor, NodeAddInitialActors, NodeStart,
		ActorStop, ActorSpawn, ActorGetNodeWorkerCount:
		return true
	default:
		return false
	}
}
