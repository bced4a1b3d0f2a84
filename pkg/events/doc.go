/*
Package events implements an in-process pub/sub broker for actor-runtime
lifecycle notifications.

A Broker buffers published Events on an internal channel and fans each one
out to every live Subscriber (a buffered channel of *Event). Publish never
blocks on a slow subscriber: broadcast drops an event for any subscriber
whose buffer is full rather than stalling the rest.

# Event types

  - actor.spawned, actor.died, actor.migrated
  - worker.registered, worker.stopped
  - node.joined, node.left, node.down
  - script.registered
  - pool.allocation_failed
  - transport.decode_error

pkg/node publishes script.registered, actor.spawned and actor.died as
scripts are registered and actors are spawned and destroyed; the other
types are defined here but nothing in this tree publishes them. Nothing in
the runtime depends on a subscriber reading them, so the broker is purely
an observability side channel — the kind a log tailer or a debugging CLI
subscribes to.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&events.Event{Type: events.EventActorSpawned, Message: "..."})
*/
package events
