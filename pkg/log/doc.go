/*
Package log wraps zerolog with the fields Thorium's components attach to
every line: component, node_id, worker_id, actor_name.

Init configures the global Logger from a Config (level, JSON vs console
output, destination writer); cmd/thorium calls it once at startup from the
--log-level/--log-json flags. Everything downstream derives a child logger
via With* rather than touching zerolog directly:

	nlog := log.WithNodeID(cfg.Name)
	wlog := nlog.With().Int("worker_id", id).Logger()

WithComponent, WithNodeID, WithWorkerID and WithActorName each return a
zerolog.Logger with one additional field set, so call sites can chain them
to build up context (node, then worker, then actor) without repeating
field names at every log call.

The package-level Info/Debug/Warn/Error/Errorf/Fatal helpers log through
the global Logger for call sites that don't hold a derived logger of their
own — most call sites that run in a hot path (worker loop, transport
dispatch) use a derived logger instead, since it already carries the
identifying fields those lines need.
*/
package log
