/*
Package transport implements node.Transport over gRPC bidirectional
streaming.

A wire message is [header|payload]: a 16-byte little-endian header (source,
destination, tag, payload length) followed by the payload (wire.go). The
multiplexer frame batching messages to one peer is a repeated protobuf
bytes field (envelope.go) — protowire's length-delimited encoding supplies
the "per-message length prefix" the wire format calls for, so an envelope
needs no separate count field.

Each node dials its peers lazily: the first Send to an address opens a
bidirectional stream that stays open for the life of the process,
with a per-peer goroutine that coalesces pending messages into envelopes
before each stream write. Inbound connections are served by a single
grpc.Server whose NodeLink service decodes incoming envelopes into
messages for Poll.

There is no generated api/proto package for this service, so service.go
hand-builds the grpc.ServiceDesc for NodeLink's single stream the way
protoc-gen-go-grpc would have.

TLS is optional (Config.TLS) and, when enabled, issues this node's
certificate from a pkg/security.CertAuthority and requires every peer to
present one in return, since Thorium nodes are symmetric peers rather than
a client/manager pair.
*/
package transport
