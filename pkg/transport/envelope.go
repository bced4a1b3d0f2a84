package transport

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// envelope is the multiplexer frame: [count|(msg)*] with per-message
// length prefixes. It carries one or more wire messages bound for the
// same remote node, coalesced by the sender so a burst of traffic to one
// peer costs one stream write instead of many.
//
// It is encoded as a single repeated protobuf bytes field rather than a
// generated message type; protowire's length-delimited encoding is
// exactly the per-message length prefix the wire format calls for, so
// envelope needs no separate count or length bookkeeping of its own.
type envelope struct {
	frames [][]byte
}

const envelopeFramesFieldNumber = protowire.Number(1)

func (e *envelope) Marshal() ([]byte, error) {
	var buf []byte
	for _, f := range e.frames {
		buf = protowire.AppendTag(buf, envelopeFramesFieldNumber, protowire.BytesType)
		buf = protowire.AppendBytes(buf, f)
	}
	return buf, nil
}

func (e *envelope) Unmarshal(data []byte) error {
	e.frames = e.frames[:0]
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("transport: malformed envelope tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if num != envelopeFramesFieldNumber || typ != protowire.BytesType {
			// Skip unknown fields rather than fail — keeps the wire
			// format forward-compatible with additional frame metadata.
			fn := protowire.ConsumeFieldValue(num, typ, data)
			if fn < 0 {
				return fmt.Errorf("transport: malformed envelope field: %w", protowire.ParseError(fn))
			}
			data = data[fn:]
			continue
		}

		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return fmt.Errorf("transport: malformed envelope frame: %w", protowire.ParseError(n))
		}
		frame := make([]byte, len(v))
		copy(frame, v)
		e.frames = append(e.frames, frame)
		data = data[n:]
	}
	return nil
}

// envelopeCodec is a grpc encoding.Codec for *envelope. It is registered
// under its own name (codecName) rather than overriding "proto" so that
// stock proto-based gRPC services elsewhere in the process are unaffected.
type envelopeCodec struct{}

const codecName = "thorium-envelope"

func (envelopeCodec) Marshal(v interface{}) ([]byte, error) {
	e, ok := v.(*envelope)
	if !ok {
		return nil, fmt.Errorf("transport: envelopeCodec cannot marshal %T", v)
	}
	return e.Marshal()
}

func (envelopeCodec) Unmarshal(data []byte, v interface{}) error {
	e, ok := v.(*envelope)
	if !ok {
		return fmt.Errorf("transport: envelopeCodec cannot unmarshal into %T", v)
	}
	return e.Unmarshal(data)
}

func (envelopeCodec) Name() string { return codecName }
