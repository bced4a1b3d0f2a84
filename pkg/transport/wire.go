package transport

import (
	"encoding/binary"
	"fmt"

	"github.com/cuemby/thorium/pkg/actor"
)

// wireHeaderSize is the fixed header width: source, destination, tag and
// payload length, each a little-endian uint32. A wire message is
// [header|payload]; endianness is fixed, little-endian on the wire.
const wireHeaderSize = 16

// encodeWireMessage produces the [header|payload] bytes for msg.
func encodeWireMessage(msg *actor.Message) []byte {
	buf := make([]byte, wireHeaderSize+len(msg.Buffer))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(msg.Source))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(msg.Destination))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(msg.Tag))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(msg.Buffer)))
	copy(buf[wireHeaderSize:], msg.Buffer)
	return buf
}

// decodeWireMessage is the inverse of encodeWireMessage. It requires the
// buffer to hold exactly one wire message: the multiplexer frame already
// delimits each message's bytes (envelope.go), so there is no trailing
// data to account for here.
func decodeWireMessage(buf []byte) (*actor.Message, error) {
	if len(buf) < wireHeaderSize {
		return nil, fmt.Errorf("transport: wire message too short: %d bytes", len(buf))
	}
	source := int32(binary.LittleEndian.Uint32(buf[0:4]))
	destination := int32(binary.LittleEndian.Uint32(buf[4:8]))
	tag := int32(binary.LittleEndian.Uint32(buf[8:12]))
	length := binary.LittleEndian.Uint32(buf[12:16])

	payload := buf[wireHeaderSize:]
	if uint32(len(payload)) != length {
		return nil, fmt.Errorf("transport: wire message length mismatch: header says %d, got %d", length, len(payload))
	}

	return actor.NewMessage(source, destination, tag, payload), nil
}
