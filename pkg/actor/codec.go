package actor

import "encoding/binary"

// Payload helpers for the small number of system messages whose buffer
// carries one or more int32 values (NODE_ADD_INITIAL_ACTOR's `int name`,
// NODE_ADD_INITIAL_ACTORS' `vector of int`, ACTOR_SPAWN's `int script id`,
// ACTOR_SPAWN_REPLY's `int actor name`). The wire is little-endian
// throughout; endianness is fixed, not negotiated.

// EncodeInt32 returns a 4-byte little-endian encoding of v.
func EncodeInt32(v int32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return buf
}

// DecodeInt32 reads a 4-byte little-endian int32 from buf.
func DecodeInt32(buf []byte) (int32, bool) {
	if len(buf) < 4 {
		return 0, false
	}
	return int32(binary.LittleEndian.Uint32(buf)), true
}

// EncodeInt32Slice encodes a vector of int32 values, each little-endian.
func EncodeInt32Slice(values []int32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

// DecodeInt32Slice is the inverse of EncodeInt32Slice.
func DecodeInt32Slice(buf []byte) ([]int32, bool) {
	if len(buf)%4 != 0 {
		return nil, false
	}
	out := make([]int32, len(buf)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, true
}
