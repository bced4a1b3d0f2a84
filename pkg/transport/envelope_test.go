package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeMarshalUnmarshalRoundTrip(t *testing.T) {
	original := &envelope{frames: [][]byte{
		[]byte("first message"),
		[]byte("second message"),
		{},
	}}

	data, err := original.Marshal()
	require.NoError(t, err)

	decoded := &envelope{}
	require.NoError(t, decoded.Unmarshal(data))

	require.Len(t, decoded.frames, len(original.frames))
	for i := range original.frames {
		assert.Equal(t, original.frames[i], decoded.frames[i])
	}
}

func TestEnvelopeOrderIsPreserved(t *testing.T) {
	original := &envelope{frames: [][]byte{
		[]byte("a"), []byte("b"), []byte("c"), []byte("d"),
	}}

	data, err := original.Marshal()
	require.NoError(t, err)

	decoded := &envelope{}
	require.NoError(t, decoded.Unmarshal(data))

	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}, decoded.frames)
}

func TestEnvelopeCodecName(t *testing.T) {
	assert.Equal(t, "thorium-envelope", envelopeCodec{}.Name())
}

func TestEnvelopeCodecRejectsWrongType(t *testing.T) {
	_, err := envelopeCodec{}.Marshal("not an envelope")
	assert.Error(t, err)

	err = envelopeCodec{}.Unmarshal([]byte{}, "not an envelope")
	assert.Error(t, err)
}
