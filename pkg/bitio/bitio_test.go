package bitio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	w := NewWriter(4)
	require.NoError(t, w.WriteBits(2, 2))   // version
	require.NoError(t, w.WriteBit(true))    // padding
	require.NoError(t, w.WriteBit(false))   // extension
	require.NoError(t, w.WriteBits(5, 4))   // CSRC count
	require.NoError(t, w.WriteUint8(96))    // payload type byte
	require.NoError(t, w.WriteSigned(-3, 8))

	buf := w.Bytes()

	r := NewReader(buf)
	version, err := r.ReadBits(2)
	require.NoError(t, err)
	require.EqualValues(t, 2, version)

	padding, err := r.ReadBit()
	require.NoError(t, err)
	require.True(t, padding)

	ext, err := r.ReadBit()
	require.NoError(t, err)
	require.False(t, ext)

	cc, err := r.ReadBits(4)
	require.NoError(t, err)
	require.EqualValues(t, 5, cc)

	pt, err := r.ReadUint8()
	require.NoError(t, err)
	require.EqualValues(t, 96, pt)

	signed, err := r.ReadSigned(8)
	require.NoError(t, err)
	require.EqualValues(t, -3, signed)
}

func TestReadExhaustion(t *testing.T) {
	r := NewReader([]byte{0xFF})
	_, err := r.ReadBits(9)
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestUnalignedSpan(t *testing.T) {
	w := NewWriter(2)
	require.NoError(t, w.WriteBits(0x1FF, 9)) // spans two bytes
	require.NoError(t, w.WriteBits(0x3, 3))
	buf := w.Bytes()

	r := NewReader(buf)
	v, err := r.ReadBits(9)
	require.NoError(t, err)
	require.EqualValues(t, 0x1FF, v)
	v2, err := r.ReadBits(3)
	require.NoError(t, err)
	require.EqualValues(t, 0x3, v2)
}
