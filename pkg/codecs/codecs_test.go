package codecs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func asReceived(packets [][]byte) []ReceivedPacket {
	out := make([]ReceivedPacket, len(packets))
	for i, pkt := range packets {
		out[i] = ReceivedPacket{Payload: pkt, SequenceNumber: uint32(100 + i)}
	}
	return out
}

func TestGenericRoundTrip(t *testing.T) {
	g := Generic{}
	samples := [][]byte{{1, 2, 3}, {4, 5}, {6}}
	packets, err := g.PacketizeAccessUnit(samples)
	require.NoError(t, err)
	require.Equal(t, samples, packets)

	back, err := g.Depacketize(asReceived(packets))
	require.NoError(t, err)
	require.Equal(t, samples, back)
}

func TestH264SingleNALPassthrough(t *testing.T) {
	h := H264{MaxPacketSize: 1200}
	nal := append([]byte{0x65}, bytes.Repeat([]byte{0xAB}, 100)...) // IDR slice, type 5
	packets, err := h.Packetize(nal)
	require.NoError(t, err)
	require.Len(t, packets, 1)
	require.Equal(t, nal, packets[0])

	back, err := h.Depacketize(asReceived(packets))
	require.NoError(t, err)
	require.Equal(t, [][]byte{nal}, back)
}

func TestH264FragmentationRoundTrip(t *testing.T) {
	h := H264{MaxPacketSize: 50}
	nal := append([]byte{0x65}, bytes.Repeat([]byte{0xCD}, 500)...)
	packets, err := h.Packetize(nal)
	require.NoError(t, err)
	require.Greater(t, len(packets), 1)
	for _, p := range packets {
		require.LessOrEqual(t, len(p), 50)
	}

	back, err := h.Depacketize(asReceived(packets))
	require.NoError(t, err)
	require.Equal(t, [][]byte{nal}, back)
}

func TestH264AggregationRoundTrip(t *testing.T) {
	h := H264{MaxPacketSize: 1200}
	samples := [][]byte{{0x67, 1, 2}, {0x68, 3, 4}, {0x65, 5, 6, 7}}
	packets, err := h.PacketizeAccessUnit(samples)
	require.NoError(t, err)
	require.Len(t, packets, 1) // all fit in one STAP-A

	back, err := h.Depacketize(asReceived(packets))
	require.NoError(t, err)
	require.Equal(t, samples, back)
}

func TestH264DepacketizeRejectsGapInFragmentationSequence(t *testing.T) {
	h := H264{MaxPacketSize: 20}
	nal := append([]byte{0x65}, bytes.Repeat([]byte{1}, 100)...)
	packets, err := h.Packetize(nal)
	require.NoError(t, err)
	require.Greater(t, len(packets), 2)

	received := asReceived(packets)
	truncated := append(received[:1:1], received[2:]...) // drop the middle fragment
	_, err = h.Depacketize(truncated)
	require.Error(t, err)
}

func TestH264SVCRoundTrip(t *testing.T) {
	h := H264SVC{H264: H264{MaxPacketSize: 1200}}
	layers := []NALLayer{
		{NAL: []byte{0x65, 1, 2, 3}, Descriptor: SVCDescriptor{DependencyID: 2, QualityID: 1, TemporalID: 3}},
		{NAL: []byte{0x65, 4, 5}, Descriptor: SVCDescriptor{DependencyID: 5, QualityID: 0, TemporalID: 1}},
	}
	packets, err := h.PacketizeLayers(layers)
	require.NoError(t, err)

	back, err := h.DepacketizeLayers(asReceived(packets))
	require.NoError(t, err)
	require.Equal(t, layers, back)
}

func TestH265SingleNALPassthrough(t *testing.T) {
	h := H265{MaxPacketSize: 1200}
	nal := append([]byte{0x26, 0x01}, bytes.Repeat([]byte{0xEF}, 50)...)
	packets, err := h.Packetize(nal)
	require.NoError(t, err)
	require.Len(t, packets, 1)

	back, err := h.Depacketize(asReceived(packets))
	require.NoError(t, err)
	require.Equal(t, [][]byte{nal}, back)
}

func TestH265FragmentationRoundTrip(t *testing.T) {
	h := H265{MaxPacketSize: 50}
	nal := append([]byte{0x26, 0x01}, bytes.Repeat([]byte{0x11}, 500)...)
	packets, err := h.Packetize(nal)
	require.NoError(t, err)
	require.Greater(t, len(packets), 1)

	back, err := h.Depacketize(asReceived(packets))
	require.NoError(t, err)
	require.Equal(t, [][]byte{nal}, back)
}

func TestH265AggregationRoundTrip(t *testing.T) {
	h := H265{MaxPacketSize: 1200}
	samples := [][]byte{{0x26, 0x01, 1, 2}, {0x26, 0x01, 3, 4}}
	packets, err := h.PacketizeAccessUnit(samples)
	require.NoError(t, err)
	require.Len(t, packets, 1)

	back, err := h.Depacketize(asReceived(packets))
	require.NoError(t, err)
	require.Equal(t, samples, back)
}

func TestH265SHVCGroupsByLayer(t *testing.T) {
	h := H265SHVC{H265: H265{MaxPacketSize: 1200}}
	base := []byte{0x26, 0x01, 1, 2}   // layer 0
	enh := []byte{0x26, 0x09, 3, 4}    // layer 1 (bit pattern sets nuh_layer_id)
	require.Equal(t, uint8(0), layerID(base))

	samples := [][]byte{base, enh}
	packets, err := h.PacketizeAccessUnit(samples)
	require.NoError(t, err)
	require.Len(t, packets, 2) // different layers don't aggregate together

	back, err := h.Depacketize(asReceived(packets))
	require.NoError(t, err)
	require.ElementsMatch(t, samples, back)
}
