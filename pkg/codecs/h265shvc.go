package codecs

import "github.com/7956968/rtpcore/pkg/bitio"

// H265SHVC adds layer-id handling to the base H.265 packetizer: SHVC's
// scalability signal is carried directly in the existing 6-bit
// nuh_layer_id field split across the NAL header's two bytes (RFC 7798
// §4.3 is extended by the SHVC draft rather than adding a side-channel
// descriptor the way H.264-SVC's PACSI does), so aggregation must not mix
// NALs from different layers into one AP — each layer aggregates
// independently.
type H265SHVC struct {
	H265
}

// layerID extracts nuh_layer_id, the 6-bit field straddling the NAL
// header's byte boundary (1 bit in the first byte, 5 in the second).
func layerID(header []byte) uint8 {
	r := bitio.NewReader(header)
	_, _ = r.ReadBits(7) // forbidden-zero bit + nal_unit_type
	id, _ := r.ReadBits(6)
	return uint8(id)
}

func setLayerID(header [2]byte, id uint8) [2]byte {
	header[0] = (header[0] &^ 0x01) | ((id >> 5) & 0x01)
	header[1] = (header[1] & 0x07) | ((id & 0x1F) << 3)
	return header
}

// PacketizeAccessUnit groups samples by layer id (preserving the original
// per-layer ordering) and aggregates/fragments each layer's run
// independently with the base H.265 packetizer.
func (h H265SHVC) PacketizeAccessUnit(samples [][]byte) ([][]byte, error) {
	var order []uint8
	byLayer := make(map[uint8][][]byte)
	for _, s := range samples {
		if len(s) < 2 {
			return nil, errEmptyPacket
		}
		id := layerID(s)
		if _, ok := byLayer[id]; !ok {
			order = append(order, id)
		}
		byLayer[id] = append(byLayer[id], s)
	}

	var out [][]byte
	for _, id := range order {
		packets, err := h.H265.PacketizeAccessUnit(byLayer[id])
		if err != nil {
			return nil, err
		}
		out = append(out, packets...)
	}
	return out, nil
}

// LayerOf returns the nuh_layer_id of a depacketized NAL unit, for callers
// that need to route SHVC layers after Depacketize.
func LayerOf(nal []byte) (uint8, error) {
	if len(nal) < 2 {
		return 0, errEmptyPacket
	}
	return layerID(nal), nil
}
