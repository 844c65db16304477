package codecs

import "github.com/7956968/rtpcore/pkg/bitio"

// H.264-SVC adds the payload-content-scalability-information (PACSI) NAL
// type and a dependency/quality/temporal-id descriptor on top of plain
// H.264 aggregation (RFC 6190 §4, itself a thin specialization of the RFC
// 6184 packetizer — this mirrors that relationship by embedding H264 and
// adding only the descriptor-aware aggregation path).
const naluPACSI = 30

// SVCDescriptor is the dependency/quality/temporal-id triple carried in a
// PACSI NAL unit's 3-byte extension (RFC 6190 §4.3).
type SVCDescriptor struct {
	DependencyID uint8 // 3 bits
	QualityID    uint8 // 4 bits
	TemporalID   uint8 // 3 bits
}

func (d SVCDescriptor) encode() [3]byte {
	w := bitio.NewWriter(3)
	_ = w.WriteBits(0, 8) // reserved octet
	_ = w.WriteBits(0, 1) // reserved bit
	_ = w.WriteBits(uint32(d.DependencyID), 3)
	_ = w.WriteBits(uint32(d.QualityID), 4)
	_ = w.WriteBits(uint32(d.TemporalID), 3)
	_ = w.WriteBits(0, 5) // reserved tail
	var b [3]byte
	copy(b[:], w.Bytes())
	return b
}

func decodeSVCDescriptor(b []byte) SVCDescriptor {
	r := bitio.NewReader(b)
	_, _ = r.ReadBits(8) // reserved octet
	_, _ = r.ReadBit()   // reserved bit
	dep, _ := r.ReadBits(3)
	qual, _ := r.ReadBits(4)
	temp, _ := r.ReadBits(3)
	return SVCDescriptor{
		DependencyID: uint8(dep),
		QualityID:    uint8(qual),
		TemporalID:   uint8(temp),
	}
}

// H264SVC packetizes a stream of (NAL, descriptor) layers. PacketizeLayers
// is the SVC-aware entry point; Packetize/PacketizeAccessUnit fall back to
// plain H.264 behavior (descriptor-less NALs pass through unchanged,
// matching a base-layer-only stream).
type H264SVC struct {
	H264
}

// NALLayer pairs one NAL unit with its scalability descriptor.
type NALLayer struct {
	NAL        []byte
	Descriptor SVCDescriptor
}

// PacketizeLayers emits, for each layer, a PACSI NAL carrying its
// descriptor followed by that layer's NAL packetized with the base H.264
// Packetize (the NAL itself, or FU-A fragments when it exceeds the MTU).
// Layers are not aggregated into STAP-A packets: each PACSI NAL and each
// unfragmented NAL travels in a packet of its own.
func (h H264SVC) PacketizeLayers(layers []NALLayer) ([][]byte, error) {
	var out [][]byte
	for _, l := range layers {
		pacsi := buildPACSI(l.Descriptor)
		frags, err := h.H264.Packetize(l.NAL)
		if err != nil {
			return nil, err
		}
		out = append(out, pacsi)
		out = append(out, frags...)
	}
	return out, nil
}

func buildPACSI(d SVCDescriptor) []byte {
	ext := d.encode()
	buf := make([]byte, 1+len(ext))
	buf[0] = naluPACSI
	copy(buf[1:], ext[:])
	return buf
}

// DepacketizeLayers is the SVC-aware inverse of PacketizeLayers: each
// PACSI NAL's descriptor applies to the NAL(s) immediately following it,
// up to the next PACSI (or end of group).
func (h H264SVC) DepacketizeLayers(packets []ReceivedPacket) ([]NALLayer, error) {
	plain, err := h.H264.Depacketize(packets)
	if err != nil {
		return nil, err
	}

	var out []NALLayer
	current := SVCDescriptor{}
	for _, nal := range plain {
		if len(nal) == 0 {
			continue
		}
		if nal[0]&fuTypeMask == naluPACSI {
			if len(nal) < 4 {
				return nil, errAggregateShort
			}
			current = decodeSVCDescriptor(nal[1:])
			continue
		}
		out = append(out, NALLayer{NAL: nal, Descriptor: current})
	}
	return out, nil
}
