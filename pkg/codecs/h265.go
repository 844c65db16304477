package codecs

// H.265 NAL unit type values (RFC 7798 §4.4.2), mirroring H.264's
// aggregation/fragmentation pair but with 2-byte NAL headers.
const (
	naluH265AP = 48
	naluH265FU = 49
)

func h265Type(header []byte) uint8 {
	return (header[0] >> 1) & 0x3F
}

func h265WithType(header [2]byte, typ uint8) [2]byte {
	header[0] = (header[0] & 0x81) | (typ << 1)
	return header
}

// fuTypeMaskH265 is 6 bits wide (RFC 7798 §4.4.3's FuType field), unlike
// H.264's 5-bit NAL-type field reused elsewhere in this package.
const fuTypeMaskH265 = 0x3F

// H265 is the aggregation-packet / fragmentation-unit packetizer for
// H.265, the mirror of H264 with RFC 7798's 2-byte NAL headers: aggregation
// packet type 48, fragmentation-unit type 49.
type H265 struct {
	MaxPacketSize int
}

func (h H265) mtu() int {
	if h.MaxPacketSize <= 3 {
		return 1200
	}
	return h.MaxPacketSize
}

func (h H265) Packetize(nal []byte) ([][]byte, error) {
	if len(nal) < 2 {
		return nil, errEmptyPacket
	}
	if len(nal) <= h.mtu() {
		return [][]byte{nal}, nil
	}
	return fragmentFUH265(nal, h.mtu())
}

func fragmentFUH265(nal []byte, mtu int) ([][]byte, error) {
	var header [2]byte
	copy(header[:], nal[0:2])
	originalType := h265Type(nal)
	payload := nal[2:]

	chunkSize := mtu - 3 // 2-byte PayloadHdr + 1-byte FU header
	if chunkSize < 1 {
		chunkSize = 1
	}

	payloadHdr := h265WithType(header, naluH265FU)

	var out [][]byte
	for off := 0; off < len(payload); off += chunkSize {
		end := off + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		fuHeader := originalType
		if off == 0 {
			fuHeader |= fuHeaderStart
		}
		if end == len(payload) {
			fuHeader |= fuHeaderEnd
		}
		pkt := make([]byte, 3+end-off)
		pkt[0], pkt[1] = payloadHdr[0], payloadHdr[1]
		pkt[2] = fuHeader
		copy(pkt[3:], payload[off:end])
		out = append(out, pkt)
	}
	return out, nil
}

func (h H265) PacketizeAccessUnit(samples [][]byte) ([][]byte, error) {
	mtu := h.mtu()
	var out [][]byte
	var run [][]byte
	runSize := 2 // AP's own PayloadHdr

	flushRun := func() {
		if len(run) == 0 {
			return
		}
		if len(run) == 1 {
			out = append(out, run[0])
		} else {
			out = append(out, buildAP(run))
		}
		run = nil
		runSize = 2
	}

	for _, s := range samples {
		if len(s) < 2 {
			return nil, errEmptyPacket
		}
		if len(s) > mtu {
			flushRun()
			frags, err := fragmentFUH265(s, mtu)
			if err != nil {
				return nil, err
			}
			out = append(out, frags...)
			continue
		}
		entrySize := 2 + len(s)
		if runSize+entrySize > mtu && len(run) > 0 {
			flushRun()
		}
		run = append(run, s)
		runSize += entrySize
	}
	flushRun()
	return out, nil
}

func buildAP(nals [][]byte) []byte {
	var header [2]byte
	copy(header[:], nals[0][0:2])
	apHeader := h265WithType(header, naluH265AP)

	total := 2
	for _, n := range nals {
		total += 2 + len(n)
	}
	buf := make([]byte, total)
	buf[0], buf[1] = apHeader[0], apHeader[1]
	off := 2
	for _, n := range nals {
		buf[off] = byte(len(n) >> 8)
		buf[off+1] = byte(len(n))
		copy(buf[off+2:], n)
		off += 2 + len(n)
	}
	return buf
}

// Depacketize mirrors H264.Depacketize's strict fragmentation-sequence
// rule, adapted to H.265's 2-byte headers.
func (h H265) Depacketize(packets []ReceivedPacket) ([][]byte, error) {
	var out [][]byte
	var fu []byte
	var fuType uint8
	var prevSeq uint32
	inFU := false

	for _, rp := range packets {
		pkt := rp.Payload
		if len(pkt) < 2 {
			return nil, errEmptyPacket
		}
		if inFU && rp.SequenceNumber != prevSeq+1 {
			fu, inFU = nil, false
			return nil, errFragmentGap
		}
		prevSeq = rp.SequenceNumber
		naluType := h265Type(pkt)

		switch naluType {
		case naluH265AP:
			nals, err := parseH265AP(pkt)
			if err != nil {
				return nil, err
			}
			out = append(out, nals...)

		case naluH265FU:
			if len(pkt) < 3 {
				return nil, errEmptyPacket
			}
			start := pkt[2]&fuHeaderStart != 0
			end := pkt[2]&fuHeaderEnd != 0
			typ := pkt[2] & fuTypeMaskH265

			if start {
				if inFU {
					fu = nil
				}
				var header [2]byte
				header[0], header[1] = pkt[0], pkt[1]
				header = h265WithType(header, typ)
				fu = append([]byte{header[0], header[1]}, pkt[3:]...)
				fuType = typ
				inFU = true
				if end {
					out = append(out, fu)
					fu, inFU = nil, false
				}
				continue
			}
			if !inFU {
				return nil, errFragmentNoStart
			}
			if typ != fuType {
				fu, inFU = nil, false
				return nil, errFragmentGap
			}
			fu = append(fu, pkt[3:]...)
			if end {
				out = append(out, fu)
				fu, inFU = nil, false
			}

		default:
			if inFU {
				fu, inFU = nil, false
			}
			out = append(out, pkt)
		}
	}
	if inFU {
		return out, errFragmentNoEnd
	}
	return out, nil
}

func parseH265AP(pkt []byte) ([][]byte, error) {
	var out [][]byte
	off := 2
	for off+2 <= len(pkt) {
		size := int(pkt[off])<<8 | int(pkt[off+1])
		off += 2
		if off+size > len(pkt) {
			return nil, errAggregateShort
		}
		out = append(out, append([]byte(nil), pkt[off:off+size]...))
		off += size
	}
	return out, nil
}
