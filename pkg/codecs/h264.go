package codecs

// H.264 NAL unit type values this packetizer produces/consumes (RFC 6184
// §5.2).
const (
	naluSTAPA = 24
	naluFUA   = 28
)

const (
	fuHeaderStart = 0x80
	fuHeaderEnd   = 0x40
	fuTypeMask    = 0x1F
)

// H264 is the single-NAL / STAP-A / FU-A packetizer. MaxPacketSize bounds
// every produced packet, including its NAL/FU header bytes.
type H264 struct {
	MaxPacketSize int
}

func (h H264) mtu() int {
	if h.MaxPacketSize <= 2 {
		return 1200
	}
	return h.MaxPacketSize
}

// Packetize fragments a single NAL unit into one or more FU-A packets if
// it exceeds the configured MTU, or returns it untouched otherwise.
func (h H264) Packetize(nal []byte) ([][]byte, error) {
	if len(nal) == 0 {
		return nil, errEmptyPacket
	}
	if len(nal) <= h.mtu() {
		return [][]byte{nal}, nil
	}
	return fragmentFUA(nal, h.mtu())
}

func fragmentFUA(nal []byte, mtu int) ([][]byte, error) {
	header := nal[0]
	naluType := header & fuTypeMask
	nalRefIdc := header & 0x60
	payload := nal[1:]

	chunkSize := mtu - 2 // FU indicator + FU header
	if chunkSize < 1 {
		chunkSize = 1
	}

	var out [][]byte
	for off := 0; off < len(payload); off += chunkSize {
		end := off + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		fuIndicator := nalRefIdc | naluFUA
		fuHeader := naluType
		if off == 0 {
			fuHeader |= fuHeaderStart
		}
		if end == len(payload) {
			fuHeader |= fuHeaderEnd
		}
		pkt := make([]byte, 2+end-off)
		pkt[0] = fuIndicator
		pkt[1] = fuHeader
		copy(pkt[2:], payload[off:end])
		out = append(out, pkt)
	}
	return out, nil
}

// PacketizeAccessUnit fragments any oversized sample and aggregates the
// small ones sharing this timestamp into STAP-A packets that still fit the
// MTU.
func (h H264) PacketizeAccessUnit(samples [][]byte) ([][]byte, error) {
	mtu := h.mtu()
	var out [][]byte
	var run [][]byte
	runSize := 1 // STAP-A NAL header byte

	flushRun := func() {
		if len(run) == 0 {
			return
		}
		if len(run) == 1 {
			out = append(out, run[0])
			run = nil
			runSize = 1
			return
		}
		out = append(out, buildSTAPA(run))
		run = nil
		runSize = 1
	}

	for _, s := range samples {
		if len(s) == 0 {
			return nil, errEmptyPacket
		}
		if len(s) > mtu {
			flushRun()
			frags, err := fragmentFUA(s, mtu)
			if err != nil {
				return nil, err
			}
			out = append(out, frags...)
			continue
		}
		entrySize := 2 + len(s) // 2-byte length prefix + NAL
		if runSize+entrySize > mtu && len(run) > 0 {
			flushRun()
		}
		run = append(run, s)
		runSize += entrySize
	}
	flushRun()
	return out, nil
}

func buildSTAPA(nals [][]byte) []byte {
	// STAP-A's own NAL-ref-idc is the maximum across the aggregated units
	// (RFC 6184 §5.7.1).
	var refIdc byte
	for _, n := range nals {
		if r := n[0] & 0x60; r > refIdc {
			refIdc = r
		}
	}
	total := 1
	for _, n := range nals {
		total += 2 + len(n)
	}
	buf := make([]byte, total)
	buf[0] = refIdc | naluSTAPA
	off := 1
	for _, n := range nals {
		buf[off] = byte(len(n) >> 8)
		buf[off+1] = byte(len(n))
		copy(buf[off+2:], n)
		off += 2 + len(n)
	}
	return buf
}

// Depacketize reassembles single NALs, expands STAP-A aggregates, and
// reassembles FU-A fragmentation sequences. A fragmentation sequence must
// start with Start, end with End, carry identical NAL-type bits and
// consecutive sequence numbers throughout; a gap or type mismatch
// discards the partial unit.
func (h H264) Depacketize(packets []ReceivedPacket) ([][]byte, error) {
	var out [][]byte
	var fu []byte
	var fuType byte
	var prevSeq uint32
	inFU := false

	for _, rp := range packets {
		pkt := rp.Payload
		if len(pkt) == 0 {
			return nil, errEmptyPacket
		}
		if inFU && rp.SequenceNumber != prevSeq+1 {
			fu, inFU = nil, false
			return nil, errFragmentGap
		}
		prevSeq = rp.SequenceNumber
		naluType := pkt[0] & fuTypeMask

		switch naluType {
		case naluSTAPA:
			nals, err := parseSTAPA(pkt)
			if err != nil {
				return nil, err
			}
			out = append(out, nals...)

		case naluFUA:
			if len(pkt) < 2 {
				return nil, errEmptyPacket
			}
			start := pkt[1]&fuHeaderStart != 0
			end := pkt[1]&fuHeaderEnd != 0
			typ := pkt[1] & fuTypeMask

			if start {
				if inFU {
					// a new Start without a prior End: discard the
					// partial unit and begin the new one.
					fu = nil
				}
				naluHeader := (pkt[0] &^ fuTypeMask) | typ
				fu = append([]byte{naluHeader}, pkt[2:]...)
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
			fu = append(fu, pkt[2:]...)
			if end {
				out = append(out, fu)
				fu, inFU = nil, false
			}

		default:
			if inFU {
				// a non-FU packet interrupts an in-progress
				// fragmentation sequence: discard it (no End seen).
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

func parseSTAPA(pkt []byte) ([][]byte, error) {
	var out [][]byte
	off := 1
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
