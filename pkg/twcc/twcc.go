// Package twcc builds RFC-8888-adjacent transport-wide congestion-control
// feedback (the FMT=15 "transport-wide-cc" profile registered under RTPFB,
// draft-holmer-rmcat-transport-wide-cc-extensions) from arrival timestamps of
// packets keyed by a cycle-extended sequence number: run-length and
// status-symbol chunk packing over a gammazero/deque, driven by a caller
// that calls Push for every arriving packet and BuildFeedback on its own
// reporting cadence.
package twcc

import (
	"encoding/binary"
	"time"

	"github.com/gammazero/deque"
	"github.com/pion/rtcp"

	"github.com/7956968/rtpcore/pkg/rtcppacket"
)

const (
	tccReportDelta          = 100 * time.Millisecond
	tccReportDeltaAfterMark = 50 * time.Millisecond

	statusVectorMaxEntries = 0x1fff // mask of the 13-bit run count in a run-length chunk
	deltaScaleFactor       = 250 * time.Microsecond
	maxRunLength           = 0x1fff

	statusTypeNotReceived   = 0
	statusTypeSmallDelta    = 1
	statusTypeLargeOrNegative = 2

	fixedHeaderSize = 8 // base-seq + count + reference-time + feedback-packet-count, the fixed prefix of the FCI
)

type arrival struct {
	extSeq   uint32
	arrived  bool
	received time.Time
}

// Recorder accumulates per-packet arrival times between reporting instants.
// One Recorder is owned per media SSRC being forwarded; the scheduler drains
// it into FCI bytes each time it decides a transport-wide-cc report is due
// (the feedback-profile minimum covers FMT=15 the same as generic NACK).
type Recorder struct {
	mediaSSRC  uint32
	senderSSRC uint32

	cycles  uint8 // feedback packet count, wraps mod 256 per the wire format
	started bool
	lastSeq uint32

	entries    deque.Deque
	lastReport time.Time
}

// NewRecorder returns a Recorder for one media SSRC, reporting on behalf of
// senderSSRC (this module's own SSRC, per session.Database.OwnSSRC).
func NewRecorder(senderSSRC, mediaSSRC uint32) *Recorder {
	return &Recorder{senderSSRC: senderSSRC, mediaSSRC: mediaSSRC}
}

// Push records the arrival of extSeq (a cycle-extended sequence number;
// the runtime passes each media packet's extended RTP sequence number) at
// arrivedAt. Gaps since the last pushed sequence number are recorded as
// not-received so BuildFeedback can emit correct run lengths.
func (r *Recorder) Push(extSeq uint32, arrivedAt time.Time) {
	if !r.started {
		r.started = true
		r.lastSeq = extSeq
		if r.lastReport.IsZero() {
			r.lastReport = arrivedAt
		}
		r.entries.PushBack(arrival{extSeq: extSeq, arrived: true, received: arrivedAt})
		return
	}
	for seq := r.lastSeq + 1; seq < extSeq; seq++ {
		r.entries.PushBack(arrival{extSeq: seq})
	}
	r.entries.PushBack(arrival{extSeq: extSeq, arrived: true, received: arrivedAt})
	r.lastSeq = extSeq
}

// Due reports whether enough arrivals (or enough time, or a marked packet)
// have accumulated to justify building a report now: 100ms of span, or
// more than 100 pending entries, or 50ms since the last report when
// markerSeen is true.
func (r *Recorder) Due(now time.Time, markerSeen bool) bool {
	if r.entries.Len() == 0 {
		return false
	}
	if r.entries.Len() > 100 {
		return true
	}
	since := now.Sub(r.lastReport)
	if markerSeen && since >= tccReportDeltaAfterMark {
		return true
	}
	return since >= tccReportDelta
}

// BuildFeedback drains all accumulated arrivals into the FCI payload of a
// single transport-wide-cc feedback message (RTPFB, FMT=15), returning nil
// if nothing has arrived since the last call.
func (r *Recorder) BuildFeedback(now time.Time) []byte {
	n := r.entries.Len()
	if n == 0 {
		return nil
	}

	baseSeq := r.entries.Front().(arrival).extSeq
	var firstArrival time.Time
	for i := 0; i < n; i++ {
		if a := r.entries.At(i).(arrival); a.arrived {
			firstArrival = a.received
			break
		}
	}

	statuses := make([]uint8, 0, n)
	deltas := make([]int64, 0, n)
	var last time.Time
	haveLast := false
	for i := 0; i < n; i++ {
		a := r.entries.At(i).(arrival)
		if !a.arrived {
			statuses = append(statuses, statusTypeNotReceived)
			continue
		}
		if !haveLast {
			statuses = append(statuses, statusTypeSmallDelta)
			deltas = append(deltas, 0)
			last = a.received
			haveLast = true
			continue
		}
		d := a.received.Sub(last)
		last = a.received
		ticks := d / deltaScaleFactor
		if ticks >= -128 && ticks <= 127 {
			statuses = append(statuses, statusTypeSmallDelta)
		} else {
			statuses = append(statuses, statusTypeLargeOrNegative)
		}
		deltas = append(deltas, int64(ticks))
	}
	r.entries.Clear()
	r.lastReport = now

	fb := make([]byte, 0, fixedHeaderSize+len(statuses)/4+len(deltas)*2)
	fb = binary.BigEndian.AppendUint16(fb, uint16(baseSeq))
	fb = binary.BigEndian.AppendUint16(fb, uint16(n))
	fb = appendReferenceTime(fb, firstArrival)
	fb = append(fb, r.cycles)
	r.cycles++

	chunks := packStatusChunks(statuses)
	for _, c := range chunks {
		fb = binary.BigEndian.AppendUint16(fb, c)
	}
	for _, ticks := range deltas {
		if ticks >= -128 && ticks <= 127 {
			fb = append(fb, byte(int8(ticks)))
		} else {
			fb = binary.BigEndian.AppendUint16(fb, uint16(int16(clampDelta(ticks))))
		}
	}
	if len(fb)%4 != 0 {
		fb = append(fb, make([]byte, 4-len(fb)%4)...)
	}
	return fb
}

func clampDelta(ticks int64) int64 {
	if ticks > 32767 {
		return 32767
	}
	if ticks < -32768 {
		return -32768
	}
	return ticks
}

// appendReferenceTime packs t into the 24-bit, 64ms-resolution reference
// time field used by the transport-wide-cc FCI, matching pion/rtcp's
// TransportLayerCC reference-time encoding.
func appendReferenceTime(b []byte, t time.Time) []byte {
	if t.IsZero() {
		return append(b, 0, 0, 0)
	}
	const refResolution = 64 * time.Millisecond
	ticks := uint32(t.UnixNano()/int64(refResolution)) & 0x00ffffff
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], ticks<<8)
	return append(b, tmp[0], tmp[1], tmp[2])
}

// packStatusChunks compresses a run of per-packet status symbols into
// run-length chunks where a whole stretch shares a symbol, falling back to
// two-bit status-vector chunks (7 symbols/chunk) where it doesn't.
func packStatusChunks(statuses []uint8) []uint16 {
	var chunks []uint16
	i := 0
	for i < len(statuses) {
		runSym := statuses[i]
		run := 1
		for i+run < len(statuses) && statuses[i+run] == runSym && run < maxRunLength {
			run++
		}
		if run >= 7 || i+run == len(statuses) {
			chunks = append(chunks, runLengthChunk(runSym, run))
			i += run
			continue
		}
		vectorLen := 7
		if i+vectorLen > len(statuses) {
			vectorLen = len(statuses) - i
		}
		chunks = append(chunks, statusVectorChunk(statuses[i:i+vectorLen]))
		i += vectorLen
	}
	return chunks
}

func runLengthChunk(symbol uint8, run int) uint16 {
	return uint16(symbol&0x3)<<13 | uint16(run&statusVectorMaxEntries)
}

func statusVectorChunk(symbols []uint8) uint16 {
	chunk := uint16(1) << 15 // T=1 marks a status-vector chunk
	chunk |= uint16(1) << 14 // S=1: each symbol is 2 bits wide
	for i, s := range symbols {
		chunk |= uint16(s&0x3) << uint(12-2*i)
	}
	return chunk
}

// FeedbackMessage drains pending arrivals (see BuildFeedback) and wraps the
// result as a transport-layer feedback message ready for
// rtcppacket.ControlPacket.Marshal, or nil if nothing is due.
func (r *Recorder) FeedbackMessage(now time.Time) *rtcppacket.FeedbackTransportLayer {
	fci := r.BuildFeedback(now)
	if fci == nil {
		return nil
	}
	return &rtcppacket.FeedbackTransportLayer{
		FMT:        uint8(rtcp.FormatTCC),
		SenderSSRC: r.senderSSRC,
		MediaSSRC:  r.mediaSSRC,
		FCI:        fci,
	}
}
