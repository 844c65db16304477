// Package playout orders media packets by sequence number within a
// presentation-time group and emits each group when it is either
// superseded by a later-timestamp arrival or its deadline elapses. Groups
// are keyed by RTP timestamp, flushed on a newer-timestamp arrival, with
// the deadline computation left to the caller (typically derived from the
// round-trip and jitter estimate from the sender-report pair).
package playout

import (
	"sort"
	"time"

	"github.com/7956968/rtpcore/pkg/ntptime"
)

// Packet is one media packet as handed to the playout buffer: a payload
// plus the ordering key (sequence number), the group key (timestamp) and
// the source it belongs to.
type Packet struct {
	SSRC           uint32
	SequenceNumber uint16
	Timestamp      uint32
	Payload        []byte
	Late           bool
}

// Group is one emitted presentation-time group: every contained packet
// shares Timestamp, the media timestamp that labels the group.
type Group struct {
	Timestamp uint32
	Packets   []Packet
	TimedOut  bool
}

type pendingGroup struct {
	timestamp uint32
	deadline  time.Time
	packets   []Packet
}

// Buffer accumulates packets into presentation-time groups and emits them
// in timestamp order.
type Buffer struct {
	pending []*pendingGroup // ascending modular timestamp order

	hasEmitted      bool
	lastEmittedTime uint32

	// LateArrival is called for a packet that belongs to an already-
	// emitted group: annotated late and discarded from the main path,
	// though the loss detector is still notified. It may be nil.
	LateArrival func(pkt Packet)
}

// New returns an empty playout buffer.
func New() *Buffer {
	return &Buffer{}
}

// Push adds one received packet. newGroupDeadline is consulted only when
// the packet starts a new presentation-time group, and should be computed
// by the caller from the current round-trip + jitter estimate. Any
// presentation-time groups strictly older than pkt's timestamp are
// returned for emission, in ascending timestamp order.
func (b *Buffer) Push(pkt Packet, arrivalTime time.Time, newGroupDeadline time.Time) []Group {
	if len(pkt.Payload) == 0 {
		return nil
	}

	if b.hasEmitted && !ntptime.IsLaterTimestamp(b.lastEmittedTime, pkt.Timestamp) {
		// At or before the last emitted group's timestamp: too late for the
		// main path.
		pkt.Late = true
		if b.LateArrival != nil {
			b.LateArrival(pkt)
		}
		return nil
	}

	g := b.groupFor(pkt.Timestamp, newGroupDeadline)
	g.packets = append(g.packets, pkt)

	return b.flushOlderThan(pkt.Timestamp)
}

func (b *Buffer) groupFor(ts uint32, deadline time.Time) *pendingGroup {
	for _, g := range b.pending {
		if g.timestamp == ts {
			return g
		}
	}
	g := &pendingGroup{timestamp: ts, deadline: deadline}
	b.pending = append(b.pending, g)
	sort.SliceStable(b.pending, func(i, j int) bool {
		return ntptime.IsLaterTimestamp(b.pending[i].timestamp, b.pending[j].timestamp)
	})
	return g
}

// flushOlderThan emits (and removes) every pending group strictly older
// than ts, in ascending order.
func (b *Buffer) flushOlderThan(ts uint32) []Group {
	var out []Group
	var keep []*pendingGroup
	for _, g := range b.pending {
		if g.timestamp != ts && ntptime.IsLaterTimestamp(g.timestamp, ts) {
			// g is older than ts (ts is later than g).
			out = append(out, b.emit(g, false))
			continue
		}
		keep = append(keep, g)
	}
	b.pending = keep
	return out
}

func (b *Buffer) emit(g *pendingGroup, timedOut bool) Group {
	sort.Slice(g.packets, func(i, j int) bool {
		return ntptime.IsLaterSequence(g.packets[i].SequenceNumber, g.packets[j].SequenceNumber)
	})
	b.hasEmitted = true
	b.lastEmittedTime = g.timestamp
	return Group{Timestamp: g.timestamp, Packets: g.packets, TimedOut: timedOut}
}

// Tick emits any pending group whose deadline has elapsed, in ascending
// timestamp order, oldest first.
func (b *Buffer) Tick(now time.Time) []Group {
	var out []Group
	var keep []*pendingGroup
	for _, g := range b.pending {
		if !now.Before(g.deadline) {
			out = append(out, b.emit(g, true))
			continue
		}
		keep = append(keep, g)
	}
	b.pending = keep
	return out
}

// Pending returns the number of presentation-time groups awaiting
// emission, for instrumentation.
func (b *Buffer) Pending() int { return len(b.pending) }
