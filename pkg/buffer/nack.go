package buffer

import (
	"sort"

	"github.com/pion/rtcp"
)

// MaxNackAttempts bounds how many times this module will ask for the same
// sequence number before giving up on it: Pairs drops a gap once it has
// been requested this many times and reports it as exhausted.
const MaxNackAttempts = 3

// MaxNackCacheSize bounds the queue so a long-silent source can't grow it
// unbounded.
const MaxNackCacheSize = 100

type nackEntry struct {
	sn      uint32 // cycle-extended
	nacked  uint8
}

// NackQueue tracks gaps awaiting retransmission and compresses them into
// RFC 4585 §4.2 NackPair FCI entries on demand. The same shape serves both
// a single-path SSRC's loss and a multipath subflow's retransmission
// bookkeeping.
type NackQueue struct {
	entries []nackEntry
}

// NewNackQueue returns an empty queue.
func NewNackQueue() *NackQueue {
	return &NackQueue{entries: make([]nackEntry, 0, MaxNackCacheSize+1)}
}

// Push records a newly observed gap at the cycle-extended sequence number.
func (q *NackQueue) Push(extSN uint32) {
	i := sort.Search(len(q.entries), func(i int) bool { return q.entries[i].sn >= extSN })
	if i < len(q.entries) && q.entries[i].sn == extSN {
		return
	}
	entry := nackEntry{sn: extSN}
	q.entries = append(q.entries, nackEntry{})
	copy(q.entries[i+1:], q.entries[i:])
	q.entries[i] = entry
	if len(q.entries) >= MaxNackCacheSize {
		copy(q.entries, q.entries[1:])
		q.entries = q.entries[:len(q.entries)-1]
	}
}

// Remove drops a sequence number once it has arrived (normally or via
// retransmission).
func (q *NackQueue) Remove(extSN uint32) {
	i := sort.Search(len(q.entries), func(i int) bool { return q.entries[i].sn >= extSN })
	if i >= len(q.entries) || q.entries[i].sn != extSN {
		return
	}
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
}

// Pairs builds the NackPair FCI entries for every gap not yet at
// MaxNackAttempts, incrementing each one's attempt counter, and returns
// whether any gap has now exhausted its attempts (the caller's cue to fall
// back to a different recovery strategy, e.g. requesting a fresh key unit
// for media that supports one).
func (q *NackQueue) Pairs() ([]rtcp.NackPair, bool) {
	if len(q.entries) == 0 {
		return nil, false
	}
	exhausted := false
	kept := q.entries[:0]
	var pairs []rtcp.NackPair
	var cur rtcp.NackPair
	haveCur := false

	for _, e := range q.entries {
		if e.nacked >= MaxNackAttempts {
			exhausted = true
			continue
		}
		e.nacked++
		kept = append(kept, e)

		sn16 := uint16(e.sn)
		if !haveCur || sn16 > cur.PacketID+16 {
			if haveCur {
				pairs = append(pairs, cur)
			}
			cur = rtcp.NackPair{PacketID: sn16}
			haveCur = true
			continue
		}
		cur.LostPackets |= 1 << (sn16 - cur.PacketID - 1)
	}
	if haveCur {
		pairs = append(pairs, cur)
	}
	q.entries = kept
	return pairs, exhausted
}
