package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/7956968/rtpcore/pkg/rtcppacket"
	"github.com/7956968/rtpcore/pkg/rtppacket"
)

func send(db *Database, ssrc uint32, seq uint16, ts uint32) {
	sendArrival(db, ssrc, seq, ts, ts)
}

func sendArrival(db *Database, ssrc uint32, seq uint16, ts, arrivalTicks uint32) {
	_, _ = db.OnMediaPacket(&rtppacket.Packet{Version: 2, SSRC: ssrc, SequenceNumber: seq, Timestamp: ts}, time.Now(), arrivalTicks)
}

func TestProbationThenValid(t *testing.T) {
	db := New(90000)
	send(db, 1, 100, 0)
	m, ok := db.Member(1)
	require.True(t, ok)
	require.Equal(t, StateProbation, m.State())

	send(db, 1, 101, 3000)
	// The validating packet is itself media from the member, so probation
	// ends directly in the sender state.
	require.Equal(t, StateSender, m.State())
	require.EqualValues(t, 2, m.received)
}

func TestProbationGapRestarts(t *testing.T) {
	db := New(90000)
	send(db, 1, 100, 0)
	send(db, 1, 105, 3000) // gap before reaching VALID restarts probation
	m, _ := db.Member(1)
	require.Equal(t, StateProbation, m.State())
}

func TestSequenceWrapIsInOrder(t *testing.T) {
	db := New(90000)
	send(db, 1, 0xFFFE, 0)
	send(db, 1, 0xFFFF, 3000)
	send(db, 1, 0x0000, 6000)
	m, _ := db.Member(1)
	require.Equal(t, StateSender, m.State())
	require.EqualValues(t, 1, m.cycles)
	require.EqualValues(t, 0x10000, m.ExtendedMaxSeq())
}

func TestJitterNeverDecreasesByMoreThanOneSixteenth(t *testing.T) {
	db := New(90000)
	send(db, 1, 100, 0)
	send(db, 1, 101, 3000)
	m, _ := db.Member(1)
	ts := uint32(6000)
	jitterWobble := []uint32{0, 50, 400, 5000}
	for i, wobble := range jitterWobble {
		before := m.Jitter
		ts += 3000
		sendArrival(db, 1, uint16(102+i), ts, ts+wobble)
		after := m.Jitter
		require.LessOrEqual(t, before-after, before/16+1e-9)
	}
}

func TestOwnSSRCCollisionDetected(t *testing.T) {
	db := New(90000)
	own := db.OwnSSRC
	ev, err := db.OnMediaPacket(&rtppacket.Packet{Version: 2, SSRC: own, SequenceNumber: 1}, time.Now(), 0)
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.Equal(t, own, ev.OldSSRC)

	newSSRC := db.ResolveCollision()
	require.NotEqual(t, own, newSSRC)
}

func TestReconsiderationRequiredAboveImmediateByeLimit(t *testing.T) {
	db := New(90000)
	require.False(t, db.ReconsiderationRequired())
	db.MemberCount = ImmediateByeLimit
	require.True(t, db.ReconsiderationRequired())
}

func TestByeRemovesMemberImmediatelyBelowImmediateByeLimit(t *testing.T) {
	db := New(90000)
	send(db, 1, 100, 0)
	send(db, 1, 101, 3000)
	_, ok := db.Member(1)
	require.True(t, ok)

	events := db.OnControlPacket(&rtcppacket.Bye{Sources: []uint32{1}})
	require.Len(t, events, 1)
	require.True(t, events[0].Removed)
	require.False(t, events[0].PendingRemoval)

	_, ok = db.Member(1)
	require.False(t, ok)
	require.EqualValues(t, 0, db.MemberCount)
}

func TestByeIsReconsideredAtOrAboveImmediateByeLimit(t *testing.T) {
	db := New(90000)
	send(db, 1, 100, 0)
	send(db, 1, 101, 3000)
	db.MemberCount = ImmediateByeLimit

	events := db.OnControlPacket(&rtcppacket.Bye{Sources: []uint32{1}})
	require.Len(t, events, 1)
	require.True(t, events[0].PendingRemoval)
	require.False(t, events[0].Removed)

	m, ok := db.Member(1)
	require.True(t, ok)
	require.Equal(t, StateLeaving, m.State())

	// Still present until the caller commits a deadline and it elapses.
	now := time.Now()
	require.Empty(t, db.SweepByeDeadlines(now))
	_, ok = db.Member(1)
	require.True(t, ok)

	db.ScheduleByeRemoval(1, now.Add(-time.Millisecond))
	removed := db.SweepByeDeadlines(now)
	require.Equal(t, []uint32{1}, removed)
	_, ok = db.Member(1)
	require.False(t, ok)
}

func TestLostCountComputation(t *testing.T) {
	db := New(90000)
	send(db, 1, 100, 0)
	send(db, 1, 101, 3000) // now valid; baseSeq is 100, set when probation began
	m, _ := db.Member(1)
	// Simulate a gap after validity: sequence 102 missing, 103 arrives.
	send(db, 1, 103, 9000)
	require.Greater(t, m.LostCount(), int32(0))
}

func TestReorderedNewPacketCountsOnce(t *testing.T) {
	db := New(90000)
	send(db, 1, 100, 0)
	send(db, 1, 101, 3000)
	send(db, 1, 103, 9000) // 102 still in flight
	m, _ := db.Member(1)
	require.EqualValues(t, 3, m.received)
	require.EqualValues(t, 0, m.Duplicates)
	require.EqualValues(t, 1, m.LostCount())

	send(db, 1, 102, 6000) // late arrival fills the gap: received, not duplicate
	require.EqualValues(t, 4, m.received)
	require.EqualValues(t, 0, m.Duplicates)
	require.EqualValues(t, 0, m.LostCount())

	send(db, 1, 102, 6000) // exact copy of the late arrival
	require.EqualValues(t, 4, m.received)
	require.EqualValues(t, 1, m.Duplicates)

	send(db, 1, 103, 9000) // exact copy of the running maximum
	require.EqualValues(t, 4, m.received)
	require.EqualValues(t, 2, m.Duplicates)

	// Unique arrivals plus losses always cover the cycle-extended span;
	// duplicates never inflate it.
	require.EqualValues(t, int64(m.ExpectedCount()), int64(m.received)+int64(m.LostCount()))
}

func TestExtendedSeqMapsReorderedArrivalToGap(t *testing.T) {
	db := New(90000)
	send(db, 1, 0xFFFE, 0)
	send(db, 1, 0xFFFF, 3000)
	send(db, 1, 0x0001, 9000) // wraps; 0x0000 still in flight
	m, _ := db.Member(1)
	require.EqualValues(t, 0x10001, m.ExtendedMaxSeq())
	require.EqualValues(t, 0x10000, m.ExtendedSeq(0x0000))
	require.EqualValues(t, 0x0FFFF, m.ExtendedSeq(0xFFFF))
	require.EqualValues(t, 0x10001, m.ExtendedSeq(0x0001))
}
