package session

import (
	"math/rand"
	"time"

	"github.com/7956968/rtpcore/pkg/errkind"
	"github.com/7956968/rtpcore/pkg/ntptime"
	"github.com/7956968/rtpcore/pkg/rtcppacket"
	"github.com/7956968/rtpcore/pkg/rtppacket"
)

// CollisionEvent is emitted when a member's own synchronization source is
// observed from a foreign endpoint. The runtime is expected to regenerate
// its SSRC and send a BYE for OldSSRC.
type CollisionEvent struct {
	OldSSRC uint32
	NewSSRC uint32
}

// MemberEvent reports a membership-affecting transition for the runtime's
// on_member_update callback.
type MemberEvent struct {
	SSRC    uint32
	Removed bool

	// PendingRemoval is set on a BYE that large membership forced into
	// reconsideration: the member is not yet gone, and the caller must
	// commit a removal deadline via ScheduleByeRemoval.
	PendingRemoval bool
}

// Database is the per-session participant table: membership tracking,
// sender/receiver statistics and the timing state the report scheduler
// needs. It is not safe for concurrent use; callers serialize access on
// the session's single event executor.
type Database struct {
	OwnSSRC uint32
	clockRateHz uint32

	members map[uint32]*Member

	// byeDeadlines holds the wall-clock instant a BYE'd member under
	// reconsideration (see ReconsiderationRequired) may actually be
	// removed; populated by the runtime via ScheduleByeRemoval and
	// drained by SweepByeDeadlines.
	byeDeadlines map[uint32]time.Time

	MemberCount uint32
	SenderCount uint32

	// InvalidPackets counts datagrams dropped for wire-format or
	// validation failures, per the invalid-packet statistic the error
	// model calls for.
	InvalidPackets uint64

	AverageControlSize float64
	PreviousReportTime ntptime.Timestamp
	NextReportTime     ntptime.Timestamp
	Initial            bool

	rand func() uint32
}

// New constructs an empty session database with a freshly chosen
// synchronization source.
func New(clockRateHz uint32) *Database {
	d := &Database{
		clockRateHz:  clockRateHz,
		members:      make(map[uint32]*Member),
		byeDeadlines: make(map[uint32]time.Time),
		Initial:      true,
		rand:         rand.Uint32,
	}
	d.OwnSSRC = d.rand()
	return d
}

// Members returns the live member set, keyed by SSRC. Callers must not
// retain the map across a mutating call.
func (d *Database) Members() map[uint32]*Member { return d.members }

// Member looks up a member by SSRC.
func (d *Database) Member(ssrc uint32) (*Member, bool) {
	m, ok := d.members[ssrc]
	return m, ok
}

func (d *Database) getOrCreate(ssrc uint32) *Member {
	m, ok := d.members[ssrc]
	if !ok {
		m = NewMember(ssrc)
		d.members[ssrc] = m
		d.MemberCount++
	}
	return m
}

// OnMediaPacket validates and applies one received media packet.
// arrivalWallClock is the local receipt time; rtpArrivalTicks is
// arrivalWallClock expressed in the stream's clock-rate ticks, comparable
// to pkt.Timestamp for jitter computation.
//
// It returns a non-nil *CollisionEvent when the packet carries the
// session's own SSRC from an endpoint other than the owner; the caller
// regenerates OwnSSRC via ResolveCollision and emits a BYE for the old one.
func (d *Database) OnMediaPacket(pkt *rtppacket.Packet, arrivalWallClock time.Time, rtpArrivalTicks uint32) (*CollisionEvent, error) {
	if pkt.Version != 2 {
		d.InvalidPackets++
		return nil, errkind.New(errkind.Validation, errBadVersion)
	}
	if pkt.SSRC == d.OwnSSRC {
		return &CollisionEvent{OldSSRC: d.OwnSSRC}, nil
	}

	m := d.getOrCreate(pkt.SSRC)
	if !m.onSequentialPacket(pkt.SequenceNumber) {
		return nil, nil
	}
	m.updateJitter(rtpArrivalTicks, pkt.Timestamp)
	m.markActiveSender()
	if m.state == StateValid {
		m.state = StateSender
	}
	return nil, nil
}

// ResolveCollision regenerates OwnSSRC after a collision is detected and
// returns the newly chosen value.
func (d *Database) ResolveCollision() uint32 {
	d.OwnSSRC = d.rand()
	return d.OwnSSRC
}

// OnControlPacket applies one decoded control packet from a compound to
// the database. It returns a MemberEvent when the packet causes a
// membership change worth surfacing (new member via SDES, or BYE).
func (d *Database) OnControlPacket(pkt rtcppacket.ControlPacket) []MemberEvent {
	var events []MemberEvent
	switch p := pkt.(type) {
	case *rtcppacket.SenderReport:
		m := d.getOrCreate(p.SSRC)
		m.LastSRMiddle32 = ntptime.Timestamp(p.NTPTime).Middle32()
		m.LastSRArrival = ntptime.Now()
	case *rtcppacket.ReceiverReport:
		d.getOrCreate(p.SSRC)
	case *rtcppacket.SourceDescription:
		for _, chunk := range p.Chunks {
			_, existed := d.members[chunk.Source]
			m := d.getOrCreate(chunk.Source)
			applySDESItems(m, chunk.Items)
			if !existed {
				events = append(events, MemberEvent{SSRC: chunk.Source})
			}
		}
	case *rtcppacket.Bye:
		for _, ssrc := range p.Sources {
			if _, ok := d.members[ssrc]; !ok {
				continue
			}
			if d.ReconsiderationRequired() {
				d.members[ssrc].MarkBye()
				events = append(events, MemberEvent{SSRC: ssrc, PendingRemoval: true})
				continue
			}
			delete(d.members, ssrc)
			d.MemberCount--
			delete(d.byeDeadlines, ssrc)
			events = append(events, MemberEvent{SSRC: ssrc, Removed: true})
		}
	case *rtcppacket.ExtendedReport:
		d.applyXR(p)
	}
	return events
}

func applySDESItems(m *Member, items []rtcppacket.SDESItem) {
	for _, it := range items {
		switch it.Type {
		case rtcppacket.SDESCNAME:
			m.CNAME = it.Text
		case rtcppacket.SDESName:
			m.Name = it.Text
		case rtcppacket.SDESEmail:
			m.Email = it.Text
		case rtcppacket.SDESPhone:
			m.Phone = it.Text
		case rtcppacket.SDESLocation:
			m.Location = it.Text
		case rtcppacket.SDESTool:
			m.Tool = it.Text
		case rtcppacket.SDESNote:
			m.Note = it.Text
		case rtcppacket.SDESPriv:
			m.Private = it.Text
		}
	}
}

func (d *Database) applyXR(xr *rtcppacket.ExtendedReport) {
	m, ok := d.members[xr.SSRC]
	if !ok {
		return
	}
	for _, b := range xr.Blocks {
		if b.Type == rtcppacket.XRBlockReceiverReferenceTime {
			if rrt, err := rtcppacket.DecodeReceiverReferenceTime(b); err == nil {
				m.LastRRTime = ntptime.Timestamp(rrt.NTPTimestamp)
			}
		}
	}
}

// Sweep advances every non-leaving member's silence counter by one control
// interval, removing members that have gone Inactive. Members pending a
// reconsidered BYE removal are left alone here; SweepByeDeadlines handles
// those on its own, finer-grained schedule. It returns the SSRCs removed
// this tick.
func (d *Database) Sweep() []uint32 {
	var removed []uint32
	for ssrc, m := range d.members {
		if m.state == StateLeaving {
			continue
		}
		m.tickSilence()
		if m.state == StateInactive {
			removed = append(removed, ssrc)
			delete(d.members, ssrc)
			d.MemberCount--
		}
	}
	return removed
}

// ReconsiderationRequired reports whether a BYE (ours or a member's) must
// be delayed and re-randomized rather than acted on immediately. Below
// ImmediateByeLimit members a BYE is applied at once; at or above it, the
// caller must compute a fresh reporting interval and hold the removal
// until it elapses, so a mass departure doesn't collapse into a report
// storm.
func (d *Database) ReconsiderationRequired() bool {
	return d.MemberCount >= ImmediateByeLimit
}

// ScheduleByeRemoval records that a member already marked LEAVING by a
// reconsidered BYE must not be removed before at. The runtime computes at
// from a freshly drawn reporting interval once ReconsiderationRequired
// reports true for that BYE.
func (d *Database) ScheduleByeRemoval(ssrc uint32, at time.Time) {
	d.byeDeadlines[ssrc] = at
}

// SweepByeDeadlines removes every member whose reconsidered BYE deadline
// has passed as of now, returning the removed SSRCs. Called on the
// runtime's fine-grained tick so a large session's departures are cleared
// promptly after their reconsidered interval rather than snapped to the
// next scheduled report.
func (d *Database) SweepByeDeadlines(now time.Time) []uint32 {
	var removed []uint32
	for ssrc, deadline := range d.byeDeadlines {
		if now.Before(deadline) {
			continue
		}
		delete(d.byeDeadlines, ssrc)
		if _, ok := d.members[ssrc]; ok {
			delete(d.members, ssrc)
			d.MemberCount--
		}
		removed = append(removed, ssrc)
	}
	return removed
}

// RemoveMember deletes a member, and any reconsidered BYE deadline held for
// it, immediately.
func (d *Database) RemoveMember(ssrc uint32) {
	if _, ok := d.members[ssrc]; ok {
		delete(d.members, ssrc)
		d.MemberCount--
	}
	delete(d.byeDeadlines, ssrc)
}

// UpdateAverageControlSize applies the exponential smoothing rule the
// scheduler's avg_size input needs (RFC 3550 §6.3.3): new readings count
// for 1/16th of the running average.
func (d *Database) UpdateAverageControlSize(packetSizeBytes int) {
	if d.AverageControlSize == 0 {
		d.AverageControlSize = float64(packetSizeBytes)
		return
	}
	d.AverageControlSize += (float64(packetSizeBytes) - d.AverageControlSize) / 16
}

// CountSenders recomputes SenderCount from the current membership plus
// whether the local session itself is sending, the scheduler's sender
// count input.
func (d *Database) CountSenders(localIsSender bool) uint32 {
	n := uint32(0)
	for _, m := range d.members {
		if m.ActiveSender() {
			n++
		}
	}
	if localIsSender {
		n++
	}
	d.SenderCount = n
	return n
}
