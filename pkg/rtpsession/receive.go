package rtpsession

import (
	"context"
	"time"

	"github.com/7956968/rtpcore/pkg/codecs"
	"github.com/7956968/rtpcore/pkg/lossdetect"
	"github.com/7956968/rtpcore/pkg/multipath"
	"github.com/7956968/rtpcore/pkg/ntptime"
	"github.com/7956968/rtpcore/pkg/playout"
	"github.com/7956968/rtpcore/pkg/rtcppacket"
	"github.com/7956968/rtpcore/pkg/rtppacket"
	"github.com/7956968/rtpcore/pkg/session"
)

// receiveLoop blocks on the transport's Receive and posts each datagram to
// the executor as a single job, so demultiplexing and database mutation
// never race with Send/Stop.
func (r *Runtime) receiveLoop(ctx context.Context) {
	for {
		datagram, err := r.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.post(func() { r.reportFault(err) })
			continue
		}
		r.post(func() { r.onDatagram(datagram.Payload, datagram.Arrival) })
	}
}

func (r *Runtime) reportFault(err error) {
	if r.callbacks.OnTransportFault != nil {
		r.callbacks.OnTransportFault(err)
	}
}

// onDatagram classifies an inbound buffer as RTP or RTCP by the first
// payload-type byte (RFC 5761 §4 de-multiplexing: RTCP packet types
// [192,223] read as payload types [64,95] once the marker bit is masked
// off) and dispatches accordingly.
func (r *Runtime) onDatagram(payload []byte, arrival time.Time) {
	if len(payload) < 2 {
		return
	}
	pt := payload[1] & 0x7F
	if pt >= 64 && pt <= 95 {
		r.onControlDatagram(payload, arrival)
		return
	}
	r.onMediaDatagram(payload, arrival)
}

// discardInvalid counts a datagram dropped for wire-format or validation
// reasons. These recover locally; only transport faults reach the error
// callback.
func (r *Runtime) discardInvalid(err error) {
	r.db.InvalidPackets++
	r.logger.V(1).Info("discarding invalid packet", "err", err)
}

func (r *Runtime) onMediaDatagram(payload []byte, arrival time.Time) {
	pkt := &rtppacket.Packet{}
	if err := pkt.Unmarshal(payload); err != nil {
		r.discardInvalid(err)
		return
	}

	if r.multipathTr != nil {
		if tag, ok, err := r.multipathTr.Strip(pkt); err == nil && ok {
			r.onSubflowMediaPacket(pkt, tag, arrival)
			return
		}
	}

	arrivalTicks := ntptime.MediaClock(time.Duration(arrival.UnixNano()), r.cfg.ClockRate)
	collision, err := r.db.OnMediaPacket(pkt, arrival, arrivalTicks)
	if err != nil {
		r.discardInvalid(err)
		return
	}
	if collision != nil {
		collision.NewSSRC = r.db.ResolveCollision()
		r.sched.Reset()
		r.logger.Info("ssrc collision resolved", "old", collision.OldSSRC, "new", collision.NewSSRC)
		if err := r.sendByeFor(collision.OldSSRC); err != nil {
			r.reportFault(err)
		}
		return
	}

	m, _ := r.db.Member(pkt.SSRC)
	extSeq := m.ExtendedSeq(pkt.SequenceNumber)
	for _, evt := range r.detectorFor(pkt.SSRC).OnArrival(arrival, extSeq) {
		r.dispatchLossEvent(pkt.SSRC, evt)
	}
	if r.cfg.IsFeedbackProfile() {
		r.twccRecorderFor(pkt.SSRC).Push(extSeq, arrival)
	}

	groups := r.playoutBuf.Push(playout.Packet{
		SSRC:           pkt.SSRC,
		SequenceNumber: pkt.SequenceNumber,
		Timestamp:      pkt.Timestamp,
		Payload:        pkt.Payload,
	}, arrival, arrival.Add(r.playoutDeadline()))
	r.emitGroups(groups)
}

// multipathMemberFor returns (creating if absent) the multipath wrapper
// around ssrc's session-wide member record, registering the underlying
// Member with the database on first sight so the source is part of the
// membership. Tagged packets advance only the per-subflow records; they do
// not update the session-wide Member's sequence or jitter statistics.
func (r *Runtime) multipathMemberFor(ssrc uint32) *session.MultipathMember {
	if mm, ok := r.multipathMembers[ssrc]; ok {
		return mm
	}
	m, ok := r.db.Member(ssrc)
	if !ok {
		// First sighting of this source arrives tagged; register an empty
		// probationary member so the database tracks it too.
		r.db.OnMediaPacket(&rtppacket.Packet{Version: 2, SSRC: ssrc}, time.Time{}, 0)
		m, _ = r.db.Member(ssrc)
	}
	mm := session.NewMultipathMember(m)
	r.multipathMembers[ssrc] = mm
	return mm
}

// onSubflowMediaPacket handles one packet arriving tagged with a subflow
// id: the subflow's own member record advances under its subflow-specific
// sequence space, the per-subflow loss detector observes the arrival, and
// the stripped packet then joins the shared playout buffer where groups
// re-form across subflows by media timestamp.
func (r *Runtime) onSubflowMediaPacket(pkt *rtppacket.Packet, tag rtppacket.SubflowTag, arrival time.Time) {
	mm := r.multipathMemberFor(pkt.SSRC)
	arrivalTicks := ntptime.MediaClock(time.Duration(arrival.UnixNano()), r.cfg.ClockRate)
	mm.OnSubflowPacket(tag.SubflowID, tag.SubflowSequenceNumber, arrivalTicks, pkt.Timestamp)

	// Subflow loss events carry subflow-specific sequence numbers, so they
	// surface to the caller but never feed the session-wide NACK queue.
	sf := mm.Subflow(tag.SubflowID)
	for _, evt := range r.mpDetectorFor(pkt.SSRC).OnArrival(tag.SubflowID, arrival, sf.ExtendedSeq(tag.SubflowSequenceNumber)) {
		if r.callbacks.OnAssumedLoss != nil {
			r.callbacks.OnAssumedLoss(evt)
		}
	}

	groups := r.playoutBuf.Push(playout.Packet{
		SSRC:           pkt.SSRC,
		SequenceNumber: pkt.SequenceNumber,
		Timestamp:      pkt.Timestamp,
		Payload:        pkt.Payload,
	}, arrival, arrival.Add(r.playoutDeadline()))
	r.emitGroups(groups)
}

func (r *Runtime) mpDetectorFor(ssrc uint32) *lossdetect.MultipathDetector {
	d, ok := r.mpDetectors[ssrc]
	if !ok {
		d = lossdetect.NewMultipathDetector(r.mpRouting, r.predictors)
		r.mpDetectors[ssrc] = d
	}
	return d
}

func (r *Runtime) emitGroups(groups []playout.Group) {
	if r.callbacks.OnIncomingMedia == nil {
		return
	}
	for _, g := range groups {
		packets := make([]codecs.ReceivedPacket, len(g.Packets))
		for i, p := range g.Packets {
			packets[i] = codecs.ReceivedPacket{Payload: p.Payload, SequenceNumber: uint32(p.SequenceNumber)}
		}
		samples, err := r.packetizer.Depacketize(packets)
		if err != nil {
			r.discardInvalid(err)
			r.reportGroupLoss(g)
			continue
		}
		r.callbacks.OnIncomingMedia(samples, g)
	}
}

func (r *Runtime) onControlDatagram(payload []byte, arrival time.Time) {
	compound, err := rtcppacket.ParseCompound(payload, rtcppacket.ParseOptions{Relaxed: r.cfg.ReducedSizeControl})
	if err != nil {
		r.discardInvalid(err)
		return
	}
	r.applyControlCompound(compound, arrival)
}

func (r *Runtime) applyControlCompound(compound *rtcppacket.CompoundControlPacket, arrival time.Time) {
	for _, pkt := range compound.Packets {
		if w, ok := pkt.(*rtcppacket.MultipathWrapper); ok {
			r.onMultipathControl(w, arrival)
			continue
		}
		events := r.db.OnControlPacket(pkt)
		for _, evt := range events {
			if evt.Removed {
				r.onMemberRemoved(evt.SSRC)
				continue
			}
			if evt.PendingRemoval {
				delay := time.Duration(r.sched.NextInterval(r.schedulerParams()) * float64(time.Second))
				r.db.ScheduleByeRemoval(evt.SSRC, arrival.Add(delay))
			}
			if r.callbacks.OnMemberUpdate != nil {
				r.callbacks.OnMemberUpdate(evt)
			}
		}
		if r.callbacks.OnIncomingControl != nil {
			r.callbacks.OnIncomingControl(pkt)
		}
	}
}

// playoutDeadline returns the group deadline handed to the playout buffer:
// the fixed defaultPlayoutDeadline for every sender. It is not derived
// from sender reports, round-trip time or jitter.
func (r *Runtime) playoutDeadline() time.Duration {
	return defaultPlayoutDeadline
}

const defaultPlayoutDeadline = 200 * time.Millisecond

func (r *Runtime) detectorFor(ssrc uint32) *lossdetect.Detector {
	d, ok := r.detectors[ssrc]
	if !ok {
		d = lossdetect.NewDetector(r.predictors())
		r.detectors[ssrc] = d
	}
	return d
}

// onMultipathControl demultiplexes a MultipathWrapper: each nested
// per-subflow compound is parsed and applied as if it had arrived on its
// own, so per-subflow SR/RR state lands on the same database entries the
// media path maintains. Interface advertisements are surfaced to the
// caller unparsed.
func (r *Runtime) onMultipathControl(w *rtcppacket.MultipathWrapper, arrival time.Time) {
	if w.ReportType != rtcppacket.MPSubflowSpecificReport {
		if r.callbacks.OnIncomingControl != nil {
			r.callbacks.OnIncomingControl(w)
		}
		return
	}
	nested, err := multipath.Demux(w)
	if err != nil {
		r.discardInvalid(err)
		return
	}
	for _, body := range nested {
		compound, err := rtcppacket.ParseCompound(body, rtcppacket.ParseOptions{Relaxed: true})
		if err != nil {
			r.discardInvalid(err)
			continue
		}
		r.applyControlCompound(compound, arrival)
	}
}

// sendByeFor emits an immediate BYE compound for ssrc, used when a
// collision forces this session to abandon its previous identity.
func (r *Runtime) sendByeFor(ssrc uint32) error {
	compound := &rtcppacket.CompoundControlPacket{Packets: []rtcppacket.ControlPacket{
		&rtcppacket.ReceiverReport{SSRC: r.db.OwnSSRC},
		&rtcppacket.Bye{Sources: []uint32{ssrc}},
	}}
	body, err := compound.Marshal()
	if err != nil {
		return err
	}
	return r.transport.Send(r.sendCtx, r.remote, body)
}

// reportGroupLoss raises the loss event a discarded partial unit calls
// for: the depacketizer found a gap or type mismatch inside an emitted
// group, so the group is surfaced as assumed lost, anchored at its first
// sequence number.
func (r *Runtime) reportGroupLoss(g playout.Group) {
	if len(g.Packets) == 0 {
		return
	}
	first := g.Packets[0]
	ext := uint32(first.SequenceNumber)
	if m, ok := r.db.Member(first.SSRC); ok {
		ext = m.ExtendedSeq(first.SequenceNumber)
	}
	r.dispatchLossEvent(first.SSRC, lossdetect.Event{Kind: lossdetect.EventAssumedLost, SequenceNumber: ext})
}
