package rtpsession

import (
	"time"

	"github.com/7956968/rtpcore/pkg/config"
	"github.com/7956968/rtpcore/pkg/multipath"
	"github.com/7956968/rtpcore/pkg/ntptime"
	"github.com/7956968/rtpcore/pkg/rtcppacket"
	"github.com/7956968/rtpcore/pkg/scheduler"
)

// schedulerParams derives the scheduler.Params snapshot from current
// database/session-config state.
func (r *Runtime) schedulerParams() scheduler.Params {
	profile := scheduler.ProfileAudioVideo
	if r.cfg.IsFeedbackProfile() {
		profile = scheduler.ProfileAudioVideoFeedback
	}
	isSender := r.packets > 0
	return scheduler.Params{
		IsSender:                 isSender,
		SenderCount:              r.db.CountSenders(isSender),
		MemberCount:              r.db.MemberCount + 1,
		AverageControlSize:       r.db.AverageControlSize,
		SessionBandwidthKbps:     uint32(r.cfg.SessionBandwidthKbps),
		PointToPoint:             r.cfg.PointToPoint,
		Profile:                  profile,
		ReducedMinimumNegotiated: r.cfg.ReducedSizeControl,
	}
}

// ownReceiverReport builds this session's own RR/SR (SR once the session
// has sent at least one media packet, per RFC 3550 §6.4) covering every
// tracked remote member.
func (r *Runtime) ownReceiverReport() rtcppacket.ControlPacket {
	blocks := r.reportBlocks()
	if r.packets > 0 {
		return &rtcppacket.SenderReport{
			SSRC:        r.db.OwnSSRC,
			NTPTime:     uint64(ntptime.Now()),
			RTPTime:     r.ownTS,
			PacketCount: r.packets,
			OctetCount:  r.octets,
			Reports:     blocks,
		}
	}
	return &rtcppacket.ReceiverReport{SSRC: r.db.OwnSSRC, Reports: blocks}
}

func (r *Runtime) reportBlocks() []rtcppacket.ReportBlock {
	members := r.db.Members()
	blocks := make([]rtcppacket.ReportBlock, 0, len(members))
	for _, m := range members {
		if !m.IsValid() {
			continue
		}
		var delay uint32
		if m.LastSRMiddle32 != 0 {
			delay = uint32(ntptime.Now().Sub(m.LastSRArrival).Seconds() * 65536)
		}
		blocks = append(blocks, rtcppacket.ReportBlock{
			SSRC:               m.SSRC,
			FractionLost:       m.FractionLost(),
			CumulativeLost:     m.LostCount(),
			ExtendedHighestSeq: m.ExtendedMaxSeq(),
			Jitter:             uint32(m.Jitter),
			LastSR:             m.LastSRMiddle32,
			DelaySinceLastSR:   delay,
		})
		m.UpdateIntervalSnapshot()
	}
	return blocks
}

// sendReport marshals and transmits the compound control packet due at a
// deterministic or reconsidered report instant, updating the
// average-control-size smoothing input.
func (r *Runtime) sendReport() error {
	var packets []rtcppacket.ControlPacket
	packets = append(packets, r.ownReceiverReport())
	if xr := r.extendedReport(); xr != nil {
		packets = append(packets, xr)
	}
	if w := r.multipathReportWrapper(time.Now()); w != nil {
		packets = append(packets, w)
	}
	compound := &rtcppacket.CompoundControlPacket{Packets: packets}
	body, err := compound.Marshal()
	if err != nil {
		return err
	}
	r.db.UpdateAverageControlSize(len(body))
	return r.transport.Send(r.sendCtx, r.remote, body)
}

// multipathReportWrapper builds the MultipathWrapper compounded onto a
// report when multipath is active: one nested compound per subflow that is
// due by its own embedded scheduler, each carrying report blocks drawn
// from that subflow's member state.
func (r *Runtime) multipathReportWrapper(now time.Time) rtcppacket.ControlPacket {
	if r.multipathTr == nil {
		return nil
	}

	blocksBySubflow := make(map[uint16][]rtcppacket.ReportBlock)
	for _, mm := range r.multipathMembers {
		for id, sf := range mm.Subflows() {
			if !sf.IsValid() {
				continue
			}
			blocksBySubflow[id] = append(blocksBySubflow[id], rtcppacket.ReportBlock{
				SSRC:               sf.SSRC,
				FractionLost:       sf.FractionLost(),
				CumulativeLost:     sf.LostCount(),
				ExtendedHighestSeq: sf.ExtendedMaxSeq(),
				Jitter:             uint32(sf.Jitter),
			})
			sf.UpdateIntervalSnapshot()
		}
	}

	nested := make(map[uint16][]byte, len(blocksBySubflow))
	for id, blocks := range blocksBySubflow {
		if due, ok := r.mpNextDue[id]; ok && now.Before(due) {
			continue
		}
		rr := &rtcppacket.ReceiverReport{SSRC: r.db.OwnSSRC, Reports: blocks}
		compound := &rtcppacket.CompoundControlPacket{Packets: []rtcppacket.ControlPacket{rr}}
		body, err := compound.Marshal()
		if err != nil {
			r.reportFault(err)
			continue
		}
		nested[id] = body

		interval := r.mpSched.NextInterval(scheduler.SubflowParams{
			SubflowID: id,
			Params:    r.subflowSchedulerParams(id, len(blocks)),
		})
		r.mpNextDue[id] = now.Add(time.Duration(interval * float64(time.Second)))
	}
	if len(nested) == 0 {
		return nil
	}
	return multipath.WrapReports(nested)
}

// subflowSchedulerParams narrows the session-wide scheduler parameters to
// one subflow's member population.
func (r *Runtime) subflowSchedulerParams(id uint16, subflowMembers int) scheduler.Params {
	p := r.schedulerParams()
	senders := uint32(0)
	for _, mm := range r.multipathMembers {
		if sf, ok := mm.Subflows()[id]; ok && sf.ActiveSender() {
			senders++
		}
	}
	p.MemberCount = uint32(subflowMembers) + 1
	p.SenderCount = senders
	if p.IsSender {
		p.SenderCount++
	}
	return p
}

// extendedReport builds the RTCP XR packet compounded onto a report when
// extended-report attributes were negotiated: a receiver-reference-time
// block stamping our own NTP clock, plus one DLRR sub-block per member
// whose receiver-reference-time we have echoed, so either end can close
// the receiver-side round-trip computation.
func (r *Runtime) extendedReport() rtcppacket.ControlPacket {
	var blocks []rtcppacket.XRBlock
	if r.cfg.HasXRAttribute(config.XRReceiverRTT) {
		blocks = append(blocks, rtcppacket.EncodeReceiverReferenceTime(rtcppacket.ReceiverReferenceTimeBlock{
			NTPTimestamp: uint64(ntptime.Now()),
		}))
	}
	if r.cfg.HasXRAttribute(config.XRSender) {
		var subs []rtcppacket.DLRRSubBlock
		now := ntptime.Now()
		for _, m := range r.db.Members() {
			if m.LastRRTime == 0 {
				continue
			}
			subs = append(subs, rtcppacket.DLRRSubBlock{
				SSRC:             m.SSRC,
				LastRR:           m.LastRRTime.Middle32(),
				DelaySinceLastRR: uint32(now.Sub(m.LastRRTime).Seconds() * 65536),
			})
		}
		if len(subs) > 0 {
			blocks = append(blocks, rtcppacket.EncodeDLRR(subs))
		}
	}
	if len(blocks) == 0 {
		return nil
	}
	return &rtcppacket.ExtendedReport{SSRC: r.db.OwnSSRC, Blocks: blocks}
}
