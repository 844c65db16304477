package rtpsession

import (
	"context"
	"time"

	"github.com/7956968/rtpcore/pkg/lossdetect"
	"github.com/7956968/rtpcore/pkg/rtcppacket"
	"github.com/7956968/rtpcore/pkg/scheduler"
	"github.com/7956968/rtpcore/pkg/session"
	"github.com/7956968/rtpcore/pkg/twcc"
)

// tickInterval is the executor's own wakeup granularity for deadline-style
// work (assumed-loss timeouts, playout-group timeouts, TWCC feedback due
// checks); the RTCP report schedule runs on its own dynamically computed
// timer instead, re-armed after every firing using the newly computed
// interval.
const tickInterval = 20 * time.Millisecond

// timerLoop drives every timer-scheduled concern: the control-report
// interval, re-armed each firing with a freshly computed value, and a
// fixed-granularity sweep for loss-detection deadlines, playout-group
// deadlines and TWCC feedback. Each firing posts a single job onto the
// executor.
func (r *Runtime) timerLoop(ctx context.Context) {
	reportTimer := time.NewTimer(r.nextReportDelay())
	defer reportTimer.Stop()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reportTimer.C:
			r.post(r.onReportTimer)
			reportTimer.Reset(r.nextReportDelay())
		case now := <-ticker.C:
			r.post(func() { r.onTick(now) })
		}
	}
}

// nextReportDelay draws the next randomized report interval on the
// executor, since the scheduler and database it reads are executor-owned
// state.
func (r *Runtime) nextReportDelay() time.Duration {
	res := make(chan time.Duration, 1)
	r.post(func() {
		res <- time.Duration(r.sched.NextInterval(r.schedulerParams()) * float64(time.Second))
	})
	select {
	case d := <-res:
		return d
	case <-r.done:
		return time.Second
	}
}

// onReportTimer fires at the deterministic report instant: build and send
// the compound control packet, then sweep stale members and rearm the
// feedback budget.
func (r *Runtime) onReportTimer() {
	if err := r.sendReport(); err != nil {
		r.reportFault(err)
	}
	r.fbBudget.ResetInterval()
	for _, ssrc := range r.db.Sweep() {
		r.onMemberRemoved(ssrc)
	}
}

func (r *Runtime) onMemberRemoved(ssrc uint32) {
	delete(r.detectors, ssrc)
	delete(r.twccRecs, ssrc)
	delete(r.multipathMembers, ssrc)
	r.bufFactory.Remove(ssrc)
	if r.callbacks.OnMemberUpdate != nil {
		r.callbacks.OnMemberUpdate(session.MemberEvent{SSRC: ssrc, Removed: true})
	}
}

// onTick sweeps every fixed-granularity deadline: reconsidered BYE removal,
// assumed-loss timeouts, playout-group timeouts and due TWCC feedback.
func (r *Runtime) onTick(now time.Time) {
	for _, ssrc := range r.db.SweepByeDeadlines(now) {
		r.onMemberRemoved(ssrc)
	}
	for ssrc, d := range r.detectors {
		for _, evt := range d.Tick(now) {
			r.dispatchLossEvent(ssrc, evt)
		}
	}
	for _, md := range r.mpDetectors {
		for _, evt := range md.Tick(now) {
			if r.callbacks.OnAssumedLoss != nil {
				r.callbacks.OnAssumedLoss(evt)
			}
		}
	}
	r.emitGroups(r.playoutBuf.Tick(now))
	for _, rec := range r.twccRecs {
		if !rec.Due(now, false) {
			continue
		}
		msg := rec.FeedbackMessage(now)
		if msg == nil {
			continue
		}
		body, err := r.marshalImmediateFeedback(msg)
		if err != nil {
			r.reportFault(err)
			continue
		}
		if !r.fbBudget.AllowImmediate(float64(len(body))) {
			continue
		}
		if err := r.transport.Send(r.sendCtx, r.remote, body); err != nil {
			r.reportFault(err)
		}
	}
}

// marshalImmediateFeedback wire-encodes one immediate feedback message: a
// bare reduced-size packet when RFC 5506 was negotiated, else a minimal
// compound led by this session's own report.
func (r *Runtime) marshalImmediateFeedback(msg *rtcppacket.FeedbackTransportLayer) ([]byte, error) {
	if scheduler.ReducedSizeAllowed(r.cfg.ReducedSizeControl, false) {
		return msg.Marshal()
	}
	compound := &rtcppacket.CompoundControlPacket{Packets: []rtcppacket.ControlPacket{r.ownReceiverReport(), msg}}
	return compound.Marshal()
}

func (r *Runtime) dispatchLossEvent(ssrc uint32, evt lossdetect.Event) {
	if evt.Kind == lossdetect.EventRetransmissionRequested {
		r.bufFactory.NackQueueFor(ssrc).Push(evt.SequenceNumber)
	}
	if r.callbacks.OnAssumedLoss != nil {
		r.callbacks.OnAssumedLoss(evt)
	}
}

func (r *Runtime) twccRecorderFor(ssrc uint32) *twcc.Recorder {
	rec, ok := r.twccRecs[ssrc]
	if !ok {
		rec = twcc.NewRecorder(r.db.OwnSSRC, ssrc)
		r.twccRecs[ssrc] = rec
	}
	return rec
}
