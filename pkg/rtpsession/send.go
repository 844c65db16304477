package rtpsession

import (
	"context"

	"github.com/7956968/rtpcore/pkg/rtppacket"
)

// Send packetizes one media sample, stamps sequence number, timestamp and
// SSRC, optionally tags it for a multipath subflow, stores it in the
// retransmit cache, and transmits it. sampleDurationTicks advances the
// outgoing RTP timestamp by the sample's duration in the stream's
// clock-rate ticks.
func (r *Runtime) Send(ctx context.Context, sample []byte, sampleDurationTicks uint32) error {
	result := make(chan error, 1)
	r.post(func() {
		result <- r.sendLocked(ctx, sample, sampleDurationTicks)
	})
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendAccessUnit packetizes a group of samples sharing one presentation
// time; every resulting packet carries the same timestamp, and the marker
// bit is set on the last.
func (r *Runtime) SendAccessUnit(ctx context.Context, samples [][]byte, durationTicks uint32) error {
	result := make(chan error, 1)
	r.post(func() {
		payloads, err := r.packetizer.PacketizeAccessUnit(samples)
		if err != nil {
			result <- err
			return
		}
		result <- r.transmit(ctx, payloads, durationTicks)
	})
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) sendLocked(ctx context.Context, sample []byte, sampleDurationTicks uint32) error {
	payloads, err := r.packetizer.Packetize(sample)
	if err != nil {
		return err
	}
	return r.transmit(ctx, payloads, sampleDurationTicks)
}

// transmit stamps and sends one timestamp group's packets, advancing the
// outgoing timestamp by durationTicks afterwards.
func (r *Runtime) transmit(ctx context.Context, payloads [][]byte, durationTicks uint32) error {
	for i, payload := range payloads {
		pkt := &rtppacket.Packet{
			Version:        2,
			Marker:         i == len(payloads)-1,
			PayloadType:    r.ownPT,
			SequenceNumber: r.ownSeq,
			Timestamp:      r.ownTS,
			SSRC:           r.db.OwnSSRC,
			Payload:        payload,
		}
		r.ownSeq++

		if r.multipathTr != nil {
			r.multipathTr.Tag(pkt, r.multipathTr.NextSubflow())
		}

		body, err := pkt.Marshal()
		if err != nil {
			return err
		}

		r.bufFactory.RetransmitCacheFor(r.db.OwnSSRC).Store(pkt.SequenceNumber, body)

		if err := r.transport.Send(ctx, r.remote, body); err != nil {
			return err
		}
		r.packets++
		r.octets += uint32(len(payload))
	}
	r.ownTS += durationTicks
	return nil
}
