package rtpsession

import (
	"context"
	"time"

	"github.com/7956968/rtpcore/pkg/codecs"
	"github.com/7956968/rtpcore/pkg/config"
	"github.com/7956968/rtpcore/pkg/playout"
	"github.com/7956968/rtpcore/pkg/transport"
)

// This file builds four Runtime extensions, each a thin composition over
// Callbacks or codecs.Packetizer rather than a subclass, matching the
// capability-object style used elsewhere for packetizer/predictor
// plug-ins: wrap, don't inherit.

// MediaSink is the external consumer a ForwardingRuntime delivers
// reassembled media to.
type MediaSink interface {
	WriteSample(samples [][]byte, group playout.Group)
}

// NewForwardingRuntime builds a Runtime whose incoming media is handed to
// sink in addition to any caller-supplied OnIncomingMedia callback.
func NewForwardingRuntime(cfg *config.Session, t transport.PacketTransport, packetizer codecs.Packetizer, remote transport.Endpoint, sink MediaSink, cb Callbacks, opts ...Option) *Runtime {
	next := cb.OnIncomingMedia
	cb.OnIncomingMedia = func(samples [][]byte, group playout.Group) {
		sink.WriteSample(samples, group)
		if next != nil {
			next(samples, group)
		}
	}
	return New(cfg, t, packetizer, remote, cb, opts...)
}

// PacketizationAuditEvent records the byte offsets one Send call's
// packetizer assigned within the source sample, for instrumentation.
type PacketizationAuditEvent struct {
	SampleLength int
	Offsets      []int
}

// auditingPacketizer wraps a codecs.Packetizer, reporting an audit event
// on every Packetize call while leaving PacketizeAccessUnit/Depacketize
// untouched via embedding.
type auditingPacketizer struct {
	codecs.Packetizer
	onAudit func(PacketizationAuditEvent)
}

func (p *auditingPacketizer) Packetize(sample []byte) ([][]byte, error) {
	packets, err := p.Packetizer.Packetize(sample)
	if err != nil {
		return packets, err
	}
	if p.onAudit != nil {
		offsets := make([]int, len(packets))
		offset := 0
		for i, pkt := range packets {
			offsets[i] = offset
			offset += len(pkt)
		}
		p.onAudit(PacketizationAuditEvent{SampleLength: len(sample), Offsets: offsets})
	}
	return packets, err
}

// NewPacketizationAuditRuntime builds a Runtime that reports a
// PacketizationAuditEvent for every Send call, without altering the
// packets the wrapped packetizer produces.
func NewPacketizationAuditRuntime(cfg *config.Session, t transport.PacketTransport, packetizer codecs.Packetizer, remote transport.Endpoint, onAudit func(PacketizationAuditEvent), cb Callbacks, opts ...Option) *Runtime {
	wrapped := &auditingPacketizer{Packetizer: packetizer, onAudit: onAudit}
	return New(cfg, t, wrapped, remote, cb, opts...)
}

// AnalysisSample is one inter-arrival / presentation-time delta recorded
// by an AnalysisRuntime. ArrivalDelta is the
// wall-clock gap since the previous emitted group; PresentationTimeDelta
// is the RTP-timestamp tick span between the two groups' labels. Both are
// zero for the first group observed.
type AnalysisSample struct {
	ArrivalDelta          time.Duration
	PresentationTimeDelta uint32
}

type analysisState struct {
	lastArrival time.Time
	lastTS      uint32
	haveTS      bool
}

// NewAnalysisRuntime builds a Runtime that reports an AnalysisSample for
// every group delivered to OnIncomingMedia, in addition to any
// caller-supplied callback.
func NewAnalysisRuntime(cfg *config.Session, t transport.PacketTransport, packetizer codecs.Packetizer, remote transport.Endpoint, onSample func(AnalysisSample), cb Callbacks, opts ...Option) *Runtime {
	st := &analysisState{}
	next := cb.OnIncomingMedia
	cb.OnIncomingMedia = func(samples [][]byte, group playout.Group) {
		now := time.Now()
		var sample AnalysisSample
		if !st.lastArrival.IsZero() {
			sample.ArrivalDelta = now.Sub(st.lastArrival)
		}
		if st.haveTS {
			sample.PresentationTimeDelta = group.Timestamp - st.lastTS
		}
		st.lastArrival = now
		st.lastTS = group.Timestamp
		st.haveTS = true
		if onSample != nil {
			onSample(sample)
		}
		if next != nil {
			next(samples, group)
		}
	}
	return New(cfg, t, packetizer, remote, cb, opts...)
}

// MediaType distinguishes the audio and video legs a TranslatorRuntime
// forwards between; routing between them is determined by media type, not
// payload type.
type MediaType int

const (
	MediaAudio MediaType = iota
	MediaVideo
)

// TranslatorRuntime forwards reassembled media from one leg's Runtime to
// another's Send, rewriting the subflow-tag header extension as packets
// cross between a single-path and a multipath leg. The rewrite itself
// happens implicitly: egress's own WithMultipath option (or lack of one)
// tags or leaves untagged every packet Forward hands to Send, exactly as
// it would for directly-originated media.
type TranslatorRuntime struct {
	mediaType           MediaType
	egress              *Runtime
	sampleDurationTicks uint32
}

// NewTranslatorRuntime builds a TranslatorRuntime that forwards ingress
// media of the given type onto egress. Callers wire it in as ingress's
// Callbacks.OnIncomingMedia (directly, or composed with other callbacks as
// the forwarding/analysis runtimes above do).
func NewTranslatorRuntime(mediaType MediaType, egress *Runtime, sampleDurationTicks uint32) *TranslatorRuntime {
	return &TranslatorRuntime{mediaType: mediaType, egress: egress, sampleDurationTicks: sampleDurationTicks}
}

// MediaType reports which leg this translator forwards.
func (tr *TranslatorRuntime) MediaType() MediaType { return tr.mediaType }

// Forward re-sends every sample in an ingress group onto the egress leg.
// It is best-effort: a failed Send is dropped rather than surfaced, since
// OnIncomingMedia has no error return; callers needing fault visibility
// should set egress's own Callbacks.OnTransportFault.
func (tr *TranslatorRuntime) Forward(samples [][]byte, group playout.Group) {
	ctx := tr.egress.sendCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sample := range samples {
		_ = tr.egress.Send(ctx, sample, tr.sampleDurationTicks)
	}
}
