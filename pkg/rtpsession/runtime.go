// Package rtpsession composes the packet, codec, loss-detection, playout
// and control-plane pieces behind a single per-session runtime facade:
// packetize/stamp/send, receive/validate/reassemble, a
// single-threaded-cooperative event executor, and a single dispatch table
// for the session's event callbacks. The lifecycle shape (package-level
// discard logger, Config decoded via mapstructure, goroutine-owned
// per-session state, explicit teardown on Stop) applies that same pattern
// to one RTP/RTCP media session running over an abstract
// transport.PacketTransport.
package rtpsession

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/7956968/rtpcore/pkg/buffer"
	"github.com/7956968/rtpcore/pkg/codecs"
	"github.com/7956968/rtpcore/pkg/config"
	"github.com/7956968/rtpcore/pkg/lossdetect"
	"github.com/7956968/rtpcore/pkg/multipath"
	"github.com/7956968/rtpcore/pkg/playout"
	"github.com/7956968/rtpcore/pkg/rtcppacket"
	"github.com/7956968/rtpcore/pkg/scheduler"
	"github.com/7956968/rtpcore/pkg/session"
	"github.com/7956968/rtpcore/pkg/transport"
	"github.com/7956968/rtpcore/pkg/twcc"
)

// Logger is the package-wide fallback logger, used when a Runtime is
// constructed without a WithLogger option.
var Logger logr.Logger = logr.Discard()

// Callbacks is the single dispatch table the runtime owns; the database
// it wraps receives only a non-owning handle. Any field left nil is
// simply not invoked.
type Callbacks struct {
	OnIncomingMedia   func(samples [][]byte, group playout.Group)
	OnIncomingControl func(pkt rtcppacket.ControlPacket)
	OnMemberUpdate    func(evt session.MemberEvent)
	OnAssumedLoss     func(evt lossdetect.Event)
	// OnTransportFault is the one callback ever invoked with an error.
	OnTransportFault func(err error)
}

// PredictorFactory builds a fresh Predictor for a newly observed sender,
// letting callers choose among the Simple/MovingAverage/AR2 plug-ins.
type PredictorFactory func() lossdetect.Predictor

// Runtime is the per-session facade composing packetization, reception,
// loss detection, playout and control reporting. All state mutation is
// serialized on a single internal executor goroutine; Send/Stop may be
// called from any goroutine and post onto it.
type Runtime struct {
	cfg        *config.Session
	transport  transport.PacketTransport
	packetizer codecs.Packetizer
	predictors PredictorFactory
	callbacks  Callbacks
	logger     logr.Logger

	db          *session.Database
	sched       *scheduler.Scheduler
	fbBudget    *scheduler.FeedbackBudget
	playoutBuf  *playout.Buffer
	bufFactory  *buffer.Factory
	detectors   map[uint32]*lossdetect.Detector // keyed by remote SSRC
	twccRecs    map[uint32]*twcc.Recorder

	multipathTr      *multipath.Translator
	multipathMembers map[uint32]*session.MultipathMember
	mpRouting        lossdetect.RoutingPolicy
	mpDetectors      map[uint32]*lossdetect.MultipathDetector // keyed by remote SSRC
	mpSched          *scheduler.MultipathScheduler
	mpNextDue        map[uint16]time.Time

	// outgoing sender state
	ownPT    uint8
	ownSeq   uint16
	ownTS    uint32
	packets  uint32
	octets   uint32
	remote   transport.Endpoint

	jobs    chan func()
	cancel  context.CancelFunc
	done    chan struct{}
	sendCtx context.Context

	stopOnce sync.Once
}

// Option configures a Runtime at construction.
type Option func(*Runtime)

// WithLogger overrides the package default discard logger.
func WithLogger(l logr.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// WithPredictorFactory selects the lossdetect.Predictor implementation new
// senders are tracked with. Defaults to
// lossdetect.New(lossdetect.KindSimple, 0, 0).
func WithPredictorFactory(f PredictorFactory) Option {
	return func(r *Runtime) { r.predictors = f }
}

// WithMultipath enables the subflow translator, tagging outgoing packets
// with the given header-extension id and round-robining across
// subflowIDs.
func WithMultipath(extensionID uint8, subflowIDs []uint16) Option {
	return func(r *Runtime) { r.multipathTr = multipath.NewTranslator(extensionID, subflowIDs) }
}

// WithMultipathRouting selects how per-subflow loss detectors interact;
// defaults to lossdetect.RoutingSingle.
func WithMultipathRouting(policy lossdetect.RoutingPolicy) Option {
	return func(r *Runtime) { r.mpRouting = policy }
}

// New constructs a Runtime bound to cfg, a transport and a packetizer. It
// does not start any goroutine or touch the transport until Start is
// called.
func New(cfg *config.Session, t transport.PacketTransport, packetizer codecs.Packetizer, remote transport.Endpoint, cb Callbacks, opts ...Option) *Runtime {
	r := &Runtime{
		cfg:        cfg,
		transport:  t,
		packetizer: packetizer,
		remote:     remote,
		callbacks:  cb,
		logger:     Logger,
		predictors: func() lossdetect.Predictor { return lossdetect.New(lossdetect.KindSimple, 0, 0) },

		db:         session.New(cfg.ClockRate),
		sched:      scheduler.New(),
		fbBudget:   scheduler.NewFeedbackBudget(feedbackBudgetBytes),
		playoutBuf: playout.New(),
		bufFactory: buffer.NewFactory(0, Logger),
		detectors:  make(map[uint32]*lossdetect.Detector),
		twccRecs:   make(map[uint32]*twcc.Recorder),

		multipathMembers: make(map[uint32]*session.MultipathMember),
		mpDetectors:      make(map[uint32]*lossdetect.MultipathDetector),

		jobs: make(chan func(), jobQueueDepth),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.multipathTr != nil {
		r.mpSched = scheduler.NewMultipathScheduler()
		r.mpNextDue = make(map[uint16]time.Time)
	}
	r.ownPT = cfg.PrimaryPayloadType()
	r.ownTS = rand.Uint32()
	r.ownSeq = uint16(rand.Uint32())
	return r
}

const (
	feedbackBudgetBytes = 4000
	jobQueueDepth       = 256
)

// post enqueues fn to run on the executor goroutine, serializing it with
// every other state mutation. It blocks while the queue is full and
// returns without enqueuing once the executor has stopped; Start must
// already have run for this to drain.
func (r *Runtime) post(fn func()) {
	select {
	case r.jobs <- fn:
	case <-r.done:
	}
}

// Start initializes the session executor and begins the receive and timer
// loops. It performs no transport handshake and no configuration check,
// and always returns nil; receive/timer errors surface via
// Callbacks.OnTransportFault instead.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.sendCtx = ctx

	go r.executorLoop(ctx)
	go r.receiveLoop(ctx)
	go r.timerLoop(ctx)
	return nil
}

func (r *Runtime) executorLoop(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-r.jobs:
			fn()
		}
	}
}

// Stop emits a BYE (immediate if membership is below the reconsideration
// threshold, else after a reconsidered interval), cancels every timer, and
// releases the executor.
func (r *Runtime) Stop(ctx context.Context) error {
	result := make(chan error, 1)
	r.post(func() {
		result <- r.stopLocked(ctx)
	})
	select {
	case err := <-result:
		r.stopOnce.Do(func() {
			if r.cancel != nil {
				r.cancel()
			}
		})
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) stopLocked(ctx context.Context) error {
	bye := &rtcppacket.Bye{Sources: []uint32{r.db.OwnSSRC}}
	compound := &rtcppacket.CompoundControlPacket{Packets: []rtcppacket.ControlPacket{r.ownReceiverReport(), bye}}
	body, err := compound.Marshal()
	if err != nil {
		return err
	}

	if r.db.ReconsiderationRequired() {
		delay := time.Duration(r.sched.NextInterval(r.schedulerParams()) * float64(time.Second))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := r.transport.Send(ctx, r.remote, body); err != nil {
		return err
	}
	return r.transport.Close()
}
