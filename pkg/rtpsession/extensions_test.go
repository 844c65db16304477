package rtpsession

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/7956968/rtpcore/pkg/codecs"
	"github.com/7956968/rtpcore/pkg/playout"
)

func TestAuditingPacketizerReportsOffsets(t *testing.T) {
	var got PacketizationAuditEvent
	p := &auditingPacketizer{
		Packetizer: codecs.Generic{},
		onAudit:    func(evt PacketizationAuditEvent) { got = evt },
	}

	packets, err := p.Packetize([]byte("abcdef"))
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("abcdef")}, packets)
	require.Equal(t, 6, got.SampleLength)
	require.Equal(t, []int{0}, got.Offsets)
}

type recordingSink struct {
	mu      sync.Mutex
	samples [][]byte
}

func (s *recordingSink) WriteSample(samples [][]byte, _ playout.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, samples...)
}

func TestForwardingRuntimeDeliversToSinkAndCallback(t *testing.T) {
	senderTransport, receiverTransport := newPairedTransports()
	sink := &recordingSink{}

	var mu sync.Mutex
	var callbackSamples [][]byte
	done := make(chan struct{}, 1)

	receiver := NewForwardingRuntime(testConfig(), receiverTransport, codecs.Generic{}, senderTransport.LocalEndpoint(), sink, Callbacks{
		OnIncomingMedia: func(samples [][]byte, _ playout.Group) {
			mu.Lock()
			callbackSamples = append(callbackSamples, samples...)
			mu.Unlock()
			select {
			case done <- struct{}{}:
			default:
			}
		},
	})
	sender := New(testConfig(), senderTransport, codecs.Generic{}, receiverTransport.LocalEndpoint(), Callbacks{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, receiver.Start(ctx))
	require.NoError(t, sender.Start(ctx))
	require.NoError(t, sender.Send(ctx, []byte("world"), 160))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forwarded media")
	}

	sink.mu.Lock()
	require.Equal(t, [][]byte{[]byte("world")}, sink.samples)
	sink.mu.Unlock()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, [][]byte{[]byte("world")}, callbackSamples)
}

func TestAnalysisRuntimeReportsFirstSampleAsZeroDelta(t *testing.T) {
	senderTransport, receiverTransport := newPairedTransports()

	samples := make(chan AnalysisSample, 1)
	receiver := NewAnalysisRuntime(testConfig(), receiverTransport, codecs.Generic{}, senderTransport.LocalEndpoint(), func(s AnalysisSample) {
		select {
		case samples <- s:
		default:
		}
	}, Callbacks{})
	sender := New(testConfig(), senderTransport, codecs.Generic{}, receiverTransport.LocalEndpoint(), Callbacks{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, receiver.Start(ctx))
	require.NoError(t, sender.Start(ctx))
	require.NoError(t, sender.Send(ctx, []byte("x"), 160))

	select {
	case s := <-samples:
		require.Zero(t, s.ArrivalDelta)
		require.Zero(t, s.PresentationTimeDelta)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for analysis sample")
	}
}

func TestTranslatorRuntimeForwardsBetweenLegs(t *testing.T) {
	ingressSenderTransport, ingressReceiverTransport := newPairedTransports()
	egressSenderTransport, egressReceiverTransport := newPairedTransports()

	finalSamples := make(chan [][]byte, 1)
	egressReceiver := New(testConfig(), egressReceiverTransport, codecs.Generic{}, egressSenderTransport.LocalEndpoint(), Callbacks{
		OnIncomingMedia: func(samples [][]byte, _ playout.Group) {
			select {
			case finalSamples <- samples:
			default:
			}
		},
	})
	egressSender := New(testConfig(), egressSenderTransport, codecs.Generic{}, egressReceiverTransport.LocalEndpoint(), Callbacks{})

	translator := NewTranslatorRuntime(MediaAudio, egressSender, 160)
	ingressReceiver := New(testConfig(), ingressReceiverTransport, codecs.Generic{}, ingressSenderTransport.LocalEndpoint(), Callbacks{
		OnIncomingMedia: translator.Forward,
	})
	ingressSender := New(testConfig(), ingressSenderTransport, codecs.Generic{}, ingressReceiverTransport.LocalEndpoint(), Callbacks{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, egressReceiver.Start(ctx))
	require.NoError(t, egressSender.Start(ctx))
	require.NoError(t, ingressReceiver.Start(ctx))
	require.NoError(t, ingressSender.Start(ctx))

	require.Equal(t, MediaAudio, translator.MediaType())
	require.NoError(t, ingressSender.Send(ctx, []byte("relayed"), 160))

	select {
	case samples := <-finalSamples:
		require.Equal(t, [][]byte{[]byte("relayed")}, samples)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for media to cross both legs")
	}
}
