package transport

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/7956968/rtpcore/pkg/ntptime"
	"github.com/7956968/rtpcore/pkg/rtpdump"
)

func TestReplayTransportDeliversRecordsInOrder(t *testing.T) {
	base := ntptime.FromTime(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	records := []rtpdump.Record{
		{Arrival: base, Payload: []byte{1}},
		{Arrival: base + (1 << 32), Payload: []byte{2}}, // one second later
	}
	tr := NewReplayTransport(records, Endpoint{Address: "local"}, Endpoint{Address: "peer"}, nil)

	ctx := context.Background()
	first, err := tr.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte{1}, first.Payload)
	require.Equal(t, "peer", first.From.Address)

	second, err := tr.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte{2}, second.Payload)
	require.Equal(t, time.Second, second.Arrival.Sub(first.Arrival))
}

func TestReplayTransportBlocksAtEndUntilClosed(t *testing.T) {
	tr := NewReplayTransport(nil, Endpoint{}, Endpoint{}, nil)
	require.NoError(t, tr.Close())
	_, err := tr.Receive(context.Background())
	require.ErrorIs(t, err, ErrReplayExhausted)
}

func TestReplayTransportCapturesSends(t *testing.T) {
	var captured bytes.Buffer
	sink := rtpdump.NewWriter(&captured)
	tr := NewReplayTransport(nil, Endpoint{}, Endpoint{}, sink)

	require.NoError(t, tr.Send(context.Background(), Endpoint{}, []byte{9, 9}))
	require.NoError(t, sink.Flush())

	got, err := rtpdump.NewReader(&captured).All()
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, []byte{9, 9}, got[0].Payload)
}
