package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/7956968/rtpcore/pkg/ntptime"
	"github.com/7956968/rtpcore/pkg/rtpdump"
)

// ErrReplayExhausted is returned by ReplayTransport.Receive once every
// captured record has been delivered and the transport has been closed.
var ErrReplayExhausted = errors.New("transport: replay trace exhausted")

// ReplayTransport is a virtual PacketTransport driven by a packet-capture
// trace: Receive hands back the captured datagrams in order, stamped with
// their recorded arrival times, and Send optionally appends to a capture
// writer. The loaded trace is read-only after construction, so one trace
// may back many transports.
type ReplayTransport struct {
	mu      sync.Mutex
	records []rtpdump.Record
	pos     int
	closed  chan struct{}
	once    sync.Once

	local Endpoint
	from  Endpoint
	sink  *rtpdump.Writer
}

// NewReplayTransport builds a transport replaying records as datagrams
// from the given peer endpoint. sink, when non-nil, captures everything
// Sent through this transport in the same format.
func NewReplayTransport(records []rtpdump.Record, local, from Endpoint, sink *rtpdump.Writer) *ReplayTransport {
	return &ReplayTransport{
		records: records,
		closed:  make(chan struct{}),
		local:   local,
		from:    from,
		sink:    sink,
	}
}

// Send records the outbound datagram to the capture sink, if one was
// configured, and otherwise discards it.
func (t *ReplayTransport) Send(_ context.Context, _ Endpoint, payload []byte) error {
	if t.sink == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sink.Write(rtpdump.Record{Arrival: ntptime.Now(), Payload: payload})
}

// Receive returns the next captured datagram, annotated with its recorded
// arrival wall-clock. Once the trace is exhausted it blocks until the
// context is cancelled or the transport is closed.
func (t *ReplayTransport) Receive(ctx context.Context) (Received, error) {
	t.mu.Lock()
	if t.pos < len(t.records) {
		rec := t.records[t.pos]
		t.pos++
		t.mu.Unlock()
		return Received{
			Payload: rec.Payload,
			From:    t.from,
			Arrival: ntptime.ToTime(rec.Arrival),
		}, nil
	}
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		return Received{}, ctx.Err()
	case <-t.closed:
		return Received{}, ErrReplayExhausted
	}
}

// Close unblocks any Receive waiting past the end of the trace.
func (t *ReplayTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

// LocalEndpoint returns the endpoint this transport pretends to be bound
// to.
func (t *ReplayTransport) LocalEndpoint() Endpoint { return t.local }
