// Package transport defines the abstract send/receive boundary the session
// runtime consumes: concrete UDP/TCP/DCCP framing is explicitly out of
// scope, so this package only carries the interface, an endpoint address
// form, and the arrival-time annotation every received datagram needs for
// jitter/RTT computation.
package transport

import (
	"context"
	"time"
)

// Endpoint is the address form a transport names: a host, a port, and an
// optional multipath subflow tag.
type Endpoint struct {
	Address  string
	Port     uint16
	SubflowID uint16
	HasSubflowID bool
}

// Received wraps one inbound datagram with its arrival wall-clock time and
// the endpoint it came from.
type Received struct {
	Payload []byte
	From    Endpoint
	Arrival time.Time
}

// PacketTransport is the abstract send/receive boundary: the core
// sends/receives octet buffers on abstract endpoints and never touches a
// socket directly. Implementations (UDP, TCP framing, DCCP, user-land
// SCTP) live outside this module.
type PacketTransport interface {
	// Send transmits one datagram to the given endpoint. It must not
	// block the caller beyond what the concrete transport's own send
	// buffer requires.
	Send(ctx context.Context, to Endpoint, payload []byte) error

	// Receive blocks until one datagram arrives, ctx is cancelled, or the
	// transport is closed.
	Receive(ctx context.Context) (Received, error)

	// Close releases the transport's resources. Subsequent Send/Receive
	// calls return an error.
	Close() error

	// LocalEndpoint returns the transport's local bind address.
	LocalEndpoint() Endpoint
}
