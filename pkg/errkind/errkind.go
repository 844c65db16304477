// Package errkind classifies the errors this module surfaces across its
// facade. Every error returned to a caller (as opposed to logged
// internally and swallowed) is wrapped in an *Error carrying one of the
// fixed Kind values below, so callers can branch with errors.As instead
// of string matching.
package errkind

import (
	"errors"
	"fmt"
)

// Kind enumerates the error categories the facade distinguishes.
type Kind int

const (
	// WireFormat: malformed bits, length mismatch, inconsistent padding,
	// unknown mandatory variant. Recovered by discarding the packet.
	WireFormat Kind = iota
	// Validation: probation failure, version mismatch, reserved-bits
	// violation. The packet is dropped; the member stays in probation.
	Validation
	// Collision: own synchronization source observed from a foreign
	// endpoint.
	Collision
	// TransportFault: reported by the transport adapter, not locally
	// recoverable.
	TransportFault
	// ConfigurationFault: inconsistent session parameters. Fatal at
	// construction.
	ConfigurationFault
)

func (k Kind) String() string {
	switch k {
	case WireFormat:
		return "wire-format"
	case Validation:
		return "validation"
	case Collision:
		return "collision"
	case TransportFault:
		return "transport-fault"
	case ConfigurationFault:
		return "configuration-fault"
	default:
		return "unknown"
	}
}

// Error wraps a cause with its Kind so callers can branch on category.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New wraps cause with the given Kind.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Is reports whether the first *Error in err's chain carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
