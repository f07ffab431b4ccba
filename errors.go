package natpmp

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse indicates that the gateway's reply did not parse
	// as a NAT-PMP version 0 frame.
	ErrMalformedResponse = errors.New("natpmp: malformed response")

	// ErrTimeout indicates that no response arrived before the deadline.
	ErrTimeout = errors.New("natpmp: no response from gateway")

	// ErrNoGateway indicates that the gateway address could not be
	// determined automatically. Callers should ask the user for an
	// explicit address instead.
	ErrNoGateway = errors.New("natpmp: cannot determine gateway address")

	// ErrInvalidRequest indicates that caller-supplied parameters violate
	// the protocol (e.g. a zero private port on a mapping request).
	ErrInvalidRequest = errors.New("natpmp: invalid request")

	// ErrQueueClosed is returned by Queue.Do after Close.
	ErrQueueClosed = errors.New("natpmp: queue closed")
)

// RefusedError is returned when the gateway answered but reported a
// nonzero result code. The transport worked; the router said no.
type RefusedError struct {
	Code ResultCode
}

func (e *RefusedError) Error() string {
	return fmt.Sprintf("natpmp: gateway refused request: %s", e.Code)
}
