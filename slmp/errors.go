package slmp

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConnConfigNil indicates that a nil ConnectionConfig was provided.
	ErrConnConfigNil = errors.New("connection config is nil")

	// ErrConnClosed indicates that the connection was closed while an exchange was pending.
	ErrConnClosed = errors.New("connection closed")

	// ErrNotConnected indicates a command issued while the session is not connected.
	ErrNotConnected = errors.New("session is not connected")

	// ErrAlreadyConnected indicates Connect on a session that is connecting or connected.
	ErrAlreadyConnected = errors.New("session is already connected")

	// ErrMonitorNotRegistered indicates a monitor read before any monitor registration on the connection.
	ErrMonitorNotRegistered = errors.New("monitor read without monitor registration")

	// ErrResponseTimeout indicates that no response arrived within the response timeout.
	ErrResponseTimeout = errors.New("response timeout")

	// ErrInvalidTransition indicates a state change not allowed from the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// StateError reports an operation rejected because of the session state.
type StateError struct {
	Op    string
	State ConnState
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("slmp: %s: %v (state %s)", e.Op, e.Err, e.State)
}

func (e *StateError) Unwrap() error { return e.Err }

// SequenceError reports a protocol precondition that was not met on this session.
type SequenceError struct {
	Op  string
	Err error
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("slmp: %s: %v", e.Op, e.Err)
}

func (e *SequenceError) Unwrap() error { return e.Err }

// TimeoutError reports an exchange that received no response in time. The session stays connected.
type TimeoutError struct {
	Op     string
	Serial uint16
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("slmp: %s: no response for serial %d within %s", e.Op, e.Serial, e.After)
}

func (e *TimeoutError) Unwrap() error { return ErrResponseTimeout }

// Timeout reports true, matching net.Error.
func (e *TimeoutError) Timeout() bool { return true }

// PartialWriteError reports a multi-packet request that failed after some of its packets were
// acknowledged. The first Applied packets took effect on the PLC; for a random write the word-unit
// packet is sent before the bit-unit packet.
type PartialWriteError struct {
	Op      string
	Applied int
	Total   int
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("slmp: %s: %d of %d packets applied: %v", e.Op, e.Applied, e.Total, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// TransportError reports a failure of the underlying byte stream, or a stream that can no longer
// be framed. The session is disconnected when it is returned.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("slmp: %s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
