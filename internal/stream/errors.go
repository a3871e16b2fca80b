package stream

import (
	"errors"
	"fmt"
)

// ErrReconnectExhausted is reported when a subscription gives up after
// Policy.MaxAttempts consecutive reconnects.
var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

// JoinRejectedError reports a failed Join handshake. It is fatal for the
// subscription: no reconnect follows.
type JoinRejectedError struct {
	ThreadID int64
	Reason   string // server message when the join was explicitly refused
	Err      error  // transport error, if any
}

func (e *JoinRejectedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("join thread %d: %v", e.ThreadID, e.Err)
	}
	return fmt.Sprintf("join thread %d rejected: %s", e.ThreadID, e.Reason)
}

func (e *JoinRejectedError) Unwrap() error {
	return e.Err
}

// StreamFaultError reports a transient failure of a live stream. A reconnect
// is scheduled after it is reported.
type StreamFaultError struct {
	ThreadID int64
	Reason   string // server supplied reason for error events
	Err      error  // transport error, if any
}

func (e *StreamFaultError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stream thread %d: %v", e.ThreadID, e.Err)
	}
	return fmt.Sprintf("stream thread %d: %s", e.ThreadID, e.Reason)
}

func (e *StreamFaultError) Unwrap() error {
	return e.Err
}
