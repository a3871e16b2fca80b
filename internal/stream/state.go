// Package stream maintains live per-thread subscriptions: the join, stream,
// reconnect and leave lifecycle of each thread, one subscription per thread,
// and the manager callers use to start and stop them.
//
// Threading contract: callbacks run on the subscription's own goroutine, in
// the order the transport delivered the underlying events. A callback that
// blocks delays the read loop for that thread only; hand long work to another
// goroutine.
package stream

// State is the lifecycle state of a Subscription.
type State int

const (
	StateIdle State = iota
	StateJoining
	StateStreaming
	StateReconnecting
	StateLeaving
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoining:
		return "joining"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateLeaving:
		return "leaving"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
