package stream

import (
	"math"
	"math/rand/v2"
	"time"
)

// Policy controls reconnect pacing and handshake timeouts.
type Policy struct {
	// ReconnectDelay is the wait before the first reconnect.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the backoff. Zero means no cap.
	MaxReconnectDelay time.Duration
	// Multiplier grows the delay per consecutive attempt. Values below 1 are
	// treated as 1, giving a fixed delay.
	Multiplier float64
	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64
	// MaxAttempts bounds consecutive reconnects. Zero means unlimited.
	MaxAttempts int
	// JoinTimeout bounds the Join round trip. Zero means no timeout.
	JoinTimeout time.Duration
	// LeaveTimeout bounds the Leave round trip. Zero means no timeout.
	LeaveTimeout time.Duration
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		ReconnectDelay:    3 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		Multiplier:        2,
		Jitter:            0.2,
		MaxAttempts:       10,
		JoinTimeout:       10 * time.Second,
		LeaveTimeout:      5 * time.Second,
	}
}

// ShouldReconnect reports whether attempt (1-based) is within the cap.
func (p Policy) ShouldReconnect(attempt int) bool {
	return p.MaxAttempts <= 0 || attempt <= p.MaxAttempts
}

// Delay returns the wait before reconnect attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	delay := float64(p.ReconnectDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxReconnectDelay > 0 {
		delay = math.Min(delay, float64(p.MaxReconnectDelay))
	}

	if p.Jitter > 0 {
		spread := delay * p.Jitter
		delay += (rand.Float64()*2 - 1) * spread
	}

	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}
