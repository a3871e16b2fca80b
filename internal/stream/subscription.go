package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/threadline/internal/core/messaging"
)

// Callbacks receive the output of a Subscription. Nil fields are skipped.
type Callbacks struct {
	OnMessage func(msg messaging.Message)
	OnStatus  func(connected bool, detail string)
	OnError   func(err error)
}

// Subscription owns the live stream of one thread. It joins, consumes events,
// reconnects after stream faults and leaves when stopped. All transport calls
// and callbacks happen on a single goroutine started by Start; Leave runs on a
// separate goroutine once that loop has exited.
type Subscription struct {
	threadID  int64
	token     string
	transport messaging.Transport
	policy    Policy
	callbacks Callbacks
	log       zerolog.Logger

	// active is sampled before every reconnect. Nil means always active.
	active func() bool
	// release runs when the subscription stops on its own, before the
	// Leave that follows. The registry uses it to drop the entry.
	release func()

	mu       sync.Mutex
	state    State
	started  bool
	cancel   context.CancelFunc
	loopDone chan struct{}

	stopOnce sync.Once
	done     chan struct{}
}

// NewSubscription creates an idle subscription. Nothing happens until Start.
func NewSubscription(
	log zerolog.Logger,
	transport messaging.Transport,
	token string,
	threadID int64,
	policy Policy,
	callbacks Callbacks,
) *Subscription {
	return &Subscription{
		threadID:  threadID,
		token:     token,
		transport: transport,
		policy:    policy,
		callbacks: callbacks,
		log:       log.With().Int64("thread_id", threadID).Logger(),
		done:      make(chan struct{}),
	}
}

// ThreadID returns the thread this subscription streams.
func (s *Subscription) ThreadID() int64 {
	return s.threadID
}

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the subscription has fully stopped, including the
// Leave attempt that follows. That happens after Stop, or on its own after a
// rejected join, a clean end or exhausted reconnects.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Start launches the subscription goroutine. Calling Start more than once, or
// after Stop, does nothing.
func (s *Subscription) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.loopDone = make(chan struct{})

	go func() {
		defer close(s.loopDone)
		s.run(ctx)
		if ctx.Err() == nil {
			s.discard()
		}
	}()
}

// discard settles a subscription whose loop ended without Stop. It goes
// through Stop so Leave still runs exactly once and Done closes.
func (s *Subscription) discard() {
	s.log.Debug().Msg("subscription ended")
	if s.release != nil {
		s.release()
	}
	s.Stop()
}

// Stop cancels the stream immediately and issues Leave exactly once in the
// background. It never blocks; the returned channel closes when the Leave
// attempt has resolved or timed out. Stop is idempotent.
func (s *Subscription) Stop() <-chan struct{} {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		wasStarted := s.started
		s.started = true
		cancel := s.cancel
		loopDone := s.loopDone
		if s.state != StateStopped {
			s.state = StateLeaving
		}
		s.mu.Unlock()

		if !wasStarted {
			s.setState(StateStopped)
			close(s.done)
			return
		}

		cancel()
		go s.finish(loopDone)
	})

	return s.done
}

func (s *Subscription) finish(loopDone <-chan struct{}) {
	<-loopDone

	ctx, cancel := withTimeout(context.Background(), s.policy.LeaveTimeout)
	defer cancel()

	ack, err := s.transport.Leave(ctx, s.token, s.threadID)
	switch {
	case err != nil:
		s.log.Warn().Err(err).Msg("leave failed")
	case !ack.Success:
		s.log.Warn().Str("reason", ack.Message).Msg("leave rejected")
	default:
		s.log.Debug().Msg("left thread")
	}

	s.setState(StateStopped)
	close(s.done)
}

func (s *Subscription) run(ctx context.Context) {
	attempt := 0

	for {
		delivered, retry := s.connect(ctx)
		if !retry || ctx.Err() != nil {
			return
		}

		if delivered {
			attempt = 0
		}
		attempt++

		if !s.policy.ShouldReconnect(attempt) {
			s.log.Warn().Int("attempts", attempt-1).Msg("giving up on reconnect")
			s.transition(StateStopped)
			s.emitError(ctx, ErrReconnectExhausted)
			return
		}

		delay := s.policy.Delay(attempt)
		s.transition(StateReconnecting)
		s.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("reconnecting")

		if err := sleep(ctx, delay); err != nil {
			return
		}

		if s.active != nil && !s.active() {
			s.log.Debug().Msg("superseded before reconnect")
			return
		}
	}
}

// connect runs one join and stream cycle. It reports whether the stream
// delivered any message or status event, and whether the cycle ended in a
// fault that should be retried.
func (s *Subscription) connect(ctx context.Context) (delivered, retry bool) {
	s.transition(StateJoining)

	joinCtx, cancel := withTimeout(ctx, s.policy.JoinTimeout)
	ack, err := s.transport.Join(joinCtx, s.token, s.threadID)
	cancel()

	if ctx.Err() != nil {
		return false, false
	}

	if err != nil || !ack.Success {
		rejected := &JoinRejectedError{ThreadID: s.threadID, Reason: ack.Message, Err: err}
		s.log.Warn().Err(rejected).Msg("join failed")
		s.transition(StateStopped)
		s.emitError(ctx, rejected)
		return false, false
	}

	events, err := s.transport.OpenMessageStream(ctx, s.token, s.threadID)
	if err != nil {
		if ctx.Err() != nil {
			return false, false
		}
		s.fault(ctx, &StreamFaultError{ThreadID: s.threadID, Err: err})
		return false, true
	}
	defer func() { _ = events.Close() }()

	s.transition(StateStreaming)
	s.log.Debug().Msg("streaming")

	for {
		ev, err := events.Recv()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return delivered, false
			case errors.Is(err, io.EOF):
				s.log.Debug().Msg("stream ended")
				s.transition(StateStopped)
				s.emitStatus(ctx, false, "stream ended")
				return delivered, false
			default:
				s.fault(ctx, &StreamFaultError{ThreadID: s.threadID, Err: err})
				return delivered, true
			}
		}

		switch e := ev.(type) {
		case messaging.NewMessage:
			delivered = true
			s.emitMessage(ctx, e.Message)
		case messaging.StatusChange:
			delivered = true
			s.emitStatus(ctx, e.Connected, e.Detail)
		case messaging.StreamError:
			s.fault(ctx, &StreamFaultError{ThreadID: s.threadID, Reason: e.Reason})
			return delivered, true
		}
	}
}

func (s *Subscription) fault(ctx context.Context, err *StreamFaultError) {
	s.log.Warn().Err(err).Msg("stream fault")
	s.emitError(ctx, err)
}

// Callbacks are suppressed once Stop has canceled the loop.

func (s *Subscription) emitMessage(ctx context.Context, m messaging.Message) {
	if ctx.Err() == nil && s.callbacks.OnMessage != nil {
		s.callbacks.OnMessage(m)
	}
}

func (s *Subscription) emitStatus(ctx context.Context, connected bool, detail string) {
	if ctx.Err() == nil && s.callbacks.OnStatus != nil {
		s.callbacks.OnStatus(connected, detail)
	}
}

func (s *Subscription) emitError(ctx context.Context, err error) {
	if ctx.Err() == nil && s.callbacks.OnError != nil {
		s.callbacks.OnError(err)
	}
}

// transition moves the loop to a new state unless Stop has already taken
// over the lifecycle.
func (s *Subscription) transition(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateLeaving || s.state == StateStopped {
		return
	}
	s.log.Debug().Stringer("from", s.state).Stringer("to", to).Msg("state change")
	s.state = to
}

func (s *Subscription) setState(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = to
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
