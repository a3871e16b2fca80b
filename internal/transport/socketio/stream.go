package socketio

import (
	"context"
	"errors"
	"sync"

	"github.com/hay-kot/threadline/internal/core/messaging"
)

const streamBuffer = 64

type delivery struct {
	ev  messaging.Event
	err error
}

// eventStream buffers events pushed by socket handlers. Socket callbacks must
// not block, so a full buffer ends the stream with errOverflow.
type eventStream struct {
	ctx     context.Context
	items   chan delivery
	onClose func(*eventStream)

	mu       sync.Mutex
	closed   bool
	overflow bool
}

var errOverflow = errors.New("stream buffer overflow")

func newEventStream(ctx context.Context, onClose func(*eventStream)) *eventStream {
	return &eventStream{
		ctx:     ctx,
		items:   make(chan delivery, streamBuffer),
		onClose: onClose,
	}
}

func (s *eventStream) push(ev messaging.Event, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.overflow {
		return
	}

	select {
	case s.items <- delivery{ev: ev, err: err}:
	default:
		s.overflow = true
	}
}

func (s *eventStream) Recv() (messaging.Event, error) {
	select {
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	case d := <-s.items:
		return d.ev, d.err
	default:
	}

	s.mu.Lock()
	overflow := s.overflow
	s.mu.Unlock()
	if overflow {
		return nil, errOverflow
	}

	select {
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	case d := <-s.items:
		return d.ev, d.err
	}
}

func (s *eventStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.onClose(s)
	return nil
}
