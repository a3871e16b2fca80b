package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/threadline/internal/core/messaging"
)

type item struct {
	ev  messaging.Event
	err error
}

type fakeStream struct {
	ctx    context.Context
	items  chan item
	mu     sync.Mutex
	closed bool
}

func (f *fakeStream) Recv() (messaging.Event, error) {
	select {
	case <-f.ctx.Done():
		return nil, f.ctx.Err()
	case it := <-f.items:
		return it.ev, it.err
	}
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeStream) send(ev messaging.Event) {
	f.items <- item{ev: ev}
}

func (f *fakeStream) fail(err error) {
	f.items <- item{err: err}
}

type fakeTransport struct {
	mu        sync.Mutex
	joinAck   messaging.Ack
	joinErr   error
	joinBlock bool
	openErr   error
	leaveAck  messaging.Ack
	leaveErr  error
	joins     map[int64]int
	leaves    map[int64]int
	streams   chan *fakeStream
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		joinAck:  messaging.Ack{Success: true},
		leaveAck: messaging.Ack{Success: true},
		joins:    map[int64]int{},
		leaves:   map[int64]int{},
		streams:  make(chan *fakeStream, 32),
	}
}

func (f *fakeTransport) Join(ctx context.Context, _ string, threadID int64) (messaging.Ack, error) {
	f.mu.Lock()
	f.joins[threadID]++
	ack, err, block := f.joinAck, f.joinErr, f.joinBlock
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return messaging.Ack{}, ctx.Err()
	}
	return ack, err
}

func (f *fakeTransport) Leave(_ context.Context, _ string, threadID int64) (messaging.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves[threadID]++
	return f.leaveAck, f.leaveErr
}

func (f *fakeTransport) OpenMessageStream(ctx context.Context, _ string, _ int64) (messaging.EventStream, error) {
	f.mu.Lock()
	err := f.openErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s := &fakeStream{ctx: ctx, items: make(chan item, 16)}
	f.streams <- s
	return s, nil
}

func (f *fakeTransport) joinCount(threadID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.joins[threadID]
}

func (f *fakeTransport) leaveCount(threadID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leaves[threadID]
}

func (f *fakeTransport) nextStream(t *testing.T) *fakeStream {
	t.Helper()
	select {
	case s := <-f.streams:
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stream to open")
		return nil
	}
}

// recorder captures callback output.
type recorder struct {
	mu       sync.Mutex
	messages []messaging.Message
	statuses []string
	errs     []error
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnMessage: func(m messaging.Message) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.messages = append(r.messages, m)
		},
		OnStatus: func(connected bool, detail string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if connected {
				r.statuses = append(r.statuses, "up:"+detail)
			} else {
				r.statuses = append(r.statuses, "down:"+detail)
			}
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
	}
}

func (r *recorder) errList() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recorder) messageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func (r *recorder) statusList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.statuses...)
}

func testPolicy(delay time.Duration) Policy {
	return Policy{
		ReconnectDelay: delay,
		Multiplier:     1,
		MaxAttempts:    0,
		JoinTimeout:    time.Second,
		LeaveTimeout:   time.Second,
	}
}

func waitDone(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscription to settle")
	}
}

func newTestSubscription(ft *fakeTransport, threadID int64, p Policy, cb Callbacks) *Subscription {
	return NewSubscription(zerolog.Nop(), ft, "token", threadID, p, cb)
}

func requireErrorAs[T error](t *testing.T, err error) T {
	t.Helper()
	var target T
	require.True(t, errors.As(err, &target), "expected %T, got %v", target, err)
	return target
}
