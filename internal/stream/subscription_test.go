package stream

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/threadline/internal/core/messaging"
)

const tick = 10 * time.Millisecond

func TestSubscription_DeliversEventsInOrder(t *testing.T) {
	ft := newFakeTransport()
	rec := &recorder{}
	sub := newTestSubscription(ft, 5, testPolicy(time.Hour), rec.callbacks())

	sub.Start()
	s := ft.nextStream(t)
	s.send(messaging.NewMessage{Message: messaging.Message{ID: 1, ThreadID: 5}})
	s.send(messaging.StatusChange{Connected: false, Detail: "draining"})
	s.send(messaging.NewMessage{Message: messaging.Message{ID: 2, ThreadID: 5}})

	require.Eventually(t, func() bool { return rec.messageCount() == 2 }, time.Second, tick)

	assert.Equal(t, int64(1), rec.messages[0].ID)
	assert.Equal(t, int64(2), rec.messages[1].ID)
	assert.Equal(t, []string{"down:draining"}, rec.statusList())
	assert.Equal(t, StateStreaming, sub.State(), "status change alone does not leave streaming")

	waitDone(t, sub.Stop())
}

func TestSubscription_JoinRejectedDoesNotRetry(t *testing.T) {
	tests := []struct {
		name    string
		ack     messaging.Ack
		err     error
		wantErr error
	}{
		{
			name: "explicit rejection",
			ack:  messaging.Ack{Success: false, Message: "not a participant"},
		},
		{
			name:    "transport error",
			err:     io.ErrUnexpectedEOF,
			wantErr: io.ErrUnexpectedEOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := newFakeTransport()
			ft.joinAck = tt.ack
			ft.joinErr = tt.err
			rec := &recorder{}
			sub := newTestSubscription(ft, 5, testPolicy(tick), rec.callbacks())

			sub.Start()

			require.Eventually(t, func() bool { return len(rec.errList()) == 1 }, time.Second, tick)
			rejected := requireErrorAs[*JoinRejectedError](t, rec.errList()[0])
			assert.Equal(t, int64(5), rejected.ThreadID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, rejected, tt.wantErr)
			} else {
				assert.Equal(t, "not a participant", rejected.Reason)
			}

			assert.Equal(t, StateStopped, sub.State())
			assert.Never(t, func() bool { return ft.joinCount(5) > 1 }, 10*tick, tick)
		})
	}
}

func TestSubscription_JoinTimeout(t *testing.T) {
	ft := newFakeTransport()
	ft.joinBlock = true
	rec := &recorder{}
	p := testPolicy(tick)
	p.JoinTimeout = 2 * tick
	sub := newTestSubscription(ft, 1, p, rec.callbacks())

	sub.Start()

	require.Eventually(t, func() bool { return len(rec.errList()) == 1 }, time.Second, tick)
	assert.ErrorIs(t, rec.errList()[0], context.DeadlineExceeded)
	assert.Equal(t, StateStopped, sub.State())
}

func TestSubscription_StreamErrorRejoinsOnceAfterDelay(t *testing.T) {
	ft := newFakeTransport()
	rec := &recorder{}
	sub := newTestSubscription(ft, 5, testPolicy(5*tick), rec.callbacks())

	sub.Start()
	first := ft.nextStream(t)
	require.Equal(t, 1, ft.joinCount(5))

	start := time.Now()
	first.send(messaging.StreamError{Reason: "backend restarted"})

	require.Eventually(t, func() bool { return sub.State() == StateReconnecting }, time.Second, time.Millisecond)
	ft.nextStream(t)
	assert.GreaterOrEqual(t, time.Since(start), 5*tick, "rejoin waits out the delay")
	assert.Equal(t, 2, ft.joinCount(5))

	errs := rec.errList()
	require.Len(t, errs, 1)
	fault := requireErrorAs[*StreamFaultError](t, errs[0])
	assert.Equal(t, "backend restarted", fault.Reason)

	assert.Never(t, func() bool { return ft.joinCount(5) > 2 }, 10*tick, tick)
	assert.Equal(t, StateStreaming, sub.State())

	waitDone(t, sub.Stop())
}

func TestSubscription_TransportFaultReconnects(t *testing.T) {
	ft := newFakeTransport()
	rec := &recorder{}
	sub := newTestSubscription(ft, 3, testPolicy(tick), rec.callbacks())

	sub.Start()
	ft.nextStream(t).fail(errors.New("connection reset"))
	ft.nextStream(t)

	assert.Equal(t, 2, ft.joinCount(3))
	requireErrorAs[*StreamFaultError](t, rec.errList()[0])

	waitDone(t, sub.Stop())
}

func TestSubscription_CleanEndStopsWithoutRetry(t *testing.T) {
	ft := newFakeTransport()
	rec := &recorder{}
	sub := newTestSubscription(ft, 9, testPolicy(tick), rec.callbacks())

	sub.Start()
	ft.nextStream(t).fail(io.EOF)

	require.Eventually(t, func() bool { return sub.State() == StateStopped }, time.Second, tick)
	require.Eventually(t, func() bool { return len(rec.statusList()) == 1 }, time.Second, tick)
	assert.Equal(t, []string{"down:stream ended"}, rec.statusList())
	assert.Empty(t, rec.errList())
	assert.Never(t, func() bool { return ft.joinCount(9) > 1 }, 10*tick, tick)

	waitDone(t, sub.Done())
	assert.Equal(t, 1, ft.leaveCount(9), "settles with a best-effort leave")
}

func TestSubscription_ReconnectExhausted(t *testing.T) {
	ft := newFakeTransport()
	ft.openErr = errors.New("refused")
	rec := &recorder{}
	p := testPolicy(tick)
	p.MaxAttempts = 2
	sub := newTestSubscription(ft, 4, p, rec.callbacks())

	sub.Start()

	require.Eventually(t, func() bool { return len(rec.errList()) == 4 }, time.Second, tick)
	assert.Equal(t, StateStopped, sub.State())
	assert.Equal(t, 3, ft.joinCount(4), "initial join plus two reconnects")

	errs := rec.errList()
	assert.ErrorIs(t, errs[3], ErrReconnectExhausted)
}

func TestSubscription_DeliveredEventResetsAttempts(t *testing.T) {
	ft := newFakeTransport()
	rec := &recorder{}
	p := testPolicy(tick)
	p.MaxAttempts = 1
	sub := newTestSubscription(ft, 4, p, rec.callbacks())

	sub.Start()
	for i := int64(1); i <= 3; i++ {
		s := ft.nextStream(t)
		s.send(messaging.NewMessage{Message: messaging.Message{ID: i}})
		s.send(messaging.StreamError{Reason: "flaky"})
	}
	ft.nextStream(t)

	assert.Equal(t, 4, ft.joinCount(4))
	assert.NotEqual(t, StateStopped, sub.State())

	waitDone(t, sub.Stop())
}

func TestSubscription_StopLeavesExactlyOnce(t *testing.T) {
	ft := newFakeTransport()
	rec := &recorder{}
	sub := newTestSubscription(ft, 5, testPolicy(tick), rec.callbacks())

	sub.Start()
	ft.nextStream(t)

	done := sub.Stop()
	again := sub.Stop()
	waitDone(t, done)

	assert.Equal(t, done, again)
	assert.Equal(t, 1, ft.leaveCount(5))
	assert.Equal(t, StateStopped, sub.State())
	assert.Empty(t, rec.errList(), "cancellation is not reported")
}

func TestSubscription_StopDuringReconnect(t *testing.T) {
	ft := newFakeTransport()
	sub := newTestSubscription(ft, 5, testPolicy(time.Hour), Callbacks{})

	sub.Start()
	ft.nextStream(t).send(messaging.StreamError{Reason: "boom"})
	require.Eventually(t, func() bool { return sub.State() == StateReconnecting }, time.Second, tick)

	waitDone(t, sub.Stop())

	assert.Equal(t, 1, ft.leaveCount(5))
	assert.Equal(t, 1, ft.joinCount(5))
}

func TestSubscription_StopAfterJoinRejectedStillLeaves(t *testing.T) {
	ft := newFakeTransport()
	ft.joinAck = messaging.Ack{Success: false, Message: "nope"}
	sub := newTestSubscription(ft, 2, testPolicy(tick), Callbacks{})

	sub.Start()
	require.Eventually(t, func() bool { return sub.State() == StateStopped }, time.Second, tick)

	waitDone(t, sub.Stop())
	assert.Equal(t, 1, ft.leaveCount(2))
}

func TestSubscription_LeaveFailureIsAbsorbed(t *testing.T) {
	ft := newFakeTransport()
	ft.leaveErr = errors.New("server gone")
	rec := &recorder{}
	sub := newTestSubscription(ft, 2, testPolicy(tick), rec.callbacks())

	sub.Start()
	ft.nextStream(t)
	waitDone(t, sub.Stop())

	assert.Equal(t, 1, ft.leaveCount(2))
	assert.Empty(t, rec.errList())
	assert.Equal(t, StateStopped, sub.State())
}

func TestSubscription_StopBeforeStart(t *testing.T) {
	ft := newFakeTransport()
	sub := newTestSubscription(ft, 2, testPolicy(tick), Callbacks{})

	waitDone(t, sub.Stop())
	sub.Start()

	assert.Equal(t, StateStopped, sub.State())
	assert.Equal(t, 0, ft.joinCount(2))
	assert.Equal(t, 0, ft.leaveCount(2))
}

func TestPolicy_Delay(t *testing.T) {
	p := DefaultPolicy()
	p.Jitter = 0

	want := []time.Duration{3 * time.Second, 6 * time.Second, 12 * time.Second, 24 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, w := range want {
		assert.Equal(t, w, p.Delay(i+1), "attempt %d", i+1)
	}

	p.Jitter = 0.2
	for i := 0; i < 100; i++ {
		d := p.Delay(1)
		assert.GreaterOrEqual(t, d, 2400*time.Millisecond)
		assert.LessOrEqual(t, d, 3600*time.Millisecond)
	}
}

func TestPolicy_ShouldReconnect(t *testing.T) {
	assert.True(t, Policy{}.ShouldReconnect(1000), "zero means unlimited")
	assert.True(t, Policy{MaxAttempts: 2}.ShouldReconnect(2))
	assert.False(t, Policy{MaxAttempts: 2}.ShouldReconnect(3))
}
