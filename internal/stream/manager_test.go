package stream

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/threadline/internal/cache"
	"github.com/hay-kot/threadline/internal/core/messaging"
)

func newTestManager(ft *fakeTransport) *Manager {
	return NewManager(zerolog.Nop(), ft, WithPolicy(testPolicy(tick)))
}

func TestManager_ResubscribeKeepsOneActive(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(ft)

	first := m.Subscribe("token", 5, Handlers{})
	ft.nextStream(t)
	second := m.Subscribe("token", 5, Handlers{})
	ft.nextStream(t)

	waitDone(t, first.Done())

	assert.Equal(t, StateStopped, first.State())
	assert.Equal(t, 1, ft.leaveCount(5))
	assert.Equal(t, 2, ft.joinCount(5))
	assert.Equal(t, 1, m.registry.Len())
	assert.True(t, m.IsActive(5))
	require.Eventually(t, func() bool { return second.State() == StateStreaming }, time.Second, tick)

	waitDone(t, second.Stop())
	assert.False(t, m.IsActive(5))
}

func TestManager_StaleHandleDoesNotStopReplacement(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(ft)

	first := m.Subscribe("token", 5, Handlers{})
	ft.nextStream(t)
	second := m.Subscribe("token", 5, Handlers{})
	ft.nextStream(t)

	waitDone(t, first.Stop())
	waitDone(t, first.Stop())

	assert.True(t, m.IsActive(5))
	require.Eventually(t, func() bool { return second.State() == StateStreaming }, time.Second, tick)
	assert.Equal(t, 1, ft.leaveCount(5))
}

func TestManager_HandleStopIsIdempotent(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(ft)

	h := m.Subscribe("token", 8, Handlers{})
	ft.nextStream(t)

	for i := 0; i < 3; i++ {
		waitDone(t, h.Stop())
	}

	assert.Equal(t, 1, ft.leaveCount(8))
	assert.False(t, m.IsActive(8))
	assert.Equal(t, StateStopped, m.State(8))
}

func TestManager_MergesIntoCache(t *testing.T) {
	ft := newFakeTransport()
	store := cache.NewStore()
	store.SetThreads([]messaging.Thread{{ID: 5, UpdatedAt: 1}})
	m := NewManager(zerolog.Nop(), ft, WithPolicy(testPolicy(tick)), WithCache(store))

	var (
		mu    sync.Mutex
		snaps []cache.Messages
	)
	h := m.Subscribe("token", 5, Handlers{
		OnMessage: func(_ messaging.Message, snap cache.Messages) {
			mu.Lock()
			defer mu.Unlock()
			snaps = append(snaps, snap)
		},
	})

	s := ft.nextStream(t)
	s.send(messaging.NewMessage{Message: messaging.Message{ID: 1, ThreadID: 5, CreatedAt: 100}})
	s.send(messaging.NewMessage{Message: messaging.Message{ID: 2, ThreadID: 5, CreatedAt: 90}})
	s.send(messaging.NewMessage{Message: messaging.Message{ID: 1, ThreadID: 5, CreatedAt: 100}})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(snaps) == 3
	}, time.Second, tick)

	last := snaps[2].Items()
	require.Len(t, last, 2)
	assert.Equal(t, int64(2), last[0].ID)
	assert.Equal(t, int64(1), last[1].ID)

	th, ok := store.Threads().Get(5)
	require.True(t, ok)
	assert.Equal(t, int64(1), th.LastMessage.ID)
	assert.Equal(t, int64(100), th.UpdatedAt)

	waitDone(t, h.Stop())
}

func TestManager_StopAll(t *testing.T) {
	ft := newFakeTransport()
	m := newTestManager(ft)

	handles := []*Handle{
		m.Subscribe("token", 1, Handlers{}),
		m.Subscribe("token", 2, Handlers{}),
		m.Subscribe("token", 3, Handlers{}),
	}
	for range handles {
		ft.nextStream(t)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.StopAll(ctx))

	for _, h := range handles {
		assert.Equal(t, StateStopped, h.State())
		assert.Equal(t, 1, ft.leaveCount(h.ThreadID()))
		assert.False(t, m.IsActive(h.ThreadID()))
	}
	assert.Equal(t, 0, m.registry.Len())
}

func TestManager_SelfStoppedSubscriptionIsDiscarded(t *testing.T) {
	tests := []struct {
		name string
		prep func(ft *fakeTransport)
		end  func(t *testing.T, ft *fakeTransport)
	}{
		{
			name: "clean end",
			end: func(t *testing.T, ft *fakeTransport) {
				ft.nextStream(t).fail(io.EOF)
			},
		},
		{
			name: "join rejected",
			prep: func(ft *fakeTransport) {
				ft.joinAck = messaging.Ack{Success: false, Message: "not a participant"}
			},
			end: func(*testing.T, *fakeTransport) {},
		},
		{
			name: "reconnects exhausted",
			prep: func(ft *fakeTransport) {
				ft.openErr = io.ErrUnexpectedEOF
			},
			end: func(*testing.T, *fakeTransport) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := newFakeTransport()
			if tt.prep != nil {
				tt.prep(ft)
			}
			p := testPolicy(tick)
			p.MaxAttempts = 1
			m := NewManager(zerolog.Nop(), ft, WithPolicy(p))

			h := m.Subscribe("token", 5, Handlers{})
			tt.end(t, ft)

			waitDone(t, h.Done())

			assert.Equal(t, 0, m.registry.Len())
			assert.False(t, m.IsActive(5))
			assert.Equal(t, StateStopped, m.State(5))
			assert.Equal(t, 1, ft.leaveCount(5))

			waitDone(t, h.Stop())
			assert.Equal(t, 1, ft.leaveCount(5), "explicit stop after the fact does not leave again")
		})
	}
}

func TestRegistry_StopUnknownThread(t *testing.T) {
	r := NewRegistry()
	waitDone(t, r.Stop(42))
	assert.False(t, r.IsActive(42))
}
