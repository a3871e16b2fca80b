package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThread_DisplayName(t *testing.T) {
	alice := User{ID: 1, Username: "alice"}
	bob := User{ID: 2, Username: "bob"}
	carol := User{ID: 3, Username: "carol"}
	dave := User{ID: 4, Username: "dave"}

	tests := []struct {
		name   string
		thread Thread
		want   string
	}{
		{
			name:   "named thread",
			thread: Thread{ID: 1, Name: "launch", Participants: []User{alice, bob}},
			want:   "launch",
		},
		{
			name:   "direct thread shows other participant",
			thread: Thread{ID: 2, Participants: []User{alice, bob}},
			want:   "bob",
		},
		{
			name:   "small group lists others",
			thread: Thread{ID: 3, Participants: []User{alice, bob, carol}},
			want:   "bob, carol",
		},
		{
			name:   "large group is truncated",
			thread: Thread{ID: 4, Participants: []User{alice, bob, carol, dave}},
			want:   "bob, carol...",
		},
		{
			name:   "no other participants",
			thread: Thread{ID: 5, Participants: []User{alice}},
			want:   "thread 5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.thread.DisplayName(alice.ID))
		})
	}
}

func TestThread_IsDirect(t *testing.T) {
	assert.True(t, Thread{Participants: []User{{ID: 1}, {ID: 2}}}.IsDirect())
	assert.False(t, Thread{Name: "x", Participants: []User{{ID: 1}, {ID: 2}}}.IsDirect())
	assert.False(t, Thread{Participants: []User{{ID: 1}, {ID: 2}, {ID: 3}}}.IsDirect())
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) int64 { return now.Add(-d).Unix() }

	tests := []struct {
		ts   int64
		want string
	}{
		{at(30 * time.Second), "now"},
		{at(5 * time.Minute), "5m ago"},
		{at(3 * time.Hour), "3h ago"},
		{at(49 * time.Hour), "2d ago"},
		{at(10 * 24 * time.Hour), time.Unix(at(10*24*time.Hour), 0).Format("2006-01-02")},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, RelativeTime(tt.ts, now))
		})
	}
}
