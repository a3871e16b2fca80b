package jsonfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/threadline/internal/core/messaging"
)

func TestActivityStore_RecordAndList(t *testing.T) {
	store := NewActivityStore(t.TempDir())

	require.NoError(t, store.Record(messaging.Activity{Type: messaging.ActivityJoin, ThreadID: 1}))
	require.NoError(t, store.Record(messaging.Activity{Type: messaging.ActivityError, ThreadID: 2, Detail: "boom"}))
	require.NoError(t, store.Record(messaging.Activity{Type: messaging.ActivityLeave, ThreadID: 1}))

	all, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, messaging.ActivityLeave, all[0].Type, "newest first")
	assert.NotEmpty(t, all[0].ID)
	assert.False(t, all[0].Timestamp.IsZero())

	limited, err := store.List(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	thread1, err := store.ListThread(1, 0)
	require.NoError(t, err)
	require.Len(t, thread1, 2)
	for _, a := range thread1 {
		assert.Equal(t, int64(1), a.ThreadID)
	}
}

func TestActivityStore_ListSince(t *testing.T) {
	store := NewActivityStore(t.TempDir())
	now := time.Now()

	require.NoError(t, store.Record(messaging.Activity{Type: messaging.ActivityJoin, Timestamp: now.Add(-time.Hour)}))
	require.NoError(t, store.Record(messaging.Activity{Type: messaging.ActivityReconnect, Timestamp: now}))

	got, err := store.ListSince(now.Add(-time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, messaging.ActivityReconnect, got[0].Type)
}

func TestActivityStore_Retention(t *testing.T) {
	store := NewActivityStore(t.TempDir()).WithMaxActivities(3)

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, store.Record(messaging.Activity{Type: messaging.ActivitySend, MessageID: i}))
	}

	got, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(5), got[0].MessageID)
	assert.Equal(t, int64(3), got[2].MessageID)
}

func TestActivityStore_SkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	store := NewActivityStore(dir)
	require.NoError(t, store.Record(messaging.Activity{Type: messaging.ActivityJoin}))

	f, err := os.OpenFile(filepath.Join(dir, activityFilename), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := store.List(0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
