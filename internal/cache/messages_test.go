package cache

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/threadline/internal/core/messaging"
)

func msg(id, createdAt int64) messaging.Message {
	return messaging.Message{ID: id, ThreadID: 1, CreatedAt: createdAt}
}

func ids(s Messages) []int64 {
	out := make([]int64, 0, s.Len())
	for _, m := range s.Items() {
		out = append(out, m.ID)
	}
	return out
}

func TestMessages_MergeOrdersByCreatedAt(t *testing.T) {
	snap := Messages{}.Merge(msg(1, 100))
	snap = snap.Merge(msg(2, 90))

	got := snap.Items()
	require.Len(t, got, 2)
	assert.Equal(t, msg(2, 90), got[0])
	assert.Equal(t, msg(1, 100), got[1])
}

func TestMessages_MergeIsIdempotent(t *testing.T) {
	snap := Messages{}.MergeAll([]messaging.Message{msg(1, 100), msg(2, 110)})

	again := snap.Merge(messaging.Message{ID: 2, ThreadID: 1, CreatedAt: 50, Content: "redelivered"})

	assert.Equal(t, snap.Items(), again.Items())
}

func TestMessages_MergeKeepsTiesInArrivalOrder(t *testing.T) {
	snap := Messages{}.MergeAll([]messaging.Message{msg(3, 100), msg(1, 100), msg(2, 100), msg(4, 90)})

	assert.Equal(t, []int64{4, 3, 1, 2}, ids(snap))
}

func TestMessages_MergeLeavesReceiverUntouched(t *testing.T) {
	before := Messages{}.MergeAll([]messaging.Message{msg(1, 100), msg(3, 300)})
	snapshot := before.Items()

	after := before.Merge(msg(2, 200))

	assert.Equal(t, snapshot, before.Items())
	assert.Equal(t, []int64{1, 2, 3}, ids(after))
}

func TestMessages_MergeRandomizedInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for round := 0; round < 200; round++ {
		var snap Messages
		for i := 0; i < 40; i++ {
			// Small id space forces duplicates; small time space forces ties.
			snap = snap.Merge(msg(rng.Int64N(25), rng.Int64N(10)))
		}

		items := snap.Items()
		seen := map[int64]bool{}
		for i, m := range items {
			require.False(t, seen[m.ID], "duplicate id %d in round %d", m.ID, round)
			seen[m.ID] = true
			if i > 0 {
				require.LessOrEqual(t, items[i-1].CreatedAt, m.CreatedAt, "unsorted at %d in round %d", i, round)
			}
		}
	}
}

func TestFromPage(t *testing.T) {
	// Newest first, with a duplicate.
	page := []messaging.Message{msg(5, 500), msg(4, 400), msg(4, 400), msg(3, 300)}

	snap := FromPage(page)

	assert.Equal(t, []int64{3, 4, 5}, ids(snap))
}

func TestFromPage_ThenMergeStreamed(t *testing.T) {
	snap := FromPage([]messaging.Message{msg(2, 200), msg(1, 100)})

	snap = snap.Merge(msg(3, 300))
	snap = snap.Merge(msg(2, 200))

	assert.Equal(t, []int64{1, 2, 3}, ids(snap))
}

func TestMessages_Tail(t *testing.T) {
	snap := FromPage([]messaging.Message{msg(3, 300), msg(2, 200), msg(1, 100)})

	assert.Equal(t, []int64{2, 3}, ids(snap.Tail(2)))
	assert.Equal(t, []int64{1, 2, 3}, ids(snap.Tail(0)))

	last, ok := snap.Last()
	require.True(t, ok)
	assert.Equal(t, int64(3), last.ID)

	_, ok = Messages{}.Last()
	assert.False(t, ok)
}
