package cache

import (
	"slices"

	"github.com/hay-kot/threadline/internal/core/messaging"
)

// Threads is an immutable snapshot of the thread list, most recently updated
// first.
type Threads struct {
	items []messaging.Thread
}

// NewThreads builds a snapshot from threads in any order.
func NewThreads(threads []messaging.Thread) Threads {
	items := slices.Clone(threads)
	sortThreads(items)
	return Threads{items: items}
}

// ApplyMessage returns a snapshot whose entry for m.ThreadID reflects m as
// its last message, provided m is at least as new as the current preview.
// Unknown threads and older messages leave the snapshot unchanged.
func (t Threads) ApplyMessage(m messaging.Message) Threads {
	idx := slices.IndexFunc(t.items, func(th messaging.Thread) bool {
		return th.ID == m.ThreadID
	})
	if idx < 0 {
		return t
	}

	current := t.items[idx]
	if current.LastMessage != nil {
		if current.LastMessage.ID == m.ID || current.LastMessage.CreatedAt > m.CreatedAt {
			return t
		}
	}

	msg := m
	updated := current
	updated.LastMessage = &msg
	if m.CreatedAt > updated.UpdatedAt {
		updated.UpdatedAt = m.CreatedAt
	}

	items := slices.Clone(t.items)
	items[idx] = updated
	sortThreads(items)

	return Threads{items: items}
}

// Upsert returns a snapshot with th added or replaced.
func (t Threads) Upsert(th messaging.Thread) Threads {
	items := slices.Clone(t.items)
	idx := slices.IndexFunc(items, func(x messaging.Thread) bool { return x.ID == th.ID })
	if idx < 0 {
		items = append(items, th)
	} else {
		items[idx] = th
	}
	sortThreads(items)
	return Threads{items: items}
}

// Get returns the thread with the given id.
func (t Threads) Get(id int64) (messaging.Thread, bool) {
	idx := slices.IndexFunc(t.items, func(th messaging.Thread) bool { return th.ID == id })
	if idx < 0 {
		return messaging.Thread{}, false
	}
	return t.items[idx], true
}

// Len returns the number of threads.
func (t Threads) Len() int {
	return len(t.items)
}

// Items returns a copy of the threads in order.
func (t Threads) Items() []messaging.Thread {
	return slices.Clone(t.items)
}

func sortThreads(items []messaging.Thread) {
	slices.SortStableFunc(items, func(a, b messaging.Thread) int {
		switch {
		case a.UpdatedAt > b.UpdatedAt:
			return -1
		case a.UpdatedAt < b.UpdatedAt:
			return 1
		default:
			return 0
		}
	})
}
