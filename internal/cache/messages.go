// Package cache holds the local, ordered views of thread history and the
// thread list. Snapshots are immutable values: every update returns a new
// snapshot and leaves the receiver untouched, so readers never observe a
// partially applied merge.
package cache

import (
	"slices"
	"sort"

	"github.com/hay-kot/threadline/internal/core/messaging"
)

// Messages is an immutable snapshot of one thread's history, sorted ascending
// by CreatedAt with no two entries sharing an ID. Entries with equal
// CreatedAt keep their insertion order.
type Messages struct {
	items []messaging.Message
}

// FromPage builds a snapshot from a history page. The page is expected
// newest-first, as the service returns it; the result is chronological and
// deduplicated (first occurrence in chronological order wins).
func FromPage(page []messaging.Message) Messages {
	items := make([]messaging.Message, 0, len(page))
	seen := make(map[int64]struct{}, len(page))

	for i := len(page) - 1; i >= 0; i-- {
		m := page[i]
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		items = append(items, m)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt < items[j].CreatedAt
	})

	return Messages{items: items}
}

// Merge returns a snapshot containing m. If a message with the same ID is
// already present the receiver is returned unchanged. Otherwise m is placed
// after every message with CreatedAt <= m.CreatedAt.
func (s Messages) Merge(m messaging.Message) Messages {
	if s.Contains(m.ID) {
		return s
	}

	// First index whose CreatedAt is strictly greater keeps ties stable.
	idx := sort.Search(len(s.items), func(i int) bool {
		return s.items[i].CreatedAt > m.CreatedAt
	})

	items := make([]messaging.Message, 0, len(s.items)+1)
	items = append(items, s.items[:idx]...)
	items = append(items, m)
	items = append(items, s.items[idx:]...)

	return Messages{items: items}
}

// MergeAll folds each message into the snapshot in order.
func (s Messages) MergeAll(msgs []messaging.Message) Messages {
	for _, m := range msgs {
		s = s.Merge(m)
	}
	return s
}

// Contains reports whether a message with the given ID is present.
func (s Messages) Contains(id int64) bool {
	return slices.ContainsFunc(s.items, func(m messaging.Message) bool {
		return m.ID == id
	})
}

// Len returns the number of messages.
func (s Messages) Len() int {
	return len(s.items)
}

// Items returns a copy of the messages in order.
func (s Messages) Items() []messaging.Message {
	return slices.Clone(s.items)
}

// Last returns the newest message.
func (s Messages) Last() (messaging.Message, bool) {
	if len(s.items) == 0 {
		return messaging.Message{}, false
	}
	return s.items[len(s.items)-1], true
}

// Tail returns a snapshot holding only the newest n messages.
func (s Messages) Tail(n int) Messages {
	if n <= 0 || n >= len(s.items) {
		return s
	}
	return Messages{items: s.items[len(s.items)-n:]}
}
