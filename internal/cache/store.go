package cache

import (
	"sync"

	"github.com/hay-kot/threadline/internal/core/messaging"
)

// Store holds the current snapshots for every open thread and the thread
// list. Updates swap whole snapshots under a lock; the snapshots handed out
// are never mutated afterwards.
type Store struct {
	mu       sync.RWMutex
	messages map[int64]Messages
	threads  Threads
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{messages: make(map[int64]Messages)}
}

// Merge folds m into its thread's snapshot and the thread list, returning
// the new message snapshot.
func (s *Store) Merge(m messaging.Message) Messages {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.messages[m.ThreadID].Merge(m)
	s.messages[m.ThreadID] = next
	s.threads = s.threads.ApplyMessage(m)
	return next
}

// Load replaces a thread's snapshot wholesale from a newest-first page.
func (s *Store) Load(threadID int64, page []messaging.Message) Messages {
	snap := FromPage(page)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[threadID] = snap
	if last, ok := snap.Last(); ok {
		s.threads = s.threads.ApplyMessage(last)
	}
	return snap
}

// Messages returns the current snapshot for a thread.
func (s *Store) Messages(threadID int64) Messages {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages[threadID]
}

// Forget drops a thread's message snapshot.
func (s *Store) Forget(threadID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, threadID)
}

// SetThreads replaces the thread list.
func (s *Store) SetThreads(threads []messaging.Thread) Threads {
	snap := NewThreads(threads)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = snap
	return snap
}

// UpsertThread adds or replaces a single thread.
func (s *Store) UpsertThread(th messaging.Thread) Threads {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = s.threads.Upsert(th)
	return s.threads
}

// Threads returns the current thread list snapshot.
func (s *Store) Threads() Threads {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threads
}
