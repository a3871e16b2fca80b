package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hay-kot/threadline/internal/core/messaging"
)

const defaultMaxMessages = 200

// ThreadFile is the on-disk snapshot of one thread's history.
type ThreadFile struct {
	ThreadID int64               `json:"thread_id"`
	Messages []messaging.Message `json:"messages"`
	SavedAt  time.Time           `json:"saved_at"`
}

// MsgStore keeps the last known history of each thread in its own JSON file,
// so `msg history --cached` and the TUI can show something before the server
// answers.
type MsgStore struct {
	dir         string
	maxMessages int
	mu          sync.RWMutex
}

// NewMsgStore creates a message store in dir
// (e.g., $XDG_DATA_HOME/threadline/threads).
func NewMsgStore(dir string) *MsgStore {
	return &MsgStore{
		dir:         dir,
		maxMessages: defaultMaxMessages,
	}
}

// WithMaxMessages sets the number of newest messages kept per thread.
func (s *MsgStore) WithMaxMessages(max int) *MsgStore {
	if max > 0 {
		s.maxMessages = max
	}
	return s
}

func (s *MsgStore) threadPath(threadID int64) string {
	return filepath.Join(s.dir, strconv.FormatInt(threadID, 10)+".json")
}

func (s *MsgStore) lockPath(threadID int64) string {
	return s.threadPath(threadID) + ".lock"
}

// Save replaces the snapshot for threadID. msgs must be chronological; only
// the newest messages up to the retention limit are written.
func (s *MsgStore) Save(ctx context.Context, threadID int64, msgs []messaging.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(msgs) > s.maxMessages {
		msgs = msgs[len(msgs)-s.maxMessages:]
	}

	file := ThreadFile{
		ThreadID: threadID,
		Messages: slices.Clone(msgs),
		SavedAt:  time.Now(),
	}

	return withFileLock(s.lockPath(threadID), syscall.LOCK_EX, func() error {
		data, err := json.MarshalIndent(file, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal thread %d: %w", threadID, err)
		}
		return writeFileAtomic(s.threadPath(threadID), data, 0o644)
	})
}

// Load returns the cached history for threadID in chronological order.
// Returns messaging.ErrThreadNotFound if nothing is cached.
func (s *MsgStore) Load(ctx context.Context, threadID int64) ([]messaging.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var file ThreadFile
	err := withFileLock(s.lockPath(threadID), syscall.LOCK_SH, func() error {
		var err error
		file, err = s.loadThread(threadID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return file.Messages, nil
}

// Remove deletes the snapshot for threadID. Removing a missing snapshot is
// not an error.
func (s *MsgStore) Remove(ctx context.Context, threadID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := withFileLock(s.lockPath(threadID), syscall.LOCK_EX, func() error {
		if err := os.Remove(s.threadPath(threadID)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove thread %d: %w", threadID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	_ = os.Remove(s.lockPath(threadID))
	return nil
}

// Threads returns the ids of every cached thread in ascending order.
func (s *MsgStore) Threads(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listThreadsUnsafe()
}

// Prune removes snapshots not saved within olderThan. Returns the number of
// threads removed.
func (s *MsgStore) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.listThreadsUnsafe()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan)
	var removed int

	for _, id := range ids {
		err := withFileLock(s.lockPath(id), syscall.LOCK_EX, func() error {
			file, err := s.loadThread(id)
			if err != nil {
				return err
			}
			if file.SavedAt.After(cutoff) {
				return nil
			}
			if err := os.Remove(s.threadPath(id)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove thread %d: %w", id, err)
			}
			removed++
			return nil
		})
		if err != nil {
			return removed, err
		}
		_ = os.Remove(s.lockPath(id))
	}

	return removed, nil
}

// listThreadsUnsafe returns cached thread ids without locking.
// Caller must hold s.mu.
func (s *MsgStore) listThreadsUnsafe() ([]int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read threads directory: %w", err)
	}

	var ids []int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, ok := strings.CutSuffix(entry.Name(), ".json")
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	slices.Sort(ids)
	return ids, nil
}

// loadThread reads a thread file from disk. Caller must hold the file lock.
func (s *MsgStore) loadThread(threadID int64) (ThreadFile, error) {
	data, err := os.ReadFile(s.threadPath(threadID))
	if err != nil {
		if os.IsNotExist(err) {
			return ThreadFile{}, fmt.Errorf("%w: %d", messaging.ErrThreadNotFound, threadID)
		}
		return ThreadFile{}, fmt.Errorf("read thread file: %w", err)
	}

	var file ThreadFile
	if err := json.Unmarshal(data, &file); err != nil {
		return ThreadFile{}, fmt.Errorf("parse thread file: %w", err)
	}
	return file, nil
}
