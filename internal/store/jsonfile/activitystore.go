package jsonfile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/hay-kot/threadline/internal/core/messaging"
)

const (
	defaultMaxActivities = 1000
	activityFilename     = "activity.jsonl"
)

// ActivityStore implements messaging.ActivityStore using a JSONL file.
type ActivityStore struct {
	dir           string
	maxActivities int
	mu            sync.Mutex
}

var _ messaging.ActivityStore = (*ActivityStore)(nil)

// NewActivityStore creates a new activity store at the given directory.
func NewActivityStore(dir string) *ActivityStore {
	return &ActivityStore{
		dir:           dir,
		maxActivities: defaultMaxActivities,
	}
}

// WithMaxActivities sets the maximum number of activities to retain.
func (s *ActivityStore) WithMaxActivities(max int) *ActivityStore {
	s.maxActivities = max
	return s
}

func (s *ActivityStore) filePath() string {
	return filepath.Join(s.dir, activityFilename)
}

func (s *ActivityStore) lockPath() string {
	return s.filePath() + ".lock"
}

// Record appends an activity event, trimming the log to the retention limit.
func (s *ActivityStore) Record(activity messaging.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now()
	}

	return withFileLock(s.lockPath(), syscall.LOCK_EX, func() error {
		activities, err := s.readUnsafe()
		if err != nil {
			return err
		}

		activities = append(activities, activity)
		if len(activities) > s.maxActivities {
			activities = activities[len(activities)-s.maxActivities:]
		}

		return s.writeUnsafe(activities)
	})
}

// List returns recent activity events, newest first.
func (s *ActivityStore) List(limit int) ([]messaging.Activity, error) {
	return s.collect(limit, func(messaging.Activity) bool { return true })
}

// ListSince returns activity events after since, newest first.
func (s *ActivityStore) ListSince(since time.Time, limit int) ([]messaging.Activity, error) {
	return s.collect(limit, func(a messaging.Activity) bool { return a.Timestamp.After(since) })
}

// ListThread returns activity events for one thread, newest first.
func (s *ActivityStore) ListThread(threadID int64, limit int) ([]messaging.Activity, error) {
	return s.collect(limit, func(a messaging.Activity) bool { return a.ThreadID == threadID })
}

func (s *ActivityStore) collect(limit int, keep func(messaging.Activity) bool) ([]messaging.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []messaging.Activity
	err := withFileLock(s.lockPath(), syscall.LOCK_SH, func() error {
		activities, err := s.readUnsafe()
		if err != nil {
			return err
		}

		for i := len(activities) - 1; i >= 0; i-- {
			if !keep(activities[i]) {
				continue
			}
			result = append(result, activities[i])
			if limit > 0 && len(result) >= limit {
				break
			}
		}
		return nil
	})
	return result, err
}

// readUnsafe reads all activities from the file. Caller must hold the lock.
func (s *ActivityStore) readUnsafe() ([]messaging.Activity, error) {
	f, err := os.Open(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open activity file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	var activities []messaging.Activity
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var activity messaging.Activity
		if err := json.Unmarshal(scanner.Bytes(), &activity); err != nil {
			// Skip malformed lines
			continue
		}
		activities = append(activities, activity)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read activity file: %w", err)
	}

	return activities, nil
}

// writeUnsafe rewrites the log. Caller must hold the lock.
func (s *ActivityStore) writeUnsafe(activities []messaging.Activity) error {
	var buf []byte
	for _, a := range activities {
		line, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode activity: %w", err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return writeFileAtomic(s.filePath(), buf, 0o644)
}
