// Package jsonfile provides JSON file-based persistence for the session
// credential, cached thread history and the activity log.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/hay-kot/threadline/internal/core/session"
)

// Store implements session.Store using a single JSON file. The file holds a
// bearer token and is written with owner-only permissions.
type Store struct {
	path string
	mu   sync.RWMutex
}

var _ session.Store = (*Store)(nil)

// New creates a new session store at the given path.
func New(path string) *Store {
	return &Store{path: path}
}

// Load returns the stored session. Returns session.ErrNoSession if none.
func (s *Store) Load(ctx context.Context) (session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return session.Session{}, session.ErrNoSession
		}
		return session.Session{}, fmt.Errorf("read session file: %w", err)
	}

	if len(data) == 0 {
		return session.Session{}, session.ErrNoSession
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return session.Session{}, fmt.Errorf("parse session file: %w", err)
	}

	if sess.Credential.IsZero() {
		return session.Session{}, session.ErrNoSession
	}

	return sess, nil
}

// Save replaces the stored session.
func (s *Store) Save(ctx context.Context, sess session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return writeFileAtomic(s.path, data, 0o600)
}

// Clear removes the stored session.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
