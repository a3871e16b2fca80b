package session

import (
	"context"
	"errors"
)

// ErrNoSession is returned when no credential has been stored.
var ErrNoSession = errors.New("not logged in")

// Store defines persistence operations for the current session.
type Store interface {
	// Load returns the stored session. Returns ErrNoSession if none.
	Load(ctx context.Context) (Session, error)
	// Save replaces the stored session.
	Save(ctx context.Context, s Session) error
	// Clear removes the stored session. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
