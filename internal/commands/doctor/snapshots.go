package doctor

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/hay-kot/threadline/internal/core/messaging"
)

// SnapshotStore is the part of the history snapshot store the check needs.
type SnapshotStore interface {
	Threads(ctx context.Context) ([]int64, error)
	Load(ctx context.Context, threadID int64) ([]messaging.Message, error)
	Remove(ctx context.Context, threadID int64) error
}

// SnapshotCheck finds history snapshots that can no longer be read.
type SnapshotCheck struct {
	store SnapshotStore
	fix   bool
}

// NewSnapshotCheck creates a snapshot check. If fix is true, unreadable
// snapshots are deleted.
func NewSnapshotCheck(store SnapshotStore, fix bool) *SnapshotCheck {
	return &SnapshotCheck{store: store, fix: fix}
}

func (c *SnapshotCheck) Name() string {
	return "History Snapshots"
}

func (c *SnapshotCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	ids, err := c.store.Threads(ctx)
	if err != nil {
		result.add("List snapshots", StatusFail, err.Error())
		return result
	}

	var broken int
	for _, id := range ids {
		_, err := c.store.Load(ctx, id)
		if err == nil || errors.Is(err, messaging.ErrThreadNotFound) {
			continue
		}
		broken++

		label := "thread " + strconv.FormatInt(id, 10)
		if !c.fix {
			result.addFixable(label, StatusWarn, err.Error())
			continue
		}

		if err := c.store.Remove(ctx, id); err != nil {
			result.add(label, StatusFail, fmt.Sprintf("failed to delete: %v", err))
		} else {
			result.add(label, StatusPass, "deleted unreadable snapshot")
		}
	}

	if broken == 0 {
		result.add("Snapshots readable", StatusPass, fmt.Sprintf("%d thread(s) cached", len(ids)))
	}

	return result
}
