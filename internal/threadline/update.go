package threadline

import (
	"github.com/hay-kot/threadline/internal/cache"
	"github.com/hay-kot/threadline/internal/core/messaging"
)

// UpdateKind identifies what changed in an Update.
type UpdateKind int

const (
	UpdateMessage UpdateKind = iota // a message was merged into a thread
	UpdateStatus                    // a thread's connection indicator changed
	UpdateError                     // a subscription reported an error
	UpdateThreads                   // the thread list changed
	UpdateEnded                     // a thread's subscription stopped on its own
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateMessage:
		return "message"
	case UpdateStatus:
		return "status"
	case UpdateError:
		return "error"
	case UpdateThreads:
		return "threads"
	case UpdateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Update is a change published on Service.Updates.
type Update struct {
	Kind     UpdateKind
	ThreadID int64
	Message  messaging.Message // UpdateMessage
	Messages cache.Messages    // UpdateMessage: snapshot after the merge
	Status   Status            // UpdateStatus, UpdateError, UpdateEnded
	Err      error             // UpdateError
}
