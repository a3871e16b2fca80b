package messaging

import "time"

// ActivityType represents the type of streaming activity.
type ActivityType string

const (
	ActivityJoin      ActivityType = "join"
	ActivityLeave     ActivityType = "leave"
	ActivityReconnect ActivityType = "reconnect"
	ActivityError     ActivityType = "error"
	ActivityStatus    ActivityType = "status"
	ActivitySend      ActivityType = "send"
)

// Activity represents a streaming lifecycle event worth keeping a record of.
type Activity struct {
	ID        string       `json:"id"`
	Type      ActivityType `json:"type"`
	ThreadID  int64        `json:"thread_id"`
	Detail    string       `json:"detail,omitempty"`
	MessageID int64        `json:"message_id,omitempty"` // For send events
	Timestamp time.Time    `json:"timestamp"`
}

// ActivityStore defines persistence operations for activity events.
type ActivityStore interface {
	// Record records an activity event.
	Record(activity Activity) error
	// List returns recent activity events, newest first.
	// Limit of 0 returns all events.
	List(limit int) ([]Activity, error)
	// ListSince returns activity events since the given time, newest first.
	ListSince(since time.Time, limit int) ([]Activity, error)
}
