// Package messaging defines the chat domain types and the transport contracts
// the streaming core consumes.
package messaging

import (
	"fmt"
	"strings"
	"time"
)

// User is a chat participant.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Message is a single immutable chat message. Identity is ID.
type Message struct {
	ID             int64  `json:"id"`
	ThreadID       int64  `json:"thread_id"`
	SenderID       int64  `json:"sender_id"`
	SenderUsername string `json:"sender_username"`
	Content        string `json:"content"`
	CreatedAt      int64  `json:"created_at"` // unix seconds
}

// Time returns CreatedAt as a time.Time.
func (m Message) Time() time.Time {
	return time.Unix(m.CreatedAt, 0)
}

// Thread is a conversation between two or more users. Name is empty for
// direct threads; the display name is derived from the participants.
type Thread struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name,omitempty"`
	Participants []User   `json:"participants"`
	LastMessage  *Message `json:"last_message,omitempty"`
	UpdatedAt    int64    `json:"updated_at"`
}

// DisplayName returns the name shown for the thread to the user with the
// given id. Named threads use their name. Unnamed threads list the other
// participants: a single other participant is shown alone, otherwise the
// first two are joined and an ellipsis marks larger groups.
func (t Thread) DisplayName(currentUserID int64) string {
	if t.Name != "" {
		return t.Name
	}

	others := make([]string, 0, len(t.Participants))
	for _, p := range t.Participants {
		if p.ID != currentUserID {
			others = append(others, p.Username)
		}
	}

	switch len(others) {
	case 0:
		return fmt.Sprintf("thread %d", t.ID)
	case 1:
		return others[0]
	}

	if len(others) > 2 {
		others = others[:2]
	}
	name := strings.Join(others, ", ")
	if len(t.Participants) > 3 {
		name += "..."
	}
	return name
}

// IsDirect reports whether the thread is an unnamed two-party thread.
func (t Thread) IsDirect() bool {
	return t.Name == "" && len(t.Participants) == 2
}

// RelativeTime formats a unix timestamp relative to now the way thread
// previews show it.
func RelativeTime(ts int64, now time.Time) string {
	d := now.Sub(time.Unix(ts, 0))

	minutes := int(d / time.Minute)
	if minutes < 1 {
		return "now"
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm ago", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh ago", hours)
	}

	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd ago", days)
	}

	return time.Unix(ts, 0).Format("2006-01-02")
}
