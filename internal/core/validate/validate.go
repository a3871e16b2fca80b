// Package validate provides shared validation functions.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is the longest message body the client will send.
const MaxMessageLength = 4000

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,32}$`)

// MessageContent validates a message body is non-blank and within the size limit.
func MessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("message is empty")
	}
	if n := utf8.RuneCountInString(content); n > MaxMessageLength {
		return fmt.Errorf("message is %d characters, limit is %d", n, MaxMessageLength)
	}
	return nil
}

// Username validates a participant handle.
func Username(name string) error {
	if name == "" {
		return fmt.Errorf("username is required")
	}
	if !usernamePattern.MatchString(name) {
		return fmt.Errorf("invalid username %q", name)
	}
	return nil
}

// Participants validates the usernames for a new thread and returns them
// trimmed with duplicates removed, in first-seen order.
func Participants(usernames []string) ([]string, error) {
	seen := make(map[string]bool, len(usernames))
	out := make([]string, 0, len(usernames))

	for _, raw := range usernames {
		name := strings.TrimSpace(raw)
		if err := Username(name); err != nil {
			return nil, err
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("at least one participant is required")
	}
	return out, nil
}
