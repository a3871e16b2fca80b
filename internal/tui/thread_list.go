package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/threadline/internal/core/messaging"
)

// ThreadList renders the thread sidebar: one entry per thread with its
// display name, relative time and a preview of the last message.
type ThreadList struct {
	threads       []messaging.Thread
	currentUserID int64
	openID        int64
	cursor        int
	offset        int
	width         int
	height        int
	now           func() time.Time
}

// linesPerThread is the height of one entry: name row and preview row.
const linesPerThread = 2

// NewThreadList creates an empty list for the given user.
func NewThreadList(currentUserID int64) *ThreadList {
	return &ThreadList{currentUserID: currentUserID, now: time.Now}
}

// SetThreads replaces the threads, keeping the cursor on the same thread
// when it is still present.
func (v *ThreadList) SetThreads(threads []messaging.Thread) {
	var selectedID int64
	if th, ok := v.Selected(); ok {
		selectedID = th.ID
	}

	v.threads = threads
	v.cursor = 0
	for i, th := range threads {
		if th.ID == selectedID {
			v.cursor = i
			break
		}
	}
	v.clampOffset()
}

// SetOpen marks the thread shown in the chat pane.
func (v *ThreadList) SetOpen(threadID int64) {
	v.openID = threadID
}

// SetSize sets the viewport dimensions.
func (v *ThreadList) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.clampOffset()
}

// Len returns the number of threads.
func (v *ThreadList) Len() int {
	return len(v.threads)
}

// Selected returns the thread under the cursor.
func (v *ThreadList) Selected() (messaging.Thread, bool) {
	if v.cursor < 0 || v.cursor >= len(v.threads) {
		return messaging.Thread{}, false
	}
	return v.threads[v.cursor], true
}

// MoveUp moves cursor up.
func (v *ThreadList) MoveUp() {
	if v.cursor > 0 {
		v.cursor--
		v.clampOffset()
	}
}

// MoveDown moves cursor down.
func (v *ThreadList) MoveDown() {
	if v.cursor < len(v.threads)-1 {
		v.cursor++
		v.clampOffset()
	}
}

func (v *ThreadList) visibleThreads() int {
	return max(1, v.height/linesPerThread)
}

// clampOffset ensures the offset keeps the cursor visible.
func (v *ThreadList) clampOffset() {
	visible := v.visibleThreads()

	if v.cursor < v.offset {
		v.offset = v.cursor
	} else if v.cursor >= v.offset+visible {
		v.offset = v.cursor - visible + 1
	}

	v.offset = max(0, min(v.offset, len(v.threads)-visible))
}

// View renders the visible threads.
func (v *ThreadList) View() string {
	if len(v.threads) == 0 {
		return mutedStyle.Render(" No threads. Press n to start one.")
	}

	now := v.now()
	end := min(len(v.threads), v.offset+v.visibleThreads())
	textWidth := max(4, v.width-2)

	var b strings.Builder
	for i := v.offset; i < end; i++ {
		th := v.threads[i]
		selected := i == v.cursor

		marker := " "
		nameStyle := normalStyle
		if selected {
			marker = selectedBorderStyle.Render(iconCursor)
			nameStyle = selectedStyle
		}

		name := th.DisplayName(v.currentUserID)
		if th.ID == v.openID {
			name = iconLive + " " + name
		}

		var when string
		if th.UpdatedAt > 0 {
			when = messaging.RelativeTime(th.UpdatedAt, now)
		}
		nameWidth := max(1, textWidth-lipgloss.Width(when)-1)
		fmt.Fprintf(&b, "%s%s %s\n", marker, nameStyle.Render(fit(name, nameWidth)), mutedStyle.Render(when))

		preview := ""
		if th.LastMessage != nil {
			preview = strings.Join(strings.Fields(th.LastMessage.Content), " ")
		}
		fmt.Fprintf(&b, " %s\n", mutedStyle.Render(fit(preview, textWidth)))
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// fit truncates or pads s to exactly width cells.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if lipgloss.Width(s) > width {
		for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
			r = r[:len(r)-1]
		}
		s = string(r) + "…"
	}
	return s + strings.Repeat(" ", max(0, width-lipgloss.Width(s)))
}
