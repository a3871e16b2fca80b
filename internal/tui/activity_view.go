package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/threadline/internal/core/messaging"
	"github.com/hay-kot/threadline/internal/styles"
)

// ActivityView lists the recorded stream activity of the open thread.
type ActivityView struct {
	activities []messaging.Activity
	width      int
	height     int
	offset     int
}

// NewActivityView creates a new activity view.
func NewActivityView() *ActivityView {
	return &ActivityView{}
}

// SetActivities replaces the events shown, newest first.
func (v *ActivityView) SetActivities(activities []messaging.Activity) {
	v.activities = activities
	v.clampOffset()
}

// SetSize sets the viewport dimensions.
func (v *ActivityView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.clampOffset()
}

// visibleLines returns the number of rows left after the column header.
func (v *ActivityView) visibleLines() int {
	return max(1, v.height-1)
}

func (v *ActivityView) clampOffset() {
	maxOffset := max(0, len(v.activities)-v.visibleLines())
	v.offset = min(max(v.offset, 0), maxOffset)
}

// ScrollUp moves the window towards newer events.
func (v *ActivityView) ScrollUp(n int) {
	v.offset -= n
	v.clampOffset()
}

// ScrollDown moves the window towards older events.
func (v *ActivityView) ScrollDown(n int) {
	v.offset += n
	v.clampOffset()
}

const (
	activityTimeWidth = 8 // "14:32:01"
	activityTypeWidth = 9 // "reconnect"
)

// View renders the activity view.
func (v *ActivityView) View() string {
	var b strings.Builder

	header := fmt.Sprintf("%-*s %-*s %s", activityTimeWidth, "Time", activityTypeWidth, "Event", "Detail")
	b.WriteString(" " + mutedStyle.Render(header))

	if len(v.activities) == 0 {
		b.WriteString("\n" + mutedStyle.Render(" No activity yet"))
		return b.String()
	}

	end := min(v.offset+v.visibleLines(), len(v.activities))
	for i := v.offset; i < end; i++ {
		b.WriteString("\n")
		b.WriteString(v.renderLine(v.activities[i]))
	}

	return b.String()
}

func (v *ActivityView) renderLine(a messaging.Activity) string {
	detail := a.Detail
	if a.Type == messaging.ActivitySend && a.MessageID != 0 {
		detail = fmt.Sprintf("message %d", a.MessageID)
	}

	detailWidth := v.width - activityTimeWidth - activityTypeWidth - 3
	detail = fit(strings.Join(strings.Fields(detail), " "), max(detailWidth, 1))

	typeStyle := lipgloss.NewStyle().Foreground(activityColor(a.Type)).Bold(true)

	return " " + mutedStyle.Render(a.Timestamp.Local().Format("15:04:05")) + " " +
		typeStyle.Render(fmt.Sprintf("%-*s", activityTypeWidth, a.Type)) + " " +
		detail
}

func activityColor(t messaging.ActivityType) lipgloss.Color {
	switch t {
	case messaging.ActivityJoin, messaging.ActivitySend:
		return styles.ColorGreen
	case messaging.ActivityReconnect:
		return styles.ColorYellow
	case messaging.ActivityError:
		return styles.ColorRed
	case messaging.ActivityStatus:
		return styles.ColorBlue
	default:
		return styles.ColorGray
	}
}
