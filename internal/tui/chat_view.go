package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/threadline/internal/cache"
	"github.com/hay-kot/threadline/internal/core/messaging"
)

// glamourGutter is the margin glamour adds on each side of rendered text.
const glamourGutter = 2

// ChatView shows one thread's messages in a scrollable viewport. It sticks to
// the bottom while the user has not scrolled up.
type ChatView struct {
	viewport      viewport.Model
	messages      cache.Messages
	currentUserID int64
	markdown      bool
	renderer      *glamour.TermRenderer
	rendered      map[int64]string // message id -> rendered body
}

// NewChatView creates a chat view. When markdown is true message bodies are
// rendered with glamour.
func NewChatView(currentUserID int64, markdown bool) *ChatView {
	return &ChatView{
		viewport:      viewport.New(0, 0),
		currentUserID: currentUserID,
		markdown:      markdown,
		rendered:      make(map[int64]string),
	}
}

// SetSize resizes the viewport and re-renders at the new width.
func (v *ChatView) SetSize(width, height int) {
	if width == v.viewport.Width && height == v.viewport.Height {
		return
	}

	v.viewport.Width = width
	v.viewport.Height = height
	v.rendered = make(map[int64]string)
	v.renderer = nil

	if v.markdown && width > 0 {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("tokyo-night"),
			glamour.WithWordWrap(max(10, width-2*glamourGutter)),
		)
		if err == nil {
			v.renderer = r
		}
	}

	v.refresh(v.viewport.AtBottom())
}

// SetMessages replaces the snapshot being shown.
func (v *ChatView) SetMessages(msgs cache.Messages) {
	follow := v.viewport.AtBottom() || v.messages.Len() == 0
	v.messages = msgs
	v.refresh(follow)
}

// Clear empties the view, e.g. when switching threads.
func (v *ChatView) Clear() {
	v.messages = cache.Messages{}
	v.rendered = make(map[int64]string)
	v.refresh(true)
}

// Update forwards scroll keys and mouse events to the viewport.
func (v *ChatView) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return cmd
}

// View renders the viewport.
func (v *ChatView) View() string {
	if v.messages.Len() == 0 {
		return mutedStyle.Render(" No messages yet.")
	}
	return v.viewport.View()
}

func (v *ChatView) refresh(follow bool) {
	v.viewport.SetContent(v.render())
	if follow {
		v.viewport.GotoBottom()
	}
}

func (v *ChatView) render() string {
	items := v.messages.Items()
	blocks := make([]string, 0, len(items))

	for _, m := range items {
		blocks = append(blocks, v.header(m)+"\n"+v.body(m))
	}
	return strings.Join(blocks, "\n\n")
}

func (v *ChatView) header(m messaging.Message) string {
	name := m.SenderUsername
	if name == "" {
		name = "unknown"
	}

	style := senderStyle
	if m.SenderID == v.currentUserID {
		style = selfStyle
	}

	return " " + style.Render(name) + " " + mutedStyle.Render(m.Time().Format(time.Kitchen))
}

func (v *ChatView) body(m messaging.Message) string {
	if out, ok := v.rendered[m.ID]; ok {
		return out
	}

	out := ""
	if v.renderer != nil {
		if r, err := v.renderer.Render(m.Content); err == nil {
			out = strings.TrimRight(r, "\n")
		}
	}
	if out == "" {
		width := max(10, v.viewport.Width-2)
		out = lipgloss.NewStyle().Width(width).PaddingLeft(1).Render(m.Content)
	}

	v.rendered[m.ID] = out
	return out
}
