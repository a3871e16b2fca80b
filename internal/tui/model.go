package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/hay-kot/threadline/internal/core/config"
	"github.com/hay-kot/threadline/internal/core/validate"
	"github.com/hay-kot/threadline/internal/threadline"
)

// UIState represents the current state of the TUI.
type UIState int

const (
	stateNormal UIState = iota
	stateLoading
	stateCreatingThread
)

// Focus is the pane receiving keys in stateNormal.
type Focus int

const (
	focusThreads Focus = iota
	focusCompose
)

// Key constants for event handling.
const (
	keyEnter = "enter"
	keyCtrlC = "ctrl+c"
)

// sidebarWidth is the width of the thread list including its border.
const sidebarWidth = 34

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	ctx     context.Context
	cfg     *config.Config
	service *threadline.Service
	keys    keyMap
	help    help.Model

	state          UIState
	focus          Focus
	spinner        spinner.Model
	loadingMessage string
	width          int
	height         int
	err            error
	quitting       bool

	threads  *ThreadList
	chat     *ChatView
	activity *ActivityView
	input    textinput.Model
	form     *NewThreadForm

	// showActivity swaps the chat pane for the open thread's activity log.
	showActivity bool

	currentID int64
	status    threadline.Status
}

// New creates a new TUI model. ctx bounds every request the TUI makes.
func New(ctx context.Context, service *threadline.Service, cfg *config.Config) Model {
	userID := service.Session().User.ID

	input := textinput.New()
	input.Placeholder = "Write a message"
	input.Prompt = "› "
	input.CharLimit = validate.MaxMessageLength

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return Model{
		ctx:            ctx,
		cfg:            cfg,
		service:        service,
		keys:           defaultKeyMap(),
		help:           help.New(),
		state:          stateLoading,
		loadingMessage: "Loading threads...",
		spinner:        s,
		threads:        NewThreadList(userID),
		chat:           NewChatView(userID, cfg.MarkdownEnabled()),
		activity:       NewActivityView(),
		input:          input,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadThreads(m.ctx, m.service),
		waitForUpdate(m.ctx, m.service),
		m.spinner.Tick,
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case spinner.TickMsg:
		if m.state != stateLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case threadsLoadedMsg:
		if m.state == stateLoading {
			m.state = stateNormal
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.threads.SetThreads(msg.threads)
		return m, nil

	case threadOpenedMsg:
		if msg.threadID != m.currentID {
			// The user moved on while the thread loaded.
			if msg.err == nil {
				m.service.Close(m.ctx, msg.threadID)
			}
			return m, nil
		}
		m.state = stateNormal
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.chat.SetMessages(msg.messages)
		m.status = m.service.Status(msg.threadID)
		if m.showActivity {
			return m, loadActivity(m.service, msg.threadID)
		}
		return m, nil

	case activityLoadedMsg:
		if msg.threadID != m.currentID {
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.activity.SetActivities(msg.activities)
		return m, nil

	case messageSentMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil

	case threadCreatedMsg:
		m.state = stateNormal
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.threads.SetThreads(m.service.Threads())
		return m, m.open(msg.thread.ID)

	case updateMsg:
		return m, tea.Batch(m.applyUpdate(msg.update), waitForUpdate(m.ctx, m.service))

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.state == stateCreatingThread {
		return m.updateForm(msg)
	}

	return m, nil
}

// applyUpdate folds a service update into the model. It returns a command
// when the activity view needs reloading.
func (m *Model) applyUpdate(u threadline.Update) tea.Cmd {
	switch u.Kind {
	case threadline.UpdateMessage:
		if u.ThreadID == m.currentID {
			m.chat.SetMessages(u.Messages)
		}
		m.threads.SetThreads(m.service.Threads())
	case threadline.UpdateStatus, threadline.UpdateError, threadline.UpdateEnded:
		if u.ThreadID == m.currentID {
			m.status = u.Status
		}
	case threadline.UpdateThreads:
		m.threads.SetThreads(m.service.Threads())
		return nil
	}

	if m.showActivity && u.ThreadID == m.currentID {
		return loadActivity(m.service, m.currentID)
	}
	return nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == keyCtrlC {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.state {
	case stateCreatingThread:
		if msg.String() == "esc" {
			m.form = nil
			m.state = stateNormal
			return m, nil
		}
		return m.updateForm(msg)
	case stateLoading:
		return m, nil
	}

	if m.focus == focusCompose {
		return m.handleComposeKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.threads.MoveUp()
	case key.Matches(msg, m.keys.Down):
		m.threads.MoveDown()
	case key.Matches(msg, m.keys.Open):
		if th, ok := m.threads.Selected(); ok {
			return m, m.open(th.ID)
		}
	case key.Matches(msg, m.keys.Compose):
		if m.currentID != 0 {
			m.focus = focusCompose
			return m, m.input.Focus()
		}
	case key.Matches(msg, m.keys.Refresh):
		return m, loadThreads(m.ctx, m.service)
	case key.Matches(msg, m.keys.Activity):
		m.showActivity = !m.showActivity
		if m.showActivity && m.currentID != 0 {
			return m, loadActivity(m.service, m.currentID)
		}
	case key.Matches(msg, m.keys.NewThread):
		m.form = NewNewThreadForm()
		m.state = stateCreatingThread
		return m, m.form.Form().Init()
	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		return m, m.scroll(msg)
	}

	return m, nil
}

func (m Model) handleComposeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.focus = focusThreads
		m.input.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Send):
		content := strings.TrimSpace(m.input.Value())
		if content == "" || m.currentID == 0 {
			return m, nil
		}
		m.input.Reset()
		return m, sendMessage(m.ctx, m.service, m.currentID, content)
	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		return m, m.scroll(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// scroll pages whichever view fills the chat pane.
func (m *Model) scroll(msg tea.KeyMsg) tea.Cmd {
	if !m.showActivity {
		return m.chat.Update(msg)
	}

	page := max(1, m.activity.visibleLines()-1)
	if key.Matches(msg, m.keys.PageUp) {
		m.activity.ScrollUp(page)
	} else {
		m.activity.ScrollDown(page)
	}
	return nil
}

// updateForm forwards messages to the new thread form and acts on its
// completion.
func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.form.Form().Update(msg)
	if f, ok := form.(*huh.Form); ok {
		switch f.State {
		case huh.StateCompleted:
			result := m.form.Result()
			m.form = nil
			m.state = stateLoading
			m.loadingMessage = "Creating thread..."
			return m, tea.Batch(createThread(m.ctx, m.service, result), m.spinner.Tick)
		case huh.StateAborted:
			m.form = nil
			m.state = stateNormal
			return m, nil
		}
	}
	return m, cmd
}

// open switches the chat pane to threadID, closing the previous thread's
// subscription.
func (m *Model) open(threadID int64) tea.Cmd {
	// An ended subscription can be reopened by selecting the thread again.
	if threadID == m.currentID && m.service.IsOpen(threadID) {
		return nil
	}

	if m.currentID != 0 {
		m.service.Close(m.ctx, m.currentID)
	}

	m.currentID = threadID
	m.status = threadline.Status{}
	m.threads.SetOpen(threadID)
	m.chat.Clear()
	m.activity.SetActivities(nil)
	m.state = stateLoading
	m.loadingMessage = "Loading messages..."

	return tea.Batch(openThread(m.ctx, m.service, threadID), m.spinner.Tick)
}

// layout sizes the panes from the window size.
func (m *Model) layout() {
	// Borders take two rows and columns per pane; the header and help take
	// one row each and the input three.
	bodyHeight := max(3, m.height-2)

	m.threads.SetSize(sidebarWidth-2, bodyHeight-2)

	chatWidth := max(10, m.width-sidebarWidth-2)
	m.chat.SetSize(chatWidth, max(1, bodyHeight-2-1-3))
	m.activity.SetSize(chatWidth, max(1, bodyHeight-2-1-3))
	m.input.Width = max(10, chatWidth-4)
}

// CurrentThread returns the thread shown in the chat pane, or zero.
func (m Model) CurrentThread() int64 {
	return m.currentID
}
