package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// View renders the model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return m.spinner.View() + " " + m.loadingMessage
	}

	if m.state == stateCreatingThread && m.form != nil {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			focusedPaneStyle.Padding(1, 2).Render(titleStyle.Render("New thread")+"\n\n"+m.form.Form().View()))
	}

	bodyHeight := max(3, m.height-2)

	sidebar := paneStyle
	chat := paneStyle
	if m.focus == focusThreads {
		sidebar = focusedPaneStyle
	} else {
		chat = focusedPaneStyle
	}

	left := sidebar.
		Width(sidebarWidth - 2).
		Height(bodyHeight - 2).
		Render(m.threads.View())

	content := m.chat.View()
	if m.showActivity {
		content = m.activity.View()
	}

	right := chat.
		Width(max(10, m.width-sidebarWidth-2)).
		Height(bodyHeight - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			m.chatHeader(),
			content,
			"",
			m.input.View(),
		))

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	return lipgloss.JoinVertical(lipgloss.Left, m.headerView(), body, m.footerView())
}

func (m Model) headerView() string {
	sess := m.service.Session()
	return titleStyle.Render("threadline") + mutedStyle.Render(fmt.Sprintf(" %s %s", iconDot, sess.User.Username))
}

func (m Model) chatHeader() string {
	if m.currentID == 0 {
		return mutedStyle.Render(" Select a thread")
	}

	name := fmt.Sprintf("thread %d", m.currentID)
	if th, ok := m.service.Thread(m.currentID); ok {
		name = th.DisplayName(m.service.Session().User.ID)
	}

	indicator := offlineStyle.Render(iconLive + " " + m.status.Label())
	if m.status.Live {
		indicator = liveStyle.Render(iconLive + " " + m.status.Label())
	}

	return titleStyle.Render(name) + " " + indicator
}

func (m Model) footerView() string {
	switch {
	case m.state == stateLoading:
		return " " + m.spinner.View() + " " + mutedStyle.Render(m.loadingMessage)
	case m.err != nil:
		return " " + errorStyle.Render(m.err.Error())
	case m.focus == focusCompose:
		return " " + m.help.ShortHelpView(m.keys.composeHelp())
	default:
		return " " + m.help.ShortHelpView(m.keys.threadsHelp())
	}
}
