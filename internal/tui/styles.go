// Package tui implements the Bubble Tea TUI for threadline.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/threadline/internal/styles"
)

// Styles used for rendering the TUI.
var (
	// Title style for pane headers.
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.ColorBlue).
			PaddingLeft(1)

	// Selected thread style.
	selectedStyle = lipgloss.NewStyle().
			Foreground(styles.ColorBlue).
			Bold(true)

	// Normal item style (no color, uses terminal default).
	normalStyle = lipgloss.NewStyle()

	// Subtle text: timestamps, previews, help.
	mutedStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray)

	// Selected border style for left accent bar.
	selectedBorderStyle = lipgloss.NewStyle().
				Foreground(styles.ColorBlue)

	// Sender names.
	senderStyle = lipgloss.NewStyle().
			Foreground(styles.ColorBlue).
			Bold(true)

	// Messages written by the current user.
	selfStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGreen).
			Bold(true)

	liveStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGreen)

	offlineStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.ColorRed)

	// Pane borders.
	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(styles.ColorGray)

	focusedPaneStyle = paneStyle.
				BorderForeground(styles.ColorBlue)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(styles.ColorBlue)
)

// Icons and symbols.
const (
	iconLive   = "●"
	iconDot    = "•"
	iconCursor = "▌"
)
