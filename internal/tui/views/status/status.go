package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/qubitpulse/relay-server-rr/internal/tui/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected bool   // WebSocket link to the relay
	Session   string // attached session, "" when idle
	Busy      bool
	Sessions  int
	Err       string
	Width     int
}

func New() Model {
	return Model{}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	var sessStr string
	switch {
	case m.Session == "":
		sessStr = theme.StyleDimmed.Render("no session")
	case m.Busy:
		sessStr = lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(m.Session + " (busy)")
	default:
		sessStr = theme.StyleActive.Render(m.Session)
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + sessStr + sep + fmt.Sprintf("%d sessions", m.Sessions)
	if m.Err != "" {
		content += sep + theme.StyleError.Render(m.Err)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
