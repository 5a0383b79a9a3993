// Package app is the relay TUI's root Bubble Tea model: the relayed pane,
// a session list, a status bar and an input line.
package app

import (
	"context"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/qubitpulse/relay-server-rr/internal/tui/client"
	"github.com/qubitpulse/relay-server-rr/internal/tui/theme"
	"github.com/qubitpulse/relay-server-rr/internal/tui/views/status"
	"github.com/qubitpulse/relay-server-rr/internal/ws"
)

const sidebarWidth = 24

// Conn is the relay connection the model drives. *client.WSClient
// implements it.
type Conn interface {
	Listen(ctx context.Context) tea.Cmd
	ReadLoop(ctx context.Context) tea.Cmd
	SendInput(text string) error
	SendKey(key string) error
	SendCommand(action, session, command string) error
}

// Model is the root Bubble Tea model.
type Model struct {
	conn   Conn
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	sessions    []string
	selectedIdx int
	active      string

	output    viewport.Model
	input     textinput.Model
	statusBar status.Model

	connected bool
}

func New(conn Conn) Model {
	ctx, cancel := context.WithCancel(context.Background())

	input := textinput.New()
	input.Prompt = "❯ "
	input.Placeholder = "type a command for the session, or :new :attach :kill :detach"
	input.CharLimit = 4096
	input.Focus()

	return Model{
		conn:      conn,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		output:    viewport.New(0, 0),
		input:     input,
		statusBar: status.New(),
	}
}

// Init starts the WebSocket connection.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.conn.Listen(m.ctx))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case client.ConnectedMsg:
		m.connected = true
		m.statusBar.Connected = true
		m.statusBar.Err = ""
		return m, m.conn.ReadLoop(m.ctx)

	case client.DisconnectedMsg:
		m.connected = false
		m.statusBar.Connected = false
		m.active = ""
		m.statusBar.Session = ""
		m.statusBar.Busy = false
		return m, m.conn.Listen(m.ctx)

	case client.OutputMsg:
		m.output.SetContent(msg.Content)
		m.output.GotoBottom()
		return m, m.conn.ReadLoop(m.ctx)

	case client.StatusMsg:
		m.applyStatus(msg.Status)
		return m, m.conn.ReadLoop(m.ctx)

	case client.SessionsMsg:
		m.applySessions(msg.Sessions)
		return m, m.conn.ReadLoop(m.ctx)

	case client.PongMsg:
		return m, m.conn.ReadLoop(m.ctx)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.statusBar.Width = width

	// status bar (3) + input (1) + help (1) + output border (2)
	m.output.Width = max(width-sidebarWidth-3, 10)
	m.output.Height = max(height-7, 1)
	m.input.Width = max(width-4, 10)
}

func (m *Model) applyStatus(st ws.StatusMessage) {
	m.active = ""
	if st.Session != nil {
		m.active = *st.Session
	}
	m.statusBar.Session = m.active
	m.statusBar.Busy = st.IsBusy
	m.statusBar.Err = st.Error
	if m.active == "" {
		m.output.SetContent("")
	}
}

// applySessions replaces the session list, keeping the cursor on the same
// name when it is still listed.
func (m *Model) applySessions(s ws.SessionsMessage) {
	var selected string
	if m.selectedIdx < len(m.sessions) {
		selected = m.sessions[m.selectedIdx]
	}

	m.sessions = s.Sessions
	if s.Active != nil {
		m.active = *s.Active
	} else {
		m.active = ""
	}
	m.statusBar.Sessions = len(m.sessions)
	m.statusBar.Session = m.active

	switch i := slices.Index(m.sessions, selected); {
	case i >= 0:
		m.selectedIdx = i
	case m.active != "":
		m.selectedIdx = max(slices.Index(m.sessions, m.active), 0)
	default:
		m.selectedIdx = 0
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Send):
		return m.submit()

	case key.Matches(msg, m.keys.NextSession):
		if len(m.sessions) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.sessions)
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevSession):
		if len(m.sessions) > 0 {
			m.selectedIdx = (m.selectedIdx - 1 + len(m.sessions)) % len(m.sessions)
		}
		return m, nil

	case key.Matches(msg, m.keys.Attach):
		if m.selectedIdx < len(m.sessions) {
			m.report(m.conn.SendCommand(ws.ActionAttach, m.sessions[m.selectedIdx], ""))
		}
		return m, nil

	case key.Matches(msg, m.keys.Detach):
		m.report(m.conn.SendCommand(ws.ActionDetach, "", ""))
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.report(m.conn.SendCommand(ws.ActionRefresh, "", ""))
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp, m.keys.ScrollDown):
		var cmd tea.Cmd
		m.output, cmd = m.output.Update(msg)
		return m, cmd
	}

	if name, ok := rawKeys[msg.String()]; ok {
		m.report(m.conn.SendKey(name))
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input line as text or runs it as a ":" command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	line := m.input.Value()
	m.input.Reset()

	cmd, text, err := ParseLine(line)
	switch {
	case err != nil:
		m.statusBar.Err = err.Error()
	case cmd == nil:
		m.report(m.conn.SendInput(text))
	case cmd.Action == actionQuit:
		m.cancel()
		return m, tea.Quit
	default:
		m.report(m.conn.SendCommand(cmd.Action, cmd.Session, cmd.Command))
	}
	return m, nil
}

func (m *Model) report(err error) {
	if err != nil {
		m.statusBar.Err = err.Error()
		return
	}
	m.statusBar.Err = ""
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	pane := theme.StyleBorder.
		Width(m.output.Width).
		Height(m.output.Height).
		Render(m.output.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderSessions(), pane)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusBar.View(),
		body,
		m.input.View(),
		theme.StyleDimmed.Render("  enter:send  ^n/^p:select  ^o:attach  ^x:detach  ^r:refresh  pgup/pgdn:scroll  ^q:quit"),
	)
}

func (m Model) renderSessions() string {
	lines := []string{theme.StyleHeader.Render("SESSIONS")}
	if len(m.sessions) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  none (:new name)"))
	}
	for i, s := range m.sessions {
		selected := i == m.selectedIdx
		active := s == m.active
		name := truncate(s, sidebarWidth-4)
		switch {
		case active:
			name = theme.StyleActive.Render(name)
		case selected:
			name = theme.StyleSelected.Render(name)
		}
		lines = append(lines, theme.SessionGlyph(active, selected)+" "+name)
	}
	return lipgloss.NewStyle().
		Width(sidebarWidth).
		Render(strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
