package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/soyeahso/dmschat/internal/widget"
)

// Controller is the part of the widget the terminal front-ends drive.
type Controller interface {
	Send(text string) bool
	QuickReply(text string) bool
	Keystroke()
	HandleKey(k widget.Key) bool
	Open()
	Close()
	Toggle()
	SetVisible(visible bool)
}

// chrome is the number of rows around the transcript: header, typing row,
// input and help.
const chrome = 4

// Model is the bubbletea model for the chat panel.
type Model struct {
	ctl      Controller
	renderer *Renderer
	quick    []string

	board    board
	viewport viewport.Model
	input    textinput.Model

	width  int
	height int
}

// NewModel returns a model drawing r's updates and forwarding input to ctl.
// quick lists the canned replies bound to alt+1 through alt+9.
func NewModel(ctl Controller, r *Renderer, quick []string) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message…"
	ti.Prompt = "› "
	ti.CharLimit = 2000
	ti.Focus()

	if len(quick) > 9 {
		quick = quick[:9]
	}
	return Model{
		ctl:      ctl,
		renderer: r,
		quick:    quick,
		board:    newBoard(),
		viewport: viewport.New(80, 20),
		input:    ti,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.renderer.Wait())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case renderMsg:
		for _, o := range msg {
			o(&m.board)
		}
		m.refresh()
		return m, m.renderer.Wait()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chrome, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()
		return m, nil

	case tea.FocusMsg:
		m.ctl.SetVisible(true)
		return m, nil

	case tea.BlurMsg:
		m.ctl.SetVisible(false)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.ctl.Toggle()
		return m, nil
	}

	if !m.board.open {
		switch key {
		case "enter":
			m.ctl.HandleKey(widget.KeyEnter)
		case "q":
			return m, tea.Quit
		}
		return m, nil
	}

	switch key {
	case "esc":
		m.ctl.HandleKey(widget.KeyEscape)
		return m, nil
	case "enter":
		if strings.TrimSpace(m.input.Value()) == "" {
			return m, nil
		}
		if m.ctl.Send(m.input.Value()) {
			m.input.Reset()
		}
		return m, nil
	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if n, ok := quickIndex(key); ok && n < len(m.quick) {
		m.ctl.QuickReply(m.quick[n])
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.ctl.Keystroke()
	}
	return m, cmd
}

// quickIndex maps alt+1..alt+9 to a zero-based index.
func quickIndex(key string) (int, bool) {
	if len(key) != 5 || !strings.HasPrefix(key, "alt+") {
		return 0, false
	}
	d := key[4]
	if d < '1' || d > '9' {
		return 0, false
	}
	return int(d - '1'), true
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.board.transcript(m.viewport.Width))
	if m.board.follow {
		m.viewport.GotoBottom()
		m.board.follow = false
	}
}

func (m Model) View() string {
	if !m.board.open {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.board.teaser(),
			helpStyle.Render("enter: open chat • tab: toggle • q: quit"),
		)
	}

	typing := ""
	if m.board.typing {
		typing = placeholderStyle.Render("Admin is typing…")
	}
	help := "enter: send • esc: close • ctrl+c: quit"
	if len(m.quick) > 0 {
		help += " • alt+1.." + itoa(len(m.quick)) + ": " + strings.Join(m.quick, " | ")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.board.header(),
		m.viewport.View(),
		typing,
		m.input.View(),
		helpStyle.Render(help),
	)
}
