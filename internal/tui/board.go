package tui

import (
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/soyeahso/dmschat/internal/domain"
	"github.com/soyeahso/dmschat/internal/widget"
)

var (
	userStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	agentStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	botStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	textStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	seenStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	placeholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	headerStyle      = lipgloss.NewStyle().Bold(true).Padding(0, 1).Background(lipgloss.Color("236"))
	onlineStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	offlineStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	badgeStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Background(lipgloss.Color("160")).Bold(true).Padding(0, 1)
	previewStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Italic(true)
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const caret = "▍"

// board is the model's copy of what the widget last asked to display.
type board struct {
	bubbles      map[int]widget.Bubble
	placeholders map[int]bool
	typing       bool
	online       bool
	label        string
	badge        int
	preview      string
	open         bool
	follow       bool
}

func newBoard() board {
	return board{
		bubbles:      map[int]widget.Bubble{},
		placeholders: map[int]bool{},
		label:        widget.PresenceLabel(false),
	}
}

func (b *board) put(bb widget.Bubble) {
	b.bubbles[bb.Seq] = bb
}

// seqs returns bubble and placeholder slots in display order.
func (b *board) seqs() []int {
	out := make([]int, 0, len(b.bubbles)+len(b.placeholders))
	for seq := range b.bubbles {
		out = append(out, seq)
	}
	for seq := range b.placeholders {
		if _, ok := b.bubbles[seq]; !ok {
			out = append(out, seq)
		}
	}
	sort.Ints(out)
	return out
}

// transcript renders the conversation, wrapping text to width.
func (b *board) transcript(width int) string {
	var sb strings.Builder
	for i, seq := range b.seqs() {
		if i > 0 {
			sb.WriteString("\n")
		}
		bb, ok := b.bubbles[seq]
		if !ok {
			sb.WriteString(placeholderStyle.Render("• • •"))
			continue
		}
		sb.WriteString(renderBubble(bb, width))
	}
	return sb.String()
}

func renderBubble(b widget.Bubble, width int) string {
	var who string
	switch b.Role {
	case domain.RoleUser:
		who = userStyle.Render("You")
	case domain.RoleBot:
		who = botStyle.Render("Bot")
	default:
		who = agentStyle.Render("Admin")
	}

	text := b.Text
	if b.Caret {
		text += caret
	}
	body := textStyle.Render(text)
	if width > 4 {
		body = textStyle.Width(width - 2).Render(text)
	}

	line := who
	if b.Role == domain.RoleUser {
		line += " " + statusMark(b.Status)
	}
	return line + "\n" + lipgloss.NewStyle().PaddingLeft(2).Render(body)
}

func statusMark(s domain.Status) string {
	switch s {
	case domain.StatusPending:
		return statusStyle.Render("…")
	case domain.StatusSeen:
		return seenStyle.Render("✓✓ seen")
	default:
		return statusStyle.Render("✓")
	}
}

// header is the open panel's title bar.
func (b *board) header() string {
	dot := offlineStyle.Render("●")
	if b.online {
		dot = onlineStyle.Render("●")
	}
	return headerStyle.Render(dot + " " + b.label)
}

// teaser is shown while the panel is closed.
func (b *board) teaser() string {
	line := headerStyle.Render("💬 Chat with us")
	if b.badge > 0 {
		line += " " + badgeStyle.Render(itoa(b.badge))
	}
	if b.preview != "" {
		line += "\n" + previewStyle.Render(b.preview)
	}
	return line
}

func itoa(n int) string {
	if n > 99 {
		return "99+"
	}
	return strconv.Itoa(n)
}
