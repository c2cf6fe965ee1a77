package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/soyeahso/dmschat/internal/domain"
	"github.com/soyeahso/dmschat/internal/widget"
)

// LineRenderer prints the conversation as appended lines, for pipes and dumb
// terminals. A revealing reply is printed once, when its text is complete.
type LineRenderer struct {
	mu      sync.Mutex
	w       io.Writer
	printed map[int]domain.Status
	typing  bool
	label   string
}

var _ widget.Renderer = (*LineRenderer)(nil)

// NewLineRenderer writes to w.
func NewLineRenderer(w io.Writer) *LineRenderer {
	return &LineRenderer{w: w, printed: map[int]domain.Status{}}
}

func (l *LineRenderer) printf(format string, args ...any) {
	fmt.Fprintf(l.w, format+"\n", args...)
}

func (l *LineRenderer) AppendBubble(b widget.Bubble) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.show(b)
}

func (l *LineRenderer) UpdateBubble(b widget.Bubble) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev, ok := l.printed[b.Seq]
	if !ok {
		l.show(b)
		return
	}
	if b.Role == domain.RoleUser && b.Status == domain.StatusSeen && prev != domain.StatusSeen {
		l.printf("  ✓✓ seen")
	}
	l.printed[b.Seq] = b.Status
}

func (l *LineRenderer) show(b widget.Bubble) {
	if b.Caret {
		return
	}
	l.printed[b.Seq] = b.Status
	l.printf("%s: %s", speaker(b.Role), b.Text)
}

func speaker(r domain.Role) string {
	switch r {
	case domain.RoleUser:
		return "you"
	case domain.RoleBot:
		return "bot"
	default:
		return "admin"
	}
}

func (l *LineRenderer) RemoveBubble(seq int) {
	l.mu.Lock()
	delete(l.printed, seq)
	l.mu.Unlock()
}

func (*LineRenderer) ShowPlaceholder(int)   {}
func (*LineRenderer) RemovePlaceholder(int) {}
func (*LineRenderer) ScrollToBottom()       {}

func (l *LineRenderer) SetRemoteTyping(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if on && !l.typing {
		l.printf("… typing")
	}
	l.typing = on
}

func (l *LineRenderer) SetPresence(online bool, label string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if label == l.label {
		return
	}
	l.label = label
	l.printf("● %s", label)
}

func (l *LineRenderer) SetBadge(count int, preview string) {
	if count == 0 || preview == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.printf("[%d unread] %s", count, preview)
}

func (l *LineRenderer) SetPanelOpen(open bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if open {
		l.printf("-- chat opened --")
	} else {
		l.printf("-- chat closed --")
	}
}

func (l *LineRenderer) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.printed = map[int]domain.Status{}
	l.printf("-- conversation cleared --")
}

// Lines drives ctl from newline-separated input until EOF, "/quit" or ctx is
// done. Plain lines are sent as messages; "/open", "/close" and "/toggle"
// control the panel and "/quick N" sends the Nth canned reply.
func Lines(ctx context.Context, in io.Reader, ctl Controller, quick []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			if quit := runLine(line, ctl, quick); quit {
				return nil
			}
		}
	}
}

func runLine(line string, ctl Controller, quick []string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
	case line == "/quit":
		return true
	case line == "/open":
		ctl.Open()
	case line == "/close":
		ctl.Close()
	case line == "/toggle":
		ctl.Toggle()
	case strings.HasPrefix(line, "/quick "):
		var n int
		if _, err := fmt.Sscanf(line[len("/quick "):], "%d", &n); err == nil && n >= 1 && n <= len(quick) {
			ctl.QuickReply(quick[n-1])
		}
	default:
		ctl.Keystroke()
		ctl.Send(line)
	}
	return false
}
