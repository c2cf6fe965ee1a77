// Package tui renders a widget on a terminal, either as a full-screen
// bubbletea program or as plain appended lines.
package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/soyeahso/dmschat/internal/widget"
)

// op mutates the board the model draws from.
type op func(*board)

// renderMsg carries every op queued since the previous delivery, in order.
type renderMsg []op

// Renderer is a widget.Renderer feeding a bubbletea Model. Calls never block:
// updates are queued and picked up by the model through Wait.
type Renderer struct {
	mu    sync.Mutex
	ops   []op
	ready chan struct{}
	done  chan struct{}
	once  sync.Once
}

var _ widget.Renderer = (*Renderer)(nil)

// NewRenderer returns an empty queue.
func NewRenderer() *Renderer {
	return &Renderer{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (r *Renderer) push(o op) {
	r.mu.Lock()
	r.ops = append(r.ops, o)
	r.mu.Unlock()

	select {
	case r.ready <- struct{}{}:
	default:
	}
}

func (r *Renderer) drain() []op {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := r.ops
	r.ops = nil
	return ops
}

// Wait returns a command resolving to the next batch of updates. The model
// re-arms it after every batch.
func (r *Renderer) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-r.ready:
			return renderMsg(r.drain())
		case <-r.done:
			return nil
		}
	}
}

// Close releases a pending Wait.
func (r *Renderer) Close() {
	r.once.Do(func() { close(r.done) })
}

func (r *Renderer) AppendBubble(b widget.Bubble) {
	r.push(func(bd *board) { bd.put(b) })
}

func (r *Renderer) UpdateBubble(b widget.Bubble) {
	r.push(func(bd *board) { bd.put(b) })
}

func (r *Renderer) RemoveBubble(seq int) {
	r.push(func(bd *board) { delete(bd.bubbles, seq) })
}

func (r *Renderer) ShowPlaceholder(seq int) {
	r.push(func(bd *board) { bd.placeholders[seq] = true })
}

func (r *Renderer) RemovePlaceholder(seq int) {
	r.push(func(bd *board) { delete(bd.placeholders, seq) })
}

func (r *Renderer) SetRemoteTyping(on bool) {
	r.push(func(bd *board) { bd.typing = on })
}

func (r *Renderer) SetPresence(online bool, label string) {
	r.push(func(bd *board) {
		bd.online = online
		bd.label = label
	})
}

func (r *Renderer) SetBadge(count int, preview string) {
	r.push(func(bd *board) {
		bd.badge = count
		bd.preview = preview
	})
}

func (r *Renderer) SetPanelOpen(open bool) {
	r.push(func(bd *board) { bd.open = open })
}

func (r *Renderer) ScrollToBottom() {
	r.push(func(bd *board) { bd.follow = true })
}

func (r *Renderer) Clear() {
	r.push(func(bd *board) {
		bd.bubbles = map[int]widget.Bubble{}
		bd.placeholders = map[int]bool{}
	})
}
