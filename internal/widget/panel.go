package widget

import (
	"context"

	"github.com/soyeahso/dmschat/internal/hooks"
)

// Key is a keyboard shortcut the widget reacts to.
type Key int

const (
	KeyEscape Key = iota + 1
	KeyEnter
)

// Open shows the panel. It asks for notification permission if undecided,
// acknowledges every agent message on screen and clears the badge. Opening
// an open panel does nothing.
func (w *Widget) Open() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.openLocked()
}

// Close hides the panel and has no other effect.
func (w *Widget) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeLocked()
}

// Toggle flips panel visibility.
func (w *Widget) Toggle() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.open {
		w.closeLocked()
	} else {
		w.openLocked()
	}
}

// IsOpen reports whether the panel is visible.
func (w *Widget) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// HandleKey applies a global shortcut: Escape closes an open panel and
// Enter opens a closed one. It reports whether the key was consumed.
func (w *Widget) HandleKey(k Key) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case k == KeyEscape && w.open:
		w.closeLocked()
		return true
	case k == KeyEnter && !w.open:
		w.openLocked()
		return true
	}
	return false
}

func (w *Widget) openLocked() {
	if w.open {
		return
	}
	w.open = true
	w.render.SetPanelOpen(true)

	if w.notifier != nil && w.started {
		n := w.notifier
		w.dispatch(func(ctx context.Context) { n.RequestPermission(ctx) })
	}
	w.ackLocked(w.messages.RemoteMids())

	w.sched.Cancel(keyPreview)
	w.badge.Reset()
	w.render.SetBadge(0, "")
	w.render.ScrollToBottom()
	w.emit(hooks.EventPanelOpened, nil)
}

func (w *Widget) closeLocked() {
	if !w.open {
		return
	}
	w.open = false
	w.render.SetPanelOpen(false)
	w.emit(hooks.EventPanelClosed, nil)
}

// incrementBadgeLocked counts an unread reply, shows its preview for a
// while and notifies.
func (w *Widget) incrementBadgeLocked(text string) {
	w.badge.Increment(text, w.t.previewChars)
	w.render.SetBadge(w.badge.Count, w.badge.Preview)
	w.sched.Schedule(keyPreview, w.t.previewTTL, func() {
		w.badge.HidePreview()
		w.render.SetBadge(w.badge.Count, "")
	})
	w.notifyLocked("New message", text)
}

// SetVisible reports whether the user can currently see the widget. Becoming
// visible again after being hidden sends an extra heartbeat.
func (w *Widget) SetVisible(visible bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	wasHidden := !w.visible
	w.visible = visible
	if visible && wasHidden && w.started && !w.stopped {
		w.heartbeatLocked()
	}
}

func (w *Widget) heartbeatLocked() {
	cid := w.cid
	w.dispatch(func(ctx context.Context) {
		if err := w.backend.Heartbeat(ctx, cid); err != nil {
			w.log.Debug().Err(err).Msg("heartbeat failed")
		}
	})
}

func (w *Widget) scheduleHeartbeatLocked() {
	w.sched.Schedule(keyHeartbeat, w.t.heartbeat, func() {
		w.heartbeatLocked()
		w.scheduleHeartbeatLocked()
	})
}
