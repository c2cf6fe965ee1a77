package widget

import (
	"context"

	"github.com/soyeahso/dmschat/internal/domain"
)

// Keystroke records local typing activity. The first keystroke of a burst
// publishes a start signal; a stop follows once input has been idle for the
// configured interval.
func (w *Widget) Keystroke() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started || w.stopped {
		return
	}
	if w.typing.Keystroke() {
		w.publishTypingLocked(true)
	}
	w.sched.Schedule(keyTypingIdle, w.t.typingIdle, func() {
		w.typing.Stop()
		w.publishTypingLocked(false)
	})
}

// stopTypingLocked publishes a stop regardless of timer state.
func (w *Widget) stopTypingLocked() {
	w.sched.Cancel(keyTypingIdle)
	w.typing.Stop()
	w.publishTypingLocked(false)
}

func (w *Widget) publishTypingLocked(state bool) {
	cid := w.cid
	w.submit(func(ctx context.Context) {
		if err := w.backend.Typing(ctx, cid, domain.WhoClient, state); err != nil {
			w.log.Debug().Err(err).Bool("state", state).Msg("typing publish failed")
		}
	})
}

// showTypingLocked displays the remote typing indicator and rearms its
// failsafe, covering a lost stop signal.
func (w *Widget) showTypingLocked() {
	w.remoteTyping = true
	w.render.SetRemoteTyping(true)
	w.render.ScrollToBottom()
	w.sched.Schedule(keyTypingFailsafe, w.t.typingFailsafe, w.hideTypingLocked)
}

func (w *Widget) hideTypingLocked() {
	w.sched.Cancel(keyTypingFailsafe)
	if !w.remoteTyping {
		return
	}
	w.remoteTyping = false
	w.render.SetRemoteTyping(false)
}
