package widget

import (
	"strconv"
	"unicode/utf8"
)

func revealKey(seq int) string { return keyRevealPrefix + strconv.Itoa(seq) }

// startRevealLocked shows the placeholder dots for e and, after the reveal
// delay, types its text out one character per step. Calling it again for
// the same entry restarts the reveal from the first character.
func (w *Widget) startRevealLocked(e *Entry) {
	e.Revealing = true
	e.Shown = 0
	if e.appended {
		w.render.UpdateBubble(e.Bubble())
	} else {
		w.render.ShowPlaceholder(e.Seq)
	}
	w.render.ScrollToBottom()
	w.sched.Schedule(revealKey(e.Seq), w.t.revealDelay, func() { w.revealStepLocked(e) })
}

// Replay restarts the typewriter reveal of an agent or bot message.
func (w *Widget) Replay(mid string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.messages.Get(mid)
	if !ok || e.Message.Role.IsUser() {
		return false
	}
	w.startRevealLocked(e)
	return true
}

func (w *Widget) revealStepLocked(e *Entry) {
	if cur, ok := w.lookupSeq(e.Seq); !ok || cur != e {
		return
	}

	e.Shown++
	if e.Shown >= utf8.RuneCountInString(e.Message.Text) {
		e.Revealing = false
	}

	if e.appended {
		w.render.UpdateBubble(e.Bubble())
	} else {
		w.render.RemovePlaceholder(e.Seq)
		w.appendLocked(e)
	}

	if !e.Revealing {
		w.render.ScrollToBottom()
		return
	}
	w.sched.Schedule(revealKey(e.Seq), w.t.revealStep, func() { w.revealStepLocked(e) })
}

func (w *Widget) appendLocked(e *Entry) {
	e.appended = true
	w.render.AppendBubble(e.Bubble())
}

func (w *Widget) lookupSeq(seq int) (*Entry, bool) {
	for _, e := range w.messages.entries {
		if e.Seq == seq {
			return e, true
		}
	}
	return nil, false
}
