package widget

import (
	"context"
	"strings"

	"github.com/soyeahso/dmschat/internal/domain"
	"github.com/soyeahso/dmschat/internal/hooks"
)

// Send posts text as a visitor message. The bubble appears immediately as
// pending and is marked sent once the backend answers, even when the call
// fails. Sends closer together than the debounce interval and blank text
// are ignored; the return value reports whether a message went out.
func (w *Widget) Send(text string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sendLocked(text)
}

// QuickReply sends a canned suggestion exactly like typed text.
func (w *Widget) QuickReply(text string) bool {
	return w.Send(text)
}

func (w *Widget) sendLocked(text string) bool {
	if !w.started || w.stopped {
		return false
	}
	// The debounce window starts on every submit, blank ones included, so a
	// blank Enter also suppresses a real send right behind it.
	if !w.limiter.AllowN(w.clock.Now(), 1) {
		w.log.Debug().Msg("send debounced")
		return false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	tempID := w.newTempID()
	tmpMid := domain.TempMid(tempID)
	entry, _ := w.messages.Add(domain.Message{
		Mid:    tmpMid,
		TempID: tempID,
		Role:   domain.RoleUser,
		Text:   text,
		Status: domain.StatusPending,
	})
	w.appendLocked(entry)
	w.render.ScrollToBottom()

	cid := w.cid
	w.submit(func(ctx context.Context) {
		mid, err := w.backend.SendMessage(ctx, cid, text, tempID)
		if err != nil {
			w.log.Warn().Err(err).Str("tempId", tempID).Msg("send failed")
		}

		w.mu.Lock()
		w.applySentLocked(tmpMid, mid)
		w.mu.Unlock()

		if err == nil {
			w.emit(hooks.EventMessageSent, map[string]any{"mid": mid, "tempId": tempID, "text": text})
		}
	})

	w.stopTypingLocked()
	return true
}

// applySentLocked retargets the optimistic bubble to the server mid, keeping
// the temporary key when the backend gave none, and marks it sent.
func (w *Widget) applySentLocked(tmpMid, mid string) {
	if mid == "" {
		mid = tmpMid
	}
	e, removed, ok := w.messages.Retarget(tmpMid, mid)
	if !ok {
		// conversation was reset while the call was in flight
		return
	}
	if removed != nil {
		w.render.RemoveBubble(removed.Seq)
	}
	e.Message.Status = e.Message.Status.Advance(domain.StatusSent)
	w.render.UpdateBubble(e.Bubble())
	w.render.ScrollToBottom()
}

// MarkSeen acknowledges mids as read by the visitor.
func (w *Widget) MarkSeen(mids []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ackLocked(mids)
}

// ackLocked posts a client read receipt. Local status moves to seen only
// after the backend accepted it.
func (w *Widget) ackLocked(mids []string) {
	if len(mids) == 0 {
		return
	}
	mids = append([]string(nil), mids...)
	cid := w.cid
	w.dispatch(func(ctx context.Context) {
		if _, err := w.backend.Seen(ctx, cid, mids, domain.WhoClient); err != nil {
			w.log.Debug().Err(err).Strs("mids", mids).Msg("seen ack failed")
			return
		}

		w.mu.Lock()
		if w.cid == cid {
			w.markSeenLocked(mids)
		}
		w.mu.Unlock()
	})
}

func (w *Widget) markSeenLocked(mids []string) {
	for _, mid := range mids {
		if e, changed := w.messages.Advance(mid, domain.StatusSeen); changed {
			w.render.UpdateBubble(e.Bubble())
		}
	}
}
