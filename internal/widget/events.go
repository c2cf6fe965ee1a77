package widget

import (
	"github.com/soyeahso/dmschat/internal/domain"
	"github.com/soyeahso/dmschat/internal/hooks"
)

// conn receives events for one stream connection. Events that arrive after
// the widget moved to another client id are dropped.
type conn struct {
	w   *Widget
	cid string
}

func (c *conn) lock() bool {
	c.w.mu.Lock()
	if c.w.cid != c.cid || c.w.stopped {
		c.w.mu.Unlock()
		return false
	}
	return true
}

func (c *conn) OnTyping(e domain.TypingEvent) {
	if !c.lock() {
		return
	}
	defer c.w.mu.Unlock()

	// our own publishes are echoed back
	if !domain.IsRemoteParty(e.Who) {
		return
	}
	if e.State {
		c.w.showTypingLocked()
	} else {
		c.w.hideTypingLocked()
	}
}

func (c *conn) OnMessage(e domain.MessageEvent) {
	if !c.lock() {
		return
	}
	defer c.w.mu.Unlock()
	c.w.receiveLocked(e)
}

func (c *conn) OnSeen(e domain.SeenEvent) {
	if !c.lock() {
		return
	}
	defer c.w.mu.Unlock()

	if e.Who != domain.WhoAgent {
		return
	}
	c.w.markSeenLocked(e.Mids)
	c.w.emit(hooks.EventMessageSeen, map[string]any{"mids": e.Mids, "who": e.Who})
}

func (c *conn) OnAgentStatus(e domain.AgentStatusEvent) {
	if !c.lock() {
		return
	}
	defer c.w.mu.Unlock()
	c.w.setPresenceLocked(e.Online)
}

func (c *conn) OnDeleted(e domain.DeletedEvent) {
	if !c.lock() {
		return
	}
	defer c.w.mu.Unlock()

	if e.Cid != "" && e.Cid != c.cid {
		return
	}
	c.w.log.Info().Str("cid", c.cid).Msg("conversation deleted by agent")
	c.w.resetConversationLocked()
}

func (c *conn) OnConnected() {
	c.w.emit(hooks.EventStreamConnected, map[string]any{"cid": c.cid})
}

func (c *conn) OnDisconnected(err error) {
	data := map[string]any{"cid": c.cid}
	if err != nil {
		data["error"] = err.Error()
	}
	c.w.emit(hooks.EventStreamDisconnected, data)
}

// receiveLocked applies an inbound message.
func (w *Widget) receiveLocked(e domain.MessageEvent) {
	if e.Text == "" {
		return
	}
	// a message implies the sender stopped typing
	w.hideTypingLocked()

	role := domain.NormalizeRole(e.Role)
	entry, added := w.messages.Add(domain.Message{
		Mid:    e.Mid,
		Role:   role,
		Text:   e.Text,
		Status: domain.StatusSent,
	})
	if !added {
		w.log.Debug().Str("mid", e.Mid).Msg("duplicate message ignored")
		return
	}

	if role.IsUser() {
		w.appendLocked(entry)
		w.render.ScrollToBottom()
		return
	}

	w.startRevealLocked(entry)
	w.emit(hooks.EventMessageReceived, map[string]any{
		"mid":  e.Mid,
		"role": string(role),
		"text": e.Text,
	})

	if !w.open {
		w.incrementBadgeLocked(e.Text)
		return
	}
	w.notifyLocked("New reply", e.Text)
	if e.Mid != "" {
		w.ackLocked([]string{e.Mid})
	}
}

// loadHistoryLocked renders the backfilled conversation and acknowledges
// agent messages the client has not seen yet. Backfill never notifies.
func (w *Widget) loadHistoryLocked(history []domain.HistoryEntry) {
	var unseen []string
	for _, h := range history {
		role := domain.NormalizeRole(h.Role)
		status := domain.StatusSent
		if (role.IsUser() && bool(h.SeenByAgent)) || (!role.IsUser() && bool(h.SeenByClient)) {
			status = domain.StatusSeen
		}
		entry, added := w.messages.Add(domain.Message{
			Mid:    h.Mid,
			Role:   role,
			Text:   h.Content,
			Status: status,
		})
		if !added {
			continue
		}
		w.appendLocked(entry)
		if !role.IsUser() && !bool(h.SeenByClient) && h.Mid != "" {
			unseen = append(unseen, h.Mid)
		}
	}
	if len(unseen) > 0 {
		w.ackLocked(unseen)
	}
	w.render.ScrollToBottom()
}
