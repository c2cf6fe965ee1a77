package widget

import (
	"github.com/soyeahso/dmschat/internal/domain"
	"github.com/soyeahso/dmschat/internal/notify"
)

// Entry is one message in the conversation together with its render state.
type Entry struct {
	Seq     int
	Message domain.Message
	// Shown is the number of revealed characters while a typewriter runs.
	Shown     int
	Revealing bool

	appended bool
}

// Bubble returns the render view of e.
func (e *Entry) Bubble() Bubble {
	text := e.Message.Text
	if e.Revealing {
		r := []rune(text)
		if e.Shown < len(r) {
			text = string(r[:e.Shown])
		}
	}
	return Bubble{
		Seq:    e.Seq,
		ID:     e.Message.BubbleID(),
		Role:   e.Message.Role,
		Text:   text,
		Status: e.Message.Status,
		Caret:  e.Revealing,
	}
}

// MessageLog is the ordered conversation. Messages with a mid are unique:
// adding a mid twice returns the existing entry, so replays are harmless.
type MessageLog struct {
	entries []*Entry
	byMid   map[string]*Entry
	seq     int
}

// NewMessageLog creates an empty log.
func NewMessageLog() *MessageLog {
	return &MessageLog{byMid: make(map[string]*Entry)}
}

// Add appends m. It reports false and returns the existing entry when m's
// mid is already present.
func (l *MessageLog) Add(m domain.Message) (*Entry, bool) {
	if m.Mid != "" {
		if e, ok := l.byMid[m.Mid]; ok {
			return e, false
		}
	}
	if m.Status == "" {
		m.Status = domain.StatusSent
	}
	l.seq++
	e := &Entry{Seq: l.seq, Message: m}
	l.entries = append(l.entries, e)
	if m.Mid != "" {
		l.byMid[m.Mid] = e
	}
	return e, true
}

// Get looks up an entry by mid.
func (l *MessageLog) Get(mid string) (*Entry, bool) {
	e, ok := l.byMid[mid]
	return e, ok
}

// Advance moves the status of mid forward and reports whether it changed.
func (l *MessageLog) Advance(mid string, status domain.Status) (*Entry, bool) {
	e, ok := l.byMid[mid]
	if !ok {
		return nil, false
	}
	next := e.Message.Status.Advance(status)
	if next == e.Message.Status {
		return e, false
	}
	e.Message.Status = next
	return e, true
}

// Retarget rekeys the entry under from to the server-assigned mid to. When
// to is already present (its echo arrived first) the entry under from is
// dropped and the surviving entry is returned with removed set.
func (l *MessageLog) Retarget(from, to string) (e *Entry, removed *Entry, ok bool) {
	e, ok = l.byMid[from]
	if !ok {
		return nil, nil, false
	}
	if from == to {
		return e, nil, true
	}
	if existing, dup := l.byMid[to]; dup {
		l.remove(e)
		existing.Message.Status = existing.Message.Status.Advance(e.Message.Status)
		return existing, e, true
	}
	delete(l.byMid, from)
	e.Message.Mid = to
	e.Message.TempID = ""
	l.byMid[to] = e
	return e, nil, true
}

func (l *MessageLog) remove(e *Entry) {
	if e.Message.Mid != "" && l.byMid[e.Message.Mid] == e {
		delete(l.byMid, e.Message.Mid)
	}
	for i, x := range l.entries {
		if x == e {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return
		}
	}
}

// RemoteMids returns the server mids of every agent or bot message.
func (l *MessageLog) RemoteMids() []string {
	var mids []string
	for _, e := range l.entries {
		if e.Message.Role.IsUser() || e.Message.Mid == "" || domain.IsTempMid(e.Message.Mid) {
			continue
		}
		mids = append(mids, e.Message.Mid)
	}
	return mids
}

// Entries returns a snapshot of the log in order.
func (l *MessageLog) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = *e
	}
	return out
}

// Len returns the number of messages.
func (l *MessageLog) Len() int { return len(l.entries) }

// Reset empties the log. Sequence numbers keep increasing.
func (l *MessageLog) Reset() {
	l.entries = nil
	l.byMid = make(map[string]*Entry)
}

// Badge is the unread counter shown while the panel is closed.
type Badge struct {
	Count   int
	Preview string
}

// Increment counts one unread message and shows its preview.
func (b *Badge) Increment(text string, previewChars int) {
	b.Count++
	b.Preview = notify.Truncate(text, previewChars)
}

// HidePreview clears the preview and keeps the count.
func (b *Badge) HidePreview() { b.Preview = "" }

// Reset zeroes the badge.
func (b *Badge) Reset() { *b = Badge{} }

// LocalTyping tracks whether this client has announced it is typing.
type LocalTyping struct {
	signaled bool
}

// Keystroke reports whether a start signal must be published.
func (t *LocalTyping) Keystroke() bool {
	if t.signaled {
		return false
	}
	t.signaled = true
	return true
}

// Stop clears the signal. The caller publishes the stop unconditionally.
func (t *LocalTyping) Stop() { t.signaled = false }

// Signaled reports whether a start was published without a matching stop.
func (t *LocalTyping) Signaled() bool { return t.signaled }

// Presence labels.
const (
	LabelOnline  = "Admin Online"
	LabelOffline = "AI Assistant"
)

// PresenceLabel returns the status text for the agent's presence.
func PresenceLabel(online bool) string {
	if online {
		return LabelOnline
	}
	return LabelOffline
}
