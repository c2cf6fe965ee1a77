package widget

import "github.com/soyeahso/dmschat/internal/domain"

// Bubble is a rendered message. Seq identifies it for the lifetime of the
// conversation; ID is derived from the message id and is empty until the
// backend assigns one.
type Bubble struct {
	Seq    int
	ID     string
	Role   domain.Role
	Text   string
	Status domain.Status
	// Caret marks a bubble whose text is still being revealed.
	Caret bool
}

// Renderer turns widget state transitions into visible output. Methods are
// called with the widget locked and must not block or call back into the
// widget.
type Renderer interface {
	AppendBubble(b Bubble)
	UpdateBubble(b Bubble)
	RemoveBubble(seq int)
	// ShowPlaceholder displays the dots shown before a reveal starts.
	ShowPlaceholder(seq int)
	RemovePlaceholder(seq int)
	SetRemoteTyping(on bool)
	SetPresence(online bool, label string)
	// SetBadge shows the unread count. An empty preview hides the snippet.
	SetBadge(count int, preview string)
	SetPanelOpen(open bool)
	ScrollToBottom()
	// Clear removes every bubble and placeholder.
	Clear()
}

// NopRenderer discards every update.
type NopRenderer struct{}

func (NopRenderer) AppendBubble(Bubble)      {}
func (NopRenderer) UpdateBubble(Bubble)      {}
func (NopRenderer) RemoveBubble(int)         {}
func (NopRenderer) ShowPlaceholder(int)      {}
func (NopRenderer) RemovePlaceholder(int)    {}
func (NopRenderer) SetRemoteTyping(bool)     {}
func (NopRenderer) SetPresence(bool, string) {}
func (NopRenderer) SetBadge(int, string)     {}
func (NopRenderer) SetPanelOpen(bool)        {}
func (NopRenderer) ScrollToBottom()          {}
func (NopRenderer) Clear()                   {}
