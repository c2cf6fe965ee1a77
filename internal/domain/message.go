// Package domain holds the chat widget's data model: messages, their
// delivery status, and the payloads exchanged with the backend.
package domain

import "strings"

// Role identifies who authored a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleBot   Role = "bot"
)

// NormalizeRole maps a wire role onto a known Role. Anything that is not
// "user" or "bot" is treated as a human agent.
func NormalizeRole(s string) Role {
	switch Role(s) {
	case RoleUser:
		return RoleUser
	case RoleBot:
		return RoleBot
	default:
		return RoleAgent
	}
}

// IsUser reports whether the message came from the visitor.
func (r Role) IsUser() bool { return r == RoleUser }

// Status is the delivery state of a message. Transitions only move forward:
// pending → sent → seen.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusSeen    Status = "seen"
)

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusSent:
		return 1
	case StatusSeen:
		return 2
	default:
		return -1
	}
}

// Advance returns the later of s and next. A status never regresses.
func (s Status) Advance(next Status) Status {
	if next.rank() > s.rank() {
		return next
	}
	return s
}

const (
	bubblePrefix = "b_"
	tempPrefix   = "tmp_"
)

// BubbleID derives the rendered element id for a message id. Messages
// without an id yet have no derivable bubble id.
func BubbleID(mid string) string {
	if mid == "" {
		return ""
	}
	return bubblePrefix + mid
}

// MidFromBubbleID reverses BubbleID.
func MidFromBubbleID(id string) string {
	if !strings.HasPrefix(id, bubblePrefix) {
		return ""
	}
	return id[len(bubblePrefix):]
}

// TempMid builds the stand-in message id used until the backend assigns one.
func TempMid(tempID string) string { return tempPrefix + tempID }

// IsTempMid reports whether mid is a client-generated stand-in.
func IsTempMid(mid string) bool { return strings.HasPrefix(mid, tempPrefix) }

// Message is a single chat message as tracked by the widget.
type Message struct {
	Mid    string `json:"mid,omitempty"`
	TempID string `json:"tempId,omitempty"`
	Role   Role   `json:"role"`
	Text   string `json:"text"`
	Status Status `json:"status"`
}

// BubbleID returns the element id for the message.
func (m Message) BubbleID() string { return BubbleID(m.Mid) }
