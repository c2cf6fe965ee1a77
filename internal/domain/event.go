package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Stream event names pushed by the backend.
const (
	EventTyping      = "typing"
	EventMessage     = "message"
	EventSeen        = "seen"
	EventAgentStatus = "agent_status"
	EventDeleted     = "deleted"
)

// Parties that publish typing state and seen receipts.
const (
	WhoClient = "client"
	WhoAgent  = "agent"
	WhoBot    = "bot"
)

// IsRemoteParty reports whether who is the support side of the conversation.
func IsRemoteParty(who string) bool { return who == WhoAgent || who == WhoBot }

// TypingEvent toggles a party's typing indicator.
type TypingEvent struct {
	Who   string `json:"who"`
	State bool   `json:"state"`
}

// MessageEvent carries a message pushed over the stream.
type MessageEvent struct {
	Role string  `json:"role"`
	Text string  `json:"text"`
	Mid  string  `json:"mid"`
	TS   float64 `json:"ts,omitempty"`
}

// SeenEvent is a read receipt for a batch of messages.
type SeenEvent struct {
	Who  string   `json:"who"`
	Mids []string `json:"mids"`
}

// AgentStatusEvent reports agent presence.
type AgentStatusEvent struct {
	Online   bool    `json:"online"`
	LastSeen float64 `json:"last_seen,omitempty"`
}

// DeletedEvent signals that the conversation was removed server-side.
type DeletedEvent struct {
	Cid string `json:"cid"`
}

// Presence is the response of the status poll.
type Presence struct {
	Online   bool    `json:"online"`
	LastSeen float64 `json:"last_seen,omitempty"`
}

// Flag decodes booleans that the backend may encode as 0/1 integers.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "null", "":
		*f = false
		return nil
	case "true":
		*f = true
		return nil
	case "false":
		*f = false
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		var s string
		if json.Unmarshal(data, &s) == nil {
			*f = s == "1" || s == "true"
			return nil
		}
		return err
	}
	*f = n != 0
	return nil
}

// HistoryEntry is one message of the backfilled conversation.
type HistoryEntry struct {
	Role         string  `json:"role"`
	Content      string  `json:"content"`
	Mid          string  `json:"mid"`
	TS           float64 `json:"ts,omitempty"`
	SeenByAgent  Flag    `json:"seen_by_agent"`
	SeenByClient Flag    `json:"seen_by_client"`
}
