package socket

import "encoding/json"

// Inbound message types.
const (
	TypeText       = "text"
	TypeInput      = "input"
	TypeQuickReply = "quick_reply"
)

// Outbound message types.
const (
	TypeConnected = "connected"
	TypeEvent     = "event"
	TypeAck       = "ack"
	TypeError     = "error"
)

// InboundMessage is a client frame.
type InboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// TextMessage carries user input for "text" and "input" frames.
type TextMessage struct {
	Text string `json:"text"`
}

// QuickReplyMessage selects an entry of the quick-reply menu.
type QuickReplyMessage struct {
	Phrase string `json:"phrase"`
}

// OutboundMessage is a server frame.
type OutboundMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Ack answers a "text" or "quick_reply" frame.
type Ack struct {
	Request  string `json:"request"`
	Accepted bool   `json:"accepted"`
}
