package chat

import "time"

// Session captures one mounted chat widget bound to a persona.
type Session struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"personaId"`
	CreatedAt time.Time `json:"createdAt"`
}

// State is a point-in-time copy of a conversation.
type State struct {
	SessionID   string    `json:"sessionId,omitempty"`
	Messages    []Message `json:"messages"`
	InputBuffer string    `json:"inputBuffer"`
	BotTyping   bool      `json:"botTyping"`
}
