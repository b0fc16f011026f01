package conversation

import (
	"time"

	"github.com/zhouzirui/travel-assistant/backend/internal/model/chat"
)

// EventType names a kind of conversation mutation.
type EventType string

const (
	EventMessage EventType = "message"
	EventTyping  EventType = "typing"
	EventInput   EventType = "input"
	EventClosed  EventType = "closed"
)

// Event is published to subscribers after every mutation of the conversation.
type Event struct {
	Type      EventType     `json:"type"`
	SessionID string        `json:"sessionId,omitempty"`
	Message   *chat.Message `json:"message,omitempty"`
	Typing    bool          `json:"typing"`
	Input     string        `json:"input"`
	At        time.Time     `json:"at"`
}

// DefaultSubscriberBuffer is large enough for several full reply chains.
const DefaultSubscriberBuffer = 64

// Subscribe returns a channel receiving every subsequent event and a function
// that detaches it. A subscriber that falls behind by more than buffer events
// is dropped and its channel closed. The channel is also closed when the
// conversation closes.
func (c *Conversation) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

func (c *Conversation) publishLocked(ev Event) {
	ev.SessionID = c.id
	if ev.At.IsZero() {
		ev.At = c.now().UTC()
	}
	for id, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.log.Warn().Str("session_id", c.id).Int("subscriber", id).Msg("subscriber too slow, dropping")
			delete(c.subs, id)
			close(ch)
		}
	}
}

func (c *Conversation) closeSubscribersLocked() {
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}
