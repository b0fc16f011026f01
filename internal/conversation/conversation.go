// Package conversation implements the chat timeline of a single mounted widget:
// the ordered message list, the input buffer, the bot typing flag, and the
// simulator that answers every user message after a fixed delay.
package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/travel-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/travel-assistant/backend/internal/model/persona"
)

// Conversation owns the state of one widget instance. It is safe for
// concurrent use; all mutations go through its methods.
type Conversation struct {
	id       string
	persona  persona.Persona
	cfg      Config
	log      zerolog.Logger
	observer Observer
	now      func() time.Time

	mu         sync.Mutex
	messages   []chat.Message
	input      string
	botTyping  bool
	closed     bool
	lastActive time.Time
	subs       map[int]chan Event
	nextSub    int

	// pending counts accepted submissions whose reply has not landed yet.
	pending int
	queue   []string
	idle    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	done   chan struct{}
}

// New mounts a conversation seeded with the persona greeting and starts its
// reply runner. Call Close to unmount it.
func New(p persona.Persona, opts ...Option) *Conversation {
	c := &Conversation{
		persona:  p,
		cfg:      DefaultConfig(),
		log:      zerolog.Nop(),
		observer: nopObserver{},
		now:      time.Now,
		subs:     make(map[int]chan Event),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}

	idle := make(chan struct{})
	close(idle)
	c.idle = idle

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.lastActive = c.now()

	greeting := c.newMessageLocked(chat.SenderBot, p.Greeting)
	c.messages = append(make([]chat.Message, 0, 16), greeting)
	c.observer.MessageAppended(greeting)

	go c.run()
	return c
}

// ID returns the session identifier the conversation was created with.
func (c *Conversation) ID() string { return c.id }

// Persona returns the profile the conversation was mounted with.
func (c *Conversation) Persona() persona.Persona { return c.persona }

// Config returns the simulator timings in effect.
func (c *Conversation) Config() Config { return c.cfg }

func (c *Conversation) newMessageLocked(sender chat.Sender, text string) chat.Message {
	return chat.Message{
		ID:        uuid.NewString(),
		SessionID: c.id,
		Text:      text,
		Sender:    sender,
		Timestamp: c.now().UTC(),
	}
}

// AppendMessage inserts msg at the end of the timeline. User messages whose
// text is blank are ignored. Missing IDs and timestamps are filled in.
// It reports whether the message was appended.
func (c *Conversation) AppendMessage(msg chat.Message) bool {
	if msg.Sender == chat.SenderUser && strings.TrimSpace(msg.Text) == "" {
		return false
	}
	if !msg.Sender.Valid() {
		msg.Sender = chat.SenderBot
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.appendLocked(msg)
	return true
}

func (c *Conversation) appendLocked(msg chat.Message) chat.Message {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = c.now().UTC()
	}
	msg.SessionID = c.id

	c.messages = append(c.messages, msg)
	c.lastActive = c.now()
	c.observer.MessageAppended(msg)

	copied := msg
	c.publishLocked(Event{Type: EventMessage, Message: &copied, Typing: c.botTyping, Input: c.input})
	return msg
}

// SetInputBuffer replaces the uncommitted input text.
func (c *Conversation) SetInputBuffer(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.setInputLocked(text)
}

func (c *Conversation) setInputLocked(text string) {
	if c.input == text {
		return
	}
	c.input = text
	c.lastActive = c.now()
	c.publishLocked(Event{Type: EventInput, Typing: c.botTyping, Input: text})
}

// SetBotTyping toggles the typing indicator.
func (c *Conversation) SetBotTyping(flag bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.setTypingLocked(flag)
}

func (c *Conversation) setTypingLocked(flag bool) {
	if c.botTyping == flag {
		return
	}
	c.botTyping = flag
	c.publishLocked(Event{Type: EventTyping, Typing: flag, Input: c.input})
}

// Snapshot returns a copy of the current state.
func (c *Conversation) Snapshot() chat.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return chat.State{
		SessionID:   c.id,
		Messages:    append([]chat.Message(nil), c.messages...),
		InputBuffer: c.input,
		BotTyping:   c.botTyping,
	}
}

// Messages returns a copy of the timeline.
func (c *Conversation) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Message(nil), c.messages...)
}

// BotTyping reports whether a simulated reply is being typed.
func (c *Conversation) BotTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.botTyping
}

// Busy reports whether a submission is still waiting for its reply.
func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending > 0
}

// ShowQuickReplies is true while the timeline holds only the seeded greeting.
func (c *Conversation) ShowQuickReplies() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages) == 1
}

// QuickReplies returns the quick-reply menu, or nil once the conversation has started.
func (c *Conversation) QuickReplies() []string {
	if !c.ShowQuickReplies() {
		return nil
	}
	return append([]string(nil), c.persona.QuickReplies...)
}

// LastActive returns the time of the most recent mutation.
func (c *Conversation) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Closed reports whether the conversation has been unmounted.
func (c *Conversation) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close unmounts the conversation. Pending timers are cancelled and the reply
// runner has exited by the time Close returns, so no state changes afterwards.
func (c *Conversation) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.closed = true
	cancelled := c.pending
	c.pending = 0
	c.queue = nil
	if cancelled > 0 {
		close(c.idle)
	}
	c.publishLocked(Event{Type: EventClosed, Typing: c.botTyping, Input: c.input})
	c.closeSubscribersLocked()
	c.mu.Unlock()

	c.cancel()
	<-c.done

	if cancelled > 0 {
		c.observer.RepliesCancelled(cancelled)
		c.log.Debug().Str("session_id", c.id).Int("cancelled", cancelled).Msg("conversation closed with pending replies")
	}
}
