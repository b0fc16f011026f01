package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/travel-assistant/backend/internal/model/chat"
)

// BusyPolicy decides what Submit does while a reply is still being simulated.
type BusyPolicy string

const (
	// BusyReject drops submissions made while the bot is busy, like a disabled send button.
	BusyReject BusyPolicy = "reject"
	// BusyQueue accepts them and replies to each one in order.
	BusyQueue BusyPolicy = "queue"
)

// ParseBusyPolicy converts a configuration value into a BusyPolicy.
func ParseBusyPolicy(raw string) (BusyPolicy, error) {
	switch BusyPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", BusyReject:
		return BusyReject, nil
	case BusyQueue:
		return BusyQueue, nil
	default:
		return "", fmt.Errorf("unknown busy policy %q", raw)
	}
}

const (
	DefaultPreDelay   = 800 * time.Millisecond
	DefaultReplyDelay = 1000 * time.Millisecond
)

// Config holds the simulator timings.
type Config struct {
	// PreDelay is the pause between the user message and the typing indicator.
	PreDelay time.Duration
	// ReplyDelay is how long the typing indicator stays up before the reply lands.
	ReplyDelay time.Duration
	BusyPolicy BusyPolicy
}

// DefaultConfig mirrors the timings of the web widget.
func DefaultConfig() Config {
	return Config{
		PreDelay:   DefaultPreDelay,
		ReplyDelay: DefaultReplyDelay,
		BusyPolicy: BusyReject,
	}
}

// Observer is notified about timeline activity, typically to record metrics.
type Observer interface {
	MessageAppended(msg chat.Message)
	SubmissionRejected()
	RepliesCancelled(n int)
}

type nopObserver struct{}

func (nopObserver) MessageAppended(chat.Message) {}
func (nopObserver) SubmissionRejected()          {}
func (nopObserver) RepliesCancelled(int)         {}

// Option customizes a Conversation.
type Option func(*Conversation)

// WithConfig overrides the simulator timings.
func WithConfig(cfg Config) Option {
	return func(c *Conversation) {
		if cfg.PreDelay < 0 {
			cfg.PreDelay = 0
		}
		if cfg.ReplyDelay < 0 {
			cfg.ReplyDelay = 0
		}
		if cfg.BusyPolicy == "" {
			cfg.BusyPolicy = BusyReject
		}
		c.cfg = cfg
	}
}

// WithSessionID tags every message and event with the owning session.
// Without it a random ID is used.
func WithSessionID(id string) Option {
	return func(c *Conversation) { c.id = id }
}

// WithLogger sets the logger used for lifecycle diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Conversation) { c.log = logger }
}

// WithObserver registers an observer for timeline activity.
func WithObserver(o Observer) Option {
	return func(c *Conversation) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithClock replaces time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Conversation) {
		if now != nil {
			c.now = now
		}
	}
}
