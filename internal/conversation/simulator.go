package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/zhouzirui/travel-assistant/backend/internal/model/chat"
)

// Submit sends text as a user message and schedules the simulated bot reply.
// Blank text is ignored. While a reply is pending the outcome depends on the
// BusyPolicy. It reports whether the submission was accepted.
func (c *Conversation) Submit(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	c.mu.Lock()
	accepted := c.submitLocked(text)
	c.mu.Unlock()

	if accepted {
		c.notifyRunner()
	}
	return accepted
}

// SelectQuickReply fills the input buffer with phrase and submits it, exactly
// as if the user had typed it. It is a no-op once the menu is hidden, that is
// after the first user message.
func (c *Conversation) SelectQuickReply(phrase string) bool {
	if strings.TrimSpace(phrase) == "" {
		return false
	}

	c.mu.Lock()
	if c.closed || len(c.messages) != 1 {
		c.mu.Unlock()
		return false
	}
	c.setInputLocked(phrase)
	accepted := c.submitLocked(phrase)
	c.mu.Unlock()

	if accepted {
		c.notifyRunner()
	}
	return accepted
}

func (c *Conversation) submitLocked(text string) bool {
	if c.closed {
		return false
	}
	if c.pending > 0 && c.cfg.BusyPolicy != BusyQueue {
		c.observer.SubmissionRejected()
		c.log.Debug().Str("session_id", c.id).Msg("submission rejected while bot is typing")
		return false
	}

	c.appendLocked(c.newMessageLocked(chat.SenderUser, text))
	c.setInputLocked("")

	if c.pending == 0 {
		c.idle = make(chan struct{})
	}
	c.pending++
	c.queue = append(c.queue, text)
	return true
}

func (c *Conversation) notifyRunner() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Wait blocks until no reply is pending, the conversation closes, or ctx ends.
func (c *Conversation) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conversation) run() {
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.wake:
		}

		for {
			text, ok := c.nextJob()
			if !ok {
				break
			}
			if !c.simulateReply(text) {
				return
			}
		}
	}
}

func (c *Conversation) nextJob() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.queue) == 0 {
		return "", false
	}
	text := c.queue[0]
	c.queue = c.queue[1:]
	return text, true
}

// simulateReply runs UserSent -> Thinking -> Replying -> Idle for one
// submission. It returns false when the conversation was closed mid-way.
func (c *Conversation) simulateReply(text string) bool {
	if !c.sleep(c.cfg.PreDelay) {
		return false
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.setTypingLocked(true)
	c.mu.Unlock()

	if !c.sleep(c.cfg.ReplyDelay) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	// typing ends before the reply lands, under one lock, so no snapshot
	// shows the two out of step
	c.setTypingLocked(false)
	c.appendLocked(c.newMessageLocked(chat.SenderBot, c.persona.Reply(text)))

	c.pending--
	if c.pending == 0 {
		close(c.idle)
	}
	return true
}

// sleep waits for d unless the conversation is closed first.
func (c *Conversation) sleep(d time.Duration) bool {
	if d <= 0 {
		return c.ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-c.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
