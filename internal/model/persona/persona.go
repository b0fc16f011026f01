package persona

import (
	"fmt"
	"strings"
)

// Persona captures the assistant profile a chat widget is mounted with.
type Persona struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	Title         string   `json:"title" yaml:"title"`
	Greeting      string   `json:"greeting" yaml:"greeting"` // 挂载时的首条机器人消息
	Placeholder   string   `json:"placeholder,omitempty" yaml:"placeholder"`
	QuickReplies  []string `json:"quickReplies,omitempty" yaml:"quickReplies"`
	ReplyTemplate string   `json:"replyTemplate" yaml:"replyTemplate"` // 必须且只能包含一个 %s
}

// DefaultReplyTemplate echoes the user's text back while "researching" it.
const DefaultReplyTemplate = "I'm researching %s... Here's what I found:"

// Reply renders the bot answer for the given user text.
func (p Persona) Reply(text string) string {
	tpl := p.ReplyTemplate
	if tpl == "" {
		tpl = DefaultReplyTemplate
	}
	return fmt.Sprintf(tpl, text)
}

// HasQuickReply reports whether phrase is part of the persona's quick-reply menu.
func (p Persona) HasQuickReply(phrase string) bool {
	for _, item := range p.QuickReplies {
		if item == phrase {
			return true
		}
	}
	return false
}

// Validate checks the fields a conversation relies on.
func (p Persona) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("persona id is required")
	}
	if strings.TrimSpace(p.Greeting) == "" {
		return fmt.Errorf("persona %s: greeting is required", p.ID)
	}
	if p.ReplyTemplate != "" {
		verbs := strings.ReplaceAll(p.ReplyTemplate, "%%", "")
		if strings.Count(verbs, "%s") != 1 || strings.Count(verbs, "%") != 1 {
			return fmt.Errorf("persona %s: reply template must contain exactly one %%s verb", p.ID)
		}
	}
	for i, phrase := range p.QuickReplies {
		if strings.TrimSpace(phrase) == "" {
			return fmt.Errorf("persona %s: quick reply %d is empty", p.ID, i)
		}
	}
	return nil
}

// Seed provides the default travel assistant.
func Seed() []Persona {
	return []Persona{
		{
			ID:          "travel-assistant",
			Name:        "Travel Assistant",
			Title:       "Travel Planning Assistant",
			Greeting:    "Hello! I'm your travel assistant. Where would you like to go?",
			Placeholder: "Ask about destinations, flights, hotels...",
			QuickReplies: []string{
				"Best time to visit Japan",
				"Budget trips in Europe",
				"Family-friendly beaches",
				"Weekend getaways near me",
			},
			ReplyTemplate: DefaultReplyTemplate,
		},
	}
}
