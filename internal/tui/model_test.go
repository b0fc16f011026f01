package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/travel-assistant/backend/internal/conversation"
	"github.com/zhouzirui/travel-assistant/backend/internal/model/persona"
)

func newTestModel(t *testing.T, cfg conversation.Config) Model {
	t.Helper()
	p, ok := persona.NewMemoryStore(persona.Seed()).FindByID("travel-assistant")
	require.True(t, ok)

	conv := conversation.New(p, conversation.WithConfig(cfg))
	t.Cleanup(conv.Close)

	m := New(conv, zerolog.Nop())
	return update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	return update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

// drain feeds every buffered conversation event into the model.
func drain(t *testing.T, m Model) Model {
	t.Helper()
	for {
		select {
		case ev, ok := <-m.events:
			if !ok {
				return m
			}
			m = update(t, m, eventMsg(ev))
		default:
			return m
		}
	}
}

func waitIdle(t *testing.T, m Model) Model {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.conv.Wait(ctx))
	return drain(t, m)
}

func fast() conversation.Config {
	return conversation.Config{PreDelay: time.Millisecond, ReplyDelay: time.Millisecond, BusyPolicy: conversation.BusyReject}
}

func TestViewShowsGreetingAndQuickReplies(t *testing.T) {
	m := newTestModel(t, fast())

	view := m.View()
	assert.Contains(t, view, PageTitle)
	assert.Contains(t, view, "Travel Assistant")
	assert.Contains(t, view, "Hello! I'm your travel assistant. Where would you like to go?")
	assert.Contains(t, view, "[1] Best time to visit Japan")
	assert.Contains(t, view, "[4] Weekend getaways near me")
}

func TestEnterSubmitsAndRendersReply(t *testing.T) {
	m := newTestModel(t, fast())

	m = typeText(t, m, "Tokyo")
	assert.Equal(t, "Tokyo", m.conv.Snapshot().InputBuffer)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "", m.input.Value())

	m = waitIdle(t, m)
	msgs := m.conv.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "Tokyo", msgs[1].Text)

	view := m.View()
	assert.Contains(t, view, "I'm researching Tokyo... Here's what I found:")
	assert.NotContains(t, view, "Quick replies:")
}

func TestEnterWithBlankInputDoesNothing(t *testing.T) {
	m := newTestModel(t, fast())

	m = typeText(t, m, "   ")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Len(t, m.conv.Messages(), 1)
	assert.Equal(t, "   ", m.input.Value())
}

func TestNumberKeySelectsQuickReply(t *testing.T) {
	m := newTestModel(t, fast())

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'2'}})
	m = waitIdle(t, m)

	msgs := m.conv.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "Budget trips in Europe", msgs[1].Text)
	assert.Equal(t, "I'm researching Budget trips in Europe... Here's what I found:", msgs[2].Text)

	// the menu is gone, so digits are plain input now
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'3'}})
	assert.Equal(t, "3", m.input.Value())
	assert.Len(t, m.conv.Messages(), 3)
}

func TestSendDisabledWhileReplyPending(t *testing.T) {
	m := newTestModel(t, conversation.Config{PreDelay: time.Hour, ReplyDelay: time.Hour, BusyPolicy: conversation.BusyReject})

	m = typeText(t, m, "Paris")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, m.conv.Messages(), 2)

	m = typeText(t, m, "Rome")
	assert.True(t, m.sendDisabled())
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Len(t, m.conv.Messages(), 2)
	assert.Equal(t, "Rome", m.input.Value())
}

func TestQuitClosesConversation(t *testing.T) {
	m := newTestModel(t, conversation.Config{PreDelay: time.Hour, ReplyDelay: time.Hour})

	m = typeText(t, m, "Lisbon")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.conv.Closed())
	assert.Len(t, m.conv.Messages(), 2)
	assert.Equal(t, "", next.View())
}

func TestSpinnerTickKeepsScrollPosition(t *testing.T) {
	p, ok := persona.NewMemoryStore(persona.Seed()).FindByID("travel-assistant")
	require.True(t, ok)
	conv := conversation.New(p, conversation.WithConfig(conversation.Config{PreDelay: 0, ReplyDelay: time.Hour}))
	t.Cleanup(conv.Close)

	m := update(t, New(conv, zerolog.Nop()), tea.WindowSizeMsg{Width: 80, Height: 12})
	m = typeText(t, m, "Marrakesh")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Eventually(t, conv.BotTyping, time.Second, time.Millisecond)
	m = drain(t, m)
	require.True(t, m.state.BotTyping)
	require.Greater(t, m.viewport.YOffset, 0, "timeline should overflow the viewport")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyPgUp})
	scrolled := m.viewport.YOffset
	require.Less(t, scrolled, m.viewport.TotalLineCount()-m.viewport.Height)

	m = update(t, m, m.spinner.Tick())
	assert.Equal(t, scrolled, m.viewport.YOffset)

	// a new event still follows the newest message
	conv.SetInputBuffer("x")
	m = drain(t, m)
	assert.True(t, m.viewport.AtBottom())
}
