// Package tui renders a conversation as a terminal chat widget.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/travel-assistant/backend/internal/conversation"
	"github.com/zhouzirui/travel-assistant/backend/internal/model/chat"
)

const (
	PageTitle  = "Travel Planning Assistant"
	headerName = "Travel Assistant"

	timeLayout = "15:04"
	// bubbles never take more than this share of the width
	bubbleWidthRatio = 0.75
)

type eventMsg conversation.Event

// streamClosedMsg is sent when the subscription channel is closed.
type streamClosedMsg struct{}

// Model is the bubbletea model of the chat widget. All state lives in the
// conversation; the model only keeps a snapshot for rendering.
type Model struct {
	conv        *conversation.Conversation
	events      <-chan conversation.Event
	unsubscribe func()
	log         zerolog.Logger

	state    chat.State
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width    int
	height   int
	ready    bool
	quitting bool
}

// New mounts the widget on conv. The conversation is closed when the user quits.
func New(conv *conversation.Conversation, logger zerolog.Logger) Model {
	events, unsubscribe := conv.Subscribe(conversation.DefaultSubscriberBuffer)

	ti := textinput.New()
	ti.Placeholder = conv.Persona().Placeholder
	ti.Prompt = "> "
	ti.CharLimit = 500
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)

	return Model{
		conv:        conv,
		events:      events,
		unsubscribe: unsubscribe,
		log:         logger,
		state:       conv.Snapshot(),
		viewport:    viewport.New(80, 20),
		input:       ti,
		spinner:     sp,
	}
}

func waitForEvent(ch <-chan conversation.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForEvent(m.events))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.input.Width = max(msg.Width-6, 10)
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		if msg.Type == conversation.EventClosed {
			return m.quit()
		}
		m.refresh()
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		if m.conv.Closed() {
			return m.quit()
		}
		// dropped as a slow subscriber; catch up and listen again
		m.events, m.unsubscribe = m.conv.Subscribe(conversation.DefaultSubscriberBuffer)
		m.refresh()
		return m, waitForEvent(m.events)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.state.BotTyping {
			// redraw the spinner without touching the scroll position
			m.renderMessages()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m.quit()

	case "enter":
		if m.sendDisabled() {
			return m, nil
		}
		text := m.input.Value()
		if m.conv.Submit(text) {
			m.input.Reset()
		} else {
			m.log.Debug().Str("session_id", m.conv.ID()).Msg("submission not accepted")
		}
		m.refresh()
		return m, nil

	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if idx, ok := quickReplyIndex(msg); ok && m.input.Value() == "" {
		replies := m.conv.QuickReplies()
		if idx < len(replies) {
			m.conv.SelectQuickReply(replies[idx])
			m.refresh()
			return m, nil
		}
	}

	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.conv.SetInputBuffer(after)
	}
	return m, cmd
}

// quickReplyIndex maps the keys 1-9 to a zero based menu index.
func quickReplyIndex(msg tea.KeyMsg) (int, bool) {
	if msg.Type != tea.KeyRunes || len(msg.Runes) != 1 {
		return 0, false
	}
	r := msg.Runes[0]
	if r < '1' || r > '9' {
		return 0, false
	}
	return int(r - '1'), true
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.unsubscribe()
	m.conv.Close()
	return m, tea.Quit
}

// sendDisabled mirrors the send button: blank input, or a pending reply when
// the busy policy rejects overlapping submissions.
func (m Model) sendDisabled() bool {
	if strings.TrimSpace(m.input.Value()) == "" {
		return true
	}
	return m.conv.Config().BusyPolicy == conversation.BusyReject && m.conv.Busy()
}

func (m *Model) refresh() {
	m.state = m.conv.Snapshot()
	m.layout()
}

// layout sizes the viewport to whatever the chrome leaves and scrolls to the
// newest message.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	chrome := lipgloss.Height(m.headerView()) + lipgloss.Height(m.footerView())
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-chrome, 1)
	m.renderMessages()
	m.viewport.GotoBottom()
}

func (m *Model) renderMessages() {
	var sb strings.Builder
	for i, msg := range m.state.Messages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(m.renderMessage(msg))
	}
	if m.state.BotTyping {
		sb.WriteString("\n\n")
		sb.WriteString(m.spinner.View() + typingStyle.Render(" "+headerName+" is typing..."))
	}
	m.viewport.SetContent(sb.String())
}

func (m Model) renderMessage(msg chat.Message) string {
	maxWidth := max(int(float64(m.width)*bubbleWidthRatio), 20)

	style := botBubbleStyle
	align := lipgloss.Left
	if msg.FromUser() {
		style = userBubbleStyle
		align = lipgloss.Right
	}

	text := msg.Text
	if lipgloss.Width(text) > maxWidth-2 {
		style = style.Width(maxWidth)
	}
	bubble := lipgloss.JoinVertical(align,
		style.Render(text),
		timestampStyle.Render(msg.Timestamp.Local().Format(timeLayout)),
	)
	return lipgloss.PlaceHorizontal(m.width, align, bubble)
}

func (m Model) headerView() string {
	status := "Online"
	if m.state.BotTyping {
		status = "Typing..."
	}
	header := headerStyle.Width(max(m.width-2, 0)).Render(
		headerNameStyle.Render(headerName) + "  " + headerStatusStyle.Render(status),
	)
	return lipgloss.JoinVertical(lipgloss.Left, pageTitleStyle.Render(PageTitle), header)
}

func (m Model) footerView() string {
	var parts []string

	if replies := m.conv.QuickReplies(); len(replies) > 0 {
		lines := []string{quickReplyTitleStyle.Render("Quick replies:")}
		for i, phrase := range replies {
			lines = append(lines, quickReplyStyle.Render(
				quickReplyKeyStyle.Render(fmt.Sprintf("[%d]", i+1))+" "+phrase,
			))
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}

	box := inputStyle
	if m.sendDisabled() {
		box = inputDisabledStyle
	}
	parts = append(parts, box.Width(max(m.width-2, 0)).Render(m.input.View()))
	parts = append(parts, helpStyle.Render("enter send • 1-4 quick reply • pgup/pgdown scroll • esc quit"))

	return strings.Join(parts, "\n")
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "\n  Initializing..."
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.headerView(), m.viewport.View(), m.footerView())
}
