package tui

import "github.com/charmbracelet/lipgloss"

var (
	pageTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	headerNameStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5"))
	headerStatusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF"))

	userBubbleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("63")).
			Padding(0, 1)

	botBubbleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1A1A1A")).
			Background(lipgloss.Color("#E4E4E4")).
			Padding(0, 1)

	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	typingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF")).Italic(true)

	quickReplyTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF"))
	quickReplyKeyStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	quickReplyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5")).PaddingLeft(1)

	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))
	inputDisabledStyle = inputStyle.BorderForeground(lipgloss.Color("240"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)
