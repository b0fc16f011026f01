package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/travel-assistant/backend/internal/conversation"
	"github.com/zhouzirui/travel-assistant/backend/internal/model/persona"
	"github.com/zhouzirui/travel-assistant/backend/internal/tui"
)

type options struct {
	personaID   string
	personaFile string
	preDelay    time.Duration
	replyDelay  time.Duration
	busyPolicy  string
	logFile     string
	logLevel    string
}

func main() {
	opts := options{}

	var rootCmd = &cobra.Command{
		Use:   "widget",
		Short: "Travel assistant chat widget for the terminal",
		Long: `A terminal chat widget built with bubbletea. It greets you, offers
quick replies until the conversation starts, and answers every message after
a short typing animation.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.personaID, "persona", "p", "travel-assistant", "Persona to mount")
	flags.StringVar(&opts.personaFile, "persona-file", "", "YAML file with additional personas")
	flags.DurationVar(&opts.preDelay, "pre-delay", conversation.DefaultPreDelay, "Pause before the typing indicator appears")
	flags.DurationVar(&opts.replyDelay, "reply-delay", conversation.DefaultReplyDelay, "How long the typing indicator is shown")
	flags.StringVar(&opts.busyPolicy, "busy-policy", string(conversation.BusyReject), "What to do with messages sent while a reply is pending (reject|queue)")
	flags.StringVar(&opts.logFile, "log-file", "", "Write debug logs to this file")
	flags.StringVar(&opts.logLevel, "log-level", "debug", "Log level used with --log-file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts options) error {
	logger, closeLog, err := newLogger(opts.logFile, opts.logLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	policy, err := conversation.ParseBusyPolicy(opts.busyPolicy)
	if err != nil {
		return err
	}

	items := persona.Seed()
	if opts.personaFile != "" {
		extra, err := persona.LoadFile(opts.personaFile)
		if err != nil {
			return err
		}
		items = append(items, extra...)
	}
	p, ok := persona.NewMemoryStore(items).FindByID(opts.personaID)
	if !ok {
		return fmt.Errorf("persona %q not found", opts.personaID)
	}

	conv := conversation.New(p,
		conversation.WithConfig(conversation.Config{
			PreDelay:   opts.preDelay,
			ReplyDelay: opts.replyDelay,
			BusyPolicy: policy,
		}),
		conversation.WithLogger(logger),
	)
	defer conv.Close()

	logger.Info().Str("session_id", conv.ID()).Str("persona_id", p.ID).Msg("widget mounted")

	program := tea.NewProgram(tui.New(conv, logger), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return errors.Wrap(err, "run widget")
	}
	return nil
}

// newLogger never writes to the terminal, the widget owns the screen.
func newLogger(path, level string) (zerolog.Logger, func(), error) {
	if path == "" {
		return zerolog.Nop(), func() {}, nil
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), nil, errors.Wrapf(err, "parse log level %q", level)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, errors.Wrap(err, "open log file")
	}

	logger := zerolog.New(f).Level(lvl).With().Timestamp().Logger()
	return logger, func() { _ = f.Close() }, nil
}
