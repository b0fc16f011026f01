package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/travel-assistant/backend/internal/conversation"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	Log    LogConfig
	Chat   ChatConfig

	// PersonaFile optionally points at a YAML file with extra personas.
	PersonaFile string `env:"PERSONA_FILE"`
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Addr string `env:"-"`
}

// LogConfig selects the log format and verbosity.
type LogConfig struct {
	Env   string `env:"ENV" envDefault:"development"`
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// ChatConfig controls the reply simulator and session lifetime.
type ChatConfig struct {
	PreDelay       time.Duration `env:"CHAT_PRE_DELAY" envDefault:"800ms"`
	ReplyDelay     time.Duration `env:"CHAT_REPLY_DELAY" envDefault:"1s"`
	BusyPolicy     string        `env:"CHAT_BUSY_POLICY" envDefault:"reject"`
	SessionIdleTTL time.Duration `env:"CHAT_SESSION_IDLE_TTL" envDefault:"30m"`
	EvictInterval  time.Duration `env:"CHAT_EVICT_INTERVAL" envDefault:"1m"`
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}

	addr, err := listenAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if err := cfg.Chat.validate(); err != nil {
		return nil, err
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level)); err != nil {
		return nil, errors.Wrapf(err, "invalid LOG_LEVEL %q", cfg.Log.Level)
	}

	return &cfg, nil
}

// listenAddr 解析服务器监听地址。
func listenAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, " ") {
		return "", errors.Errorf("invalid PORT value: %q", port)
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	return ":" + port, nil
}

func (c ChatConfig) validate() error {
	if c.PreDelay < 0 {
		return errors.Errorf("CHAT_PRE_DELAY must not be negative, got %s", c.PreDelay)
	}
	if c.ReplyDelay < 0 {
		return errors.Errorf("CHAT_REPLY_DELAY must not be negative, got %s", c.ReplyDelay)
	}
	if _, err := conversation.ParseBusyPolicy(c.BusyPolicy); err != nil {
		return errors.Wrap(err, "invalid CHAT_BUSY_POLICY")
	}
	if c.SessionIdleTTL > 0 && c.EvictInterval <= 0 {
		return errors.New("CHAT_EVICT_INTERVAL must be positive when CHAT_SESSION_IDLE_TTL is set")
	}
	return nil
}

// Conversation converts the settings into simulator timings.
func (c ChatConfig) Conversation() conversation.Config {
	policy, err := conversation.ParseBusyPolicy(c.BusyPolicy)
	if err != nil {
		policy = conversation.BusyReject
	}
	return conversation.Config{
		PreDelay:   c.PreDelay,
		ReplyDelay: c.ReplyDelay,
		BusyPolicy: policy,
	}
}

// IsDevelopment returns true if running in development mode.
func (c LogConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// NewLogger builds the process logger: human-readable in development, JSON otherwise.
func (c LogConfig) NewLogger(out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	if c.IsDevelopment() {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil || c.Level == "" {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
