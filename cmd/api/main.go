package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/travel-assistant/backend/internal/config"
	"github.com/zhouzirui/travel-assistant/backend/internal/handler"
	"github.com/zhouzirui/travel-assistant/backend/internal/model/persona"
	"github.com/zhouzirui/travel-assistant/backend/internal/service/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("no .env file, continuing with system environment variables only")
	}

	personaStore, err := loadPersonas(cfg.PersonaFile)
	if err != nil {
		logger.Fatal().Err(err).Str("file", cfg.PersonaFile).Msg("failed to load personas")
	}

	chatService := chat.NewService(personaStore, chat.Config{
		Conversation:  cfg.Chat.Conversation(),
		IdleTTL:       cfg.Chat.SessionIdleTTL,
		EvictInterval: cfg.Chat.EvictInterval,
	}, chat.WithLogger(logger.With().Str("component", "chat").Logger()))
	defer chatService.Shutdown()

	router := handler.NewRouter(logger, personaStore, chatService)

	if err := startServer(ctx, logger, cfg.Server, router, chatService); err != nil {
		logger.Error().Err(err).Msg("server error")
		chatService.Shutdown()
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}

// loadPersonas returns the built-in personas merged with the optional YAML file.
func loadPersonas(path string) (*persona.MemoryStore, error) {
	items := persona.Seed()
	if path != "" {
		extra, err := persona.LoadFile(path)
		if err != nil {
			return nil, err
		}
		items = append(items, extra...)
	}
	return persona.NewMemoryStore(items), nil
}

func startServer(ctx context.Context, logger zerolog.Logger, serverCfg config.ServerConfig, router http.Handler, chatService *chat.Service) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("travel assistant backend listening")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runServer(gctx, srv)
	})
	g.Go(func() error {
		return chatService.RunEvictionLoop(gctx)
	})
	return g.Wait()
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
