package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/travel-assistant/backend/internal/handler/chat"
	"github.com/zhouzirui/travel-assistant/backend/internal/handler/persona"
	"github.com/zhouzirui/travel-assistant/backend/internal/handler/socket"
	"github.com/zhouzirui/travel-assistant/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/travel-assistant/backend/internal/middleware"
	personaModel "github.com/zhouzirui/travel-assistant/backend/internal/model/persona"
	chatService "github.com/zhouzirui/travel-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/travel-assistant/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(logger zerolog.Logger, personas personaModel.Store, chatSvc *chatService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middlewarePkg.Metrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middlewarePkg.Logger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middlewarePkg.CORS)

	started := time.Now()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": chatSvc.SessionCount(),
			"uptime":   time.Since(started).Round(time.Second).String(),
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	personaHandler := persona.New(personas)
	chatHandler := chat.New(chatSvc, logger)
	streamHandler := stream.New(chatSvc, logger)
	socketHandler := socket.New(chatSvc, logger)

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		socketHandler.RegisterRoutes(api)
	})

	return r
}
