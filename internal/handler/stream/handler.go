package stream

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/travel-assistant/backend/internal/conversation"
	"github.com/zhouzirui/travel-assistant/backend/internal/metrics"
	"github.com/zhouzirui/travel-assistant/backend/internal/model/chat"
	chatService "github.com/zhouzirui/travel-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/travel-assistant/backend/pkg/utils"
)

const defaultKeepAlive = 15 * time.Second

// Handler streams conversation events via Server-Sent Events.
type Handler struct {
	chatSvc   *chatService.Service
	log       zerolog.Logger
	keepAlive time.Duration
}

// New creates a new stream handler.
func New(chatSvc *chatService.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		chatSvc:   chatSvc,
		log:       logger,
		keepAlive: defaultKeepAlive,
	}
}

// Snapshot is the first event of every stream.
type Snapshot struct {
	State        chat.State `json:"state"`
	QuickReplies []string   `json:"quickReplies"`
}

// RegisterRoutes mounts the stream endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.HandleStream)
}

// HandleStream subscribes to a session and forwards every event until the
// client disconnects or the session closes. The snapshot is taken after
// subscribing, so an event may repeat a message already in the snapshot;
// clients dedupe by message ID.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	conv, err := h.chatSvc.Conversation(sessionID)
	if err != nil {
		if errors.Is(err, chatService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "stream unavailable")
		return
	}

	events, unsubscribe := conv.Subscribe(conversation.DefaultSubscriberBuffer)
	defer unsubscribe()

	metrics.StreamSubscribers.WithLabelValues("sse").Inc()
	defer metrics.StreamSubscribers.WithLabelValues("sse").Dec()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	snapshot := Snapshot{State: conv.Snapshot(), QuickReplies: conv.QuickReplies()}
	if snapshot.QuickReplies == nil {
		snapshot.QuickReplies = []string{}
	}
	if err := utils.SendSSEEvent(w, flusher, "snapshot", snapshot); err != nil {
		h.log.Debug().Err(err).Str("session_id", sessionID).Msg("sse snapshot failed")
		return
	}

	h.log.Debug().Str("session_id", sessionID).Msg("sse stream opened")

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Str("session_id", sessionID).Msg("sse client disconnected")
			return
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keep-alive"); err != nil {
				return
			}
		case ev, open := <-events:
			if !open {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(ev.Type), ev); err != nil {
				h.log.Debug().Err(err).Str("session_id", sessionID).Msg("sse write failed")
				return
			}
			if ev.Type == conversation.EventClosed {
				return
			}
		}
	}
}
