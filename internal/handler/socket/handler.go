package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/travel-assistant/backend/internal/conversation"
	"github.com/zhouzirui/travel-assistant/backend/internal/metrics"
	chatService "github.com/zhouzirui/travel-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/travel-assistant/backend/pkg/utils"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler WebSocket聊天处理器
type Handler struct {
	chatSvc  *chatService.Service
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(chatSvc *chatService.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		log:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

// connection serializes writes; gorilla allows one concurrent writer.
type connection struct {
	conn      *websocket.Conn
	sessionID string
	mu        sync.Mutex
}

func (c *connection) write(msg OutboundMessage) error {
	msg.SessionID = c.sessionID
	msg.Timestamp = time.Now().Unix()

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *connection) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conv, err := h.chatSvc.Conversation(sessionID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chatService.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", sessionID).Msg("websocket upgrade failed")
		return
	}
	defer ws.Close()

	metrics.StreamSubscribers.WithLabelValues("ws").Inc()
	defer metrics.StreamSubscribers.WithLabelValues("ws").Dec()

	conn := &connection{conn: ws, sessionID: sessionID}
	log := h.log.With().Str("session_id", sessionID).Logger()
	log.Debug().Msg("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := conv.Subscribe(conversation.DefaultSubscriberBuffer)
	defer unsubscribe()

	quickReplies := conv.QuickReplies()
	if quickReplies == nil {
		quickReplies = []string{}
	}
	if err := conn.write(OutboundMessage{Type: TypeConnected, Data: map[string]any{
		"persona":      conv.Persona().ID,
		"state":        conv.Snapshot(),
		"quickReplies": quickReplies,
	}}); err != nil {
		return
	}

	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, conn)
	go h.forwardEvents(ctx, cancel, conn, events)

	for {
		var msg InboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(conn, "session mismatch")
			continue
		}

		h.handleMessage(ctx, conn, &msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *connection, msg *InboundMessage) {
	switch msg.Type {
	case TypeText:
		var text TextMessage
		if err := json.Unmarshal(msg.Data, &text); err != nil {
			h.sendError(conn, "invalid text payload")
			return
		}
		accepted, err := h.chatSvc.Submit(ctx, conn.sessionID, text.Text)
		if err != nil {
			h.sendError(conn, err.Error())
			return
		}
		_ = conn.write(OutboundMessage{Type: TypeAck, Data: Ack{Request: TypeText, Accepted: accepted}})
	case TypeInput:
		var text TextMessage
		if err := json.Unmarshal(msg.Data, &text); err != nil {
			h.sendError(conn, "invalid input payload")
			return
		}
		if err := h.chatSvc.SetInput(ctx, conn.sessionID, text.Text); err != nil {
			h.sendError(conn, err.Error())
		}
	case TypeQuickReply:
		var qr QuickReplyMessage
		if err := json.Unmarshal(msg.Data, &qr); err != nil {
			h.sendError(conn, "invalid quick reply payload")
			return
		}
		accepted, err := h.chatSvc.SelectQuickReply(ctx, conn.sessionID, qr.Phrase)
		if err != nil {
			h.sendError(conn, err.Error())
			return
		}
		_ = conn.write(OutboundMessage{Type: TypeAck, Data: Ack{Request: TypeQuickReply, Accepted: accepted}})
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type)
	}
}

// forwardEvents pushes conversation events to the client. When the
// conversation closes the socket is closed too.
func (h *Handler) forwardEvents(ctx context.Context, cancel context.CancelFunc, conn *connection, events <-chan conversation.Event) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-events:
			if !open {
				_ = conn.conn.Close()
				return
			}
			if err := conn.write(OutboundMessage{Type: TypeEvent, Data: ev}); err != nil {
				h.log.Debug().Err(err).Str("session_id", conn.sessionID).Msg("websocket write failed")
				_ = conn.conn.Close()
				return
			}
			if ev.Type == conversation.EventClosed {
				_ = conn.conn.Close()
				return
			}
		}
	}
}

func (h *Handler) sendError(conn *connection, message string) {
	if err := conn.write(OutboundMessage{Type: TypeError, Data: map[string]string{"message": message}}); err != nil {
		h.log.Debug().Err(err).Msg("websocket write error failed")
	}
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, conn *connection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
