package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/travel-assistant/backend/internal/model/chat"
	chatService "github.com/zhouzirui/travel-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/travel-assistant/backend/pkg/utils"
)

const maxBodyBytes = 16 << 10

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	log     zerolog.Logger
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		log:     logger,
	}
}

// SessionView is the widget's full render state.
type SessionView struct {
	Session      chat.Session `json:"session"`
	State        chat.State   `json:"state"`
	QuickReplies []string     `json:"quickReplies"`
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(sr chi.Router) {
		sr.Get("/", h.handleGetSession)
		sr.Delete("/", h.handleCloseSession)
		sr.Put("/input", h.handleSetInput)
		sr.Post("/messages", h.handleSubmit)
		sr.Post("/quick-replies", h.handleQuickReply)
	})
}

// handleCreateSession 创建会话（挂载一个聊天组件）
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID string `json:"personaId"`
	}

	if err := utils.DecodeJSON(w, r, maxBodyBytes, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.PersonaID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	view, err := h.sessionView(r, session.ID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessionView(r, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

// handleCloseSession 卸载会话，取消未完成的回复
func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.CloseSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetInput(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(w, r, maxBodyBytes, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.chatSvc.SetInput(r.Context(), chi.URLParam(r, "sessionID"), payload.Text); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSubmit 发送用户消息；空白消息被静默忽略
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(w, r, maxBodyBytes, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accepted, err := h.chatSvc.Submit(r.Context(), chi.URLParam(r, "sessionID"), payload.Text)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]bool{"accepted": accepted})
}

func (h *Handler) handleQuickReply(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Phrase string `json:"phrase"`
	}
	if err := utils.DecodeJSON(w, r, maxBodyBytes, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accepted, err := h.chatSvc.SelectQuickReply(r.Context(), chi.URLParam(r, "sessionID"), payload.Phrase)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]bool{"accepted": accepted})
}

func (h *Handler) sessionView(r *http.Request, sessionID string) (SessionView, error) {
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		return SessionView{}, err
	}
	conv, err := h.chatSvc.Conversation(sessionID)
	if err != nil {
		return SessionView{}, err
	}

	quickReplies := conv.QuickReplies()
	if quickReplies == nil {
		quickReplies = []string{}
	}
	return SessionView{
		Session:      session,
		State:        conv.Snapshot(),
		QuickReplies: quickReplies,
	}, nil
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrPersonaRequired),
		errors.Is(err, chatService.ErrPersonaNotFound),
		errors.Is(err, chatService.ErrUnknownQuickReply):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chatService.ErrQuickRepliesHidden):
		utils.RespondError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error().Err(err).Msg("chat request failed")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
