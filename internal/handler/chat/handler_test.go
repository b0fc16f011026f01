package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/travel-assistant/backend/internal/conversation"
	"github.com/zhouzirui/travel-assistant/backend/internal/model/persona"
	chatservice "github.com/zhouzirui/travel-assistant/backend/internal/service/chat"
)

func setupRouter(t *testing.T) (*chi.Mux, *chatservice.Service) {
	t.Helper()
	chatSvc := chatservice.NewService(persona.NewMemoryStore(persona.Seed()), chatservice.Config{
		Conversation: conversation.Config{PreDelay: time.Millisecond, ReplyDelay: 2 * time.Millisecond},
	})
	t.Cleanup(chatSvc.Shutdown)
	handler := New(chatSvc, zerolog.Nop())

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, r http.Handler) SessionView {
	t.Helper()
	resp := doJSON(r, http.MethodPost, "/session", map[string]string{"personaId": "travel-assistant"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var view SessionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	return view
}

func TestCreateSessionValidPersona(t *testing.T) {
	r, _ := setupRouter(t)
	view := createSession(t, r)

	if view.Session.ID == "" {
		t.Fatal("expected session id")
	}
	if len(view.State.Messages) != 1 || view.State.Messages[0].Sender != "bot" {
		t.Fatalf("expected seeded greeting, got %+v", view.State.Messages)
	}
	if len(view.QuickReplies) != 4 {
		t.Fatalf("expected 4 quick replies, got %d", len(view.QuickReplies))
	}
}

func TestCreateSessionInvalidPersona(t *testing.T) {
	r, _ := setupRouter(t)
	resp := doJSON(r, http.MethodPost, "/session", map[string]string{"personaId": "non-existent"})

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCreateSessionMissingPersonaID(t *testing.T) {
	r, _ := setupRouter(t)
	resp := doJSON(r, http.MethodPost, "/session", map[string]string{})

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSubmitScenario(t *testing.T) {
	r, svc := setupRouter(t)
	view := createSession(t, r)
	base := "/session/" + view.Session.ID

	resp := doJSON(r, http.MethodPut, base+"/input", map[string]string{"text": "Tokyo in April"})
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}

	resp = doJSON(r, http.MethodPost, base+"/messages", map[string]string{"text": "Tokyo in April"})
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	var ack map[string]bool
	_ = json.NewDecoder(resp.Body).Decode(&ack)
	if !ack["accepted"] {
		t.Fatal("expected submission to be accepted")
	}

	conv, _ := svc.Conversation(view.Session.ID)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conv.Wait(ctx); err != nil {
		t.Fatalf("Wait err: %v", err)
	}

	resp = doJSON(r, http.MethodGet, base, nil)
	var got SessionView
	_ = json.NewDecoder(resp.Body).Decode(&got)

	msgs := got.State.Messages
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[1].Text != "Tokyo in April" || msgs[2].Text != "I'm researching Tokyo in April... Here's what I found:" {
		t.Fatalf("unexpected timeline: %+v", msgs)
	}
	if got.State.BotTyping || got.State.InputBuffer != "" {
		t.Fatalf("unexpected state: %+v", got.State)
	}
	if len(got.QuickReplies) != 0 {
		t.Fatalf("quick replies must hide once the conversation started, got %v", got.QuickReplies)
	}
}

func TestSubmitWhitespaceIsIgnored(t *testing.T) {
	r, _ := setupRouter(t)
	view := createSession(t, r)

	resp := doJSON(r, http.MethodPost, "/session/"+view.Session.ID+"/messages", map[string]string{"text": "   "})
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	var ack map[string]bool
	_ = json.NewDecoder(resp.Body).Decode(&ack)
	if ack["accepted"] {
		t.Fatal("whitespace must not be accepted")
	}

	resp = doJSON(r, http.MethodGet, "/session/"+view.Session.ID, nil)
	var got SessionView
	_ = json.NewDecoder(resp.Body).Decode(&got)
	if len(got.State.Messages) != 1 || got.State.BotTyping {
		t.Fatalf("state must be unchanged, got %+v", got.State)
	}
}

func TestQuickReplyUnknownPhrase(t *testing.T) {
	r, _ := setupRouter(t)
	view := createSession(t, r)

	resp := doJSON(r, http.MethodPost, "/session/"+view.Session.ID+"/quick-replies", map[string]string{"phrase": "Mars"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestQuickReplyAfterConversationStarted(t *testing.T) {
	r, svc := setupRouter(t)
	view := createSession(t, r)
	base := "/session/" + view.Session.ID

	resp := doJSON(r, http.MethodPost, base+"/messages", map[string]string{"text": "Tokyo"})
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	conv, _ := svc.Conversation(view.Session.ID)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conv.Wait(ctx); err != nil {
		t.Fatalf("Wait err: %v", err)
	}

	resp = doJSON(r, http.MethodPost, base+"/quick-replies", map[string]string{"phrase": "Budget trips in Europe"})
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", resp.Code, resp.Body.String())
	}
	if n := len(conv.Messages()); n != 3 {
		t.Fatalf("timeline must be unchanged, got %d messages", n)
	}
}

func TestCloseSession(t *testing.T) {
	r, _ := setupRouter(t)
	view := createSession(t, r)

	resp := doJSON(r, http.MethodDelete, "/session/"+view.Session.ID, nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}

	resp = doJSON(r, http.MethodGet, "/session/"+view.Session.ID, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after close, got %d", resp.Code)
	}
}
