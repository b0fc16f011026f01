package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zhouzirui/travel-assistant/backend/internal/conversation"
	"github.com/zhouzirui/travel-assistant/backend/internal/model/persona"
	chat "github.com/zhouzirui/travel-assistant/backend/internal/service/chat"
)

func newService(t *testing.T) *chat.Service {
	t.Helper()
	svc := chat.NewService(persona.NewMemoryStore(persona.Seed()), chat.Config{
		Conversation: conversation.Config{PreDelay: time.Millisecond, ReplyDelay: 2 * time.Millisecond},
	})
	t.Cleanup(svc.Shutdown)
	return svc
}

func waitIdle(t *testing.T, svc *chat.Service, sessionID string) {
	t.Helper()
	conv, err := svc.Conversation(sessionID)
	if err != nil {
		t.Fatalf("Conversation err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conv.Wait(ctx); err != nil {
		t.Fatalf("Wait err: %v", err)
	}
}

func TestServiceGetSession(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "travel-assistant")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if got.ID != session.ID {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID, session.ID)
	}
	if got.PersonaID != "travel-assistant" {
		t.Fatalf("unexpected persona ID: got %s", got.PersonaID)
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := newService(t)

	if _, err := svc.GetSession(context.Background(), "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceCreateSessionValidatesPersona(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if _, err := svc.CreateSession(ctx, ""); !errors.Is(err, chat.ErrPersonaRequired) {
		t.Fatalf("expected ErrPersonaRequired, got %v", err)
	}
	if _, err := svc.CreateSession(ctx, "iron-man"); !errors.Is(err, chat.ErrPersonaNotFound) {
		t.Fatalf("expected ErrPersonaNotFound, got %v", err)
	}
}

func TestServiceSessionsAreIsolated(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	a, _ := svc.CreateSession(ctx, "travel-assistant")
	b, _ := svc.CreateSession(ctx, "travel-assistant")

	if ok, err := svc.Submit(ctx, a.ID, "Tokyo in April"); err != nil || !ok {
		t.Fatalf("Submit: ok=%v err=%v", ok, err)
	}
	waitIdle(t, svc, a.ID)

	transcriptA, _ := svc.LoadTranscript(ctx, a.ID)
	transcriptB, _ := svc.LoadTranscript(ctx, b.ID)
	if len(transcriptA) != 3 {
		t.Fatalf("expected 3 messages in session a, got %d", len(transcriptA))
	}
	if len(transcriptB) != 1 {
		t.Fatalf("expected only the greeting in session b, got %d", len(transcriptB))
	}
	if transcriptA[2].Text != "I'm researching Tokyo in April... Here's what I found:" {
		t.Fatalf("unexpected bot reply: %q", transcriptA[2].Text)
	}
}

func TestServiceSelectQuickReply(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, "travel-assistant")

	if _, err := svc.SelectQuickReply(ctx, session.ID, "Somewhere random"); !errors.Is(err, chat.ErrUnknownQuickReply) {
		t.Fatalf("expected ErrUnknownQuickReply, got %v", err)
	}

	ok, err := svc.SelectQuickReply(ctx, session.ID, "Budget trips in Europe")
	if err != nil || !ok {
		t.Fatalf("SelectQuickReply: ok=%v err=%v", ok, err)
	}
	waitIdle(t, svc, session.ID)

	state, _ := svc.State(ctx, session.ID)
	if len(state.Messages) != 3 || state.InputBuffer != "" || state.BotTyping {
		t.Fatalf("unexpected end state: %+v", state)
	}
}

func TestServiceSelectQuickReplyAfterMenuHidden(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, "travel-assistant")

	if ok, err := svc.Submit(ctx, session.ID, "Tokyo"); err != nil || !ok {
		t.Fatalf("Submit: ok=%v err=%v", ok, err)
	}
	waitIdle(t, svc, session.ID)

	ok, err := svc.SelectQuickReply(ctx, session.ID, "Budget trips in Europe")
	if !errors.Is(err, chat.ErrQuickRepliesHidden) || ok {
		t.Fatalf("expected ErrQuickRepliesHidden, got ok=%v err=%v", ok, err)
	}

	state, _ := svc.State(ctx, session.ID)
	if len(state.Messages) != 3 || state.InputBuffer != "" {
		t.Fatalf("state must be unchanged, got %+v", state)
	}
}

func TestServiceCloseSession(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, "travel-assistant")
	conv, _ := svc.Conversation(session.ID)

	if err := svc.CloseSession(ctx, session.ID); err != nil {
		t.Fatalf("CloseSession err: %v", err)
	}
	if !conv.Closed() {
		t.Fatal("expected conversation to be closed")
	}
	if _, err := svc.Submit(ctx, session.ID, "hello"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after close, got %v", err)
	}
	if err := svc.CloseSession(ctx, session.ID); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on double close, got %v", err)
	}
}
