package convo

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreUpsertReplaces(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	first := &SessionRow{
		SessionID:    "room-1",
		Conversation: []Message{NewMessage(RoleUser, "one")},
		MessageCount: 1,
		Timestamp:    time.Now(),
	}
	if err := store.UpsertSession(ctx, first); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	second := &SessionRow{
		SessionID: "room-1",
		Conversation: []Message{
			NewMessage(RoleUser, "one"),
			NewMessage(RoleAssistant, "two"),
		},
		MessageCount: 2,
		Timestamp:    time.Now(),
	}
	if err := store.UpsertSession(ctx, second); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	row, err := store.Session(ctx, "room-1")
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if row.MessageCount != 2 {
		t.Errorf("Expected replaced row with 2 messages, got %d", row.MessageCount)
	}
	if store.UpsertCount() != 2 {
		t.Errorf("Expected 2 upserts, got %d", store.UpsertCount())
	}
}

func TestMemoryStoreSessionNotFound(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	_, err := store.Session(context.Background(), "missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestMemoryStoreEmailOnce(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	if err := store.SaveEmail(ctx, "room-1", "p1", "a@b.com"); err != nil {
		t.Fatalf("SaveEmail failed: %v", err)
	}
	if err := store.SaveEmail(ctx, "room-1", "p1", "a@b.com"); err != nil {
		t.Fatalf("SaveEmail failed: %v", err)
	}

	if n := len(store.Emails("room-1")); n != 1 {
		t.Errorf("Expected 1 email, got %d", n)
	}

	email, err := store.EmailForSession(ctx, "room-1")
	if err != nil {
		t.Fatalf("EmailForSession failed: %v", err)
	}
	if email != "a@b.com" {
		t.Errorf("Expected a@b.com, got %q", email)
	}
}

func TestMemoryStoreNoEmail(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	_, err := store.EmailForSession(context.Background(), "room-1")
	if !errors.Is(err, ErrNoEmail) {
		t.Errorf("Expected ErrNoEmail, got %v", err)
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	store := NewMemoryStore()
	store.Close()

	err := store.UpsertSession(context.Background(), &SessionRow{SessionID: "room-1"})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestRenderTranscript(t *testing.T) {
	msgs := []Message{
		NewMessage(RoleUser, "hello"),
		NewMessage(RoleAssistant, "hi"),
	}
	got := renderTranscript(msgs)
	want := "user: hello\nassistant: hi"
	if got != want {
		t.Errorf("renderTranscript = %q, want %q", got, want)
	}
}
