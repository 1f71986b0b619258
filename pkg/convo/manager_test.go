package convo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func testManager(t *testing.T) (*Manager, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	m := NewManager("room-1", store)
	t.Cleanup(func() {
		m.Close()
		store.Close()
	})
	return m, store
}

func TestAddMessageOrdering(t *testing.T) {
	m, _ := testManager(t)

	m.AddMessage(NewMessage(RoleUser, "first"))
	m.AddMessage(NewMessage(RoleAssistant, "second"))
	m.AddMessage(NewMessage(RoleUser, "third"))

	msgs := m.Messages()
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "first" || msgs[1].Content != "second" || msgs[2].Content != "third" {
		t.Errorf("Messages out of order: %v", msgs)
	}
	if m.Count() != len(msgs) {
		t.Errorf("Count %d does not match log length %d", m.Count(), len(msgs))
	}

	// Every message gets an ID and a timestamp on append.
	for i, msg := range msgs {
		if msg.ID == "" {
			t.Errorf("Message %d missing ID", i)
		}
		if msg.Timestamp.IsZero() {
			t.Errorf("Message %d missing timestamp", i)
		}
	}
}

func TestSnapshotPersisted(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager("room-1", store)

	m.AddMessage(NewMessage(RoleUser, "hello"))
	m.AddMessage(NewMessage(RoleAssistant, "hi there"))

	// Close drains the writer, so the final snapshot has landed.
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	row, err := store.Session(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("Session lookup failed: %v", err)
	}
	if row.MessageCount != 2 {
		t.Errorf("Expected message_count 2, got %d", row.MessageCount)
	}
	if len(row.Conversation) != row.MessageCount {
		t.Errorf("message_count %d does not match conversation length %d",
			row.MessageCount, len(row.Conversation))
	}
	if row.RawConversation == "" {
		t.Error("Expected non-empty raw conversation")
	}
}

func TestEmailExtraction(t *testing.T) {
	m, store := testManager(t)

	m.AddMessage(NewMessage(RoleUser, "sure, my email is a@b.com."))

	if m.UserEmail() != "a@b.com" {
		t.Errorf("Expected a@b.com, got %q", m.UserEmail())
	}

	// SaveEmail runs async; give it a moment.
	waitFor(t, func() bool { return len(store.Emails("room-1")) == 1 })

	email, err := store.EmailForSession(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("EmailForSession failed: %v", err)
	}
	if email != "a@b.com" {
		t.Errorf("Expected a@b.com, got %q", email)
	}
}

func TestEmailDeduplicated(t *testing.T) {
	m, store := testManager(t)

	m.AddMessage(NewMessage(RoleUser, "it's a@b.com"))
	m.AddMessage(NewMessage(RoleUser, "yes, a@b.com!"))

	waitFor(t, func() bool { return len(store.Emails("room-1")) >= 1 })

	// Settle, then confirm no duplicate record appeared.
	time.Sleep(50 * time.Millisecond)
	if n := len(store.Emails("room-1")); n != 1 {
		t.Errorf("Expected 1 recorded email, got %d", n)
	}
}

func TestEmailMostRecentWins(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager("room-1", store)

	m.AddMessage(NewMessage(RoleUser, "my email is first@example.com"))
	m.AddMessage(NewMessage(RoleUser, "actually use second@example.com instead"))

	if m.UserEmail() != "second@example.com" {
		t.Errorf("Expected second@example.com, got %q", m.UserEmail())
	}

	// Close drains the writer, so the final snapshot has landed.
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	row, err := store.Session(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("Session lookup failed: %v", err)
	}
	if row.UserEmail != "second@example.com" {
		t.Errorf("Expected persisted second@example.com, got %q", row.UserEmail)
	}

	// Both distinct addresses still reach the contact store once each.
	waitFor(t, func() bool { return len(store.Emails("room-1")) == 2 })
}

func TestExtractEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"my email is a@b.com", "a@b.com"},
		{"reach me at jane.doe@example.org.", "jane.doe@example.org"},
		{"it's bob@work.io!", "bob@work.io"},
		{"no email here", ""},
		{"just an @ sign", ""},
		{"half@done", ""},
		{"trailing@dots.com...", "trailing@dots.com"},
	}

	for _, tc := range cases {
		if got := ExtractEmail(tc.in); got != tc.want {
			t.Errorf("ExtractEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestInitializeSessionIdempotent(t *testing.T) {
	m, store := testManager(t)
	ctx := context.Background()

	m.InitializeSession(ctx, "participant-1")
	m.InitializeSession(ctx, "participant-2")

	row, err := store.Session(ctx, "room-1")
	if err != nil {
		t.Fatalf("Session lookup failed: %v", err)
	}
	// Second call is a no-op, first participant wins.
	if row.ParticipantID != "participant-1" {
		t.Errorf("Expected participant-1, got %q", row.ParticipantID)
	}
	if row.MessageCount != 0 {
		t.Errorf("Expected empty log, got %d messages", row.MessageCount)
	}
}

func TestInitializeSessionSurvivesStoreFailure(t *testing.T) {
	store := &failingStore{}
	m := NewManager("room-1", store)
	defer m.Close()

	// Must not panic or block even though every write fails.
	m.InitializeSession(context.Background(), "participant-1")
	m.AddMessage(NewMessage(RoleUser, "still works"))

	if m.Count() != 1 {
		t.Errorf("Expected message to be kept in memory, got %d", m.Count())
	}
}

func TestInvalidRoleDropped(t *testing.T) {
	m, _ := testManager(t)

	m.AddMessage(Message{Role: Role("narrator"), Content: "meanwhile"})

	if m.Count() != 0 {
		t.Errorf("Expected invalid role to be dropped, count %d", m.Count())
	}
}

func TestMarkEmailSent(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager("room-1", store)

	m.AddMessage(NewMessage(RoleUser, "send me the summary at a@b.com"))
	m.MarkEmailSent()
	m.Close()

	row, err := store.Session(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("Session lookup failed: %v", err)
	}
	if !row.EmailSent {
		t.Error("Expected email_sent true")
	}
	if row.UserEmail != "a@b.com" {
		t.Errorf("Expected snapshot to carry email, got %q", row.UserEmail)
	}
}

func TestFlush(t *testing.T) {
	m, store := testManager(t)

	m.AddMessage(NewMessage(RoleUser, "hello"))
	if err := m.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	row, err := store.Session(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("Session lookup failed: %v", err)
	}
	if row.MessageCount != 1 {
		t.Errorf("Expected flushed count 1, got %d", row.MessageCount)
	}
}

func TestWriterCoalesces(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager("room-1", store)

	// Burst of appends. The writer may skip intermediate snapshots but
	// the final stored row must reflect the complete log.
	for i := 0; i < 50; i++ {
		m.AddMessage(NewMessage(RoleUser, fmt.Sprintf("message %d", i)))
	}
	m.Close()

	row, err := store.Session(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("Session lookup failed: %v", err)
	}
	if row.MessageCount != 50 {
		t.Errorf("Expected final snapshot with 50 messages, got %d", row.MessageCount)
	}
	if row.Conversation[49].Content != "message 49" {
		t.Errorf("Unexpected last message: %s", row.Conversation[49].Content)
	}
}

func TestAddAfterCloseIgnored(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager("room-1", store)
	m.Close()

	m.AddMessage(NewMessage(RoleUser, "too late"))
	if m.Count() != 0 {
		t.Errorf("Expected append after close to be ignored, got %d", m.Count())
	}
}

// failingStore errors on every operation.
type failingStore struct{}

func (f *failingStore) UpsertSession(ctx context.Context, row *SessionRow) error {
	return errors.New("store down")
}

func (f *failingStore) SaveEmail(ctx context.Context, sessionID, participantID, email string) error {
	return errors.New("store down")
}

func (f *failingStore) EmailForSession(ctx context.Context, sessionID string) (string, error) {
	return "", errors.New("store down")
}

func (f *failingStore) Session(ctx context.Context, sessionID string) (*SessionRow, error) {
	return nil, errors.New("store down")
}

func (f *failingStore) Close() error { return nil }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
