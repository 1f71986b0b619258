package convo

import (
	"context"
	"sync"
)

// MemoryStore is an in-process SessionStore for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionRow
	emails   map[string][]string
	upserts  int
	closed   bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*SessionRow),
		emails:   make(map[string][]string),
	}
}

// UpsertSession replaces the stored snapshot for the row's session.
func (s *MemoryStore) UpsertSession(ctx context.Context, row *SessionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	// Deep copy so callers can keep mutating their snapshot.
	cp := *row
	cp.Conversation = make([]Message, len(row.Conversation))
	copy(cp.Conversation, row.Conversation)

	s.sessions[row.SessionID] = &cp
	s.upserts++
	return nil
}

// SaveEmail records an email once per session.
func (s *MemoryStore) SaveEmail(ctx context.Context, sessionID, participantID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	for _, e := range s.emails[sessionID] {
		if e == email {
			return nil
		}
	}
	s.emails[sessionID] = append(s.emails[sessionID], email)
	return nil
}

// EmailForSession returns the first recorded email for a session.
func (s *MemoryStore) EmailForSession(ctx context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emails := s.emails[sessionID]
	if len(emails) == 0 {
		return "", ErrNoEmail
	}
	return emails[0], nil
}

// Session returns the stored snapshot for a session.
func (s *MemoryStore) Session(ctx context.Context, sessionID string) (*SessionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *row
	cp.Conversation = make([]Message, len(row.Conversation))
	copy(cp.Conversation, row.Conversation)
	return &cp, nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Emails returns all emails recorded for a session. Test helper.
func (s *MemoryStore) Emails(sessionID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.emails[sessionID]))
	copy(out, s.emails[sessionID])
	return out
}

// UpsertCount returns how many snapshot writes have landed. Test helper.
func (s *MemoryStore) UpsertCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upserts
}

// Verify MemoryStore implements SessionStore at compile time.
var _ SessionStore = (*MemoryStore)(nil)
