package convo

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultWriteTimeout = 10 * time.Second

// Manager owns the conversation log for a single session. Appending a
// message snapshots the whole session and hands the snapshot to a
// background writer, so callers never block on storage. Only the
// writer talks to the store, which removes the write race a
// fire-and-forget-per-mutation scheme would have: snapshots land in
// order, and a stale pending snapshot is replaced rather than queued.
type Manager struct {
	sessionID string
	store     SessionStore
	logger    *slog.Logger

	mu            sync.Mutex
	participantID string
	messages      []Message
	userEmail     string
	emailSent     bool
	savedEmails   map[string]bool
	initialized   bool
	closed        bool

	pending chan SessionRow
	done    chan struct{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the structured logger.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l.With("component", "convo.manager", "session", m.sessionID)
	}
}

// NewManager creates a manager for one session and starts its writer.
func NewManager(sessionID string, store SessionStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		sessionID:   sessionID,
		store:       store,
		logger:      slog.Default().With("component", "convo.manager", "session", sessionID),
		savedEmails: make(map[string]bool),
		pending:     make(chan SessionRow, 1),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.writeLoop()
	return m
}

// InitializeSession records the participant and persists an empty
// snapshot so the session row exists from the start. Calling it again
// is a no-op. Storage failures are logged and swallowed: a session
// must not die because the history table is unreachable.
func (m *Manager) InitializeSession(ctx context.Context, participantID string) {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return
	}
	m.initialized = true
	m.participantID = participantID
	row := m.snapshotLocked()
	m.mu.Unlock()

	if err := m.store.UpsertSession(ctx, &row); err != nil {
		m.logger.Error("initialize session persist failed", "error", err)
	} else {
		m.logger.Info("session initialized", "participant", participantID)
	}
}

// AddMessage appends a message to the log, assigns its timestamp, and
// schedules a snapshot write. User messages are scanned for an email
// address; the session keeps the most recent one, and each distinct
// address is saved to the contact store once.
func (m *Manager) AddMessage(msg Message) {
	if !msg.Role.Valid() {
		m.logger.Warn("dropping message with invalid role", "role", string(msg.Role))
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if msg.ID == "" {
		msg = withID(msg)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.messages = append(m.messages, msg)

	var newEmail string
	if msg.Role == RoleUser {
		if email := ExtractEmail(msg.Content); email != "" {
			m.userEmail = email
			if !m.savedEmails[email] {
				m.savedEmails[email] = true
				newEmail = email
			}
		}
	}

	row := m.snapshotLocked()
	participant := m.participantID
	m.enqueue(row)
	m.mu.Unlock()

	if newEmail != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
			defer cancel()
			if err := m.store.SaveEmail(ctx, m.sessionID, participant, newEmail); err != nil {
				m.logger.Error("save email failed", "error", err)
			} else {
				m.logger.Info("email captured", "email", newEmail)
			}
		}()
	}
}

// Messages returns a copy of the log in append order.
func (m *Manager) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Count returns the number of messages in the log.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// UserEmail returns the most recent email captured this session, or "".
func (m *Manager) UserEmail() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userEmail
}

// MarkEmailSent records that the summary email was dispatched.
func (m *Manager) MarkEmailSent() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.emailSent = true
	m.enqueue(m.snapshotLocked())
	m.mu.Unlock()
}

// SessionID returns the session identifier.
func (m *Manager) SessionID() string {
	return m.sessionID
}

// Flush writes the current snapshot synchronously.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	row := m.snapshotLocked()
	m.mu.Unlock()
	return m.store.UpsertSession(ctx, &row)
}

// Close stops the writer after draining any pending snapshot.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.pending)
	<-m.done
	return nil
}

// snapshotLocked builds a full-row snapshot. Caller holds m.mu.
func (m *Manager) snapshotLocked() SessionRow {
	messages := make([]Message, len(m.messages))
	copy(messages, m.messages)

	return SessionRow{
		SessionID:       m.sessionID,
		ParticipantID:   m.participantID,
		Conversation:    messages,
		RawConversation: renderTranscript(messages),
		MessageCount:    len(messages),
		UserEmail:       m.userEmail,
		EmailSent:       m.emailSent,
		Timestamp:       time.Now().UTC(),
	}
}

// enqueue hands a snapshot to the writer without blocking. If a stale
// snapshot is still pending it is replaced; the newest snapshot always
// supersedes older ones since each carries the full session.
// Caller holds m.mu, which keeps enqueue ordered ahead of Close.
func (m *Manager) enqueue(row SessionRow) {
	for {
		select {
		case m.pending <- row:
			return
		default:
		}
		select {
		case <-m.pending:
		default:
		}
	}
}

// writeLoop is the single storage writer for this session.
func (m *Manager) writeLoop() {
	defer close(m.done)
	for row := range m.pending {
		ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
		if err := m.store.UpsertSession(ctx, &row); err != nil {
			m.logger.Error("snapshot persist failed",
				"message_count", row.MessageCount,
				"error", err,
			)
		}
		cancel()
	}
}

func withID(msg Message) Message {
	fresh := NewMessage(msg.Role, msg.Content)
	fresh.Metadata = msg.Metadata
	fresh.Timestamp = msg.Timestamp
	return fresh
}

// ExtractEmail returns the first email-shaped token in text, with
// trailing punctuation stripped, or "" if none is present.
func ExtractEmail(text string) string {
	for _, tok := range strings.Fields(text) {
		if !strings.Contains(tok, "@") {
			continue
		}
		tok = strings.TrimRight(tok, ".,!?;:")
		at := strings.Index(tok, "@")
		if at <= 0 || at == len(tok)-1 {
			continue
		}
		// The domain part needs at least one dot.
		if !strings.Contains(tok[at+1:], ".") {
			continue
		}
		return tok
	}
	return ""
}
