package convo

import (
	"context"
	"time"
)

// SessionRow is a full snapshot of one session's state. Every persisted
// write replaces the entire row; there are no incremental updates.
type SessionRow struct {
	// SessionID is the room name the session runs in.
	SessionID string `json:"session_id"`

	// ParticipantID identifies the connected user, when known.
	ParticipantID string `json:"participant_id,omitempty"`

	// Conversation is the ordered message log.
	Conversation []Message `json:"conversation"`

	// RawConversation is a plain-text rendering of the log.
	RawConversation string `json:"raw_conversation"`

	// MessageCount always equals len(Conversation).
	MessageCount int `json:"message_count"`

	// UserEmail is the most recently captured email, if any.
	UserEmail string `json:"user_email,omitempty"`

	// EmailSent records whether a summary email was dispatched.
	EmailSent bool `json:"email_sent"`

	// Timestamp is when this snapshot was taken.
	Timestamp time.Time `json:"timestamp"`
}

// SessionStore persists session snapshots and captured emails.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	// UpsertSession writes a full session snapshot, replacing any
	// previous row for the same session.
	UpsertSession(ctx context.Context, row *SessionRow) error

	// SaveEmail records an email captured during a session. Saving the
	// same email for the same session again is a no-op.
	SaveEmail(ctx context.Context, sessionID, participantID, email string) error

	// EmailForSession returns the first email recorded for a session,
	// or ErrNoEmail.
	EmailForSession(ctx context.Context, sessionID string) (string, error)

	// Session returns the stored snapshot for a session, or
	// ErrSessionNotFound.
	Session(ctx context.Context, sessionID string) (*SessionRow, error)

	// Close releases store resources.
	Close() error
}
