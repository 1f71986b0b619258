package convo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore persists sessions to Postgres. The hosted conversation
// database exposes a standard Postgres connection string, so lib/pq is
// all we need.
type PostgresStore struct {
	db *sql.DB
}

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS conversation_histories (
	session_id       TEXT PRIMARY KEY,
	participant_id   TEXT,
	conversation     JSONB NOT NULL DEFAULT '[]',
	raw_conversation TEXT NOT NULL DEFAULT '',
	message_count    INTEGER NOT NULL DEFAULT 0,
	user_email       TEXT,
	email_sent       BOOLEAN NOT NULL DEFAULT FALSE,
	timestamp        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_emails (
	id             SERIAL PRIMARY KEY,
	session_id     TEXT NOT NULL,
	participant_id TEXT,
	email          TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (session_id, email)
);
`

// NewPostgresStore opens a connection and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, storeErr("open", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storeErr("ping", err)
	}

	if _, err := db.ExecContext(ctx, sessionsSchema); err != nil {
		db.Close()
		return nil, storeErr("ensure schema", err)
	}

	return &PostgresStore{db: db}, nil
}

// UpsertSession replaces the full row for the session.
func (s *PostgresStore) UpsertSession(ctx context.Context, row *SessionRow) error {
	conversation, err := json.Marshal(row.Conversation)
	if err != nil {
		return storeErr("marshal conversation", err)
	}

	const q = `
INSERT INTO conversation_histories
	(session_id, participant_id, conversation, raw_conversation, message_count, user_email, email_sent, timestamp)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
ON CONFLICT (session_id) DO UPDATE SET
	participant_id   = EXCLUDED.participant_id,
	conversation     = EXCLUDED.conversation,
	raw_conversation = EXCLUDED.raw_conversation,
	message_count    = EXCLUDED.message_count,
	user_email       = COALESCE(EXCLUDED.user_email, conversation_histories.user_email),
	email_sent       = EXCLUDED.email_sent,
	timestamp        = EXCLUDED.timestamp`

	_, err = s.db.ExecContext(ctx, q,
		row.SessionID,
		row.ParticipantID,
		conversation,
		row.RawConversation,
		row.MessageCount,
		row.UserEmail,
		row.EmailSent,
		row.Timestamp,
	)
	return storeErr("upsert session", err)
}

// SaveEmail records an email once per session.
func (s *PostgresStore) SaveEmail(ctx context.Context, sessionID, participantID, email string) error {
	const q = `
INSERT INTO user_emails (session_id, participant_id, email)
VALUES ($1, $2, $3)
ON CONFLICT (session_id, email) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, q, sessionID, participantID, email); err != nil {
		return storeErr("save email", err)
	}
	return nil
}

// EmailForSession returns the first email recorded for a session.
func (s *PostgresStore) EmailForSession(ctx context.Context, sessionID string) (string, error) {
	const q = `
SELECT email FROM user_emails
WHERE session_id = $1
ORDER BY created_at ASC
LIMIT 1`

	var email string
	err := s.db.QueryRowContext(ctx, q, sessionID).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoEmail
	}
	if err != nil {
		return "", storeErr("query email", err)
	}
	return email, nil
}

// Session returns the stored snapshot for a session.
func (s *PostgresStore) Session(ctx context.Context, sessionID string) (*SessionRow, error) {
	const q = `
SELECT session_id, COALESCE(participant_id, ''), conversation, raw_conversation,
	message_count, COALESCE(user_email, ''), email_sent, timestamp
FROM conversation_histories
WHERE session_id = $1`

	var row SessionRow
	var conversation []byte
	err := s.db.QueryRowContext(ctx, q, sessionID).Scan(
		&row.SessionID,
		&row.ParticipantID,
		&conversation,
		&row.RawConversation,
		&row.MessageCount,
		&row.UserEmail,
		&row.EmailSent,
		&row.Timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, storeErr("query session", err)
	}

	if err := json.Unmarshal(conversation, &row.Conversation); err != nil {
		return nil, storeErr("unmarshal conversation", fmt.Errorf("session %s: %w", sessionID, err))
	}
	return &row, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Verify PostgresStore implements SessionStore at compile time.
var _ SessionStore = (*PostgresStore)(nil)
