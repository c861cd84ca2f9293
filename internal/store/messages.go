package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one turn of a conversation session. Messages are
// immutable once written.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	TokensIn  int       `json:"tokens_in,omitempty"`
	TokensOut int       `json:"tokens_out,omitempty"`
	ModelUsed string    `json:"model_used,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// InsertMessage persists a chat message. If msg.ID is empty, a UUIDv7
// is generated; if CreatedAt is zero, the current time is used. The
// stored message is returned.
func (s *Store) InsertMessage(ctx context.Context, msg ChatMessage) (*ChatMessage, error) {
	if msg.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate message ID: %w", err)
		}
		msg.ID = id.String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages
			(id, session_id, role, content, tokens_in, tokens_out, model_used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID,
		msg.SessionID,
		msg.Role,
		msg.Content,
		msg.TokensIn,
		msg.TokensOut,
		msg.ModelUsed,
		msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert chat message: %w", err)
	}
	return &msg, nil
}

// RecentMessages returns up to limit of the session's most recent
// messages, ordered oldest first. This is the loop's seed history.
func (s *Store) RecentMessages(ctx context.Context, sessionID string, limit int) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content,
		        COALESCE(tokens_in, 0), COALESCE(tokens_out, 0), COALESCE(model_used, ''),
		        created_at
		 FROM (
			SELECT * FROM chat_messages
			WHERE session_id = ?
			ORDER BY created_at DESC
			LIMIT ?
		 )
		 ORDER BY created_at ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// SessionMessages returns every message in a session, oldest first,
// capped at limit. Used by the dashboard history view.
func (s *Store) SessionMessages(ctx context.Context, sessionID string, limit int) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content,
		        COALESCE(tokens_in, 0), COALESCE(tokens_out, 0), COALESCE(model_used, ''),
		        created_at
		 FROM chat_messages
		 WHERE session_id = ?
		 ORDER BY created_at ASC
		 LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query session messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanMessages(rows rowScanner) ([]ChatMessage, error) {
	var msgs []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content,
			&m.TokensIn, &m.TokensOut, &m.ModelUsed, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
