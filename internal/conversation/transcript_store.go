package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TranscriptStore persists chat transcripts to PostgreSQL for long-term
// history and the funnel dashboard. The Redis history store remains the
// reply model's working memory; this store is the durable record.
type TranscriptStore struct {
	db            *sql.DB
	excludedUsers map[string]struct{}
}

// NewTranscriptStore creates a transcript store. A nil db yields a nil
// store; all methods on a nil store are no-ops.
func NewTranscriptStore(db *sql.DB) *TranscriptStore {
	if db == nil {
		return nil
	}
	return &TranscriptStore{db: db, excludedUsers: make(map[string]struct{})}
}

// NewTranscriptStoreWithExclusions creates a store that skips persistence
// for the given user identities (internal test accounts).
func NewTranscriptStoreWithExclusions(db *sql.DB, excludeUsers []string) *TranscriptStore {
	s := NewTranscriptStore(db)
	if s == nil {
		return nil
	}
	for _, user := range excludeUsers {
		user = strings.TrimSpace(user)
		if user != "" {
			s.excludedUsers[user] = struct{}{}
		}
	}
	return s
}

// TranscriptMessage is one persisted conversation turn.
type TranscriptMessage struct {
	ID        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AppendTurn records a user message and the assistant reply in one
// transaction, bumping the conversation's message counter atomically in
// the same statement that touches the row.
func (s *TranscriptStore) AppendTurn(ctx context.Context, userID, userMessage, assistantReply string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if _, excluded := s.excludedUsers[userID]; excluded {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("conversation: begin transcript tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var conversationID uuid.UUID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO conversations (id, user_id, started_at, last_message_at, message_count)
		VALUES ($1, $2, NOW(), NOW(), 1)
		ON CONFLICT (user_id) DO UPDATE
		SET last_message_at = NOW(),
		    message_count = conversations.message_count + 1
		RETURNING id
	`, uuid.New(), userID).Scan(&conversationID)
	if err != nil {
		return fmt.Errorf("conversation: upsert conversation: %w", err)
	}

	for _, row := range []struct {
		role    string
		content string
	}{
		{ChatRoleUser, userMessage},
		{ChatRoleAssistant, assistantReply},
	} {
		if strings.TrimSpace(row.content) == "" {
			continue
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, role, content, created_at)
			VALUES ($1, $2, $3, $4, NOW())
		`, uuid.New(), conversationID, row.role, row.content)
		if err != nil {
			return fmt.Errorf("conversation: insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("conversation: commit transcript: %w", err)
	}
	return nil
}

// ListMessages returns a user's persisted transcript, oldest first. Users
// with no transcript get an empty slice.
func (s *TranscriptStore) ListMessages(ctx context.Context, userID string, limit int) ([]TranscriptMessage, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.role, m.content, m.created_at
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.user_id = $1
		ORDER BY m.created_at ASC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: list transcript: %w", err)
	}
	defer rows.Close()

	out := make([]TranscriptMessage, 0, limit)
	for rows.Next() {
		var msg TranscriptMessage
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan transcript: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// MessageCount returns the durable per-user turn counter, zero for an
// unknown user.
func (s *TranscriptStore) MessageCount(ctx context.Context, userID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT message_count FROM conversations WHERE user_id = $1`, userID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("conversation: count transcript: %w", err)
	}
	return count, nil
}

// DeleteUser removes a user's transcript rows. Admin purge tooling only.
func (s *TranscriptStore) DeleteUser(ctx context.Context, userID string) error {
	if s == nil || s.db == nil {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("conversation: begin purge tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM messages
		WHERE conversation_id IN (SELECT id FROM conversations WHERE user_id = $1)
	`, userID)
	if err != nil {
		return fmt.Errorf("conversation: purge messages: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM conversations WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("conversation: purge conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("conversation: commit purge: %w", err)
	}
	return nil
}
