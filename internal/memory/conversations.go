package memory

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

// timeLayout is fixed-width (nine fractional digits) so that comparing
// stored timestamps as text, as the ORDER BY and range queries do, agrees
// with comparing them as times.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// CreateConversation inserts a new conversation row and returns its id.
func (s *Store) CreateConversation(ctx context.Context, title string, embedding []float32) (string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	id := newID()
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, created_at, updated_at, embedding) VALUES (?, ?, ?, ?, ?)`,
		id, title, now, now, encodeEmbedding(embedding),
	)
	if err != nil {
		return "", jerr.Wrap(jerr.Backend, "memory", "CreateConversation", err)
	}
	return id, nil
}

// AppendMessage appends a message to an existing conversation and bumps the
// conversation's updated_at. Fails with NotFound if the conversation does
// not exist (§4.1).
func (s *Store) AppendMessage(ctx context.Context, convID string, role Role, content string, metadata map[string]any, embedding []float32) (string, error) {
	if convID == "" || content == "" {
		return "", jerr.New(jerr.BadArgs, "memory", "AppendMessage", "conversation id and content are required")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, convID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", jerr.New(jerr.NotFound, "memory", "AppendMessage", "conversation not found: "+convID)
		}
		return "", jerr.Wrap(jerr.Backend, "memory", "AppendMessage", err)
	}

	metaJSON, err := encodeJSON(metadata)
	if err != nil {
		return "", err
	}

	id := newID()
	now := time.Now().UTC().Format(timeLayout)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", jerr.Wrap(jerr.Backend, "memory", "AppendMessage", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, metadata, created_at, embedding) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, convID, string(role), content, metaJSON, now, encodeEmbedding(embedding),
	); err != nil {
		return "", jerr.Wrap(jerr.Backend, "memory", "AppendMessage", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, now, convID); err != nil {
		return "", jerr.Wrap(jerr.Backend, "memory", "AppendMessage", err)
	}
	if err := tx.Commit(); err != nil {
		return "", jerr.Wrap(jerr.Backend, "memory", "AppendMessage", err)
	}
	return id, nil
}

// GetConversationWithMessages loads a conversation and its most recent limit
// messages, newest first (descending created_at, tie-broken by id
// descending); the caller reverses the slice to display chronologically.
// limit <= 0 means no cap (§4.1; §8's round-trip law exercises limit=∞).
func (s *Store) GetConversationWithMessages(ctx context.Context, convID string, limit int) (*Conversation, []Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, created_at, updated_at, embedding FROM conversations WHERE id = ?`, convID)

	var conv Conversation
	var createdAt, updatedAt string
	var embBytes []byte
	if err := row.Scan(&conv.ID, &conv.Title, &createdAt, &updatedAt, &embBytes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, jerr.New(jerr.NotFound, "memory", "GetConversationWithMessages", "conversation not found: "+convID)
		}
		return nil, nil, jerr.Wrap(jerr.Backend, "memory", "GetConversationWithMessages", err)
	}
	conv.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	conv.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	conv.Embedding = decodeEmbedding(embBytes)

	query := `SELECT id, conversation_id, role, content, metadata, created_at, embedding FROM messages WHERE conversation_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{convID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, jerr.Wrap(jerr.Backend, "memory", "GetConversationWithMessages", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var created string
		var metaJSON sql.NullString
		var emb []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &metaJSON, &created, &emb); err != nil {
			return nil, nil, jerr.Wrap(jerr.Backend, "memory", "GetConversationWithMessages", err)
		}
		m.CreatedAt, _ = time.Parse(timeLayout, created)
		m.Embedding = decodeEmbedding(emb)
		if metaJSON.Valid {
			meta, err := decodeJSON(metaJSON.String)
			if err != nil {
				return nil, nil, err
			}
			m.Metadata = meta
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, jerr.Wrap(jerr.Backend, "memory", "GetConversationWithMessages", err)
	}
	return &conv, messages, nil
}
