package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

// SemanticSearch scores every message carrying an embedding against query by
// cosine similarity, keeps only rows with similarity > threshold, and returns
// the topK highest-scoring of those, descending. There is no native vector
// index (modernc.org/sqlite is pure Go and cannot load the cgo-only
// sqlite-vec extension), so this scans in Go; acceptable at Jarvis's
// single-user scale (§4.1 Non-goals).
func (s *Store) SemanticSearch(ctx context.Context, query []float32, threshold float32, topK int) ([]Message, error) {
	if len(query) == 0 {
		return nil, jerr.New(jerr.BadArgs, "memory", "SemanticSearch", "query embedding is required")
	}
	if topK <= 0 {
		topK = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, metadata, created_at, embedding FROM messages WHERE embedding IS NOT NULL`,
	)
	if err != nil {
		return nil, jerr.Wrap(jerr.Backend, "memory", "SemanticSearch", err)
	}
	defer rows.Close()

	var candidates []Message
	for rows.Next() {
		var m Message
		var created string
		var metaJSON sql.NullString
		var emb []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &metaJSON, &created, &emb); err != nil {
			return nil, jerr.Wrap(jerr.Backend, "memory", "SemanticSearch", err)
		}
		vec := decodeEmbedding(emb)
		if len(vec) != len(query) {
			return nil, jerr.New(jerr.BadArgs, "memory", "SemanticSearch",
				fmt.Sprintf("stored embedding for message %s has dimension %d, query has dimension %d", m.ID, len(vec), len(query)))
		}
		m.CreatedAt, _ = time.Parse(timeLayout, created)
		m.Embedding = vec
		m.Similarity = cosineSimilarity(query, vec)
		if m.Similarity <= float64(threshold) {
			continue
		}
		if metaJSON.Valid {
			meta, err := decodeJSON(metaJSON.String)
			if err != nil {
				return nil, err
			}
			m.Metadata = meta
		}
		candidates = append(candidates, m)
	}
	if err := rows.Err(); err != nil {
		return nil, jerr.Wrap(jerr.Backend, "memory", "SemanticSearch", err)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Similarity > candidates[j].Similarity })
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// Cleanup deletes conversations (and their messages) whose updated_at is
// older than olderThan, plus any model_performance rows with the same cutoff.
// Returns the number of conversations removed.
func (s *Store) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cutoff := olderThan.UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, jerr.Wrap(jerr.Backend, "memory", "Cleanup", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id IN (SELECT id FROM conversations WHERE updated_at < ?)`, cutoff,
	); err != nil {
		return 0, jerr.Wrap(jerr.Backend, "memory", "Cleanup", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, jerr.Wrap(jerr.Backend, "memory", "Cleanup", err)
	}
	n, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, `DELETE FROM model_performance WHERE request_time < ?`, cutoff); err != nil {
		return 0, jerr.Wrap(jerr.Backend, "memory", "Cleanup", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, jerr.Wrap(jerr.Backend, "memory", "Cleanup", err)
	}
	return n, nil
}
