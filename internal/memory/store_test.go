package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

func openTestStore(t *testing.T, passphrase string) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(Options{Path: filepath.Join(dir, "memory.db"), Passphrase: passphrase})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConversationAndMessageOrdering(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")

	convID, err := s.CreateConversation(ctx, "test", nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := s.AppendMessage(ctx, convID, RoleUser, "message", nil, nil)
		require.NoError(t, err)
	}

	conv, messages, err := s.GetConversationWithMessages(ctx, convID, 0)
	require.NoError(t, err)
	require.Equal(t, convID, conv.ID)
	require.Len(t, messages, 5)
	for i := 1; i < len(messages); i++ {
		require.False(t, messages[i].CreatedAt.After(messages[i-1].CreatedAt))
	}
}

func TestGetConversationWithMessagesRespectsLimit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")

	convID, err := s.CreateConversation(ctx, "test", nil)
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := s.AppendMessage(ctx, convID, RoleUser, "message", nil, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	_, messages, err := s.GetConversationWithMessages(ctx, convID, 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, ids[4], messages[0].ID)
	require.Equal(t, ids[3], messages[1].ID)
}

func TestAppendMessageMissingConversation(t *testing.T) {
	s := openTestStore(t, "")
	_, err := s.AppendMessage(context.Background(), "does-not-exist", RoleUser, "hi", nil, nil)
	require.True(t, jerr.Is(err, jerr.NotFound))
}

func TestTaskTerminalTransitionRejected(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")

	id, err := s.RecordTask(ctx, "diagnostic", "check disk")
	require.NoError(t, err)

	done := TaskSucceeded
	require.NoError(t, s.UpdateTask(ctx, id, TaskPatch{Status: &done}))

	running := TaskRunning
	err = s.UpdateTask(ctx, id, TaskPatch{Status: &running})
	require.True(t, jerr.Is(err, jerr.Invariant))

	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	require.Equal(t, TaskSucceeded, task.Status)
}

func TestModelPerfStatsAggregation(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")

	now := time.Now().UTC()
	for _, ms := range []int64{100, 200, 300} {
		require.NoError(t, s.RecordModelPerf(ctx, ModelPerformance{
			ModelName:      "llama3.1:8b",
			RequestTime:    now,
			ResponseTimeMs: ms,
			TokenCount:     10,
			Outcome:        "success",
		}))
	}

	stats, err := s.ModelPerfStats(ctx, "llama3.1:8b", now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Count)
	require.InDelta(t, 200, stats.AvgMs, 0.01)
	require.Equal(t, float64(100), stats.MinMs)
	require.Equal(t, float64(300), stats.MaxMs)

	wildcard, err := s.ModelPerfStats(ctx, "*", now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(3), wildcard.Count)
}

func TestSemanticSearchRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")

	convID, err := s.CreateConversation(ctx, "test", nil)
	require.NoError(t, err)

	_, err = s.AppendMessage(ctx, convID, RoleUser, "close match", nil, []float32{1, 0, 0})
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, convID, RoleUser, "far match", nil, []float32{0, 1, 0})
	require.NoError(t, err)

	results, err := s.SemanticSearch(ctx, []float32{1, 0, 0.01}, -1, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "close match", results[0].Content)
	require.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestSemanticSearchFiltersByThreshold(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")

	convID, err := s.CreateConversation(ctx, "test", nil)
	require.NoError(t, err)

	_, err = s.AppendMessage(ctx, convID, RoleUser, "close match", nil, []float32{1, 0, 0})
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, convID, RoleUser, "orthogonal match", nil, []float32{0, 1, 0})
	require.NoError(t, err)

	results, err := s.SemanticSearch(ctx, []float32{1, 0, 0}, 0.5, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "close match", results[0].Content)
}

func TestSemanticSearchRejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")

	convID, err := s.CreateConversation(ctx, "test", nil)
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, convID, RoleUser, "two dims", nil, []float32{1, 0})
	require.NoError(t, err)

	_, err = s.SemanticSearch(ctx, []float32{1, 0, 0}, 0, 5)
	require.True(t, jerr.Is(err, jerr.BadArgs))
}

func TestSemanticSearchRequiresQuery(t *testing.T) {
	s := openTestStore(t, "")
	_, err := s.SemanticSearch(context.Background(), nil, 0, 5)
	require.True(t, jerr.Is(err, jerr.BadArgs))
}

func TestEncryptedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memory.db")

	s, err := Open(Options{Path: path, Passphrase: "correct horse battery staple"})
	require.NoError(t, err)
	convID, err := s.CreateConversation(context.Background(), "secret", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(Options{Path: path, Passphrase: "correct horse battery staple"})
	require.NoError(t, err)
	defer reopened.Close()

	conv, _, err := reopened.GetConversationWithMessages(context.Background(), convID, 0)
	require.NoError(t, err)
	require.Equal(t, "secret", conv.Title)
}

func TestEncryptedWrongPassphraseFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memory.db")

	s, err := Open(Options{Path: path, Passphrase: "correct horse battery staple"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(Options{Path: path, Passphrase: "wrong passphrase"})
	require.True(t, jerr.Is(err, jerr.BadKey))
}

func TestCleanupRemovesOldConversations(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "")

	_, err := s.CreateConversation(ctx, "old", nil)
	require.NoError(t, err)

	n, err := s.Cleanup(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
