package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

// RecordModelPerf appends a model-performance sample. Append-only, never
// updated (§3).
func (s *Store) RecordModelPerf(ctx context.Context, p ModelPerformance) error {
	if p.ModelName == "" {
		return jerr.New(jerr.BadArgs, "memory", "RecordModelPerf", "model_name is required")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	id := newID()
	if p.RequestTime.IsZero() {
		p.RequestTime = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO model_performance (id, model_name, request_time, response_time_ms, token_count, compute_cost, task_type, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.ModelName, p.RequestTime.UTC().Format(timeLayout), p.ResponseTimeMs, p.TokenCount, p.ComputeCost, p.TaskType, p.Outcome,
	)
	if err != nil {
		return jerr.Wrap(jerr.Backend, "memory", "RecordModelPerf", err)
	}
	return nil
}

// ModelPerfStats aggregates model-performance rows for modelName within
// [since, until). A modelName of "*" aggregates across all models (§4.1).
func (s *Store) ModelPerfStats(ctx context.Context, modelName string, since, until time.Time) (*PerfStats, error) {
	query := `SELECT response_time_ms, token_count, compute_cost FROM model_performance WHERE request_time >= ? AND request_time < ?`
	args := []any{since.UTC().Format(timeLayout), until.UTC().Format(timeLayout)}
	if modelName != "*" {
		query += ` AND model_name = ?`
		args = append(args, modelName)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, jerr.Wrap(jerr.Backend, "memory", "ModelPerfStats", err)
	}
	defer rows.Close()

	var latencies []float64
	var tokenSum, costSum float64
	var count int64
	for rows.Next() {
		var respMs, tokens int64
		var cost float64
		if err := rows.Scan(&respMs, &tokens, &cost); err != nil {
			return nil, jerr.Wrap(jerr.Backend, "memory", "ModelPerfStats", err)
		}
		latencies = append(latencies, float64(respMs))
		tokenSum += float64(tokens)
		costSum += cost
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, jerr.Wrap(jerr.Backend, "memory", "ModelPerfStats", err)
	}

	stats := &PerfStats{Count: count, TotalCost: costSum}
	if count == 0 {
		return stats, nil
	}

	sort.Float64s(latencies)
	var sum float64
	for _, l := range latencies {
		sum += l
	}
	stats.AvgMs = sum / float64(count)
	stats.AvgTokens = tokenSum / float64(count)
	stats.MinMs = latencies[0]
	stats.MaxMs = latencies[len(latencies)-1]
	stats.P50Ms = percentile(latencies, 0.50)
	stats.P95Ms = percentile(latencies, 0.95)
	return stats, nil
}

// percentile expects a sorted ascending slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
