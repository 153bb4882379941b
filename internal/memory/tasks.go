package memory

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

// RecordTask inserts a new task in TaskPending status.
func (s *Store) RecordTask(ctx context.Context, taskType, description string) (string, error) {
	if taskType == "" {
		return "", jerr.New(jerr.BadArgs, "memory", "RecordTask", "task_type is required")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	id := newID()
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, task_type, description, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, taskType, description, string(TaskPending), now,
	)
	if err != nil {
		return "", jerr.Wrap(jerr.Backend, "memory", "RecordTask", err)
	}
	return id, nil
}

// UpdateTask applies patch to the task identified by id. A task already in a
// terminal status rejects any further status transition with Invariant (§3:
// "tasks never move from a terminal state back to a non-terminal one").
func (s *Store) UpdateTask(ctx context.Context, id string, patch TaskPatch) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var currentStatus string
	if err := s.db.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, id).Scan(&currentStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return jerr.New(jerr.NotFound, "memory", "UpdateTask", "task not found: "+id)
		}
		return jerr.Wrap(jerr.Backend, "memory", "UpdateTask", err)
	}

	if TaskStatus(currentStatus).IsTerminal() && patch.Status != nil && *patch.Status != TaskStatus(currentStatus) {
		return jerr.New(jerr.Invariant, "memory", "UpdateTask", "cannot transition out of terminal status "+currentStatus)
	}

	status := currentStatus
	if patch.Status != nil {
		status = string(*patch.Status)
	}
	var completedAt sql.NullString
	if patch.CompletedAt != nil {
		completedAt = sql.NullString{String: patch.CompletedAt.UTC().Format(timeLayout), Valid: true}
	}
	resultJSON, err := encodeJSON(patch.Result)
	if err != nil {
		return err
	}
	metricsJSON, err := encodeJSON(patch.Metrics)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?,
			completed_at = COALESCE(?, completed_at),
			result = CASE WHEN ? != '' THEN ? ELSE result END,
			performance_metrics = CASE WHEN ? != '' THEN ? ELSE performance_metrics END
		 WHERE id = ?`,
		status, completedAt, resultJSON, resultJSON, metricsJSON, metricsJSON, id,
	)
	if err != nil {
		return jerr.Wrap(jerr.Backend, "memory", "UpdateTask", err)
	}
	return nil
}

// GetTask loads a single task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, task_type, description, status, created_at, completed_at, result, performance_metrics FROM tasks WHERE id = ?`,
		id,
	)
	var t Task
	var createdAt string
	var completedAt, resultJSON, metricsJSON sql.NullString
	if err := row.Scan(&t.ID, &t.TaskType, &t.Description, &t.Status, &createdAt, &completedAt, &resultJSON, &metricsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, jerr.New(jerr.NotFound, "memory", "GetTask", "task not found: "+id)
		}
		return nil, jerr.Wrap(jerr.Backend, "memory", "GetTask", err)
	}
	t.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	if completedAt.Valid {
		ts, _ := time.Parse(timeLayout, completedAt.String)
		t.CompletedAt = &ts
	}
	var err error
	if t.Result, err = decodeJSON(resultJSON.String); err != nil {
		return nil, err
	}
	if t.PerformanceMetrics, err = decodeJSON(metricsJSON.String); err != nil {
		return nil, err
	}
	return &t, nil
}
