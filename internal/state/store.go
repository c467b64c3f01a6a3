package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store persists the run index: one row per transcript run with its query,
// terminal status, and completion metrics.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

type Run struct {
	ID             string    `json:"id"`
	Query          string    `json:"query"`
	Status         string    `json:"status"`
	EventCount     int       `json:"event_count"`
	ToolCallCount  int       `json:"tool_call_count"`
	ResponseLength int       `json:"response_length"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RunMetrics summarizes a finished run.
type RunMetrics struct {
	EventCount     int
	ToolCallCount  int
	ResponseLength int
}

func (s *Store) CreateRun(ctx context.Context, id, query string) (Run, error) {
	now := time.Now().UTC()
	_, err := ExecRetry(ctx, s.db, `INSERT INTO runs (id, query, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, query, RunStatusRunning, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return Run{ID: id, Query: query, Status: RunStatusRunning, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *Store) FinishRun(ctx context.Context, id, status, errText string, metrics RunMetrics) error {
	now := time.Now().UTC()
	res, err := ExecRetry(ctx, s.db, `UPDATE runs SET status = ?, event_count = ?, tool_call_count = ?, response_length = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, metrics.EventCount, metrics.ToolCallCount, metrics.ResponseLength, nullString(errText), now.Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("run %q not found", id)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, query, status, event_count, tool_call_count, response_length, error, created_at, updated_at FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("run %q not found", id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, query, status, event_count, tool_call_count, response_length, error, created_at, updated_at FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var errStr sql.NullString
	var createdAtStr, updatedAtStr string
	if err := row.Scan(&run.ID, &run.Query, &run.Status, &run.EventCount, &run.ToolCallCount, &run.ResponseLength, &errStr, &createdAtStr, &updatedAtStr); err != nil {
		return Run{}, err
	}
	run.Error = errStr.String
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	run.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAtStr)
	return run, nil
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
