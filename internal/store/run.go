package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ladyboss/academy/internal/model"
)

// RunStore keeps one summary row per dispatch invocation.
type RunStore struct {
	db *sql.DB
}

func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) Record(ctx context.Context, r model.DispatchRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatch_runs (id, category, started_at, finished_at, candidates, sent, failed, removed, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Category, r.StartedAt.UTC(), r.FinishedAt.UTC(),
		r.Candidates, r.Sent, r.Failed, r.Removed, r.Status, r.Error,
	)
	if err != nil {
		return fmt.Errorf("record dispatch run: %w", err)
	}
	return nil
}

// ListRecent returns the latest runs, optionally filtered by category.
func (s *RunStore) ListRecent(ctx context.Context, category model.Category, limit int) ([]model.DispatchRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, category, started_at, finished_at, candidates, sent, failed, removed, status, error
		 FROM dispatch_runs`
	args := []any{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dispatch runs: %w", err)
	}
	defer rows.Close()

	var runs []model.DispatchRun
	for rows.Next() {
		var r model.DispatchRun
		if err := rows.Scan(&r.ID, &r.Category, &r.StartedAt, &r.FinishedAt,
			&r.Candidates, &r.Sent, &r.Failed, &r.Removed, &r.Status, &r.Error); err != nil {
			return nil, fmt.Errorf("scan dispatch run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LastStarted returns when category last ran, or the zero time.
func (s *RunStore) LastStarted(ctx context.Context, category model.Category) (time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT started_at FROM dispatch_runs WHERE category = ? ORDER BY started_at DESC LIMIT 1`, category,
	).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("last dispatch run: %w", err)
	}
	return t, nil
}

// CleanupBefore deletes run rows older than cutoff.
func (s *RunStore) CleanupBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM dispatch_runs WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup dispatch runs: %w", err)
	}
	return result.RowsAffected()
}
