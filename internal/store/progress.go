package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ladyboss/academy/internal/model"
)

type ProgressStore struct {
	db *sql.DB
}

func NewProgressStore(db *sql.DB) *ProgressStore {
	return &ProgressStore{db: db}
}

// Save writes the latest position and completed flag. Last write wins.
func (s *ProgressStore) Save(ctx context.Context, p model.Progress) error {
	var completed int
	if p.Completed {
		completed = 1
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO progress (user_id, content_id, position_seconds, completed, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, content_id) DO UPDATE SET position_seconds = excluded.position_seconds,
		 completed = excluded.completed, updated_at = excluded.updated_at`,
		p.UserID, p.ContentID, p.PositionSeconds, completed, p.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (s *ProgressStore) Get(ctx context.Context, userID, contentID uuid.UUID) (*model.Progress, error) {
	var p model.Progress
	var completed int
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, content_id, position_seconds, completed, updated_at FROM progress
		 WHERE user_id = ? AND content_id = ?`,
		userID, contentID,
	).Scan(&p.UserID, &p.ContentID, &p.PositionSeconds, &completed, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	p.Completed = completed != 0
	return &p, nil
}

// UsersWithProgress returns which of userIDs have any progress on contentID.
func (s *ProgressStore) UsersWithProgress(ctx context.Context, contentID uuid.UUID, userIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	started := make(map[uuid.UUID]bool)
	if len(userIDs) == 0 {
		return started, nil
	}
	query, args := inClause(
		`SELECT user_id FROM progress WHERE content_id = ? AND user_id IN (%s)`,
		userIDs,
	)
	args = append([]any{contentID}, args...)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users with progress: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan progress user: %w", err)
		}
		started[id] = true
	}
	return started, rows.Err()
}

// CompletedSince counts items a user completed at or after since.
func (s *ProgressStore) CompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM progress WHERE user_id = ? AND completed = 1 AND updated_at >= ?`,
		userID, since.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completed progress: %w", err)
	}
	return n, nil
}
