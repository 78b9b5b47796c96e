package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ladyboss/academy/internal/model"
)

// LedgerStore is the schedule_log dedup ledger. A (user, key) pair is
// written at most once, so repeated dispatch runs never resend.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// AlreadySent returns the subset of userIDs with a ledger entry for key.
func (s *LedgerStore) AlreadySent(ctx context.Context, key string, userIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	sent := make(map[uuid.UUID]bool)
	if len(userIDs) == 0 {
		return sent, nil
	}
	query, args := inClause(
		`SELECT user_id FROM schedule_log WHERE notification_type_key = ? AND user_id IN (%s)`,
		userIDs,
	)
	args = append([]any{key}, args...)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("check schedule log: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan schedule log user: %w", err)
		}
		sent[id] = true
	}
	return sent, rows.Err()
}

// WasSent reports whether a single (user, key) pair is recorded.
func (s *LedgerStore) WasSent(ctx context.Context, userID uuid.UUID, key string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schedule_log WHERE user_id = ? AND notification_type_key = ?`,
		userID, key,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check schedule log: %w", err)
	}
	return count > 0, nil
}

// RecordSent writes the ledger entry. It returns false when the pair was
// already present.
func (s *LedgerStore) RecordSent(ctx context.Context, userID uuid.UUID, key string, status model.ScheduleStatus) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO schedule_log (user_id, notification_type_key, sent_at, status) VALUES (?, ?, ?, ?)`,
		userID, key, time.Now().UTC(), status,
	)
	if err != nil {
		return false, fmt.Errorf("record schedule log: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// Entries lists a user's ledger, newest first.
func (s *LedgerStore) Entries(ctx context.Context, userID uuid.UUID) ([]model.ScheduleLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, notification_type_key, sent_at, status FROM schedule_log
		 WHERE user_id = ? ORDER BY sent_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list schedule log: %w", err)
	}
	defer rows.Close()

	var entries []model.ScheduleLogEntry
	for rows.Next() {
		var e model.ScheduleLogEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Key, &e.SentAt, &e.Status); err != nil {
			return nil, fmt.Errorf("scan schedule log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
