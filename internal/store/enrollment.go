package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ladyboss/academy/internal/model"
)

type EnrollmentStore struct {
	db *sql.DB
}

func NewEnrollmentStore(db *sql.DB) *EnrollmentStore {
	return &EnrollmentStore{db: db}
}

// Enroll links a user to a program, and to a round when roundID is set.
func (s *EnrollmentStore) Enroll(ctx context.Context, userID, programID uuid.UUID, roundID *uuid.UUID) (*model.Enrollment, error) {
	e := model.Enrollment{
		UserID:     userID,
		ProgramID:  programID,
		RoundID:    roundID,
		Status:     model.EnrollmentActive,
		EnrolledAt: time.Now().UTC(),
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO enrollments (user_id, program_id, round_id, status, enrolled_at) VALUES (?, ?, ?, ?, ?)`,
		e.UserID, e.ProgramID, nullUUID(e.RoundID), e.Status, e.EnrolledAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create enrollment: %w", err)
	}
	e.ID, _ = result.LastInsertId()
	return &e, nil
}

// Cancel flips the enrollment to cancelled; enrollments are never deleted.
func (s *EnrollmentStore) Cancel(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE enrollments SET status = 'cancelled' WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("cancel enrollment: %w", err)
	}
	return nil
}

// ActiveRecipients returns the distinct users holding an active enrollment in the round.
func (s *EnrollmentStore) ActiveRecipients(ctx context.Context, roundID uuid.UUID) ([]uuid.UUID, error) {
	return s.queryUserIDs(ctx,
		`SELECT DISTINCT user_id FROM enrollments WHERE round_id = ? AND status = 'active' ORDER BY user_id`,
		roundID,
	)
}

// ActiveUsers returns every user with at least one active enrollment.
func (s *EnrollmentStore) ActiveUsers(ctx context.Context) ([]uuid.UUID, error) {
	return s.queryUserIDs(ctx,
		`SELECT DISTINCT user_id FROM enrollments WHERE status = 'active' ORDER BY user_id`,
	)
}

// ActiveRounds returns the rounds a user is actively enrolled in.
func (s *EnrollmentStore) ActiveRounds(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT round_id FROM enrollments
		 WHERE user_id = ? AND status = 'active' AND round_id IS NOT NULL`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list active rounds: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan round id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *EnrollmentStore) queryUserIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list enrolled users: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
