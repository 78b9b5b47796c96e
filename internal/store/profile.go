package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ladyboss/academy/internal/model"
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

const profileColumns = `user_id, display_name, timezone, reminder_time, updated_at`

func (s *ProfileStore) Get(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	var p model.Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.DisplayName, &p.Timezone, &p.ReminderTime, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// Upsert writes the whole profile.
func (s *ProfileStore) Upsert(ctx context.Context, p *model.Profile) error {
	if p.ReminderTime != "" {
		if _, _, err := model.ParseClock(p.ReminderTime); err != nil {
			return err
		}
	}
	p.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET display_name = excluded.display_name,
		 timezone = excluded.timezone, reminder_time = excluded.reminder_time, updated_at = excluded.updated_at`,
		p.UserID, p.DisplayName, p.Timezone, p.ReminderTime, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (s *ProfileStore) SetTimezone(ctx context.Context, userID uuid.UUID, timezone string) error {
	return s.setColumn(ctx, userID, "timezone", timezone)
}

// SetReminderTime stores an "HH:MM" reminder; empty clears it.
func (s *ProfileStore) SetReminderTime(ctx context.Context, userID uuid.UUID, clock string) error {
	if clock != "" {
		if _, _, err := model.ParseClock(clock); err != nil {
			return err
		}
	}
	return s.setColumn(ctx, userID, "reminder_time", clock)
}

func (s *ProfileStore) setColumn(ctx context.Context, userID uuid.UUID, column, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, `+column+`, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET `+column+` = excluded.`+column+`, updated_at = excluded.updated_at`,
		userID, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set profile %s: %w", column, err)
	}
	return nil
}

// ListByUsers returns the stored profiles of userIDs keyed by user.
// Users without a profile are absent from the map.
func (s *ProfileStore) ListByUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]model.Profile, error) {
	profiles := make(map[uuid.UUID]model.Profile)
	if len(userIDs) == 0 {
		return profiles, nil
	}
	query, args := inClause(`SELECT `+profileColumns+` FROM profiles WHERE user_id IN (%s)`, userIDs)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.UserID, &p.DisplayName, &p.Timezone, &p.ReminderTime, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles[p.UserID] = p
	}
	return profiles, rows.Err()
}

// ListWithReminder returns every profile that has a reminder time set.
func (s *ProfileStore) ListWithReminder(ctx context.Context) ([]model.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE reminder_time != '' ORDER BY user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list profiles with reminder: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.UserID, &p.DisplayName, &p.Timezone, &p.ReminderTime, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
