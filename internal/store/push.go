package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ladyboss/academy/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

// CreateSubscription registers a device endpoint. Re-registering an endpoint
// moves it to the calling user and refreshes its keys.
func (s *PushStore) CreateSubscription(ctx context.Context, userID uuid.UUID, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh_key, auth_key, device_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET user_id = excluded.user_id, p256dh_key = excluded.p256dh_key,
		 auth_key = excluded.auth_key, device_name = excluded.device_name`,
		userID, endpoint, p256dh, auth, deviceName, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}
	return s.getByEndpoint(ctx, endpoint)
}

// CreateNativeSubscription registers an APNs device token.
func (s *PushStore) CreateNativeSubscription(ctx context.Context, userID uuid.UUID, deviceToken, deviceName string) (*model.PushSubscription, error) {
	return s.CreateSubscription(ctx, userID, model.NativeEndpointPrefix+deviceToken, "", "", deviceName)
}

const subscriptionColumns = `id, user_id, endpoint, p256dh_key, auth_key, device_name, created_at`

func (s *PushStore) getByEndpoint(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM push_subscriptions WHERE endpoint = ?`, endpoint,
	).Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription by endpoint: %w", err)
	}
	return &sub, nil
}

func (s *PushStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM push_subscriptions WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions by user: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// ListByUsers returns every subscription owned by the given users.
func (s *PushStore) ListByUsers(ctx context.Context, userIDs []uuid.UUID) ([]model.PushSubscription, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query, args := inClause(
		`SELECT `+subscriptionColumns+` FROM push_subscriptions WHERE user_id IN (%s) ORDER BY user_id, id`,
		userIDs,
	)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions by users: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// NativeDevices resolves the APNs device tokens of the given users. Web push
// endpoints are left out.
func (s *PushStore) NativeDevices(ctx context.Context, userIDs []uuid.UUID) ([]model.NativeDevice, error) {
	subs, err := s.ListByUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	var devices []model.NativeDevice
	for _, sub := range subs {
		if !sub.IsNative() || sub.DeviceToken() == "" {
			continue
		}
		devices = append(devices, model.NativeDevice{
			UserID:      sub.UserID,
			Endpoint:    sub.Endpoint,
			DeviceToken: sub.DeviceToken(),
		})
	}
	return devices, nil
}

// WebSubscriptions returns the browser push subscriptions of the given users.
func (s *PushStore) WebSubscriptions(ctx context.Context, userIDs []uuid.UUID) ([]model.PushSubscription, error) {
	subs, err := s.ListByUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	var web []model.PushSubscription
	for _, sub := range subs {
		if !sub.IsNative() {
			web = append(web, sub)
		}
	}
	return web, nil
}

func (s *PushStore) DeleteSubscription(ctx context.Context, id int64, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

// DeleteByEndpoints removes invalid endpoints in one statement.
func (s *PushStore) DeleteByEndpoints(ctx context.Context, endpoints []string) (int64, error) {
	if len(endpoints) == 0 {
		return 0, nil
	}
	query, args := inClause(`DELETE FROM push_subscriptions WHERE endpoint IN (%s)`, endpoints)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete push subscriptions by endpoint: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// GetPreferences returns the explicit preference rows of a user.
func (s *PushStore) GetPreferences(ctx context.Context, userID uuid.UUID) ([]model.NotificationPreference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, key, enabled, updated_at FROM notification_preferences WHERE user_id = ? ORDER BY key`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get notification preferences: %w", err)
	}
	defer rows.Close()

	var prefs []model.NotificationPreference
	for rows.Next() {
		var p model.NotificationPreference
		var enabledInt int
		if err := rows.Scan(&p.ID, &p.UserID, &p.Key, &enabledInt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan notification preference: %w", err)
		}
		p.Enabled = enabledInt != 0
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// SetPreference upserts a notification preference.
func (s *PushStore) SetPreference(ctx context.Context, userID uuid.UUID, key string, enabled bool) error {
	var enabledInt int
	if enabled {
		enabledInt = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_preferences (user_id, key, enabled, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, key) DO UPDATE SET enabled = excluded.enabled, updated_at = excluded.updated_at`,
		userID, key, enabledInt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set notification preference: %w", err)
	}
	return nil
}

// IsPreferenceEnabled returns true unless the user explicitly disabled key.
func (s *PushStore) IsPreferenceEnabled(ctx context.Context, userID uuid.UUID, key string) (bool, error) {
	var enabledInt int
	err := s.db.QueryRowContext(ctx,
		`SELECT enabled FROM notification_preferences WHERE user_id = ? AND key = ?`,
		userID, key,
	).Scan(&enabledInt)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("check notification preference: %w", err)
	}
	return enabledInt != 0, nil
}

// DisabledUsers returns which of userIDs opted out of key.
func (s *PushStore) DisabledUsers(ctx context.Context, key string, userIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	disabled := make(map[uuid.UUID]bool)
	if len(userIDs) == 0 {
		return disabled, nil
	}
	query, args := inClause(
		`SELECT user_id FROM notification_preferences WHERE enabled = 0 AND key = ? AND user_id IN (%s)`,
		userIDs,
	)
	args = append([]any{key}, args...)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list disabled users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan disabled user: %w", err)
		}
		disabled[id] = true
	}
	return disabled, rows.Err()
}

func scanSubscriptions(rows *sql.Rows) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	for rows.Next() {
		var sub model.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// inClause expands a single %s in query to one placeholder per value.
func inClause[T any](query string, values []T) (string, []any) {
	marks := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return fmt.Sprintf(query, marks), args
}
