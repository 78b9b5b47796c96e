package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category identifies a notification stream. Each category has its own
// dispatch job and maps to one preference key.
type Category string

const (
	CategoryDripUnlock      Category = "drip_unlock"
	CategoryDripFollowup    Category = "drip_followup"
	CategoryJournalReminder Category = "journal_reminder"
	CategoryWeeklySummary   Category = "weekly_summary"
	CategoryFeedPost        Category = "feed_post"
)

// Categories lists every category in dispatch order.
var Categories = []Category{
	CategoryDripUnlock,
	CategoryDripFollowup,
	CategoryJournalReminder,
	CategoryWeeklySummary,
	CategoryFeedPost,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func ParseCategory(s string) (Category, error) {
	if c := Category(s); c.Valid() {
		return c, nil
	}
	return "", fmt.Errorf("unknown notification category %q", s)
}

// Preference keys stored in notification_preferences.
const (
	PrefContentDrip     = "content_drip"
	PrefJournalReminder = "journal_reminder"
	PrefWeeklySummary   = "weekly_summary"
	PrefFeedPost        = "feed_post"
)

// PreferenceKeys lists every key a user may toggle.
var PreferenceKeys = []string{PrefContentDrip, PrefJournalReminder, PrefWeeklySummary, PrefFeedPost}

func ValidPreferenceKey(key string) bool {
	for _, k := range PreferenceKeys {
		if k == key {
			return true
		}
	}
	return false
}

// PreferenceKey returns the opt-out key that governs the category.
func (c Category) PreferenceKey() (string, error) {
	switch c {
	case CategoryDripUnlock, CategoryDripFollowup:
		return PrefContentDrip, nil
	case CategoryJournalReminder:
		return PrefJournalReminder, nil
	case CategoryWeeklySummary:
		return PrefWeeklySummary, nil
	case CategoryFeedPost:
		return PrefFeedPost, nil
	}
	return "", fmt.Errorf("no preference key for category %q", c)
}

// NativeEndpointPrefix marks subscriptions that hold an APNs device token.
const NativeEndpointPrefix = "native:"

type PushSubscription struct {
	ID         int64     `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"-"`
	AuthKey    string    `json:"-"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s PushSubscription) IsNative() bool {
	return strings.HasPrefix(s.Endpoint, NativeEndpointPrefix)
}

// DeviceToken returns the raw APNs token of a native subscription.
func (s PushSubscription) DeviceToken() string {
	return strings.TrimPrefix(s.Endpoint, NativeEndpointPrefix)
}

// NativeDevice is a push-capable device resolved for native dispatch.
type NativeDevice struct {
	UserID      uuid.UUID
	Endpoint    string
	DeviceToken string
}

type NotificationPreference struct {
	ID        int64     `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Key       string    `json:"key"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ScheduleStatus string

const (
	ScheduleSent   ScheduleStatus = "sent"
	ScheduleFailed ScheduleStatus = "failed"
)

// ScheduleLogEntry is one row of the dedup ledger.
type ScheduleLogEntry struct {
	ID     int64          `json:"id"`
	UserID uuid.UUID      `json:"user_id"`
	Key    string         `json:"notification_type_key"`
	SentAt time.Time      `json:"sent_at"`
	Status ScheduleStatus `json:"status"`
}

type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunError   RunStatus = "error"
)

// DispatchRun is the summary row written after each dispatch invocation.
type DispatchRun struct {
	ID         uuid.UUID `json:"id"`
	Category   Category  `json:"category"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Candidates int       `json:"candidates"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Removed    int       `json:"removed"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
}
