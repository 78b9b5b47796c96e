package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Profile struct {
	UserID       uuid.UUID `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	Timezone     string    `json:"timezone"`
	ReminderTime string    `json:"reminder_time"` // "HH:MM" local, empty when unset
	UpdatedAt    time.Time `json:"updated_at"`
}

// ParseClock parses an "HH:MM" local time of day.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// Progress is the last playback position written for a content item.
type Progress struct {
	UserID          uuid.UUID `json:"user_id"`
	ContentID       uuid.UUID `json:"content_id"`
	PositionSeconds float64   `json:"position_seconds"`
	Completed       bool      `json:"completed"`
	UpdatedAt       time.Time `json:"updated_at"`
}
