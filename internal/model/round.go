package model

import (
	"time"

	"github.com/google/uuid"
)

type RoundStatus string

const (
	RoundUpcoming  RoundStatus = "upcoming"
	RoundActive    RoundStatus = "active"
	RoundCompleted RoundStatus = "completed"
)

type Round struct {
	ID               uuid.UUID   `json:"id"`
	ProgramID        uuid.UUID   `json:"program_id"`
	Name             string      `json:"name"`
	Status           RoundStatus `json:"status"`
	StartDate        *time.Time  `json:"start_date"`
	FirstSessionDate *time.Time  `json:"first_session_date"`
	DripOffsetDays   int         `json:"drip_offset_days"`
	AudioPlaylistID  *uuid.UUID  `json:"audio_playlist_id"`
	FeedChannelID    *uuid.UUID  `json:"feed_channel_id"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// DripBase returns the date drip days are counted from: the first session
// when set, otherwise the start date. ok is false when the round has neither
// and is therefore not drip-eligible.
func (r Round) DripBase() (base time.Time, ok bool) {
	if r.FirstSessionDate != nil && !r.FirstSessionDate.IsZero() {
		return *r.FirstSessionDate, true
	}
	if r.StartDate != nil && !r.StartDate.IsZero() {
		return *r.StartDate, true
	}
	return time.Time{}, false
}

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

type Enrollment struct {
	ID         int64            `json:"id"`
	UserID     uuid.UUID        `json:"user_id"`
	ProgramID  uuid.UUID        `json:"program_id"`
	RoundID    *uuid.UUID       `json:"round_id"`
	Status     EnrollmentStatus `json:"status"`
	EnrolledAt time.Time        `json:"enrolled_at"`
}
