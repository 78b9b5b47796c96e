// Package drip decides when time-gated content unlocks. The same functions
// back the server-side dispatch jobs and the client playback gate so both
// always agree on what a member can access.
//
// Day numbering: the calendar day of the round's base date is day 1, so an
// item with a drip delay of 1 unlocks at the first session and an item with
// delay 0 is always available. Before the base instant the effective day is
// never positive.
package drip

import (
	"time"

	"github.com/ladyboss/academy/internal/model"
)

// EffectiveDay returns the drip day for now, counted in calendar days of
// now's location from base and shifted back by offsetDays (a positive offset
// freezes the round, a negative one moves it forward).
func EffectiveDay(base time.Time, offsetDays int, now time.Time) int {
	day := daysBetween(base, now) - offsetDays + 1
	if now.Before(base) && day > 0 {
		return 0
	}
	return day
}

// RoundDay returns the effective drip day of a round. ok is false when the
// round has no drip base and must be skipped.
func RoundDay(r model.Round, now time.Time) (day int, ok bool) {
	base, ok := r.DripBase()
	if !ok {
		return 0, false
	}
	return EffectiveDay(base, r.DripOffsetDays, now), true
}

// daysBetween counts whole calendar days from a to b in b's location.
// Calendar dates are compared in UTC so DST transitions never shorten a day.
func daysBetween(a, b time.Time) int {
	a = a.In(b.Location())
	from := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from) / (24 * time.Hour))
}
