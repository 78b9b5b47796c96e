// Package schedule decides whether a user-local delivery window is open.
// All conversions go through the IANA database so DST shifts are honoured.
package schedule

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"
)

// DefaultTimezone is used when a profile has no usable zone.
const DefaultTimezone = "America/New_York"

// Window is one of ExactTime, ActiveHours or WeeklyAt.
type Window interface {
	window()
}

// ExactTime opens for ToleranceMinutes starting at Hour:Minute local time.
type ExactTime struct {
	Hour, Minute     int
	ToleranceMinutes int
}

// ActiveHours is open while the local hour is in [StartHour, EndHour).
// A StartHour after EndHour wraps past midnight.
type ActiveHours struct {
	StartHour, EndHour int
}

// WeeklyAt opens for ToleranceMinutes at Hour:Minute on Weekday.
type WeeklyAt struct {
	Weekday          time.Weekday
	Hour, Minute     int
	ToleranceMinutes int
}

func (ExactTime) window()   {}
func (ActiveHours) window() {}
func (WeeklyAt) window()    {}

// Zones resolves IANA names to locations, caching lookups and falling back
// to a fixed zone for empty or unknown names.
type Zones struct {
	fallback *time.Location
	cache    sync.Map // name -> *time.Location
}

// NewZones returns a resolver that falls back to the named zone, or to
// DefaultTimezone when that name is itself invalid.
func NewZones(fallback string) *Zones {
	loc, err := time.LoadLocation(fallback)
	if err != nil || fallback == "" {
		loc, _ = time.LoadLocation(DefaultTimezone)
	}
	return &Zones{fallback: loc}
}

func (z *Zones) Fallback() *time.Location {
	return z.fallback
}

// Location never fails; unknown names resolve to the fallback zone.
func (z *Zones) Location(name string) *time.Location {
	if name == "" {
		return z.fallback
	}
	if v, ok := z.cache.Load(name); ok {
		return v.(*time.Location)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = z.fallback
	}
	z.cache.Store(name, loc)
	return loc
}

// IsDue reports whether now, seen in the user's zone, falls inside w.
func (z *Zones) IsDue(now time.Time, timezone string, w Window) bool {
	return Contains(now.In(z.Location(timezone)), w)
}

// Contains evaluates w against a time already in the user's location.
func Contains(local time.Time, w Window) bool {
	switch w := w.(type) {
	case ExactTime:
		start := latestAt(local, w.Hour, w.Minute)
		return local.Sub(start) < tolerance(w.ToleranceMinutes)
	case ActiveHours:
		h := local.Hour()
		if w.StartHour <= w.EndHour {
			return h >= w.StartHour && h < w.EndHour
		}
		return h >= w.StartHour || h < w.EndHour
	case WeeklyAt:
		start := latestAt(local, w.Hour, w.Minute)
		return start.Weekday() == w.Weekday && local.Sub(start) < tolerance(w.ToleranceMinutes)
	case nil:
		return true
	default:
		panic(fmt.Sprintf("schedule: unhandled window %T", w))
	}
}

// Occurrence returns the local start of the window occurrence containing
// local, used to key recurring notifications.
func Occurrence(local time.Time, w Window) time.Time {
	switch w := w.(type) {
	case ExactTime:
		return latestAt(local, w.Hour, w.Minute)
	case WeeklyAt:
		return latestAt(local, w.Hour, w.Minute)
	case ActiveHours:
		return time.Date(local.Year(), local.Month(), local.Day(), w.StartHour, 0, 0, 0, local.Location())
	case nil:
		return local
	default:
		panic(fmt.Sprintf("schedule: unhandled window %T", w))
	}
}

// LocalDate formats the calendar date of now in loc.
func LocalDate(now time.Time, loc *time.Location) string {
	return now.In(loc).Format(time.DateOnly)
}

// latestAt returns the most recent hour:minute at or before local.
func latestAt(local time.Time, hour, minute int) time.Time {
	t := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, local.Location())
	if t.After(local) {
		t = time.Date(local.Year(), local.Month(), local.Day()-1, hour, minute, 0, 0, local.Location())
	}
	return t
}

func tolerance(minutes int) time.Duration {
	if minutes < 1 {
		minutes = 1
	}
	return time.Duration(minutes) * time.Minute
}
