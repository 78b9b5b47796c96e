// Package nudge plans the day's local reminder notifications from a user's
// routine tasks. The client cancels every id in the reserved ranges and then
// schedules the returned plan, so planning twice in a day is harmless.
package nudge

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/ladyboss/academy/internal/model"
	"github.com/ladyboss/academy/internal/schedule"
)

type Kind string

const (
	KindRegular Kind = "regular"
	KindPro     Kind = "pro"
	KindWater   Kind = "water"
)

// Reserved notification id ranges.
const (
	RegularBaseID = 1000
	ProBaseID     = 1100
	WaterBaseID   = 1200

	MaxRegular = 3
	MaxPro     = 1
	MaxWater   = 4
	MinWater   = 3
)

// Daytime bounds, in minutes after local midnight.
const (
	windowStart = 8*60 + 3
	windowEnd   = 19*60 + 47
)

type Notification struct {
	ID     int        `json:"id"`
	Kind   Kind       `json:"kind"`
	TaskID *uuid.UUID `json:"task_id,omitempty"`
	Title  string     `json:"title"`
	Body   string     `json:"body"`
	At     time.Time  `json:"at"`
}

type Plan struct {
	Date          string         `json:"date"`
	Cancel        []int          `json:"cancel"`
	Notifications []Notification `json:"notifications"`
}

type TaskLister interface {
	ListForDay(ctx context.Context, userID uuid.UUID, date string) ([]model.Task, error)
}

type ProfileGetter interface {
	Get(ctx context.Context, userID uuid.UUID) (*model.Profile, error)
}

type Planner struct {
	tasks    TaskLister
	profiles ProfileGetter
	zones    *schedule.Zones
	now      func() time.Time
}

func NewPlanner(tasks TaskLister, profiles ProfileGetter, zones *schedule.Zones) *Planner {
	return &Planner{tasks: tasks, profiles: profiles, zones: zones, now: time.Now}
}

// ScheduleDailyNudges builds today's plan for userID in the user's timezone.
func (p *Planner) ScheduleDailyNudges(ctx context.Context, userID uuid.UUID) (*Plan, error) {
	var tz string
	profile, err := p.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if profile != nil {
		tz = profile.Timezone
	}
	loc := p.zones.Location(tz)
	now := p.now().In(loc)
	date := schedule.LocalDate(now, loc)

	tasks, err := p.tasks.ListForDay(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	return Build(userID, now, tasks), nil
}

// Build is the pure planner. now must already be in the user's location.
func Build(userID uuid.UUID, now time.Time, tasks []model.Task) *Plan {
	rng := newRand(userID, now)

	var regular, pro []model.Task
	hasWater := false
	for _, t := range tasks {
		if !t.Active {
			continue
		}
		if t.ProLinkType == model.ProLinkWater {
			hasWater = true
			continue
		}
		if t.CompletedToday {
			continue
		}
		if t.ProLinkType == model.ProLinkNone {
			regular = append(regular, t)
		} else {
			pro = append(pro, t)
		}
	}

	plan := &Plan{Date: now.Format(time.DateOnly), Cancel: CancelIDs()}

	for i, t := range pick(rng, regular, MaxRegular) {
		plan.Notifications = append(plan.Notifications, taskNotification(RegularBaseID+i, KindRegular, t, at(rng, now)))
	}
	for i, t := range pick(rng, pro, MaxPro) {
		plan.Notifications = append(plan.Notifications, taskNotification(ProBaseID+i, KindPro, t, at(rng, now)))
	}
	if hasWater {
		n := MinWater + rng.IntN(MaxWater-MinWater+1)
		for i := range n {
			plan.Notifications = append(plan.Notifications, Notification{
				ID:    WaterBaseID + i,
				Kind:  KindWater,
				Title: "Stay hydrated 💧",
				Body:  "Time for a glass of water.",
				At:    at(rng, now),
			})
		}
	}
	return plan
}

// CancelIDs lists every id the planner may use.
func CancelIDs() []int {
	var ids []int
	for i := range MaxRegular {
		ids = append(ids, RegularBaseID+i)
	}
	for i := range MaxPro {
		ids = append(ids, ProBaseID+i)
	}
	for i := range MaxWater {
		ids = append(ids, WaterBaseID+i)
	}
	return ids
}

func taskNotification(id int, kind Kind, t model.Task, when time.Time) Notification {
	taskID := t.ID
	title := t.Title
	if t.Emoji != "" {
		title = t.Emoji + " " + t.Title
	}
	return Notification{
		ID:     id,
		Kind:   kind,
		TaskID: &taskID,
		Title:  title,
		Body:   "Don't forget this one today.",
		At:     when,
	}
}

// newRand seeds from the user and local date so a day's plan is stable.
func newRand(userID uuid.UUID, now time.Time) *rand.Rand {
	y, m, d := now.Date()
	day := uint64(y)*10000 + uint64(m)*100 + uint64(d)
	return rand.New(rand.NewPCG(
		binary.BigEndian.Uint64(userID[:8]),
		binary.BigEndian.Uint64(userID[8:])^day,
	))
}

func pick(rng *rand.Rand, tasks []model.Task, n int) []model.Task {
	shuffled := append([]model.Task(nil), tasks...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if len(shuffled) > n {
		shuffled = shuffled[:n]
	}
	return shuffled
}

// at draws a time of day in the daytime window. Exact quarter hours are
// pushed seven minutes off the mark. A time already past moves to tomorrow.
func at(rng *rand.Rand, now time.Time) time.Time {
	minute := windowStart + rng.IntN(windowEnd-windowStart+1)
	if minute%15 == 0 {
		if rng.IntN(2) == 0 && minute+7 <= windowEnd {
			minute += 7
		} else {
			minute -= 7
		}
	}
	y, m, d := now.Date()
	t := time.Date(y, m, d, minute/60, minute%60, 0, 0, now.Location())
	if !t.After(now) {
		t = time.Date(y, m, d+1, minute/60, minute%60, 0, 0, now.Location())
	}
	return t
}
