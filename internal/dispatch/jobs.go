package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ladyboss/academy/internal/drip"
	"github.com/ladyboss/academy/internal/markup"
	"github.com/ladyboss/academy/internal/model"
	"github.com/ladyboss/academy/internal/push"
	"github.com/ladyboss/academy/internal/schedule"
	"github.com/ladyboss/academy/internal/store"
)

const (
	reminderTolerance = 15
	followupMinAge    = 2
	followupMaxAge    = 7
	feedPostLookback  = 24 * time.Hour
	summaryLookback   = 7 * 24 * time.Hour
)

var (
	daytime       = schedule.ActiveHours{StartHour: 8, EndHour: 20}
	mondayMorning = schedule.WeeklyAt{Weekday: time.Monday, Hour: 9, ToleranceMinutes: reminderTolerance}
)

// Catalog holds the stores the jobs read from.
type Catalog struct {
	Content     *store.CatalogStore
	Enrollments *store.EnrollmentStore
	Profiles    *store.ProfileStore
	Progress    *store.ProgressStore
}

// Jobs returns one job per category.
func Jobs(c Catalog, zones *schedule.Zones) []Job {
	return []Job{
		&DripUnlockJob{c: c, zones: zones},
		&DripFollowupJob{c: c, zones: zones},
		&JournalReminderJob{c: c, zones: zones},
		&WeeklySummaryJob{c: c, zones: zones},
		&FeedPostJob{c: c},
	}
}

// roundItems visits every drip round with its effective day and content.
// Round days are counted in the fallback zone.
func roundItems(ctx context.Context, c Catalog, zones *schedule.Zones, now time.Time,
	visit func(r model.Round, day int, items []model.ContentItem) error) error {
	rounds, err := c.Content.DripRounds(ctx)
	if err != nil {
		return err
	}
	local := now.In(zones.Fallback())
	for _, r := range rounds {
		day, ok := drip.RoundDay(r, local)
		if !ok || day < 1 {
			continue
		}
		items, err := c.Content.RoundContent(ctx, r)
		if err != nil {
			return err
		}
		if err := visit(r, day, items); err != nil {
			return err
		}
	}
	return nil
}

// DripUnlockJob announces items whose delay equals the round's day today.
type DripUnlockJob struct {
	c     Catalog
	zones *schedule.Zones
}

func (j *DripUnlockJob) Category() model.Category { return model.CategoryDripUnlock }

func (j *DripUnlockJob) Candidates(ctx context.Context, now time.Time) ([]Candidate, error) {
	var out []Candidate
	err := roundItems(ctx, j.c, j.zones, now, func(r model.Round, day int, items []model.ContentItem) error {
		fresh := drip.NewlyUnlocked(items, day)
		if len(fresh) == 0 {
			return nil
		}
		users, err := j.c.Enrollments.ActiveRecipients(ctx, r.ID)
		if err != nil {
			return err
		}
		for _, item := range fresh {
			title, body, err := unlockText(item)
			if err != nil {
				return err
			}
			p, err := push.NewPayload(model.CategoryDripUnlock, title, body, &item)
			if err != nil {
				return err
			}
			for _, u := range users {
				out = append(out, Candidate{UserID: u, Key: ContentKey(model.CategoryDripUnlock, item.ID), Payload: p})
			}
		}
		return nil
	})
	return out, err
}

func unlockText(item model.ContentItem) (title, body string, err error) {
	switch item.Kind {
	case model.ContentAudioTrack:
		return "New audio unlocked", item.Title, nil
	case model.ContentFeedPost:
		return "New post unlocked", item.Title, nil
	}
	return "", "", fmt.Errorf("unlock text: unknown content kind %q", item.Kind)
}

// DripFollowupJob nudges members about audio unlocked 2 to 7 days ago that
// they have not started.
type DripFollowupJob struct {
	c     Catalog
	zones *schedule.Zones
}

func (j *DripFollowupJob) Category() model.Category { return model.CategoryDripFollowup }

func (j *DripFollowupJob) Candidates(ctx context.Context, now time.Time) ([]Candidate, error) {
	var out []Candidate
	err := roundItems(ctx, j.c, j.zones, now, func(r model.Round, day int, items []model.ContentItem) error {
		var users []uuid.UUID
		for _, item := range items {
			if item.Kind != model.ContentAudioTrack {
				continue
			}
			age := day - drip.UnlockDay(item)
			if age < followupMinAge || age > followupMaxAge {
				continue
			}
			if users == nil {
				var err error
				if users, err = j.c.Enrollments.ActiveRecipients(ctx, r.ID); err != nil {
					return err
				}
			}
			started, err := j.c.Progress.UsersWithProgress(ctx, item.ID, users)
			if err != nil {
				return err
			}
			p, err := push.NewPayload(model.CategoryDripFollowup, "Still waiting for you",
				fmt.Sprintf("You haven't listened to %q yet.", item.Title), &item)
			if err != nil {
				return err
			}
			for _, u := range users {
				if started[u] {
					continue
				}
				out = append(out, Candidate{
					UserID:  u,
					Key:     ContentKey(model.CategoryDripFollowup, item.ID),
					Payload: p,
					Window:  daytime,
				})
			}
		}
		return nil
	})
	return out, err
}

// JournalReminderJob fires at each member's chosen reminder time.
type JournalReminderJob struct {
	c     Catalog
	zones *schedule.Zones
}

func (j *JournalReminderJob) Category() model.Category { return model.CategoryJournalReminder }

func (j *JournalReminderJob) Candidates(ctx context.Context, now time.Time) ([]Candidate, error) {
	profiles, err := j.c.Profiles.ListWithReminder(ctx)
	if err != nil {
		return nil, err
	}
	p, err := push.NewPayload(model.CategoryJournalReminder, "Time to journal",
		"Take a few minutes to reflect on your day.", nil)
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, prof := range profiles {
		hour, minute, err := model.ParseClock(prof.ReminderTime)
		if err != nil {
			continue
		}
		w := schedule.ExactTime{Hour: hour, Minute: minute, ToleranceMinutes: reminderTolerance}
		// Keyed by the day the window opened, so a window running past
		// midnight keeps one key.
		occ := schedule.Occurrence(now.In(j.zones.Location(prof.Timezone)), w)
		out = append(out, Candidate{
			UserID:  prof.UserID,
			Key:     PeriodKey(model.CategoryJournalReminder, occ.Format(time.DateOnly)),
			Payload: p,
			Window:  w,
		})
	}
	return out, nil
}

// WeeklySummaryJob sends a Monday morning recap to enrolled members.
type WeeklySummaryJob struct {
	c     Catalog
	zones *schedule.Zones
}

func (j *WeeklySummaryJob) Category() model.Category { return model.CategoryWeeklySummary }

func (j *WeeklySummaryJob) Candidates(ctx context.Context, now time.Time) ([]Candidate, error) {
	users, err := j.c.Enrollments.ActiveUsers(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := j.c.Profiles.ListByUsers(ctx, users)
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, u := range users {
		tz := profiles[u].Timezone
		// Only due users need their week counted.
		if !j.zones.IsDue(now, tz, mondayMorning) {
			continue
		}
		n, err := j.c.Progress.CompletedSince(ctx, u, now.Add(-summaryLookback))
		if err != nil {
			return nil, err
		}
		p, err := push.NewPayload(model.CategoryWeeklySummary, "Your week in review", summaryBody(n), nil)
		if err != nil {
			return nil, err
		}
		year, week := schedule.Occurrence(now.In(j.zones.Location(tz)), mondayMorning).ISOWeek()
		out = append(out, Candidate{
			UserID:  u,
			Key:     PeriodKey(model.CategoryWeeklySummary, fmt.Sprintf("%d-W%02d", year, week)),
			Payload: p,
			Window:  mondayMorning,
		})
	}
	return out, nil
}

func summaryBody(completed int) string {
	switch completed {
	case 0:
		return "A new week is here. Pick up where you left off."
	case 1:
		return "You completed 1 track last week. Keep going!"
	}
	return fmt.Sprintf("You completed %d tracks last week. Keep going!", completed)
}

// FeedPostJob announces undelayed posts from the last day to every active
// member of a round bound to the post's channel.
type FeedPostJob struct {
	c Catalog
}

func (j *FeedPostJob) Category() model.Category { return model.CategoryFeedPost }

func (j *FeedPostJob) Candidates(ctx context.Context, now time.Time) ([]Candidate, error) {
	posts, err := j.c.Content.PostsPublishedSince(ctx, now.Add(-feedPostLookback))
	if err != nil {
		return nil, err
	}
	var out []Candidate
	recipients := make(map[uuid.UUID][]uuid.UUID)
	for _, post := range posts {
		if post.PublishedAt.After(now) {
			continue
		}
		users, ok := recipients[post.ParentID]
		if !ok {
			if users, err = j.channelRecipients(ctx, post.ParentID); err != nil {
				return nil, err
			}
			recipients[post.ParentID] = users
		}
		title := post.Title
		if title == "" {
			title = "New post"
		}
		p, err := push.NewPayload(model.CategoryFeedPost, title, markup.Preview(post.Body, markup.DefaultPreviewLength), &post)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			out = append(out, Candidate{UserID: u, Key: ContentKey(model.CategoryFeedPost, post.ID), Payload: p})
		}
	}
	return out, nil
}

func (j *FeedPostJob) channelRecipients(ctx context.Context, channelID uuid.UUID) ([]uuid.UUID, error) {
	rounds, err := j.c.Content.RoundsByFeedChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	var users []uuid.UUID
	for _, r := range rounds {
		u, err := j.c.Enrollments.ActiveRecipients(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		users = append(users, u...)
	}
	return users, nil
}

// ContentKey is the ledger key of a content-driven notification.
func ContentKey(c model.Category, contentID uuid.UUID) string {
	return fmt.Sprintf("%s_%s", c, contentID)
}

// PeriodKey is the ledger key of a recurring notification for one period.
func PeriodKey(c model.Category, period string) string {
	return fmt.Sprintf("%s_%s", c, period)
}
