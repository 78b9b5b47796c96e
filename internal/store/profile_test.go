package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/ladyboss/academy/internal/model"
)

func TestProfileUpsertAndGet(t *testing.T) {
	ps := NewProfileStore(openTestDB(t))
	ctx := context.Background()
	uid := uuid.New()

	got, err := ps.Get(ctx, uid)
	if err != nil || got != nil {
		t.Fatalf("Get before create = %+v, %v; want nil, nil", got, err)
	}

	p := &model.Profile{UserID: uid, DisplayName: "Ana", Timezone: "America/Chicago", ReminderTime: "07:30"}
	if err := ps.Upsert(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err = ps.Get(ctx, uid)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Timezone != "America/Chicago" {
		t.Errorf("timezone = %q, want %q", got.Timezone, "America/Chicago")
	}
	if got.ReminderTime != "07:30" {
		t.Errorf("reminder_time = %q, want %q", got.ReminderTime, "07:30")
	}
}

func TestProfileRejectsBadClock(t *testing.T) {
	ps := NewProfileStore(openTestDB(t))
	ctx := context.Background()
	if err := ps.SetReminderTime(ctx, uuid.New(), "25:99"); err == nil {
		t.Error("expected error for invalid reminder time")
	}
	if err := ps.Upsert(ctx, &model.Profile{UserID: uuid.New(), ReminderTime: "noon"}); err == nil {
		t.Error("expected error for invalid reminder time")
	}
}

func TestListWithReminder(t *testing.T) {
	ps := NewProfileStore(openTestDB(t))
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	if err := ps.SetReminderTime(ctx, a, "09:00"); err != nil {
		t.Fatalf("set reminder: %v", err)
	}
	if err := ps.SetTimezone(ctx, b, "Europe/Paris"); err != nil {
		t.Fatalf("set timezone: %v", err)
	}

	profiles, err := ps.ListWithReminder(ctx)
	if err != nil {
		t.Fatalf("list with reminder: %v", err)
	}
	if len(profiles) != 1 || profiles[0].UserID != a {
		t.Fatalf("profiles = %+v, want only %s", profiles, a)
	}

	byUser, err := ps.ListByUsers(ctx, []uuid.UUID{a, b, uuid.New()})
	if err != nil {
		t.Fatalf("list by users: %v", err)
	}
	if len(byUser) != 2 {
		t.Errorf("len = %d, want 2", len(byUser))
	}
	if byUser[b].Timezone != "Europe/Paris" {
		t.Errorf("timezone = %q, want Europe/Paris", byUser[b].Timezone)
	}
}
