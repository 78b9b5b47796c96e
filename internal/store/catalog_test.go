package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ladyboss/academy/internal/database"
	"github.com/ladyboss/academy/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedRound creates a program, playlist and channel bound to one round.
func seedRound(t *testing.T, cs *CatalogStore, start time.Time) *model.Round {
	t.Helper()
	ctx := context.Background()
	prog, err := cs.CreateProgram(ctx, "Ignite")
	if err != nil {
		t.Fatalf("create program: %v", err)
	}
	pl, err := cs.CreatePlaylist(ctx, "Daily audio")
	if err != nil {
		t.Fatalf("create playlist: %v", err)
	}
	ch, err := cs.CreateChannel(ctx, "Announcements")
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	r, err := cs.CreateRound(ctx, model.Round{
		ProgramID:       prog.ID,
		Name:            "Spring",
		Status:          model.RoundActive,
		StartDate:       &start,
		AudioPlaylistID: &pl.ID,
		FeedChannelID:   &ch.ID,
	})
	if err != nil {
		t.Fatalf("create round: %v", err)
	}
	return r
}

func TestCreateAndGetRound(t *testing.T) {
	cs := NewCatalogStore(openTestDB(t))
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	r := seedRound(t, cs, start)

	got, err := cs.GetRound(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("get round: %v", err)
	}
	if got == nil {
		t.Fatal("expected round, got nil")
	}
	if got.Name != "Spring" {
		t.Errorf("name = %q, want %q", got.Name, "Spring")
	}
	if got.StartDate == nil || !got.StartDate.Equal(start) {
		t.Errorf("start_date = %v, want %v", got.StartDate, start)
	}
	if got.FirstSessionDate != nil {
		t.Errorf("first_session_date = %v, want nil", got.FirstSessionDate)
	}
	if got.AudioPlaylistID == nil || *got.AudioPlaylistID != *r.AudioPlaylistID {
		t.Errorf("audio_playlist_id = %v, want %v", got.AudioPlaylistID, r.AudioPlaylistID)
	}
}

func TestGetRoundNotFound(t *testing.T) {
	cs := NewCatalogStore(openTestDB(t))
	got, err := cs.GetRound(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("get round: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestRoundDripUpdates(t *testing.T) {
	cs := NewCatalogStore(openTestDB(t))
	ctx := context.Background()
	r := seedRound(t, cs, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	session := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	if err := cs.SetFirstSession(ctx, r.ID, &session); err != nil {
		t.Fatalf("set first session: %v", err)
	}
	if err := cs.SetDripOffset(ctx, r.ID, 2); err != nil {
		t.Fatalf("set drip offset: %v", err)
	}

	got, _ := cs.GetRound(ctx, r.ID)
	base, ok := got.DripBase()
	if !ok || !base.Equal(session) {
		t.Errorf("drip base = %v (%v), want %v", base, ok, session)
	}
	if got.DripOffsetDays != 2 {
		t.Errorf("drip_offset_days = %d, want 2", got.DripOffsetDays)
	}
}

func TestDripRoundsSkipsCompletedAndUndated(t *testing.T) {
	cs := NewCatalogStore(openTestDB(t))
	ctx := context.Background()
	dated := seedRound(t, cs, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	done := seedRound(t, cs, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err := cs.SetStatus(ctx, done.ID, model.RoundCompleted); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if _, err := cs.CreateRound(ctx, model.Round{ProgramID: dated.ProgramID, Name: "Undated"}); err != nil {
		t.Fatalf("create round: %v", err)
	}

	rounds, err := cs.DripRounds(ctx)
	if err != nil {
		t.Fatalf("drip rounds: %v", err)
	}
	if len(rounds) != 1 || rounds[0].ID != dated.ID {
		t.Fatalf("drip rounds = %+v, want only %s", rounds, dated.ID)
	}
}

func TestRoundContentOrdering(t *testing.T) {
	cs := NewCatalogStore(openTestDB(t))
	ctx := context.Background()
	r := seedRound(t, cs, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	cs.AddTrack(ctx, *r.AudioPlaylistID, model.ContentItem{Title: "B", SortOrder: 2, DripDelayDays: 2})
	cs.AddTrack(ctx, *r.AudioPlaylistID, model.ContentItem{Title: "A", SortOrder: 1, DripDelayDays: 1})
	cs.AddPost(ctx, *r.FeedChannelID, model.ContentItem{Title: "Welcome", Body: "**Hi**"})

	items, err := cs.RoundContent(ctx, *r)
	if err != nil {
		t.Fatalf("round content: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	want := []string{"A", "B", "Welcome"}
	for i, it := range items {
		if it.Title != want[i] {
			t.Errorf("items[%d] = %q, want %q", i, it.Title, want[i])
		}
	}
	if items[0].Kind != model.ContentAudioTrack || items[2].Kind != model.ContentFeedPost {
		t.Errorf("kinds = %s, %s", items[0].Kind, items[2].Kind)
	}
	if items[2].ParentID != *r.FeedChannelID {
		t.Errorf("post parent = %s, want %s", items[2].ParentID, *r.FeedChannelID)
	}
}

func TestPostsPublishedSince(t *testing.T) {
	cs := NewCatalogStore(openTestDB(t))
	ctx := context.Background()
	r := seedRound(t, cs, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	now := time.Now().UTC()

	cs.AddPost(ctx, *r.FeedChannelID, model.ContentItem{Title: "old", PublishedAt: now.Add(-48 * time.Hour)})
	cs.AddPost(ctx, *r.FeedChannelID, model.ContentItem{Title: "fresh", PublishedAt: now.Add(-time.Hour)})
	cs.AddPost(ctx, *r.FeedChannelID, model.ContentItem{Title: "dripped", DripDelayDays: 3, PublishedAt: now.Add(-time.Hour)})

	posts, err := cs.PostsPublishedSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("posts since: %v", err)
	}
	if len(posts) != 1 || posts[0].Title != "fresh" {
		t.Fatalf("posts = %+v, want only fresh", posts)
	}

	rounds, err := cs.RoundsByFeedChannel(ctx, *r.FeedChannelID)
	if err != nil {
		t.Fatalf("rounds by channel: %v", err)
	}
	if len(rounds) != 1 || rounds[0].ID != r.ID {
		t.Errorf("rounds by channel = %+v", rounds)
	}
}

func TestTrackLookup(t *testing.T) {
	cs := NewCatalogStore(openTestDB(t))
	ctx := context.Background()
	r := seedRound(t, cs, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	tr, _ := cs.AddTrack(ctx, *r.AudioPlaylistID, model.ContentItem{Title: "Intro", MediaKey: "audio/intro.mp3", DurationSeconds: 300})

	got, err := cs.Track(ctx, tr.ID)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if got == nil || got.MediaKey != "audio/intro.mp3" {
		t.Fatalf("track = %+v, want media key audio/intro.mp3", got)
	}
	missing, err := cs.Track(ctx, uuid.New())
	if err != nil || missing != nil {
		t.Errorf("missing track = %+v, %v; want nil, nil", missing, err)
	}
}
