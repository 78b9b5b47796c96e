package playback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ladyboss/academy/internal/media"
	"github.com/ladyboss/academy/internal/model"
)

type fakePlayer struct {
	mu       sync.Mutex
	url      string
	start    float64
	position float64
	duration float64
	playing  bool
	stopped  bool
}

func (p *fakePlayer) Load(_ context.Context, url string, startAt float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url, p.start, p.position = url, startAt, startAt
	p.stopped = false
	return nil
}

func (p *fakePlayer) Play() error  { p.set(func() { p.playing = true }); return nil }
func (p *fakePlayer) Pause() error { p.set(func() { p.playing = false }); return nil }
func (p *fakePlayer) Stop() error {
	p.set(func() { p.playing, p.stopped, p.url, p.position = false, true, "", 0 })
	return nil
}

func (p *fakePlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *fakePlayer) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

func (p *fakePlayer) seek(pos float64) { p.set(func() { p.position = pos }) }

func (p *fakePlayer) set(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
}

type fakeProgress struct {
	mu    sync.Mutex
	saved map[uuid.UUID]model.Progress
	saves int
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{saved: make(map[uuid.UUID]model.Progress)}
}

func (f *fakeProgress) Save(_ context.Context, p model.Progress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[p.ContentID] = p
	f.saves++
	return nil
}

func (f *fakeProgress) Get(_ context.Context, _, contentID uuid.UUID) (*model.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.saved[contentID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeProgress) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func (f *fakeProgress) get(id uuid.UUID) model.Progress {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved[id]
}

func tracks(delays ...int) []model.ContentItem {
	items := make([]model.ContentItem, len(delays))
	for i, d := range delays {
		items[i] = model.ContentItem{
			ID:            uuid.New(),
			Kind:          model.ContentAudioTrack,
			Title:         "Track",
			MediaKey:      "audio/" + uuid.NewString() + ".mp3",
			SortOrder:     i,
			DripDelayDays: d,
		}
	}
	return items
}

func newController(t *testing.T, cfg Config) (*Controller, *fakePlayer, *fakeProgress) {
	t.Helper()
	player := &fakePlayer{duration: 600}
	progress := newFakeProgress()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewController(uuid.New(), player, media.StaticURLs{BaseURL: "https://cdn.example.com"}, progress, cfg, logger)
	t.Cleanup(func() { c.Close() })
	return c, player, progress
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPlayUnlockedTrack(t *testing.T) {
	c, player, _ := newController(t, Config{SaveInterval: time.Hour})
	items := tracks(0, 3)
	c.SetPlaylist(items, 1)

	if err := c.Play(context.Background(), 0); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if c.State() != Playing {
		t.Errorf("state = %s, want playing", c.State())
	}
	if want := "https://cdn.example.com/" + items[0].MediaKey; player.url != want {
		t.Errorf("url = %q, want %q", player.url, want)
	}
	if _, idx, ok := c.Current(); !ok || idx != 0 {
		t.Errorf("Current = %d, %v", idx, ok)
	}
}

func TestPlayLockedTrack(t *testing.T) {
	c, _, _ := newController(t, Config{SaveInterval: time.Hour})
	c.SetPlaylist(tracks(0, 3), 2)

	err := c.Play(context.Background(), 1)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("err = %v, want ErrLocked", err)
	}
	if c.State() != Idle {
		t.Errorf("state = %s, want idle", c.State())
	}
	if err := c.Play(context.Background(), 5); !errors.Is(err, ErrNoTrack) {
		t.Errorf("err = %v, want ErrNoTrack", err)
	}
}

func TestPlayResumesSavedPosition(t *testing.T) {
	c, player, progress := newController(t, Config{SaveInterval: time.Hour})
	items := tracks(0, 0)
	c.SetPlaylist(items, 1)
	ctx := context.Background()

	progress.Save(ctx, model.Progress{ContentID: items[0].ID, PositionSeconds: 120})
	progress.Save(ctx, model.Progress{ContentID: items[1].ID, PositionSeconds: 600, Completed: true})

	if err := c.Play(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if player.start != 120 {
		t.Errorf("start = %v, want 120", player.start)
	}
	if err := c.Play(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if player.start != 0 {
		t.Errorf("completed track should restart, start = %v", player.start)
	}
}

func TestPauseSavesAndResume(t *testing.T) {
	c, player, progress := newController(t, Config{SaveInterval: time.Hour})
	items := tracks(0)
	c.SetPlaylist(items, 1)
	ctx := context.Background()

	if err := c.Play(ctx, 0); err != nil {
		t.Fatal(err)
	}
	player.seek(42)
	if err := c.Pause(ctx); err != nil {
		t.Fatal(err)
	}
	if c.State() != Paused {
		t.Errorf("state = %s, want paused", c.State())
	}
	if got := progress.get(items[0].ID); got.PositionSeconds != 42 || got.Completed {
		t.Errorf("saved = %+v", got)
	}
	if err := c.Pause(ctx); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second pause err = %v, want ErrInvalidState", err)
	}
	if err := c.Resume(); err != nil {
		t.Fatal(err)
	}
	if c.State() != Playing {
		t.Errorf("state = %s, want playing", c.State())
	}
}

func TestPeriodicSaveAndTailCompletion(t *testing.T) {
	c, player, progress := newController(t, Config{SaveInterval: 10 * time.Millisecond})
	items := tracks(0)
	c.SetPlaylist(items, 1)

	if err := c.Play(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	player.seek(300)
	waitFor(t, func() bool { return progress.get(items[0].ID).PositionSeconds == 300 })
	if progress.get(items[0].ID).Completed {
		t.Error("mid-track save marked completed")
	}

	player.seek(598)
	waitFor(t, func() bool { return progress.get(items[0].ID).Completed })
}

func TestStopCancelsSaver(t *testing.T) {
	c, player, progress := newController(t, Config{SaveInterval: 5 * time.Millisecond})
	c.SetPlaylist(tracks(0), 1)

	if err := c.Play(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return progress.count() > 0 })
	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	if c.State() != Idle {
		t.Errorf("state = %s, want idle", c.State())
	}
	if pos, dur := c.Position(); pos != 0 || dur != 0 {
		t.Errorf("position = %v/%v, want 0/0", pos, dur)
	}
	if !player.stopped {
		t.Error("player not stopped")
	}

	n := progress.count()
	time.Sleep(30 * time.Millisecond)
	if got := progress.count(); got != n {
		t.Errorf("saves after stop: %d, want %d", got, n)
	}
	if err := c.Stop(); err != nil {
		t.Errorf("second stop: %v", err)
	}
}

func TestEndedAdvancesPastLockedTracks(t *testing.T) {
	var completed []uuid.UUID
	c, _, progress := newController(t, Config{
		SaveInterval: time.Hour,
		OnComplete:   func(track model.ContentItem) { completed = append(completed, track.ID) },
	})
	// A unlocked, B locked until day 5, C unlocked.
	items := tracks(0, 5, 1)
	c.SetPlaylist(items, 2)
	ctx := context.Background()

	if err := c.Play(ctx, 0); err != nil {
		t.Fatal(err)
	}
	next, ok, err := c.Ended(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || next != 2 {
		t.Errorf("next = %d, %v; want 2, true", next, ok)
	}
	if c.State() != Completed {
		t.Errorf("state = %s, want completed", c.State())
	}
	if got := progress.get(items[0].ID); !got.Completed || got.PositionSeconds != 600 {
		t.Errorf("saved = %+v", got)
	}
	if len(completed) != 1 || completed[0] != items[0].ID {
		t.Errorf("OnComplete calls = %v", completed)
	}

	if err := c.Play(ctx, next); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Ended(ctx); ok {
		t.Error("expected no next track after the last item")
	}
	if _, _, err := c.Ended(ctx); !errors.Is(err, ErrInvalidState) {
		t.Errorf("ended while completed: %v", err)
	}
}

func TestStateString(t *testing.T) {
	if Completed.String() != "completed" || State(9).String() != "state(9)" {
		t.Error("unexpected state names")
	}
}

func TestSetPlaylistFollowsLoadedTrack(t *testing.T) {
	c, _, progress := newController(t, Config{SaveInterval: time.Hour})
	items := tracks(0, 0, 0)
	c.SetPlaylist(items, 1)
	ctx := context.Background()

	if err := c.Play(ctx, 2); err != nil {
		t.Fatal(err)
	}
	// The loaded track moves to the front of the new order.
	c.SetPlaylist([]model.ContentItem{items[2], items[0]}, 1)
	if cur, idx, ok := c.Current(); !ok || idx != 0 || cur.ID != items[2].ID {
		t.Fatalf("Current = %v, %d, %v; want the loaded track at 0", cur.ID, idx, ok)
	}
	if err := c.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if _, ok := progress.saved[items[2].ID]; !ok {
		t.Error("expected progress saved for the loaded track")
	}
	if _, ok := progress.saved[items[0].ID]; ok {
		t.Error("progress saved for a track that was not playing")
	}
}

func TestSetPlaylistStopsRemovedTrack(t *testing.T) {
	c, player, _ := newController(t, Config{SaveInterval: time.Hour})
	items := tracks(0, 0, 0)
	c.SetPlaylist(items, 1)
	ctx := context.Background()

	if err := c.Play(ctx, 2); err != nil {
		t.Fatal(err)
	}
	c.SetPlaylist(items[:1], 1)

	if c.State() != Idle {
		t.Errorf("state = %s, want idle", c.State())
	}
	if !player.stopped {
		t.Error("expected player stopped")
	}
	if _, _, ok := c.Current(); ok {
		t.Error("expected no current track")
	}
	if err := c.Pause(ctx); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Pause err = %v, want ErrInvalidState", err)
	}
	if err := c.Resume(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Resume err = %v, want ErrInvalidState", err)
	}
	if _, _, err := c.Ended(ctx); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Ended err = %v, want ErrInvalidState", err)
	}
}
