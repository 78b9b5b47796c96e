// Package playback is the audio session controller. One Controller owns the
// loaded playlist, the media player and the periodic progress saver; all
// state changes go through its methods.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ladyboss/academy/internal/drip"
	"github.com/ladyboss/academy/internal/model"
)

var (
	ErrNoTrack      = errors.New("no such track")
	ErrLocked       = errors.New("track is locked")
	ErrInvalidState = errors.New("invalid playback state")
)

type State int

const (
	Idle State = iota
	Loaded
	Playing
	Paused
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loaded:
		return "loaded"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Player is the media element. Implementations must be safe for concurrent
// use; the progress saver reads Position from its own goroutine.
type Player interface {
	Load(ctx context.Context, url string, startAt float64) error
	Play() error
	Pause() error
	Stop() error
	Position() float64
	Duration() float64
}

// URLResolver turns a track into a playable URL.
type URLResolver interface {
	StreamURL(ctx context.Context, track model.ContentItem) (string, error)
}

// ProgressStore persists playback positions; *store.ProgressStore satisfies it.
type ProgressStore interface {
	Save(ctx context.Context, p model.Progress) error
	Get(ctx context.Context, userID, contentID uuid.UUID) (*model.Progress, error)
}

type Config struct {
	// SaveInterval is how often progress is written while playing.
	SaveInterval time.Duration
	// TailTolerance marks a track complete once this close to the end.
	TailTolerance time.Duration
	// OnComplete is called after a track finishes naturally.
	OnComplete func(track model.ContentItem)
}

const (
	DefaultSaveInterval  = 5 * time.Second
	DefaultTailTolerance = 3 * time.Second
)

type Controller struct {
	userID   uuid.UUID
	player   Player
	urls     URLResolver
	progress ProgressStore
	cfg      Config
	logger   *slog.Logger

	mu       sync.Mutex
	playlist []model.ContentItem
	day      int
	index    int
	state    State
	saver    *saver
}

func NewController(userID uuid.UUID, player Player, urls URLResolver, progress ProgressStore, cfg Config, logger *slog.Logger) *Controller {
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = DefaultSaveInterval
	}
	if cfg.TailTolerance <= 0 {
		cfg.TailTolerance = DefaultTailTolerance
	}
	return &Controller{
		userID:   userID,
		player:   player,
		urls:     urls,
		progress: progress,
		cfg:      cfg,
		logger:   logger,
		index:    -1,
	}
}

// SetPlaylist replaces the ordered playlist and the effective drip day used
// to gate it. A loaded track that is still listed keeps playing at its new
// index; one that is no longer listed is stopped.
func (c *Controller) SetPlaylist(items []model.ContentItem, day int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	loaded := c.index >= 0 && c.index < len(c.playlist)
	var current uuid.UUID
	if loaded {
		current = c.playlist[c.index].ID
	}
	c.playlist = append([]model.ContentItem(nil), items...)
	c.day = day
	if !loaded {
		return
	}
	c.index = slices.IndexFunc(c.playlist, func(it model.ContentItem) bool { return it.ID == current })
	if c.index < 0 {
		if err := c.unloadLocked(); err != nil {
			c.logger.Warn("stop removed track", "content_id", current, "error", err)
		}
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the loaded track and its playlist index.
func (c *Controller) Current() (model.ContentItem, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index < 0 || c.index >= len(c.playlist) {
		return model.ContentItem{}, -1, false
	}
	return c.playlist[c.index], c.index, true
}

// Position reports the player position, or zero when nothing is loaded.
func (c *Controller) Position() (position, duration float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Idle {
		return 0, 0
	}
	return c.player.Position(), c.player.Duration()
}

// Play loads the track at index and starts it, resuming from saved progress
// unless the track was already completed.
func (c *Controller) Play(ctx context.Context, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.playlist) {
		return ErrNoTrack
	}
	track := c.playlist[index]
	if !drip.IsUnlocked(track, c.day) {
		return fmt.Errorf("%w: %q unlocks on day %d", ErrLocked, track.Title, drip.UnlockDay(track))
	}

	c.stopSaverLocked()

	url, err := c.urls.StreamURL(ctx, track)
	if err != nil {
		return fmt.Errorf("resolve stream url: %w", err)
	}
	var start float64
	saved, err := c.progress.Get(ctx, c.userID, track.ID)
	if err != nil {
		c.logger.Warn("load saved progress", "content_id", track.ID, "error", err)
	} else if saved != nil && !saved.Completed {
		start = saved.PositionSeconds
	}

	if err := c.player.Load(ctx, url, start); err != nil {
		return fmt.Errorf("load track: %w", err)
	}
	c.index = index
	c.state = Loaded

	if err := c.player.Play(); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	c.state = Playing
	c.startSaverLocked(track)
	return nil
}

func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Playing {
		return fmt.Errorf("%w: pause while %s", ErrInvalidState, c.state)
	}
	if err := c.player.Pause(); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	c.state = Paused
	c.stopSaverLocked()
	c.save(ctx, c.playlist[c.index], false)
	return nil
}

func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Paused && c.state != Loaded {
		return fmt.Errorf("%w: resume while %s", ErrInvalidState, c.state)
	}
	if err := c.player.Play(); err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	c.state = Playing
	c.startSaverLocked(c.playlist[c.index])
	return nil
}

// Stop unloads the track and cancels the progress saver.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.unloadLocked()
}

func (c *Controller) unloadLocked() error {
	c.stopSaverLocked()
	c.index = -1
	if c.state == Idle {
		return nil
	}
	err := c.player.Stop()
	c.state = Idle
	if err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}

// Ended handles the player's natural end-of-media event. It records the
// completion and returns the index of the next unlocked track, if any.
func (c *Controller) Ended(ctx context.Context) (next int, ok bool, err error) {
	c.mu.Lock()
	if c.state != Playing {
		state := c.state
		c.mu.Unlock()
		return -1, false, fmt.Errorf("%w: ended while %s", ErrInvalidState, state)
	}
	c.stopSaverLocked()
	c.state = Completed
	track := c.playlist[c.index]
	c.save(ctx, track, true)
	next, ok = drip.NextUnlocked(c.playlist, c.index, c.day)
	onComplete := c.cfg.OnComplete
	c.mu.Unlock()

	if onComplete != nil {
		onComplete(track)
	}
	return next, ok, nil
}

// Close releases the session. It is Stop under the name used on teardown.
func (c *Controller) Close() error {
	return c.Stop()
}

// save writes the current position. final marks a natural completion.
func (c *Controller) save(ctx context.Context, track model.ContentItem, final bool) {
	pos, dur := c.player.Position(), c.player.Duration()
	if final && dur > 0 {
		pos = dur
	}
	completed := final || (dur > 0 && dur-pos <= c.cfg.TailTolerance.Seconds())
	err := c.progress.Save(ctx, model.Progress{
		UserID:          c.userID,
		ContentID:       track.ID,
		PositionSeconds: pos,
		Completed:       completed,
		UpdatedAt:       time.Now().UTC(),
	})
	if err != nil {
		c.logger.Warn("save progress", "content_id", track.ID, "error", err)
	}
}

type saver struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startSaverLocked starts the periodic progress writer for track.
func (c *Controller) startSaverLocked(track model.ContentItem) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &saver{cancel: cancel, done: make(chan struct{})}
	c.saver = s

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(c.cfg.SaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.save(ctx, track, false)
			}
		}
	}()
}

// stopSaverLocked cancels the saver and waits for it to exit. The saver
// never takes c.mu, so waiting here cannot deadlock.
func (c *Controller) stopSaverLocked() {
	if c.saver == nil {
		return
	}
	c.saver.cancel()
	<-c.saver.done
	c.saver = nil
}
