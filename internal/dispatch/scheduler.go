package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ladyboss/academy/internal/store"
)

// Scheduler periodically runs every dispatch category and prunes old run
// summaries.
type Scheduler struct {
	mu          sync.RWMutex
	dispatcher  *Dispatcher
	runs        *store.RunStore
	interval    time.Duration
	retention   time.Duration
	lastCleanup time.Time
	logger      *slog.Logger
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewScheduler creates a dispatch scheduler. A zero retention keeps every run.
func NewScheduler(d *Dispatcher, runs *store.RunStore, interval, retention time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		dispatcher: d,
		runs:       runs,
		interval:   interval,
		retention:  retention,
		logger:     logger,
	}
}

// Start begins the scheduler loop. The first tick runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler, waiting for an in-flight tick.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.dispatcher.RunAll(ctx)

	if s.retention <= 0 || time.Since(s.lastCleanup) < 24*time.Hour {
		return
	}
	n, err := s.runs.CleanupBefore(ctx, time.Now().Add(-s.retention))
	if err != nil {
		s.logger.Error("cleanup dispatch runs", "error", err)
		return
	}
	s.lastCleanup = time.Now()
	if n > 0 {
		s.logger.Info("cleaned up dispatch runs", "count", n)
	}
}
