// Package dispatch runs one notification category end to end: collect due
// candidates, drop opted-out, already-notified and out-of-window users, fan
// the sends out to every device, then persist the ledger, prune dead devices
// and record a run summary.
//
// A run is safe to repeat. The ledger key of a candidate identifies the
// logical event, and a key is written only after a device accepted the
// notification, so a rerun only retries users that were never reached.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ladyboss/academy/internal/model"
	"github.com/ladyboss/academy/internal/push"
	"github.com/ladyboss/academy/internal/schedule"
	"github.com/ladyboss/academy/internal/store"
	"golang.org/x/sync/errgroup"
)

var ErrUnknownCategory = errors.New("unknown notification category")

// Candidate is one user due for one logical notification.
type Candidate struct {
	UserID  uuid.UUID
	Key     string
	Payload push.Payload
	// Window is evaluated in the user's timezone; nil means always due.
	Window schedule.Window
}

// Job produces the candidates of one category at now.
type Job interface {
	Category() model.Category
	Candidates(ctx context.Context, now time.Time) ([]Candidate, error)
}

// Sender is the push transport seen by the pipeline; *push.Mux satisfies it.
type Sender interface {
	Ready() error
	Supports(sub model.PushSubscription) bool
	Send(ctx context.Context, sub model.PushSubscription, p push.Payload) push.Result
}

type Options struct {
	SendTimeout time.Duration
	Concurrency int
	// OnRun is called with every finished run summary.
	OnRun func(model.DispatchRun)
}

// Dispatcher owns the jobs and the shared delivery pipeline.
type Dispatcher struct {
	jobs     map[model.Category]Job
	sender   Sender
	push     *store.PushStore
	ledger   *store.LedgerStore
	profiles *store.ProfileStore
	runs     *store.RunStore
	zones    *schedule.Zones
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

type Stores struct {
	Push     *store.PushStore
	Ledger   *store.LedgerStore
	Profiles *store.ProfileStore
	Runs     *store.RunStore
}

func NewDispatcher(sender Sender, stores Stores, zones *schedule.Zones, opts Options, logger *slog.Logger, jobs ...Job) *Dispatcher {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	d := &Dispatcher{
		jobs:     make(map[model.Category]Job, len(jobs)),
		sender:   sender,
		push:     stores.Push,
		ledger:   stores.Ledger,
		profiles: stores.Profiles,
		runs:     stores.Runs,
		zones:    zones,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
	for _, j := range jobs {
		d.jobs[j.Category()] = j
	}
	return d
}

// Categories returns the registered categories in dispatch order.
func (d *Dispatcher) Categories() []model.Category {
	var out []model.Category
	for _, c := range model.Categories {
		if _, ok := d.jobs[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// RunAll runs every registered category once. Failures are logged and do
// not stop later categories.
func (d *Dispatcher) RunAll(ctx context.Context) {
	for _, c := range d.Categories() {
		if ctx.Err() != nil {
			return
		}
		if _, err := d.Run(ctx, c); err != nil {
			d.logger.Error("dispatch run failed", "category", c, "error", err)
		}
	}
}

// Run executes one category. The returned run is always populated; the error
// is non-nil only when the whole run was aborted.
func (d *Dispatcher) Run(ctx context.Context, category model.Category) (model.DispatchRun, error) {
	job, ok := d.jobs[category]
	if !ok {
		return model.DispatchRun{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	run := model.DispatchRun{ID: newRunID(), Category: category, StartedAt: d.now().UTC()}
	logger := d.logger.With("category", category, "run_id", run.ID)

	if err := d.sender.Ready(); err != nil {
		logger.Error("dispatch aborted before sending", "error", err)
		return d.finish(ctx, run, err, logger), err
	}

	candidates, err := job.Candidates(ctx, run.StartedAt)
	if err != nil {
		err = fmt.Errorf("collect %s candidates: %w", category, err)
		return d.finish(ctx, run, err, logger), err
	}
	if err := d.deliver(ctx, &run, candidates, logger); err != nil {
		return d.finish(ctx, run, err, logger), err
	}
	return d.finish(ctx, run, nil, logger), nil
}

type delivery struct {
	candidate int
	sub       model.PushSubscription
	res       push.Result
}

func (d *Dispatcher) deliver(ctx context.Context, run *model.DispatchRun, candidates []Candidate, logger *slog.Logger) error {
	candidates = uniqueCandidates(candidates)
	run.Candidates = len(candidates)

	candidates, err := d.filterPreferences(ctx, run.Category, candidates)
	if err != nil {
		return err
	}
	candidates, err = d.filterLedger(ctx, candidates)
	if err != nil {
		return err
	}
	candidates, err = d.filterWindow(ctx, run.StartedAt, candidates)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		logger.Debug("no due recipients")
		return nil
	}

	deliveries, err := d.resolveDevices(ctx, candidates)
	if err != nil {
		return err
	}
	if len(deliveries) == 0 {
		logger.Info("no devices for due recipients", "recipients", len(candidates))
		return nil
	}

	var g errgroup.Group
	g.SetLimit(d.opts.Concurrency)
	for i := range deliveries {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
			defer cancel()
			dv := &deliveries[i]
			dv.res = d.sender.Send(sendCtx, dv.sub, candidates[dv.candidate].Payload)
			return nil
		})
	}
	_ = g.Wait()

	reached := make(map[int]bool)
	var invalid []string
	for _, dv := range deliveries {
		switch dv.res.Outcome {
		case push.Delivered:
			run.Sent++
			reached[dv.candidate] = true
		case push.Invalid:
			invalid = append(invalid, dv.sub.Endpoint)
			logger.Info("removing invalid device", "device", push.Fingerprint(dv.sub.Endpoint), "status", dv.res.Status)
		default:
			run.Failed++
			logger.Warn("send failed", "device", push.Fingerprint(dv.sub.Endpoint), "status", dv.res.Status, "error", dv.res.Err)
		}
	}

	// The notifications are out; bookkeeping failures are logged, not returned.
	for i := range candidates {
		if !reached[i] {
			continue
		}
		c := candidates[i]
		if _, err := d.ledger.RecordSent(ctx, c.UserID, c.Key, model.ScheduleSent); err != nil {
			logger.Error("record ledger entry", "user_id", c.UserID, "key", c.Key, "error", err)
		}
	}
	if len(invalid) > 0 {
		n, err := d.push.DeleteByEndpoints(ctx, invalid)
		if err != nil {
			logger.Error("delete invalid devices", "count", len(invalid), "error", err)
		}
		run.Removed = int(n)
	}
	return nil
}

func (d *Dispatcher) filterPreferences(ctx context.Context, category model.Category, candidates []Candidate) ([]Candidate, error) {
	key, err := category.PreferenceKey()
	if err != nil {
		return nil, err
	}
	disabled, err := d.push.DisabledUsers(ctx, key, userIDs(candidates))
	if err != nil {
		return nil, err
	}
	return filter(candidates, func(c Candidate) bool { return !disabled[c.UserID] }), nil
}

func (d *Dispatcher) filterLedger(ctx context.Context, candidates []Candidate) ([]Candidate, error) {
	byKey := make(map[string][]uuid.UUID)
	for _, c := range candidates {
		byKey[c.Key] = append(byKey[c.Key], c.UserID)
	}
	sent := make(map[string]map[uuid.UUID]bool, len(byKey))
	for key, users := range byKey {
		s, err := d.ledger.AlreadySent(ctx, key, users)
		if err != nil {
			return nil, err
		}
		sent[key] = s
	}
	return filter(candidates, func(c Candidate) bool { return !sent[c.Key][c.UserID] }), nil
}

func (d *Dispatcher) filterWindow(ctx context.Context, now time.Time, candidates []Candidate) ([]Candidate, error) {
	var windowed []uuid.UUID
	for _, c := range candidates {
		if c.Window != nil {
			windowed = append(windowed, c.UserID)
		}
	}
	if len(windowed) == 0 {
		return candidates, nil
	}
	profiles, err := d.profiles.ListByUsers(ctx, windowed)
	if err != nil {
		return nil, err
	}
	return filter(candidates, func(c Candidate) bool {
		return c.Window == nil || d.zones.IsDue(now, profiles[c.UserID].Timezone, c.Window)
	}), nil
}

// resolveDevices pairs each candidate with its APNs devices and, when the
// sender handles them, its web push subscriptions.
func (d *Dispatcher) resolveDevices(ctx context.Context, candidates []Candidate) ([]delivery, error) {
	ids := userIDs(candidates)
	native, err := d.push.NativeDevices(ctx, ids)
	if err != nil {
		return nil, err
	}
	web, err := d.push.WebSubscriptions(ctx, ids)
	if err != nil {
		return nil, err
	}

	byUser := make(map[uuid.UUID][]model.PushSubscription)
	for _, dev := range native {
		sub := model.PushSubscription{UserID: dev.UserID, Endpoint: dev.Endpoint}
		if d.sender.Supports(sub) {
			byUser[dev.UserID] = append(byUser[dev.UserID], sub)
		}
	}
	for _, sub := range web {
		if d.sender.Supports(sub) {
			byUser[sub.UserID] = append(byUser[sub.UserID], sub)
		}
	}
	var out []delivery
	for i, c := range candidates {
		for _, sub := range byUser[c.UserID] {
			out = append(out, delivery{candidate: i, sub: sub})
		}
	}
	return out, nil
}

func (d *Dispatcher) finish(ctx context.Context, run model.DispatchRun, runErr error, logger *slog.Logger) model.DispatchRun {
	run.FinishedAt = d.now().UTC()
	switch {
	case runErr != nil:
		run.Status = model.RunError
		run.Error = runErr.Error()
	case run.Failed > 0 && run.Sent == 0:
		run.Status = model.RunError
	case run.Failed > 0:
		run.Status = model.RunPartial
	default:
		run.Status = model.RunSuccess
	}

	// A cancelled parent must not lose the summary row.
	if err := d.runs.Record(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("record dispatch run", "error", err)
	}
	logger.Info("dispatch run finished",
		"status", run.Status,
		"candidates", run.Candidates,
		"sent", run.Sent,
		"failed", run.Failed,
		"removed", run.Removed,
		"duration", run.FinishedAt.Sub(run.StartedAt),
	)
	if d.opts.OnRun != nil {
		d.opts.OnRun(run)
	}
	return run
}

func newRunID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

func uniqueCandidates(in []Candidate) []Candidate {
	type pair struct {
		user uuid.UUID
		key  string
	}
	seen := make(map[pair]bool, len(in))
	return filter(in, func(c Candidate) bool {
		p := pair{c.UserID, c.Key}
		if seen[p] {
			return false
		}
		seen[p] = true
		return true
	})
}

func userIDs(candidates []Candidate) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(candidates))
	var out []uuid.UUID
	for _, c := range candidates {
		if !seen[c.UserID] {
			seen[c.UserID] = true
			out = append(out, c.UserID)
		}
	}
	return out
}

func filter(in []Candidate, keep func(Candidate) bool) []Candidate {
	out := in[:0:0]
	for _, c := range in {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}
