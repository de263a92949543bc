// Package app wires the fetch source, normalizer, scheduler and sinks
// into the two periodic drivers: a slow cron-scheduled sync loop and a
// fast notification-check loop.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"calnotify/internal/config"
	appLog "calnotify/internal/log"
	"calnotify/internal/model"
	"calnotify/internal/normalize"
	"calnotify/internal/notify"
)

// tickInterval is the fast driver's cadence. At 20 seconds, at least
// one tick is guaranteed to land inside every 1-minute-wide
// notification window.
const tickInterval = 20 * time.Second

// Fetcher is the calendar fetch source.
type Fetcher interface {
	FetchWindow(ctx context.Context, start, end time.Time) ([]model.RawOccurrence, error)
}

// App runs the sync and notification loops over one calendar.
type App struct {
	cfg        *config.Config
	fetcher    Fetcher
	normalizer *normalize.Normalizer
	scheduler  *notify.Scheduler
	notifier   notify.Notifier
	opener     notify.URLOpener
	store      *Store

	// tickMu enforces at most one in-flight tick; the scheduler's
	// ledger assumes single-writer access.
	tickMu sync.Mutex
}

// New assembles the application from its collaborators.
func New(cfg *config.Config, fetcher Fetcher, notifier notify.Notifier, opener notify.URLOpener) *App {
	return &App{
		cfg:        cfg,
		fetcher:    fetcher,
		normalizer: normalize.New(cfg.AccountEmail),
		scheduler: notify.NewScheduler(notify.Policy{
			Intervals:    cfg.Notifications.IntervalsMinutes,
			Sound:        cfg.Notifications.SoundEnabled,
			AutoOpenURLs: cfg.AutoOpenURLs,
		}),
		notifier: notifier,
		opener:   opener,
		store:    NewStore(),
	}
}

// Store exposes the snapshot store for the status API.
func (a *App) Store() *Store {
	return a.store
}

// RunOnce performs a single sync followed by one notification check.
func (a *App) RunOnce(ctx context.Context) error {
	if err := a.Sync(ctx); err != nil {
		return err
	}
	a.Tick(time.Now())
	return nil
}

// Run starts both drivers and blocks until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	// Initial sync so the first ticks have data to work with.
	if err := a.Sync(ctx); err != nil {
		appLog.Error("initial sync failed, continuing with empty snapshot", err)
	}

	c := cron.New()
	_, err := c.AddFunc(a.cfg.Sync.Refresh, func() {
		if err := a.Sync(ctx); err != nil {
			appLog.Error("sync failed", err)
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			a.Tick(now)
		}
	}
}

// Sync fetches the configured window, normalizes it and atomically
// replaces the snapshot. A failed fetch keeps the previous snapshot.
// A successful sync is followed by an immediate notification check so
// a freshly appeared event cannot slip past its window.
func (a *App) Sync(ctx context.Context) error {
	now := time.Now()
	windowEnd := now.Add(time.Duration(a.cfg.Sync.WindowHours) * time.Hour)

	raw, err := a.fetcher.FetchWindow(ctx, now, windowEnd)
	if err != nil {
		return err
	}

	events := a.normalizer.Normalize(raw, now)
	a.store.Replace(Snapshot{Events: events, FetchedAt: now})

	appLog.Info("calendar synced",
		"raw_occurrences", len(raw),
		"events", len(events),
		"window_hours", a.cfg.Sync.WindowHours,
	)

	a.Tick(time.Now())
	return nil
}

// Tick runs one scheduler pass over the current snapshot and
// dispatches the resulting requests to the sinks.
func (a *App) Tick(now time.Time) {
	a.tickMu.Lock()
	defer a.tickMu.Unlock()

	snap := a.store.Current()
	requests := a.scheduler.Tick(snap.Events, now)

	for _, req := range requests {
		a.dispatch(req)
	}
}

// dispatch hands one request to its sink. Sink failures are logged and
// dropped: the ledger already recorded the attempt, and re-firing on
// delivery failure is not part of the contract.
func (a *App) dispatch(req model.Request) {
	switch req.Kind {
	case model.RequestNotify:
		if err := a.notifier.Notify(req); err != nil {
			appLog.Error("notification delivery failed", err, "event_id", req.EventID)
		}
	case model.RequestOpenURL:
		if err := a.opener.Open(req.URL); err != nil {
			appLog.Error("URL open failed", err, "event_id", req.EventID)
		}
	}
}
