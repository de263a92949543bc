// Package notify decides, on each periodic tick, which events deserve
// which notification, exactly once per (event, lead time) pair.
package notify

import (
	"fmt"
	"time"

	appLog "calnotify/internal/log"
	"calnotify/internal/model"
	"calnotify/internal/timeutil"
)

// staleRecoveryCutoff: an unmodified occurrence starting more than a
// day ago is assumed to be a stale recurring-series instance whose
// real occurrence must be reconstructed from its wall-clock time.
const staleRecoveryCutoff = 24 * time.Hour

// intervalWindow is the half-minute tolerance on each side of a lead
// time. Polling every ~20 seconds guarantees at least one tick lands
// inside any 1-minute-wide window.
const intervalWindow = 0.5

// URL opening fires once per event close to the 1-minute mark; the
// window is wider on the upper side so poll jitter cannot miss it.
const (
	urlOpenMin = 0.5
	urlOpenMax = 1.3
)

// tomorrowBuffer widens the recovery horizon past max(intervals) so
// events just past local midnight do not miss their earliest lead-time
// notification.
const tomorrowBuffer = 60.0

// Policy is the read-only notification configuration for one cycle.
type Policy struct {
	// Intervals are the lead times in minutes, ascending, distinct,
	// positive.
	Intervals []int
	// Sound asks the notifier sink to play a sound per notification.
	Sound bool
	// AutoOpenURLs enables the URL-open action for URL-shaped locations.
	AutoOpenURLs bool
}

func (p Policy) maxInterval() int {
	if len(p.Intervals) == 0 {
		return 0
	}
	return p.Intervals[len(p.Intervals)-1]
}

// Scheduler evaluates the current event snapshot against the policy on
// every tick. It owns the dedup ledger; ticks must not overlap (the
// driver enforces at most one in-flight tick).
type Scheduler struct {
	policy Policy
	ledger *Ledger
}

// NewScheduler creates a Scheduler with an empty ledger.
func NewScheduler(policy Policy) *Scheduler {
	return &Scheduler{policy: policy, ledger: NewLedger()}
}

// Tick decides which (event, interval) pairs cross their firing window
// for the first time and returns the resulting requests. Per-event
// failures are contained: one unresolvable event never prevents
// evaluation of the others, and never poisons the ledger.
func (s *Scheduler) Tick(events []model.Event, now time.Time) []model.Request {
	requests := make([]model.Request, 0)

	for _, ev := range events {
		if ev.Declined() {
			continue
		}

		minutes, ok := s.minutesUntilStart(ev, now)
		if !ok {
			continue
		}

		// URL opening is decided independently of interval notifications.
		if req, fire := s.checkURLOpen(ev, minutes, now); fire {
			requests = append(requests, req)
		}

		// Early exit: far-future events cannot match any interval window.
		if minutes > float64(s.policy.maxInterval())+1 {
			continue
		}

		for _, interval := range s.policy.Intervals {
			if req, fire := s.checkInterval(ev, interval, minutes, now); fire {
				requests = append(requests, req)
			}
		}
	}

	// Bound the ledger across a long-running process.
	s.ledger.Purge(now)

	return requests
}

// minutesUntilStart resolves the effective start of an event relative
// to now. The second return is false when the event is not actionable
// this tick.
func (s *Scheduler) minutesUntilStart(ev model.Event, now time.Time) (float64, bool) {
	// A modified occurrence's start is authoritative; so is any start
	// still in the future.
	if ev.ModifiedOccurrence || ev.Start.After(now) {
		return timeutil.MinutesUntil(ev.Start, now), true
	}

	// More than a day in the past: likely a stale recurring-series
	// instance; try to recover today's or tomorrow's occurrence.
	if now.Sub(ev.Start) > staleRecoveryCutoff {
		return s.recoverOccurrence(ev, now)
	}

	// Recent past but not modified and not recovering: ambiguous, do
	// not renotify.
	return 0, false
}

// recoverOccurrence reconstructs today's and tomorrow's occurrence of a
// stale recurring instance by combining the current civil date in the
// event's own timezone with the event's original time-of-day.
func (s *Scheduler) recoverOccurrence(ev model.Event, now time.Time) (float64, bool) {
	loc := ev.Start.Location()
	if loc == nil {
		appLog.Warn("event has no timezone identity, skipping recovery", "event_id", ev.ID)
		return 0, false
	}

	nowThere := now.In(loc)
	year, month, day := nowThere.Date()

	today := timeutil.At(year, month, day, ev.Start, loc)
	tomorrow := timeutil.At(year, month, day+1, ev.Start, loc)

	if today.After(now) {
		minutes := timeutil.MinutesUntil(today, now)
		appLog.Debug("recovered stale event to today's occurrence",
			"event_id", ev.ID, "minutes_until", fmt.Sprintf("%.2f", minutes))
		return minutes, true
	}

	if tomorrow.After(now) {
		minutes := timeutil.MinutesUntil(tomorrow, now)
		if minutes <= float64(s.policy.maxInterval())+tomorrowBuffer {
			appLog.Debug("recovered stale event to tomorrow's occurrence",
				"event_id", ev.ID, "minutes_until", fmt.Sprintf("%.2f", minutes))
			return minutes, true
		}
	}

	// Neither occurrence is actionable this tick.
	return 0, false
}

func (s *Scheduler) checkInterval(ev model.Event, interval int, minutes float64, now time.Time) (model.Request, bool) {
	if minutes < float64(interval)-intervalWindow || minutes > float64(interval)+intervalWindow {
		return model.Request{}, false
	}
	key := intervalKey(ev.ID, interval)
	if s.ledger.Has(key) {
		return model.Request{}, false
	}
	s.ledger.Record(key, now)

	appLog.Info("sending notification",
		"event_id", ev.ID, "title", ev.Title, "lead_minutes", interval)

	return model.Request{
		Kind:        model.RequestNotify,
		EventID:     ev.ID,
		Title:       notificationTitle(interval),
		Body:        notificationBody(ev),
		LeadMinutes: interval,
		Sound:       s.policy.Sound,
	}, true
}

func (s *Scheduler) checkURLOpen(ev model.Event, minutes float64, now time.Time) (model.Request, bool) {
	if !s.policy.AutoOpenURLs || !ev.HasURLLocation() {
		return model.Request{}, false
	}
	if minutes < urlOpenMin || minutes > urlOpenMax {
		return model.Request{}, false
	}
	key := urlOpenedKey(ev.ID)
	if s.ledger.Has(key) {
		return model.Request{}, false
	}
	s.ledger.Record(key, now)

	appLog.Info("opening event URL",
		"event_id", ev.ID, "title", ev.Title, "minutes_until", fmt.Sprintf("%.2f", minutes))

	return model.Request{
		Kind:    model.RequestOpenURL,
		EventID: ev.ID,
		Title:   ev.Title,
		URL:     ev.URL(),
	}, true
}

func notificationTitle(minutes int) string {
	if minutes == 1 {
		return "Meeting in 1 minute"
	}
	return fmt.Sprintf("Meeting in %d minutes", minutes)
}

func notificationBody(ev model.Event) string {
	body := ev.Title
	if ev.Location != "" {
		body += "\nLocation: " + ev.Location
	}
	return body
}
