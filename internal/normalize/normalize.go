// Package normalize turns raw fetched occurrences into the clean,
// stale-filtered, time-sorted event set the notification scheduler
// runs against.
package normalize

import (
	"sort"
	"strings"
	"time"

	"github.com/samber/mo"

	appLog "calnotify/internal/log"
	"calnotify/internal/model"
	"calnotify/internal/timeutil"
)

// staleAfter is how far in the past a resolved start may lie before the
// occurrence is treated as protocol-expansion noise and dropped. A
// single fetch can return both a genuinely past instance and future
// recurrences of the same series; only instances within the last day
// are plausible current data.
const staleAfter = 24 * time.Hour

// Normalizer resolves raw occurrences into events for one account.
type Normalizer struct {
	// accountEmail is the identity whose attendee record decides the
	// declined status. Matched case-insensitively.
	accountEmail string
}

// New creates a Normalizer for the given account identity. An empty
// identity disables declined-status derivation.
func New(accountEmail string) *Normalizer {
	return &Normalizer{accountEmail: accountEmail}
}

// Normalize produces the de-duplicated, stale-filtered, ascending-start
// event set for one fetch cycle.
//
// Per-record failures (missing start) are logged and skipped; they
// never abort the whole normalization. Empty input yields empty output.
func (n *Normalizer) Normalize(raw []model.RawOccurrence, referenceTime time.Time) []model.Event {
	events := make([]model.Event, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	staleCutoff := referenceTime.Add(-staleAfter)

	for _, occ := range raw {
		if occ.Start.IsZero() {
			appLog.Warn("occurrence has no start time, skipping", "uid", occ.UID)
			continue
		}

		ev := n.resolve(occ, raw)

		// Staleness filter: anything resolved to more than a day before
		// the reference time is noise from the recurrence expansion.
		if ev.Start.Before(staleCutoff) {
			continue
		}

		// First record wins; later duplicates of the same id are dropped.
		if seen[ev.ID] {
			continue
		}
		seen[ev.ID] = true

		events = append(events, ev)
	}

	// Stable sort keeps fetch order for equal start times.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})

	return events
}

// resolve applies timezone normalization, override resolution and
// declined-status derivation to a single occurrence.
func (n *Normalizer) resolve(occ model.RawOccurrence, all []model.RawOccurrence) model.Event {
	start := occ.Start
	end := occ.End

	// A zone-less source value is pinned to UTC; zone-aware values keep
	// their original zone identity for later civil-time arithmetic.
	if occ.Floating {
		start = timeutil.SameWallClock(start, time.UTC)
		if !end.IsZero() {
			end = timeutil.SameWallClock(end, time.UTC)
		}
	}

	ev := model.Event{
		ID:          occ.UID,
		Title:       occ.Summary,
		Location:    occ.Location,
		Description: occ.Description,
		Start:       start,
		End:         end,
	}
	if occ.InstanceKey != "" {
		ev.ID = occ.InstanceKey
	}

	if occ.RecurrenceID != nil {
		// Single modified instance of a recurring series: its start is
		// authoritative, and the original series duration is preserved
		// when a sibling record still reveals it.
		ev.ModifiedOccurrence = true
		ev.ID = occ.UID + "/" + occ.RecurrenceID.UTC().Format(time.RFC3339)

		if dur, ok := siblingDuration(occ.UID, all); ok {
			ev.End = ev.Start.Add(dur)
		}
	}

	// End defaults to start + 1 hour when the source had none.
	if ev.End.IsZero() || !ev.End.After(ev.Start) {
		ev.End = ev.Start.Add(time.Hour)
	}

	if n.accountEmail != "" {
		for _, a := range occ.Attendees {
			if strings.EqualFold(a.Email, n.accountEmail) {
				ev.Participation = mo.Some(a.Status)
				break
			}
		}
	}

	return ev
}

// siblingDuration finds the original duration of a recurring series
// from an un-overridden sibling record with the same UID.
func siblingDuration(uid string, all []model.RawOccurrence) (time.Duration, bool) {
	for _, sib := range all {
		if sib.UID != uid || sib.RecurrenceID != nil {
			continue
		}
		if sib.Start.IsZero() || sib.End.IsZero() || !sib.End.After(sib.Start) {
			continue
		}
		return sib.End.Sub(sib.Start), true
	}
	return 0, false
}
