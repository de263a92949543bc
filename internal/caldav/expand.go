package caldav

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "calnotify/internal/log"
	"calnotify/internal/model"
)

const maxOccurrencesPerEvent = 1000

// toRawOccurrences turns parsed VEVENTs into concrete raw occurrences
// within [rangeStart, rangeEnd].
//
// Servers that honor the expand request in our REPORT already return
// one VEVENT per instance; those flow through unchanged. Masters that
// still carry an RRULE are expanded locally:
//
//   - RRULE-based recurrence (DAILY/WEEKLY/MONTHLY/YEARLY, etc.)
//   - EXDATE for exception removal
//   - instances shadowed by a RECURRENCE-ID override are dropped here;
//     the override record itself flows through as its own occurrence
//     and is resolved by the normalizer.
func toRawOccurrences(events []parsedEvent, rangeStart, rangeEnd time.Time) []model.RawOccurrence {
	// Collect override recurrence ids per UID so expansion can skip the
	// shadowed instances.
	overriddenByUID := make(map[string][]time.Time)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overriddenByUID[ev.UID] = append(overriddenByUID[ev.UID], *ev.Recurrence)
		}
	}

	out := make([]model.RawOccurrence, 0, len(events))

	for _, ev := range events {
		if ev.RawRRule == "" || ev.IsOverride {
			out = append(out, rawFromParsed(ev, ev.Start, ev.End, ""))
			continue
		}
		out = append(out, expandMaster(ev, overriddenByUID[ev.UID], rangeStart, rangeEnd)...)
	}

	return out
}

// expandMaster expands one recurring master into per-instance raw
// occurrences, each with a unique instance key.
func expandMaster(ev parsedEvent, overridden []time.Time, rangeStart, rangeEnd time.Time) []model.RawOccurrence {
	out := make([]model.RawOccurrence, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("failed to parse RRULE, keeping master as-is", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return append(out, rawFromParsed(ev, ev.Start, ev.End, ""))
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)

	// Apply EXDATEs, aligned with the event's own zone.
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Between() operates in the event's original location.
	occTimes := set.Between(rangeStart.In(ev.Start.Location()), rangeEnd.In(ev.Start.Location()), true)
	if len(occTimes) > maxOccurrencesPerEvent {
		occTimes = occTimes[:maxOccurrencesPerEvent]
		appLog.Warn("recurrence expansion truncated", "uid", ev.UID, "cap", maxOccurrencesPerEvent)
	}

	dur := ev.End.Sub(ev.Start)

	for _, occStart := range occTimes {
		if isOverridden(occStart, overridden) {
			continue
		}
		var occEnd time.Time
		if !ev.End.IsZero() {
			// Preserve the series duration.
			occEnd = occStart.Add(dur)
		}
		key := ev.UID + "/" + occStart.UTC().Format(time.RFC3339)
		out = append(out, rawFromParsed(ev, occStart, occEnd, key))
	}

	return out
}

func isOverridden(start time.Time, overridden []time.Time) bool {
	for _, rid := range overridden {
		if rid.Equal(start) {
			return true
		}
	}
	return false
}

func rawFromParsed(ev parsedEvent, start, end time.Time, instanceKey string) model.RawOccurrence {
	return model.RawOccurrence{
		UID:          ev.UID,
		InstanceKey:  instanceKey,
		RecurrenceID: ev.Recurrence,
		Summary:      ev.Summary,
		Description:  ev.Description,
		Location:     ev.Location,
		Start:        start,
		End:          end,
		Floating:     ev.Floating,
		Attendees:    ev.Attendees,
	}
}
