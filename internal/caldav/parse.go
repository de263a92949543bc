package caldav

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "calnotify/internal/log"
	"calnotify/internal/model"
)

// parsedEvent is one VEVENT as read from a calendar-data payload.
// Recurring masters keep their raw RRULE/EXDATE here; expansion into
// concrete occurrences happens in expand.go.
type parsedEvent struct {
	UID string

	Summary     string
	Description string
	Location    string

	Start    time.Time
	End      time.Time
	Floating bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present) in event's own timezone
	IsOverride bool       // true if this VEVENT overrides a recurring instance

	Attendees []model.Attendee
}

// parseCalendarData parses a single iCalendar payload into parsedEvents.
//
//   - It relies on the underlying library's VTIMEZONE/TZID handling to
//     construct proper time.Time values (with Location set).
//   - Floating (zone-less) DTSTART values are detected so the
//     normalizer can pin them to UTC.
//   - RRULE/EXDATE/RECURRENCE-ID are recorded but not expanded here.
func parseCalendarData(body []byte) ([]parsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty calendar-data body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]parsedEvent, 0)

	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Warn("vevent parse failed, skipping", "err", perr)
			continue
		}
		events = append(events, ev)
	}

	return events, nil
}

func parseVEvent(ve *ical.VEvent) (parsedEvent, error) {
	var out parsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	// DTSTART / DTEND. The library's helpers resolve TZID into a proper
	// time.Location; date-only values are handled via the all-day variants.
	if start, err := ve.GetStartAt(); err == nil {
		out.Start = start
	} else if start, err := ve.GetAllDayStartAt(); err == nil {
		out.Start = start
		out.Floating = true
	}
	if end, err := ve.GetEndAt(); err == nil {
		out.End = end
	} else if end, err := ve.GetAllDayEndAt(); err == nil {
		out.End = end
	}

	// A DTSTART with neither a TZID parameter nor a trailing Z is a
	// floating local time; the normalizer pins those to UTC.
	if dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart); dtStartProp != nil {
		hasTZID := false
		if params := dtStartProp.ICalParameters; params != nil {
			if tzs, ok := params["TZID"]; ok && len(tzs) > 0 {
				hasTZID = true
			}
		}
		if !hasTZID && !strings.HasSuffix(dtStartProp.Value, "Z") {
			out.Floating = true
		}
	}

	// RRULE: raw string only; expansion is done in expand.go.
	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE (can appear multiple times, each with a comma list).
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		tzid := firstParam(p.ICalParameters, "TZID")
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICalTime(part, tzid); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	// RECURRENCE-ID marks this VEVENT as an override of one instance.
	if ridProp := ve.GetProperty(ical.ComponentPropertyRecurrenceId); ridProp != nil {
		tzid := firstParam(ridProp.ICalParameters, "TZID")
		if t, err := parseICalTime(ridProp.Value, tzid); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	for _, a := range ve.Attendees() {
		out.Attendees = append(out.Attendees, model.Attendee{
			Email:  a.Email(),
			Status: model.ParticipationStatus(a.ParticipationStatus()),
		})
	}

	return out, nil
}

func firstParam(params map[string][]string, key string) string {
	if params == nil {
		return ""
	}
	if vs, ok := params[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// parseICalTime parses an iCalendar date/date-time value, honoring an
// optional TZID. Zone-less values without a TZID are read as UTC.
func parseICalTime(v, tzid string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	loc := time.UTC
	if tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}

	// Date-only, e.g., 20250101
	return time.ParseInLocation("20060102", v, loc)
}
