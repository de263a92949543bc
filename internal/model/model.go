package model

import (
	"strings"
	"time"

	"github.com/samber/mo"
)

// ParticipationStatus mirrors the iCalendar PARTSTAT values we care
// about for the configured account.
type ParticipationStatus string

const (
	StatusNeedsAction ParticipationStatus = "NEEDS-ACTION"
	StatusAccepted    ParticipationStatus = "ACCEPTED"
	StatusDeclined    ParticipationStatus = "DECLINED"
	StatusTentative   ParticipationStatus = "TENTATIVE"
	StatusDelegated   ParticipationStatus = "DELEGATED"
)

// Attendee is one ATTENDEE record attached to a raw occurrence.
type Attendee struct {
	Email  string
	Status ParticipationStatus
}

// RawOccurrence is one concrete occurrence as produced by the CalDAV
// fetch layer, before normalization. Recurring series that the server
// (or our own expander) has expanded yield one RawOccurrence per
// instance, each with its own InstanceKey; a single modified instance
// of a series arrives as its own record with RecurrenceID set.
type RawOccurrence struct {
	UID string // series UID

	// InstanceKey uniquely identifies a single expanded instance of a
	// recurring series. Empty for non-recurring events and overrides.
	InstanceKey string

	// RecurrenceID, when non-nil, marks this record as an override of
	// the series instance that originally started at that time.
	RecurrenceID *time.Time

	Summary     string
	Description string
	Location    string

	// Start / End keep the event's own zone identity.
	Start time.Time
	End   time.Time

	// Floating is true when DTSTART carried neither a TZID nor a UTC
	// suffix; the normalizer reinterprets such wall-clock values as UTC.
	Floating bool

	Attendees []Attendee
}

// Event is a normalized calendar event, the unit the notification
// scheduler and the status API operate on.
type Event struct {
	// ID is unique within one normalized snapshot. Modified instances
	// of a recurring series get a derived id of the form
	// "<uid>/<recurrence-id>".
	ID string

	Title       string
	Location    string
	Description string

	// Start / End are absolute instants that still carry the event's
	// original zone identity; occurrence recovery depends on being able
	// to reconstruct wall-clock time in that zone.
	Start time.Time
	End   time.Time

	// ModifiedOccurrence is true for a single overridden instance of a
	// recurring series. Its Start/End are authoritative and never
	// subject to stale-occurrence recovery.
	ModifiedOccurrence bool

	// Participation is the configured account's own PARTSTAT, when an
	// attendee record matched the account email.
	Participation mo.Option[ParticipationStatus]
}

// Declined reports whether the configured account declined this event.
func (e Event) Declined() bool {
	st, ok := e.Participation.Get()
	return ok && st == StatusDeclined
}

// HasURLLocation reports whether the event location looks like a link.
func (e Event) HasURLLocation() bool {
	loc := strings.ToLower(strings.TrimSpace(e.Location))
	return strings.HasPrefix(loc, "http://") ||
		strings.HasPrefix(loc, "https://") ||
		strings.HasPrefix(loc, "www.")
}

// URL returns the location as an openable URL, or "" if the location
// is not URL-shaped. Bare "www." locations get an https scheme.
func (e Event) URL() string {
	if !e.HasURLLocation() {
		return ""
	}
	loc := strings.TrimSpace(e.Location)
	if strings.HasPrefix(strings.ToLower(loc), "www.") {
		return "https://" + loc
	}
	return loc
}

// RequestKind distinguishes the two actions a scheduler tick can emit.
type RequestKind string

const (
	RequestNotify  RequestKind = "notify"
	RequestOpenURL RequestKind = "open-url"
)

// Request is one action decided by a scheduler tick, handed to the
// external notifier / URL-opener sinks. Delivery success does not feed
// back into scheduling state.
type Request struct {
	Kind    RequestKind
	EventID string

	// Notify fields.
	Title       string
	Body        string
	LeadMinutes int
	Sound       bool

	// OpenURL field.
	URL string
}
