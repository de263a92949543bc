package notify

import (
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calnotify/internal/model"
)

func testPolicy() Policy {
	return Policy{
		Intervals:    []int{1, 5, 10},
		Sound:        false,
		AutoOpenURLs: true,
	}
}

func futureEvent(id string, now time.Time, in time.Duration) model.Event {
	start := now.Add(in)
	return model.Event{
		ID:    id,
		Title: "Team sync",
		Start: start,
		End:   start.Add(time.Hour),
	}
}

func notifications(reqs []model.Request) []model.Request {
	out := make([]model.Request, 0, len(reqs))
	for _, r := range reqs {
		if r.Kind == model.RequestNotify {
			out = append(out, r)
		}
	}
	return out
}

func TestTickFiresInsideIntervalWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(testPolicy())

	// 10.4 minutes out: inside the [9.5, 10.5] window for interval 10.
	reqs := s.Tick([]model.Event{futureEvent("ev", now, 10*time.Minute+24*time.Second)}, now)

	got := notifications(reqs)
	require.Len(t, got, 1)
	assert.Equal(t, 10, got[0].LeadMinutes)
	assert.Equal(t, "ev", got[0].EventID)
	assert.Equal(t, "Meeting in 10 minutes", got[0].Title)
}

func TestTickDoesNotFireOutsideIntervalWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(testPolicy())

	// 10.6 minutes out: past the upper edge of the interval-10 window.
	reqs := s.Tick([]model.Event{futureEvent("ev", now, 10*time.Minute+36*time.Second)}, now)

	assert.Empty(t, notifications(reqs))
}

func TestTickIsIdempotentPerIntervalPair(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(testPolicy())
	events := []model.Event{futureEvent("ev", now, 5*time.Minute)}

	first := s.Tick(events, now)
	require.Len(t, notifications(first), 1)

	// Same snapshot, same now: the pair already fired.
	second := s.Tick(events, now)
	assert.Empty(t, notifications(second))
}

func TestTickSingularMinuteTitle(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(Policy{Intervals: []int{1}})

	reqs := s.Tick([]model.Event{futureEvent("ev", now, time.Minute)}, now)

	got := notifications(reqs)
	require.Len(t, got, 1)
	assert.Equal(t, "Meeting in 1 minute", got[0].Title)
}

func TestTickSkipsDeclinedEvents(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(testPolicy())

	ev := futureEvent("declined", now, 5*time.Minute)
	ev.Participation = mo.Some(model.StatusDeclined)

	assert.Empty(t, s.Tick([]model.Event{ev}, now))
}

func TestTickSkipsRecentPastUnmodifiedEvent(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(testPolicy())

	// Started 2 hours ago, within the last day, not a modified
	// occurrence: ambiguous, never renotified.
	ev := futureEvent("recent-past", now, -2*time.Hour)

	assert.Empty(t, s.Tick([]model.Event{ev}, now))
}

func TestTickModifiedOccurrenceStartIsAuthoritative(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(testPolicy())

	ev := futureEvent("moved", now, 5*time.Minute)
	ev.ModifiedOccurrence = true

	got := notifications(s.Tick([]model.Event{ev}, now))
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].LeadMinutes)
}

func TestRecoverySkipsWhenTomorrowExceedsBuffer(t *testing.T) {
	loc := time.FixedZone("TEST", 2*60*60)
	// Original civil time 12:10, now 14:00 the same day: today's
	// occurrence is 1h50m past, tomorrow's is ~22h10m away, far beyond
	// max(intervals)+60 = 70 minutes.
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, loc)
	stale := time.Date(2025, 2, 1, 12, 10, 0, 0, loc)

	s := NewScheduler(testPolicy())
	ev := model.Event{ID: "stale", Title: "Daily", Start: stale, End: stale.Add(time.Hour)}

	assert.Empty(t, s.Tick([]model.Event{ev}, now))
}

func TestRecoverySkipsLateEveningOutsideBuffer(t *testing.T) {
	loc := time.FixedZone("TEST", 2*60*60)
	// Now 23:30; tomorrow's 12:10 occurrence is ~12h40m away, still
	// beyond the 70-minute buffer.
	now := time.Date(2025, 3, 10, 23, 30, 0, 0, loc)
	stale := time.Date(2025, 2, 1, 12, 10, 0, 0, loc)

	s := NewScheduler(testPolicy())
	ev := model.Event{ID: "stale", Title: "Daily", Start: stale, End: stale.Add(time.Hour)}

	assert.Empty(t, s.Tick([]model.Event{ev}, now))
}

func TestRecoveryUsesTodayOccurrenceDirectly(t *testing.T) {
	loc := time.FixedZone("TEST", 2*60*60)
	// Original civil time 23:55, now 23:50: today's reconstructed
	// occurrence is 5 minutes out and is used directly.
	now := time.Date(2025, 3, 10, 23, 50, 0, 0, loc)
	stale := time.Date(2025, 2, 1, 23, 55, 0, 0, loc)

	s := NewScheduler(testPolicy())
	ev := model.Event{ID: "late-daily", Title: "Late daily", Start: stale, End: stale.Add(time.Hour)}

	got := notifications(s.Tick([]model.Event{ev}, now))
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].LeadMinutes)
}

func TestRecoveryUsesTomorrowWithinBuffer(t *testing.T) {
	loc := time.FixedZone("TEST", 2*60*60)
	// Original civil time 00:04, now 23:59: today's 00:04 is long past,
	// tomorrow's is 5 minutes away and within max(intervals)+60.
	now := time.Date(2025, 3, 10, 23, 59, 0, 0, loc)
	stale := time.Date(2025, 2, 1, 0, 4, 0, 0, loc)

	s := NewScheduler(testPolicy())
	ev := model.Event{ID: "past-midnight", Title: "Midnight sync", Start: stale, End: stale.Add(time.Hour)}

	got := notifications(s.Tick([]model.Event{ev}, now))
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].LeadMinutes)
}

func TestRecoveryReconstructsInEventZoneNotLocal(t *testing.T) {
	// Event zone is UTC+10; reconstruct today's occurrence in that
	// zone, not in the zone `now` happens to be expressed in.
	evZone := time.FixedZone("EVT", 10*60*60)
	stale := time.Date(2025, 2, 1, 9, 0, 0, 0, evZone) // 09:00 in UTC+10

	// Now: 08:55 in UTC+10, expressed in UTC (22:55 previous day).
	now := time.Date(2025, 3, 9, 22, 55, 0, 0, time.UTC)

	s := NewScheduler(testPolicy())
	ev := model.Event{ID: "far-zone", Title: "APAC standup", Start: stale, End: stale.Add(time.Hour)}

	got := notifications(s.Tick([]model.Event{ev}, now))
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].LeadMinutes)
}

func TestURLOpenWindowAndDedup(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(testPolicy())

	ev := futureEvent("call", now, time.Minute)
	ev.Location = "https://meet.example.com/room/42"

	reqs := s.Tick([]model.Event{ev}, now)

	var opens []model.Request
	for _, r := range reqs {
		if r.Kind == model.RequestOpenURL {
			opens = append(opens, r)
		}
	}
	require.Len(t, opens, 1)
	assert.Equal(t, "https://meet.example.com/room/42", opens[0].URL)

	// The 1-minute notification fires alongside, independently.
	require.Len(t, notifications(reqs), 1)

	// Second tick: URL already opened.
	again := s.Tick([]model.Event{ev}, now)
	for _, r := range again {
		assert.NotEqual(t, model.RequestOpenURL, r.Kind)
	}
}

func TestURLOpenRespectsWindowEdges(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		name string
		in   time.Duration
		want bool
	}{
		{"below lower edge", 20 * time.Second, false},
		{"at lower edge", 30 * time.Second, true},
		{"upper side of asymmetric window", 78 * time.Second, true},
		{"past upper edge", 90 * time.Second, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := NewScheduler(testPolicy())
			ev := futureEvent("call", now, tc.in)
			ev.Location = "www.example.com/meet"

			opened := false
			for _, r := range s.Tick([]model.Event{ev}, now) {
				if r.Kind == model.RequestOpenURL {
					opened = true
					assert.Equal(t, "https://www.example.com/meet", r.URL)
				}
			}
			assert.Equal(t, tc.want, opened)
		})
	}
}

func TestURLOpenDisabledByPolicy(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	policy := testPolicy()
	policy.AutoOpenURLs = false
	s := NewScheduler(policy)

	ev := futureEvent("call", now, time.Minute)
	ev.Location = "https://meet.example.com/room"

	for _, r := range s.Tick([]model.Event{ev}, now) {
		assert.NotEqual(t, model.RequestOpenURL, r.Kind)
	}
}

func TestTickPurgesOldLedgerEntries(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(testPolicy())

	s.ledger.Record(intervalKey("old", 5), now.Add(-25*time.Hour))
	s.ledger.Record(intervalKey("fresh", 5), now.Add(-23*time.Hour))

	s.Tick(nil, now)

	assert.False(t, s.ledger.Has(intervalKey("old", 5)))
	assert.True(t, s.ledger.Has(intervalKey("fresh", 5)))
}

func TestSoundFlagCarriedFromPolicy(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	policy := testPolicy()
	policy.Sound = true
	s := NewScheduler(policy)

	got := notifications(s.Tick([]model.Event{futureEvent("ev", now, 5*time.Minute)}, now))
	require.Len(t, got, 1)
	assert.True(t, got[0].Sound)
}
