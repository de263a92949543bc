package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAtCombinesDateAndTimeOfDayInZone(t *testing.T) {
	loc := time.FixedZone("TEST", 9*60*60)
	tod := time.Date(2020, 1, 1, 12, 10, 30, 0, time.UTC)

	got := At(2025, time.March, 10, tod, loc)

	assert.Equal(t, 2025, got.Year())
	assert.Equal(t, time.March, got.Month())
	assert.Equal(t, 10, got.Day())
	assert.Equal(t, 12, got.Hour())
	assert.Equal(t, 10, got.Minute())
	assert.Equal(t, 30, got.Second())
	assert.Equal(t, loc, got.Location())
}

func TestAtNormalizesDayOverflow(t *testing.T) {
	tod := time.Date(2020, 1, 1, 0, 30, 0, 0, time.UTC)

	// "Tomorrow" built as day+1 past the end of the month rolls over.
	got := At(2025, time.March, 32, tod, time.UTC)

	assert.Equal(t, time.April, got.Month())
	assert.Equal(t, 1, got.Day())
}

func TestSameWallClockKeepsFieldsChangesZone(t *testing.T) {
	loc := time.FixedZone("TEST", -5*60*60)
	in := time.Date(2025, 3, 10, 14, 30, 0, 0, loc)

	got := SameWallClock(in, time.UTC)

	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 14, got.Hour())
	assert.Equal(t, 30, got.Minute())
	assert.False(t, got.Equal(in))
}

func TestMinutesUntil(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.InDelta(t, 10.4, MinutesUntil(now.Add(10*time.Minute+24*time.Second), now), 1e-9)
	assert.InDelta(t, -5.0, MinutesUntil(now.Add(-5*time.Minute), now), 1e-9)
}
