package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calnotify/internal/config"
	"calnotify/internal/model"
)

type fakeFetcher struct {
	raw []model.RawOccurrence
	err error
}

func (f *fakeFetcher) FetchWindow(_ context.Context, _, _ time.Time) ([]model.RawOccurrence, error) {
	return f.raw, f.err
}

type recordingNotifier struct {
	requests []model.Request
}

func (r *recordingNotifier) Notify(req model.Request) error {
	r.requests = append(r.requests, req)
	return nil
}

type recordingOpener struct {
	urls []string
}

func (r *recordingOpener) Open(url string) error {
	r.urls = append(r.urls, url)
	return nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Normalize()
	return cfg
}

func TestSyncPublishesSnapshotAndChecksImmediately(t *testing.T) {
	start := time.Now().Add(5 * time.Minute)
	fetcher := &fakeFetcher{raw: []model.RawOccurrence{{
		UID:     "soon",
		Summary: "Starts soon",
		Start:   start,
		End:     start.Add(time.Hour),
	}}}
	notifier := &recordingNotifier{}

	a := New(testConfig(), fetcher, notifier, &recordingOpener{})
	require.NoError(t, a.Sync(context.Background()))

	snap := a.Store().Current()
	require.Len(t, snap.Events, 1)
	assert.Equal(t, "soon", snap.Events[0].ID)

	// The post-sync check fires the 5-minute notification right away.
	require.Len(t, notifier.requests, 1)
	assert.Equal(t, 5, notifier.requests[0].LeadMinutes)
}

func TestSyncFailureKeepsPreviousSnapshot(t *testing.T) {
	start := time.Now().Add(2 * time.Hour)
	fetcher := &fakeFetcher{raw: []model.RawOccurrence{{
		UID:   "kept",
		Start: start,
		End:   start.Add(time.Hour),
	}}}

	a := New(testConfig(), fetcher, &recordingNotifier{}, &recordingOpener{})
	require.NoError(t, a.Sync(context.Background()))
	require.Len(t, a.Store().Current().Events, 1)

	fetcher.err = errors.New("server unreachable")
	require.Error(t, a.Sync(context.Background()))

	// The stale-but-valid snapshot survives the failed fetch.
	assert.Len(t, a.Store().Current().Events, 1)
}

func TestTickDispatchesURLOpen(t *testing.T) {
	start := time.Now().Add(time.Minute)
	fetcher := &fakeFetcher{raw: []model.RawOccurrence{{
		UID:      "call",
		Summary:  "Video call",
		Location: "https://meet.example.com/xyz",
		Start:    start,
		End:      start.Add(time.Hour),
	}}}
	opener := &recordingOpener{}

	a := New(testConfig(), fetcher, &recordingNotifier{}, opener)
	require.NoError(t, a.Sync(context.Background()))

	require.Len(t, opener.urls, 1)
	assert.Equal(t, "https://meet.example.com/xyz", opener.urls[0])

	// A second tick must not reopen the URL.
	a.Tick(time.Now())
	assert.Len(t, opener.urls, 1)
}
