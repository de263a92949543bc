package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfigOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "@every 5m", cfg.Sync.Refresh)
	assert.Equal(t, 24, cfg.Sync.WindowHours)
	assert.Equal(t, []int{1, 5, 10}, cfg.Notifications.IntervalsMinutes)
	assert.True(t, cfg.AutoOpenURLs)

	// The file must exist with owner-only permissions (it carries
	// credentials).
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.CalDAV.URL = "https://cal.example.com/dav/user/personal/"
	cfg.CalDAV.Username = "user"
	cfg.AccountEmail = "user@example.com"
	cfg.Notifications.IntervalsMinutes = []int{15, 1}
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.CalDAV.URL, loaded.CalDAV.URL)
	assert.Equal(t, "user@example.com", loaded.AccountEmail)
	// Intervals come back sorted.
	assert.Equal(t, []int{1, 15}, loaded.Notifications.IntervalsMinutes)
}

func TestNormalizeIntervals(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   []int
		want []int
	}{
		{"sorted distinct positives kept", []int{10, 5, 1}, []int{1, 5, 10}},
		{"duplicates and non-positives dropped", []int{5, 5, 0, -3, 2}, []int{2, 5}},
		{"empty falls back to defaults", nil, []int{1, 5, 10}},
		{"all invalid falls back to defaults", []int{0, -1}, []int{1, 5, 10}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Notifications.IntervalsMinutes = tc.in
			cfg.Normalize()
			assert.Equal(t, tc.want, cfg.Notifications.IntervalsMinutes)
		})
	}
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	cfg := &Config{}
	cfg.Normalize()

	assert.Equal(t, "@every 5m", cfg.Sync.Refresh)
	assert.Equal(t, 24, cfg.Sync.WindowHours)
	assert.Equal(t, "127.0.0.1:8099", cfg.Listen)
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}
