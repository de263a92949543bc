package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// CalDAVConfig holds the calendar server connection settings.
type CalDAVConfig struct {
	// URL is the CalDAV calendar collection endpoint.
	URL string `yaml:"url" json:"url"`
	// Username / Password are HTTP basic auth credentials.
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	// Calendar optionally names a specific calendar; empty means the
	// collection at URL is used as-is.
	Calendar string `yaml:"calendar" json:"calendar"`
}

// SyncConfig controls the slow fetch loop.
type SyncConfig struct {
	// Refresh is a cron-style schedule for calendar re-fetch, in
	// robfig/cron syntax (e.g. "@every 5m" or "*/5 * * * *").
	Refresh string `yaml:"refresh" json:"refresh"`
	// WindowHours is how far ahead each fetch looks.
	WindowHours int `yaml:"window_hours" json:"window_hours"`
}

// NotificationConfig controls lead-time notifications.
type NotificationConfig struct {
	// IntervalsMinutes are the lead times, in minutes before event
	// start, at which a notification fires.
	IntervalsMinutes []int `yaml:"intervals_minutes" json:"intervals_minutes"`
	// SoundEnabled toggles per-notification sound playback.
	SoundEnabled bool `yaml:"sound_enabled" json:"sound_enabled"`
	// SoundsDir is the directory holding notification_<N>min.wav files.
	SoundsDir string `yaml:"sounds_dir" json:"sounds_dir"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the status API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	CalDAV CalDAVConfig `yaml:"caldav" json:"caldav"`

	// AccountEmail is the identity used to derive declined status from
	// attendee records. Matched case-insensitively.
	AccountEmail string `yaml:"account_email" json:"account_email"`

	Sync SyncConfig `yaml:"sync" json:"sync"`

	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// AutoOpenURLs opens URL-shaped event locations shortly before start.
	AutoOpenURLs bool `yaml:"auto_open_urls" json:"auto_open_urls"`

	// Listen is the HTTP listen address for the status API.
	Listen string `yaml:"listen" json:"listen"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// status endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		CalDAV: CalDAVConfig{},
		Sync: SyncConfig{
			Refresh:     "@every 5m",
			WindowHours: 24,
		},
		Notifications: NotificationConfig{
			IntervalsMinutes: []int{1, 5, 10},
			SoundEnabled:     true,
		},
		AutoOpenURLs: true,
		Listen:       "127.0.0.1:8099",
		BasicAuth:    nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Sync.Refresh == "" {
		c.Sync.Refresh = "@every 5m"
	}
	if c.Sync.WindowHours <= 0 {
		c.Sync.WindowHours = 24
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8099"
	}

	// Intervals: distinct positive values, ascending. Invalid or empty
	// lists fall back to the defaults.
	seen := make(map[int]bool)
	intervals := make([]int, 0, len(c.Notifications.IntervalsMinutes))
	for _, m := range c.Notifications.IntervalsMinutes {
		if m <= 0 || seen[m] {
			continue
		}
		seen[m] = true
		intervals = append(intervals, m)
	}
	if len(intervals) == 0 {
		intervals = []int{1, 5, 10}
	}
	sort.Ints(intervals)
	c.Notifications.IntervalsMinutes = intervals
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600 (it carries credentials).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".calnotify-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the
// package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
