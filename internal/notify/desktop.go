package notify

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	appLog "calnotify/internal/log"
	"calnotify/internal/model"
)

// Notifier delivers a notification request to the desktop. Delivery
// failure is logged, never fed back into scheduling state: the
// contract is "attempted once", not "delivered".
type Notifier interface {
	Notify(req model.Request) error
}

// URLOpener opens a URL in the user's browser.
type URLOpener interface {
	Open(url string) error
}

// DesktopNotifier shows notifications through the platform's native
// command-line tooling (notify-send on Linux, osascript on macOS) and
// optionally plays a per-interval sound.
type DesktopNotifier struct {
	// SoundsDir holds notification_<N>min.wav files; empty disables
	// sound playback regardless of the request's Sound flag.
	SoundsDir string
}

func (d *DesktopNotifier) Notify(req model.Request) error {
	var err error
	switch runtime.GOOS {
	case "darwin":
		err = d.notifyMacOS(req.Title, req.Body)
	default:
		err = d.notifyFreedesktop(req.Title, req.Body)
	}
	if err != nil {
		return err
	}

	if req.Sound && d.SoundsDir != "" {
		d.playSound(req.LeadMinutes)
	}
	return nil
}

func (d *DesktopNotifier) notifyFreedesktop(title, body string) error {
	cmd := exec.Command("notify-send", "--app-name=calnotify", "--expire-time=10000", title, body)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify-send failed: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (d *DesktopNotifier) notifyMacOS(title, body string) error {
	// Quotes must be escaped for the AppleScript string literals.
	esc := func(s string) string { return strings.ReplaceAll(s, `"`, `\"`) }
	script := fmt.Sprintf(`display notification "%s" with title "%s"`, esc(body), esc(title))
	if out, err := exec.Command("osascript", "-e", script).CombinedOutput(); err != nil {
		return fmt.Errorf("osascript failed: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// playSound plays the wav matching the lead interval, best effort.
func (d *DesktopNotifier) playSound(leadMinutes int) {
	file := filepath.Join(d.SoundsDir, fmt.Sprintf("notification_%dmin.wav", leadMinutes))
	if _, err := os.Stat(file); err != nil {
		appLog.Debug("no sound file for interval", "file", file)
		return
	}

	player := "paplay"
	if runtime.GOOS == "darwin" {
		player = "afplay"
	}

	// Fire and forget; playback must not block the tick loop.
	cmd := exec.Command(player, file)
	if err := cmd.Start(); err != nil {
		appLog.Error("sound playback failed", err, "file", file)
		return
	}
	go func() { _ = cmd.Wait() }()
}

// BrowserOpener opens URLs via xdg-open / open.
type BrowserOpener struct{}

func (BrowserOpener) Open(url string) error {
	if url == "" {
		return errors.New("empty URL")
	}
	opener := "xdg-open"
	if runtime.GOOS == "darwin" {
		opener = "open"
	}
	if err := exec.Command(opener, url).Start(); err != nil {
		return fmt.Errorf("failed to open URL: %w", err)
	}
	return nil
}
