package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"calnotify/internal/app"
	"calnotify/internal/caldav"
	"calnotify/internal/config"
	appLog "calnotify/internal/log"
	"calnotify/internal/notify"
	"calnotify/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	appLog.Info("calnotify starting", "version", "0.1.0")

	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"caldav_url_set", conf.CalDAV.URL != "",
		"account_email", conf.AccountEmail,
		"refresh", conf.Sync.Refresh,
		"window_hours", conf.Sync.WindowHours,
		"intervals_minutes", conf.Notifications.IntervalsMinutes,
		"sound_enabled", conf.Notifications.SoundEnabled,
		"auto_open_urls", conf.AutoOpenURLs,
		"listen", conf.Listen,
		"once", flags.once,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	a := app.New(
		conf,
		caldav.NewClient(conf.CalDAV),
		&notify.DesktopNotifier{SoundsDir: conf.Notifications.SoundsDir},
		notify.BrowserOpener{},
	)

	if flags.once {
		if err := a.RunOnce(ctx); err != nil {
			appLog.Error("single-shot run failed", err)
			os.Exit(1)
		}
		appLog.Info("calnotify exiting")
		return
	}

	go func() {
		if err := web.StartServer(ctx, conf, a.Store()); err != nil {
			appLog.Error("HTTP server stopped", err)
			cancel()
		}
	}()

	if err := a.Run(ctx); err != nil && err != context.Canceled {
		appLog.Error("run loop stopped", err)
		os.Exit(1)
	}

	appLog.Info("calnotify exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", defaultConfigPath(), "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one sync+check cycle and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/calnotify/config.yaml"
	}
	return "config.yaml"
}
