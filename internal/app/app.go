package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/five82/wayfinder/internal/config"
	"github.com/five82/wayfinder/internal/flight"
	"github.com/five82/wayfinder/internal/prefs"
	"github.com/five82/wayfinder/internal/router"
	"github.com/five82/wayfinder/internal/state"
	"github.com/five82/wayfinder/internal/ui"
)

// Options configure the wayfinder client.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/wayfinder/prefs.toml
	StartURL   string // overrides the start_url preference
	ServerURL  string // overrides server_url from the config
}

// Run boots the router against the configured server and drives the TUI
// until the context is cancelled or the user quits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if v := strings.TrimSpace(opts.ServerURL); v != "" {
		cfg.ServerURL = v
	}

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		return fmt.Errorf("load prefs: %w", err)
	}
	start := userPrefs.StartURL
	if v := strings.TrimSpace(opts.StartURL); v != "" {
		start = v
	}

	logger, closeLog, err := openLogger(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	client, err := flight.NewClient(cfg.ServerURL)
	if err != nil {
		return fmt.Errorf("init flight client: %w", err)
	}

	initial, err := Boot(ctx, client, start)
	if err != nil {
		return fmt.Errorf("boot %s: %w", start, err)
	}
	logger.Info("booted", "server", cfg.ServerURL, "href", initial.CanonicalURL)

	reducer := &router.Reducer{Fetcher: client, Logger: logger}
	store := state.NewStore(ctx, reducer, initial)

	prefetch := NewPrefetchWorker(store, client, cfg.PrefetchRate, cfg.PrefetchTTL, logger)
	prefetch.Start(ctx)

	return ui.Run(ui.Options{
		Context:   ctx,
		Router:    NewRouter(ctx, store, client, prefetch, logger),
		Store:     store,
		Config:    &cfg,
		ThemeName: userPrefs.Theme,
		PrefsPath: opts.PrefsPath,
	})
}

// openLogger writes JSON records to path, creating its directory. The TUI
// owns the terminal, so nothing is logged to stderr.
func openLogger(path string, level slog.Level) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewJSONHandler(io.Discard, nil)), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}))
	return logger, func() { _ = file.Close() }, nil
}
