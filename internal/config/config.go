package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the settings shared by the wayfinder client and server.
type Config struct {
	// ServerURL is the Flight server the client talks to.
	ServerURL string
	// Listen is the address wayfinderd binds.
	Listen       string
	ManifestPath string
	LogFile      string
	LogLevel     slog.Level
	// PrefetchTTL bounds how long a prefetched entry is trusted.
	PrefetchTTL time.Duration
	// PrefetchRate limits background prefetches per second.
	PrefetchRate  float64
	WatchManifest bool
}

const (
	defaultConfigPath   = "~/.config/wayfinder/config.toml"
	defaultServerURL    = "http://127.0.0.1:7878"
	defaultListen       = "127.0.0.1:7878"
	defaultManifestPath = "~/.config/wayfinder/routes.yaml"
	defaultLogFile      = "~/.local/share/wayfinder/wayfinder.log"
	defaultPrefetchTTL  = 30 * time.Second
	defaultPrefetchRate = 5
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		ServerURL:    defaultServerURL,
		Listen:       defaultListen,
		ManifestPath: mustExpand(defaultManifestPath),
		LogFile:      mustExpand(defaultLogFile),
		LogLevel:     slog.LevelInfo,
		PrefetchTTL:  defaultPrefetchTTL,
		PrefetchRate: defaultPrefetchRate,
	}
}

// Load locates and parses the config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		ServerURL     string   `toml:"server_url"`
		Listen        string   `toml:"listen"`
		Manifest      string   `toml:"manifest"`
		LogFile       string   `toml:"log_file"`
		LogLevel      string   `toml:"log_level"`
		PrefetchTTL   string   `toml:"prefetch_ttl"`
		PrefetchRate  *float64 `toml:"prefetch_rate"`
		WatchManifest bool     `toml:"watch_manifest"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.ServerURL); v != "" {
		cfg.ServerURL = v
	}
	if v := strings.TrimSpace(raw.Listen); v != "" {
		cfg.Listen = v
	}
	if v := strings.TrimSpace(raw.Manifest); v != "" {
		cfg.ManifestPath = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("parse log_level: %w", err)
		}
	}
	if v := strings.TrimSpace(raw.PrefetchTTL); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse prefetch_ttl: %w", err)
		}
		if ttl <= 0 {
			return Config{}, fmt.Errorf("prefetch_ttl must be positive, got %s", ttl)
		}
		cfg.PrefetchTTL = ttl
	}
	if raw.PrefetchRate != nil {
		if *raw.PrefetchRate <= 0 {
			return Config{}, fmt.Errorf("prefetch_rate must be positive, got %v", *raw.PrefetchRate)
		}
		cfg.PrefetchRate = *raw.PrefetchRate
	}
	cfg.WatchManifest = raw.WatchManifest

	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
