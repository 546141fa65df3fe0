// Package config provides configuration management for hooktrail.
//
// Settings come from ~/.hooktrail/settings.json with HOOKTRAIL_* environment
// overrides. Components never read the environment themselves; they receive
// their configuration through constructors.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// Defaults for pipeline behavior.
const (
	DefaultWorkerPort      = 37719
	DefaultRateLimitMax    = 100
	DefaultRateLimitWindow = 60 // seconds
)

// Config holds every tunable the pipeline and worker use.
type Config struct {
	// HistoryRoot is where categorized records are written.
	HistoryRoot string
	// LogRoot holds the append-only security audit log.
	LogRoot string
	// StatePath is the SQLite database holding rate-limit counters shared
	// across short-lived hook processes.
	StatePath string
	// RulesPath optionally overrides the built-in classification rules.
	RulesPath string
	// AllowedTranscriptDirs are the only bases a transcript path may
	// resolve into.
	AllowedTranscriptDirs []string
	// RateLimitMax is the per-hook-name call budget per window.
	RateLimitMax int
	// RateLimitWindowSec is the sliding window length in seconds.
	RateLimitWindowSec int
	// WorkerPort is where hooktraild listens when running.
	WorkerPort int
}

var (
	cached   *Config
	cachedMu sync.Mutex
)

// DataDir returns the hooktrail data directory (~/.hooktrail).
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".hooktrail")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// Default returns the built-in configuration.
func Default() *Config {
	dataDir := DataDir()
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		HistoryRoot: filepath.Join(dataDir, "history"),
		LogRoot:     filepath.Join(dataDir, "logs"),
		StatePath:   filepath.Join(dataDir, "state.db"),
		RulesPath:   filepath.Join(dataDir, "rules.yaml"),
		AllowedTranscriptDirs: []string{
			filepath.Join(home, ".claude", "projects"),
			filepath.Join(home, ".config", "claude"),
		},
		RateLimitMax:       DefaultRateLimitMax,
		RateLimitWindowSec: DefaultRateLimitWindow,
		WorkerPort:         DefaultWorkerPort,
	}
}

// Load reads settings.json over the defaults and applies environment
// overrides. A missing or invalid settings file is not an error; defaults
// win.
func Load() (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(SettingsPath()); err == nil {
		var settings map[string]any
		if err := json.Unmarshal(data, &settings); err == nil {
			applySettings(cfg, settings)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

// Get returns the cached process configuration, loading it on first use.
func Get() *Config {
	cachedMu.Lock()
	defer cachedMu.Unlock()
	if cached == nil {
		cached, _ = Load()
	}
	return cached
}

// EnsureDataDir creates the data, history and log directories.
func EnsureDataDir() error {
	cfg := Get()
	for _, dir := range []string{DataDir(), cfg.HistoryRoot, cfg.LogRoot} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return err
		}
	}
	return nil
}

func applySettings(cfg *Config, settings map[string]any) {
	if s, ok := settings["HOOKTRAIL_HISTORY_ROOT"].(string); ok && s != "" {
		cfg.HistoryRoot = s
	}
	if s, ok := settings["HOOKTRAIL_LOG_ROOT"].(string); ok && s != "" {
		cfg.LogRoot = s
	}
	if s, ok := settings["HOOKTRAIL_STATE_PATH"].(string); ok && s != "" {
		cfg.StatePath = s
	}
	if s, ok := settings["HOOKTRAIL_RULES_PATH"].(string); ok && s != "" {
		cfg.RulesPath = s
	}
	if s, ok := settings["HOOKTRAIL_TRANSCRIPT_DIRS"].(string); ok && s != "" {
		cfg.AllowedTranscriptDirs = splitTrim(s)
	}
	if n, ok := settings["HOOKTRAIL_RATE_LIMIT_MAX"].(float64); ok && n > 0 {
		cfg.RateLimitMax = int(n)
	}
	if n, ok := settings["HOOKTRAIL_RATE_LIMIT_WINDOW"].(float64); ok && n > 0 {
		cfg.RateLimitWindowSec = int(n)
	}
	if n, ok := settings["HOOKTRAIL_WORKER_PORT"].(float64); ok && n > 0 {
		cfg.WorkerPort = int(n)
	}
}

func applyEnv(cfg *Config) {
	if s := os.Getenv("HOOKTRAIL_HISTORY_ROOT"); s != "" {
		cfg.HistoryRoot = s
	}
	if s := os.Getenv("HOOKTRAIL_LOG_ROOT"); s != "" {
		cfg.LogRoot = s
	}
	if s := os.Getenv("HOOKTRAIL_STATE_PATH"); s != "" {
		cfg.StatePath = s
	}
	if s := os.Getenv("HOOKTRAIL_RULES_PATH"); s != "" {
		cfg.RulesPath = s
	}
	if s := os.Getenv("HOOKTRAIL_TRANSCRIPT_DIRS"); s != "" {
		cfg.AllowedTranscriptDirs = splitTrim(s)
	}
	if n, err := strconv.Atoi(os.Getenv("HOOKTRAIL_RATE_LIMIT_MAX")); err == nil && n > 0 {
		cfg.RateLimitMax = n
	}
	if n, err := strconv.Atoi(os.Getenv("HOOKTRAIL_RATE_LIMIT_WINDOW")); err == nil && n > 0 {
		cfg.RateLimitWindowSec = n
	}
	if n, err := strconv.Atoi(os.Getenv("HOOKTRAIL_WORKER_PORT")); err == nil && n > 0 {
		cfg.WorkerPort = n
	}
}

// splitTrim splits a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
