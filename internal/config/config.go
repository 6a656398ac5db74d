// Package config provides configuration management for the Cutroom Agent.
// Configuration is loaded from environment variables with sensible defaults.
// A .env file next to the working directory is loaded first, if present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort     = 8971
	DefaultLogLevel = "info"
	DefaultDataDir  = ".cutroom"

	// Environment variable names
	EnvPort     = "CUTROOM_PORT"
	EnvLogLevel = "CUTROOM_LOG_LEVEL"
	EnvDataDir  = "CUTROOM_DATA_DIR"
	EnvHeadless = "CUTROOM_HEADLESS"

	// Render service environment variable names
	EnvRenderBaseURL      = "CUTROOM_RENDER_BASE_URL"
	EnvRenderToken        = "CUTROOM_RENDER_TOKEN"
	EnvRenderPollInterval = "CUTROOM_RENDER_POLL_INTERVAL_MS"

	// Style presets file name, resolved under the data directory
	EnvPresetsPath = "CUTROOM_PRESETS_PATH"

	// Database filename
	DBFilename = "cutroom.db"

	// Render defaults
	DefaultRenderPollIntervalMs = 1500
	DefaultRenderTimeout        = 60 // seconds, per request
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ThumbsDir() string
	Headless() bool
	RenderBaseURL() string
	RenderToken() string
	RenderPollInterval() time.Duration
	PresetsPath() string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	headless bool

	renderBaseURL      string
	renderToken        string
	renderPollInterval time.Duration

	presetsPath string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	// Overrides from a local .env are opt-in convenience for development;
	// real environment variables win.
	_ = godotenv.Load()

	cfg := &EnvConfig{
		port:               DefaultPort,
		logLevel:           DefaultLogLevel,
		dataDir:            defaultDataDir(),
		renderPollInterval: DefaultRenderPollIntervalMs * time.Millisecond,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if h := os.Getenv(EnvHeadless); h == "1" || h == "true" {
		cfg.headless = true
	}

	cfg.renderBaseURL = os.Getenv(EnvRenderBaseURL)
	cfg.renderToken = os.Getenv(EnvRenderToken)

	if pi := os.Getenv(EnvRenderPollInterval); pi != "" {
		ms, err := strconv.Atoi(pi)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid %s: must be a positive integer of milliseconds", EnvRenderPollInterval)
		}
		cfg.renderPollInterval = time.Duration(ms) * time.Millisecond
	}

	cfg.presetsPath = os.Getenv(EnvPresetsPath)

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ThumbsDir returns the directory where generated thumbnails are written
func (c *EnvConfig) ThumbsDir() string {
	return filepath.Join(c.dataDir, "thumbs")
}

// Headless reports whether the system tray should be skipped
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// RenderBaseURL returns the base URL of the remote render service
func (c *EnvConfig) RenderBaseURL() string {
	return c.renderBaseURL
}

// RenderToken returns the bearer token for the render service
func (c *EnvConfig) RenderToken() string {
	return c.renderToken
}

// RenderPollInterval returns the interval between export progress polls
func (c *EnvConfig) RenderPollInterval() time.Duration {
	return c.renderPollInterval
}

// PresetsPath returns the style presets file path. Empty means built-in
// presets only.
func (c *EnvConfig) PresetsPath() string {
	if c.presetsPath != "" {
		return c.presetsPath
	}
	p := filepath.Join(c.dataDir, "presets.yaml")
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
