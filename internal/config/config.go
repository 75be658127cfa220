// Package config loads runtime settings for the client and CLI.
//
// Values are layered: built-in defaults, then any .env files, then RUBIKA_*
// environment variables. Variables already set in the environment win over
// .env entries.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Session storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Environment variable names.
const (
	EnvSessionDir     = "RUBIKA_SESSION_DIR"
	EnvSessionBackend = "RUBIKA_SESSION_BACKEND"
	EnvEndpointCache  = "RUBIKA_ENDPOINT_CACHE"
	EnvBootstrapURL   = "RUBIKA_BOOTSTRAP_URL"
	EnvTimeout        = "RUBIKA_TIMEOUT"
	EnvRetries        = "RUBIKA_RETRIES"
	EnvLogLevel       = "RUBIKA_LOG_LEVEL"
	EnvLogFormat      = "RUBIKA_LOG_FORMAT"
)

// Config holds the resolved settings.
type Config struct {
	SessionDir     string
	SessionBackend string
	// EndpointCache is the endpoint cache file. Empty means
	// <SessionDir>/endpoints.json.
	EndpointCache string
	BootstrapURL  string
	Timeout       time.Duration
	Retries       int
	LogLevel      string
	LogFormat     string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		SessionDir:     ".rubika",
		SessionBackend: BackendFile,
		BootstrapURL:   "https://getdcmess.iranlms.ir/",
		Timeout:        30 * time.Second,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// EndpointCachePath returns the endpoint cache location.
func (c Config) EndpointCachePath() string {
	if c.EndpointCache != "" {
		return c.EndpointCache
	}
	return filepath.Join(c.SessionDir, "endpoints.json")
}

// Load resolves the configuration. envFiles default to ".env"; missing files
// are skipped.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	if v := os.Getenv(EnvSessionDir); v != "" {
		cfg.SessionDir = v
	}
	if v := os.Getenv(EnvSessionBackend); v != "" {
		cfg.SessionBackend = v
	}
	if v := os.Getenv(EnvEndpointCache); v != "" {
		cfg.EndpointCache = v
	}
	if v := os.Getenv(EnvBootstrapURL); v != "" {
		cfg.BootstrapURL = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		cfg.Timeout = d
	}
	if v := os.Getenv(EnvRetries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvRetries, err)
		}
		cfg.Retries = n
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.LogFormat = v
	}

	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch c.SessionBackend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("unknown session backend %q", c.SessionBackend)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", c.Retries)
	}
	return nil
}
