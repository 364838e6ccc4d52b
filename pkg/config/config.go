package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds CLI configuration sourced from the environment. Command-line
// flags take precedence over these values.
type Config struct {
	LogLevel    string
	LogFormat   string
	Org         string
	DataDir     string
	ProfilesDir string
	Workers     int
	Timeout     time.Duration
}

// Load loads configuration from environment variables.
func Load() *Config {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "text"
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	// Zero means "use the built-in default"; the pipeline decides what that is.
	workers := 0
	if v := os.Getenv("GREENLIGHT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			workers = n
		}
	}

	var timeout time.Duration
	if v := os.Getenv("GREENLIGHT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			timeout = d
		}
	}

	return &Config{
		LogLevel:    logLevel,
		LogFormat:   logFormat,
		Org:         os.Getenv("GREENLIGHT_ORG"),
		DataDir:     dataDir,
		ProfilesDir: os.Getenv("GREENLIGHT_PROFILES_DIR"),
		Workers:     workers,
		Timeout:     timeout,
	}
}
