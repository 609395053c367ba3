package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr     = ":8080"
	defaultDBPath         = "benchkit.db"
	defaultWorkDir        = "benchkit-work"
	defaultExitOnError    = true
	defaultTimeoutSeconds = 180

	envListenAddr     = "BENCHKIT_LISTEN_ADDR"
	envDBPath         = "BENCHKIT_DB_PATH"
	envWorkDir        = "BENCHKIT_WORKDIR"
	envLogLevel       = "BENCHKIT_LOG_LEVEL"
	envExitOnError    = "BENCHKIT_EXIT_ON_ERROR"
	envDefaultTimeout = "BENCHKIT_DEFAULT_TIMEOUT_S"
)

// Config holds application configuration loaded from environment variables.
// Command-line flags override these values.
type Config struct {
	ListenAddr     string
	DBPath         string
	WorkDir        string
	LogLevel       slog.Level
	ExitOnError    bool
	DefaultTimeout time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// Malformed values fall back to the default.
func Load() Config {
	cfg := Config{
		ListenAddr:     defaultListenAddr,
		DBPath:         defaultDBPath,
		WorkDir:        defaultWorkDir,
		LogLevel:       slog.LevelInfo,
		ExitOnError:    defaultExitOnError,
		DefaultTimeout: defaultTimeoutSeconds * time.Second,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envWorkDir); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = ParseLogLevel(v)
	}
	if v := os.Getenv(envExitOnError); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ExitOnError = b
		}
	}
	if v := os.Getenv(envDefaultTimeout); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DefaultTimeout = time.Duration(n) * time.Second
		}
	}

	return cfg
}

// ParseLogLevel maps a level name to a slog level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
