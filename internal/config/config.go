// Package config holds runtime configuration shared by the CLI and the
// HTTP server.
package config

import (
	"os"
	"runtime"
	"strconv"
)

// Config collects the knobs of one translator process.
type Config struct {
	Addr      string // server listen address
	LogLevel  string // debug, info, warn, error
	LogFormat string // text or json
	DBPath    string // conversion history database; empty disables history, ":memory:" for tests
	Workers   int    // batch worker pool size

	// S3 document source, used when a batch URI is s3://bucket/prefix.
	S3Region string
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		Workers:   runtime.NumCPU(),
	}
}

// FromEnv layers GOWL_* environment variables over the defaults. Flags
// bind on top of the returned values, so precedence is flag > env >
// default.
func FromEnv() Config {
	cfg := Default()
	if v := os.Getenv("GOWL_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("GOWL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GOWL_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("GOWL_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("GOWL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("GOWL_S3_REGION"); v != "" {
		cfg.S3Region = v
	}
	return cfg
}
