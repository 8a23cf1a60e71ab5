package gcp

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvInt reads an integer environment variable. Unparseable values fall
// back to the default with a warning.
func GetEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Ignoring invalid integer environment variable.", "key", key, "value", value)
		return fallback
	}
	return n
}

// GetEnvDuration reads a time.ParseDuration value such as "30s".
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("Ignoring invalid duration environment variable.", "key", key, "value", value)
		return fallback
	}
	return d
}
