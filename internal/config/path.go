// Package config loads and validates ledgersync settings.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// DefaultDir is where the config file and the SQLite database live when
// nothing else is configured.
func DefaultDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "ledgersync")
	}
	return ExpandPath("~/.config/ledgersync")
}

// DefaultDSN is the SQLite database path used when database.dsn is unset.
func DefaultDSN() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "ledgersync", "ledgersync.db")
	}
	return ExpandPath("~/.local/share/ledgersync/ledgersync.db")
}
