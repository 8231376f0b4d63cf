// Package sqlitepath resolves where the CLI keeps its conversation database.
package sqlitepath

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvVar overrides the default database location.
const EnvVar = "GENIUS_DB"

// ResolveSQLitePath returns flagValue when set, else $GENIUS_DB, else
// ~/.genius/genius.db. The parent directory is created when missing.
func ResolveSQLitePath(flagValue string) (string, error) {
	path := flagValue
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine home directory: %w", err)
		}
		path = filepath.Join(home, ".genius", "genius.db")
	}

	if path == ":memory:" {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("could not create database directory: %w", err)
	}
	return path, nil
}
