package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.cara/logs/).
// Falls back to the temp directory if the home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".cara", "logs")
	}
	return filepath.Join(home, ".cara", "logs")
}

// DefaultLogPath returns the default assistant log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "assistant.log")
}
