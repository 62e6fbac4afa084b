package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir is where run logs are kept.
const DefaultLogDir = "/var/log/servicereport"

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir, "servicereport.log")
}

// EnsureLogDir creates the directory holding path.
func EnsureLogDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
