// Package filesystem provides path helpers for config and database files.
package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrDirNotFound is returned when a parent directory cannot be created
var ErrDirNotFound = errors.New("directory not found")

// GetDefaultPath returns a default file path in the executable directory
func GetDefaultPath(filename string) (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	exeDir := filepath.Dir(exePath)
	return filepath.Join(exeDir, filename), nil
}

// ResolvePath returns path unchanged when it is absolute or exists relative to
// the working directory. Otherwise a copy next to the executable is preferred
// if one exists, and the original path is returned as the last resort.
func ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	if _, err := os.Stat(path); err == nil {
		return path
	}

	if execPath, err := GetDefaultPath(path); err == nil {
		if _, err := os.Stat(execPath); err == nil {
			return execPath
		}
	}

	return path
}

// EnsureDirectoryExists creates the directory for the given file path if it doesn't exist
func EnsureDirectoryExists(filePath string) error {
	dir := filepath.Dir(filePath)
	if dir == "." {
		return nil // Current directory
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrDirNotFound, dir)
		}
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	return nil
}
