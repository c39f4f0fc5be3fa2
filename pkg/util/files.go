package util

import (
	"os"
)

// EnsureDir creates path and any missing parents
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists reports whether path names an existing regular file
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// TempFile creates an empty file in dir named prefix<random>ext.
// An empty dir means the system temp directory.
func TempFile(dir, prefix, ext string) (*os.File, error) {
	if dir != "" {
		if err := EnsureDir(dir); err != nil {
			return nil, err
		}
	}
	return os.CreateTemp(dir, prefix+"*"+ext)
}

// CleanupFiles removes each path, ignoring files that are already gone
func CleanupFiles(paths ...string) {
	for _, path := range paths {
		if path != "" {
			_ = os.Remove(path)
		}
	}
}
