package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns the default data directory based on the host OS.
// It prefers standard locations when available and falls back to a dotdir
// in the user's home directory.
func DefaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "./data"
	}

	// XDG (Linux) override
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "globular")
	}

	// Common Linux/Unix system dir
	if isDir("/var/lib") && writable("/var/lib") {
		return "/var/lib/globular"
	}

	// macOS: ~/Library/Application Support/Globular
	if isDir(filepath.Join(homeDir, "Library")) {
		return filepath.Join(homeDir, "Library", "Application Support", "Globular")
	}

	// Windows: %USERPROFILE%/AppData/Local/Globular
	if isDir(filepath.Join(homeDir, "AppData")) {
		return filepath.Join(homeDir, "AppData", "Local", "Globular")
	}

	// Fallback: ~/.globular
	return filepath.Join(homeDir, ".globular")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// writable reports whether the process can create entries under dir.
func writable(dir string) bool {
	f, err := os.CreateTemp(dir, ".globular-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}
