// Package session resolves per-profile filesystem paths and validates the
// display-name-only login.
package session

import (
	"os"
	"path/filepath"
)

// baseDirOverride replaces the default base directory when set, from the
// config's data_dir. Set once at startup, before any path is resolved.
var baseDirOverride string

// SetBaseDir overrides the base directory for all profile paths.
func SetBaseDir(dir string) {
	baseDirOverride = dir
}

// BaseDir returns the configured data directory, defaulting to ~/.roomchat.
func BaseDir() string {
	if baseDirOverride != "" {
		return baseDirOverride
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".roomchat")
}

// Dir returns the profile-specific directory for a pseudo.
func Dir(pseudo string) string {
	return filepath.Join(BaseDir(), "profiles", pseudo)
}

// AppDBPath returns the app-owned roomchat.db path.
func AppDBPath(pseudo string) string {
	return filepath.Join(Dir(pseudo), "roomchat.db")
}

// LogDir returns the log directory for a profile.
func LogDir(pseudo string) string {
	return filepath.Join(Dir(pseudo), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(pseudo string) string {
	return filepath.Join(LogDir(pseudo), "roomchatd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree with proper permissions.
func EnsureDir(pseudo string) error {
	dirs := []string{
		Dir(pseudo),
		LogDir(pseudo),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
