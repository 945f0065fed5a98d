// Package license resolves the key that enables document export.
package license

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no source yields a key.
var ErrNotFound = errors.New("license key not found")

// Source names where a key was found.
type Source string

const (
	SourceConfig   Source = "config"
	SourceFile     Source = "license_file"
	SourceLocal    Source = "local"
	SourcePlatform Source = "platform"
)

// Finder looks up a license key. The zero value uses the process
// environment and working directory.
type Finder struct {
	// Key is an explicit key, normally from configuration.
	Key string
	// File is an explicit key file path.
	File string

	// WorkDir, Home and AppData override the lookup roots; empty values are
	// read from the process.
	WorkDir string
	Home    string
	AppData string
}

// Find returns the first non-empty key, in order: Key, File, ./.license,
// then the per-platform config locations.
func (f Finder) Find() (string, Source, error) {
	if k := strings.TrimSpace(f.Key); k != "" {
		return k, SourceConfig, nil
	}
	if f.File != "" {
		if k := readKey(f.File); k != "" {
			return k, SourceFile, nil
		}
	}
	if wd := f.workDir(); wd != "" {
		if k := readKey(filepath.Join(wd, ".license")); k != "" {
			return k, SourceLocal, nil
		}
	}
	for _, p := range f.platformPaths() {
		if k := readKey(p); k != "" {
			return k, SourcePlatform, nil
		}
	}
	return "", "", ErrNotFound
}

// Paths lists every file location Find consults, in order.
func (f Finder) Paths() []string {
	var out []string
	if f.File != "" {
		out = append(out, f.File)
	}
	if wd := f.workDir(); wd != "" {
		out = append(out, filepath.Join(wd, ".license"))
	}
	return append(out, f.platformPaths()...)
}

func (f Finder) platformPaths() []string {
	var paths []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" && f.Home == "" {
		paths = append(paths, filepath.Join(xdg, "sportsthread", "license"))
	}
	if home := f.home(); home != "" {
		paths = append(paths,
			filepath.Join(home, ".config", "sportsthread", "license"),
			filepath.Join(home, "Library", "Application Support", "SportsThread", "license"),
		)
	}
	if appData := f.appData(); appData != "" {
		paths = append(paths, filepath.Join(appData, "SportsThread", "license"))
	}
	return paths
}

func (f Finder) workDir() string {
	if f.WorkDir != "" {
		return f.WorkDir
	}
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}

func (f Finder) home() string {
	if f.Home != "" {
		return f.Home
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

func (f Finder) appData() string {
	if f.AppData != "" {
		return f.AppData
	}
	return os.Getenv("APPDATA")
}

// readKey returns the trimmed file content, or "" if the path is not a
// readable regular file.
func readKey(path string) string {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
