package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const rlgrcFile = ".rlgrc"

// FindRLGRC walks up from startDir looking for a .rlgrc file.
// Returns the path to the file if found, or empty string and nil if not found.
func FindRLGRC(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		candidate := filepath.Join(dir, rlgrcFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return "", nil
		}
		dir = parent
	}
}

// ReadRLGRC reads the profile name from a .rlgrc file.
// The file is expected to contain just the profile name (optionally with whitespace).
func ReadRLGRC(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading .rlgrc: %w", err)
	}
	profile := strings.TrimSpace(string(data))
	if profile == "" {
		return "", fmt.Errorf(".rlgrc is empty: %s", path)
	}
	return profile, nil
}

// WriteRLGRC writes a profile name to a .rlgrc file in the given directory.
func WriteRLGRC(dir, profile string) error {
	path := filepath.Join(dir, rlgrcFile)
	return os.WriteFile(path, []byte(profile+"\n"), 0o644)
}
