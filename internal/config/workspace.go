package config

import (
	"os"
	"path/filepath"
)

// DirName is the per-workspace state directory.
const DirName = ".claridoc"

// FindWorkspaceRoot walks up from the working directory to the nearest
// directory holding .claridoc or go.mod. Falls back to the working directory.
func FindWorkspaceRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	originalDir := dir
	for {
		if _, err := os.Stat(filepath.Join(dir, DirName)); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return originalDir, nil
}

// DefaultConfigPath returns <workspace>/.claridoc/config.yaml.
func DefaultConfigPath(workspace string) string {
	return filepath.Join(workspace, DirName, "config.yaml")
}
