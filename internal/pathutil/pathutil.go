// Package pathutil provides path manipulation utilities.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AnalyzedSuffix is inserted before the extension of an analyzed record.
const AnalyzedSuffix = "-analyzed"

// expandTilde expands ~ to home directory.
// Returns the path unchanged if it doesn't start with ~/.
func expandTilde(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand home dir: %w", err)
	}

	return filepath.Join(home, path[2:]), nil
}

// ResolvePath resolves a path with tilde expansion and relative path resolution.
// - ~/... paths are expanded to home directory
// - Absolute paths are returned as-is
// - Relative paths are resolved from baseDir
// - Empty paths are not allowed and return an error
func ResolvePath(path, baseDir string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if strings.HasPrefix(path, "~/") {
		return expandTilde(path)
	}

	if filepath.IsAbs(path) {
		return path, nil
	}

	return filepath.Join(baseDir, path), nil
}

// SourcePath returns where a submitted record is read from: the filename
// itself, or the filename under sourceDir when one is configured.
func SourcePath(filename, sourceDir string) string {
	if sourceDir == "" {
		return filename
	}
	return filepath.Join(sourceDir, filename)
}

// OutputPath returns where the analyzed copy of filename is written:
// "<dir>/<name>-analyzed<ext>", re-rooted under destDir when one is
// configured.
func OutputPath(filename, destDir string) string {
	dir, base := filepath.Split(filename)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" {
		// dotfiles such as ".sgf" have no extension
		name, ext = base, ""
	}

	out := filepath.Join(dir, name+AnalyzedSuffix+ext)
	if destDir == "" {
		return out
	}
	return filepath.Join(destDir, out)
}
