package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ben-ranford/bundlegraph/internal/safeio"
)

var ErrNoEntries = errors.New("no entry files match the entrypoints pattern")

// NormalizeBasePath returns the absolute, symlink-free form of path, which
// must be an existing directory. An empty path means the working directory.
func NormalizeBasePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve base path: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("resolve base path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("base path is not a directory: %s", resolved)
	}
	return resolved, nil
}

// SelectEntries makes every entry absolute against basePath and keeps the
// ones whose base-relative, slash-separated path matches pattern. Duplicates
// are dropped and input order is kept.
func SelectEntries(basePath string, entries []string, pattern *regexp.Regexp) ([]string, error) {
	selected := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		filename := entry
		if !filepath.IsAbs(filename) {
			filename = filepath.Join(basePath, filename)
		}
		filename = filepath.Clean(filename)
		if _, ok := seen[filename]; ok {
			continue
		}
		seen[filename] = struct{}{}

		if pattern != nil && !pattern.MatchString(relativeSlashPath(basePath, filename)) {
			continue
		}
		if !safeio.IsFile(filename) {
			return nil, fmt.Errorf("entry file not found: %s", filename)
		}
		selected = append(selected, filename)
	}
	if len(selected) == 0 {
		return nil, ErrNoEntries
	}
	return selected, nil
}

func relativeSlashPath(basePath, filename string) string {
	rel, err := filepath.Rel(basePath, filename)
	if err != nil {
		return filepath.ToSlash(filename)
	}
	return filepath.ToSlash(rel)
}
