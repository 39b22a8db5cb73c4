// Package registry snapshots a bower package registry into a package name to
// entry file table.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ben-ranford/bundlegraph/internal/safeio"
)

// Package is one installed registry package.
type Package struct {
	CanonicalDir string
	Main         []string
}

// Lister enumerates the installed packages of a registry.
type Lister interface {
	List(ctx context.Context) (map[string]Package, error)
}

// Cache is built once and read-only afterwards. Lookup blocks until the build
// finished, so a build started with Start is always complete before the first
// answer.
type Cache struct {
	lister Lister
	logger *slog.Logger

	once    sync.Once
	entries map[string]string
}

// NewCache returns a cache over lister. A nil lister yields an empty cache.
func NewCache(lister Lister, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{lister: lister, logger: logger}
}

// Start builds the cache in the background.
func (c *Cache) Start(ctx context.Context) {
	go c.Build(ctx)
}

// Build enumerates the registry. Only the first call does any work; listing
// failures leave the cache empty.
func (c *Cache) Build(ctx context.Context) {
	c.once.Do(func() {
		c.entries = c.build(ctx)
	})
}

func (c *Cache) Lookup(moduleName string) (string, bool) {
	c.Build(context.Background())
	filename, ok := c.entries[moduleName]
	return filename, ok
}

// Snapshot returns a copy of the package name to entry file table.
func (c *Cache) Snapshot() map[string]string {
	c.Build(context.Background())
	return maps.Clone(c.entries)
}

func (c *Cache) build(ctx context.Context) map[string]string {
	entries := make(map[string]string)
	if c.lister == nil {
		return entries
	}
	packages, err := c.lister.List(ctx)
	if err != nil {
		c.logger.Debug("no package registry detected, skipping", "error", err)
		return entries
	}
	for name, pkg := range packages {
		for _, candidate := range Candidates(name, pkg) {
			if safeio.IsFile(candidate) {
				entries[name] = candidate
			}
		}
	}
	c.logger.Debug("cached registry packages", "count", len(entries), "packages", entries)
	return entries
}

// Candidates lists the possible entry files of a package in ascending
// priority: index.js, <name>.js, then every declared main file.
func Candidates(name string, pkg Package) []string {
	files := make([]string, 0, 2+len(pkg.Main))
	files = append(files, "index.js", name+".js")
	for _, main := range pkg.Main {
		if strings.TrimSpace(main) != "" {
			files = append(files, main)
		}
	}
	candidates := make([]string, 0, len(files))
	for _, file := range files {
		candidates = append(candidates, filepath.Join(pkg.CanonicalDir, filepath.FromSlash(file)))
	}
	return candidates
}

// mainField accepts the string or list form of a bower "main" declaration.
type mainField []string

func (m *mainField) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*m = nil
		return nil
	case strings.HasPrefix(raw, "\""):
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*m = mainField{single}
		return nil
	case strings.HasPrefix(raw, "["):
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*m = mainField(list)
		return nil
	default:
		return fmt.Errorf("main must be a string or a list of strings, got %s", raw)
	}
}

type pkgMeta struct {
	Name string    `json:"name"`
	Main mainField `json:"main"`
}
