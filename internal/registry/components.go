package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ben-ranford/bundlegraph/internal/safeio"
)

const defaultComponentsDir = "bower_components"

// ComponentsDir lists the packages installed in a bower components directory
// without running bower. Packages whose metadata cannot be read are skipped
// and reported to Logger, which may be nil.
type ComponentsDir struct {
	BaseDir string
	Logger  *slog.Logger
}

type bowerrc struct {
	Directory string `json:"directory"`
}

// Dir returns the components directory configured by .bowerrc, defaulting to
// bower_components under the base directory.
func (c ComponentsDir) Dir() (string, error) {
	dir := defaultComponentsDir
	data, err := safeio.ReadFileUnder(c.BaseDir, filepath.Join(c.BaseDir, ".bowerrc"))
	switch {
	case err == nil:
		var rc bowerrc
		if err := json.Unmarshal(data, &rc); err != nil {
			return "", fmt.Errorf("parse .bowerrc: %w", err)
		}
		if strings.TrimSpace(rc.Directory) != "" {
			dir = rc.Directory
		}
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("read .bowerrc: %w", err)
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir), nil
	}
	return filepath.Join(c.BaseDir, dir), nil
}

func (c ComponentsDir) List(ctx context.Context) (map[string]Package, error) {
	dir, err := c.Dir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read components directory: %w", err)
	}

	packages := make(map[string]Package, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		pkgDir := filepath.Join(dir, entry.Name())
		meta, err := readPkgMeta(pkgDir)
		if err != nil {
			c.logger().Debug("skipping package with unreadable metadata", "package", entry.Name(), "error", err)
			continue
		}
		packages[entry.Name()] = Package{CanonicalDir: pkgDir, Main: meta.Main}
	}
	return packages, nil
}

func (c ComponentsDir) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// readPkgMeta prefers the .bower.json bower writes on install over the
// package's own bower.json.
func readPkgMeta(pkgDir string) (pkgMeta, error) {
	for _, name := range []string{".bower.json", "bower.json"} {
		path := filepath.Join(pkgDir, name)
		data, err := safeio.ReadFileUnder(pkgDir, path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return pkgMeta{}, fmt.Errorf("read %s: %w", path, err)
		}
		var meta pkgMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return pkgMeta{}, fmt.Errorf("parse %s: %w", path, err)
		}
		return meta, nil
	}
	return pkgMeta{}, nil
}
