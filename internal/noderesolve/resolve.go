// Package noderesolve implements browser-aware Node module resolution: the
// node_modules lookup algorithm extended with package.json "browser" fields and
// a table of core module replacements.
package noderesolve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ben-ranford/bundlegraph/internal/safeio"
)

var (
	ErrNotFound = errors.New("module not found")
	ErrDisabled = errors.New("module disabled by browser field")
)

var defaultExtensions = []string{".js"}

// Options mirrors the settings handed to the resolver for a single lookup.
type Options struct {
	Extensions      []string          `json:"extensions"`
	Filename        string            `json:"filename"`
	ModuleDirectory []string          `json:"moduleDirectory"`
	Modules         map[string]string `json:"modules,omitempty"`
}

// Resolver is safe for concurrent use. Parsed package.json files are cached
// for the lifetime of the Resolver.
type Resolver struct {
	packages *packageCache
}

func New() *Resolver {
	return &Resolver{packages: newPackageCache()}
}

// Resolve returns the absolute filename that moduleName refers to when
// required from opts.Filename.
func (r *Resolver) Resolve(ctx context.Context, moduleName string, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(moduleName) == "" {
		return "", fmt.Errorf("empty module name: %w", ErrNotFound)
	}
	if mapped, ok := opts.Modules[moduleName]; ok && mapped != "" {
		return mapped, nil
	}

	basedir, err := requiringDir(opts.Filename)
	if err != nil {
		return "", err
	}
	extensions := opts.Extensions
	if len(extensions) == 0 {
		extensions = defaultExtensions
	}

	filename, err := r.resolvePath(ctx, moduleName, basedir, extensions, opts.ModuleDirectory)
	if err != nil {
		return "", err
	}
	return r.applyBrowserRemap(filename, extensions)
}

func (r *Resolver) resolvePath(ctx context.Context, moduleName, basedir string, extensions, moduleDirectories []string) (string, error) {
	if isPathReference(moduleName) {
		target := moduleName
		if !filepath.IsAbs(target) {
			target = filepath.Join(basedir, target)
		}
		if filename, ok, err := r.loadFileOrDirectory(target, extensions); err != nil || ok {
			return filename, err
		}
		return "", fmt.Errorf("cannot find %s from %s: %w", moduleName, basedir, ErrNotFound)
	}

	if filename, ok, err := r.resolveRequiringPackageRemap(moduleName, basedir, extensions); err != nil || ok {
		return filename, err
	}

	for _, dir := range moduleSearchPaths(basedir, moduleDirectories) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		target := filepath.Join(dir, filepath.FromSlash(moduleName))
		if filename, ok, err := r.loadFileOrDirectory(target, extensions); err != nil || ok {
			return filename, err
		}
	}
	return "", fmt.Errorf("cannot find module %s from %s: %w", moduleName, basedir, ErrNotFound)
}

// resolveRequiringPackageRemap applies the requiring package's browser object
// to a bare module name, e.g. {"fs": false} or {"ws": "./shim/ws.js"}.
func (r *Resolver) resolveRequiringPackageRemap(moduleName, basedir string, extensions []string) (string, bool, error) {
	pkg, err := r.packages.nearest(basedir)
	if err != nil || pkg == nil {
		return "", false, err
	}
	target, ok := pkg.browserFiles[moduleName]
	if !ok {
		return "", false, nil
	}
	if target.Disabled {
		return "", false, fmt.Errorf("%s in %s: %w", moduleName, filepath.Join(pkg.dir, "package.json"), ErrDisabled)
	}
	if !isPathReference(target.Path) {
		return "", false, nil
	}
	filename, ok, err := r.loadFileOrDirectory(filepath.Join(pkg.dir, target.Path), extensions)
	return filename, ok, err
}

func (r *Resolver) loadFileOrDirectory(target string, extensions []string) (string, bool, error) {
	if filename, ok := loadAsFile(target, extensions); ok {
		return filename, true, nil
	}
	return r.loadAsDirectory(target, extensions)
}

func loadAsFile(target string, extensions []string) (string, bool) {
	if safeio.IsFile(target) {
		return filepath.Clean(target), true
	}
	for _, ext := range extensions {
		candidate := target + ext
		if safeio.IsFile(candidate) {
			return filepath.Clean(candidate), true
		}
	}
	return "", false
}

func loadIndex(dir string, extensions []string) (string, bool) {
	for _, ext := range extensions {
		candidate := filepath.Join(dir, "index"+ext)
		if safeio.IsFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func (r *Resolver) loadAsDirectory(dir string, extensions []string) (string, bool, error) {
	if !safeio.IsDir(dir) {
		return "", false, nil
	}
	pkg, err := r.packages.load(filepath.Clean(dir))
	if err != nil {
		return "", false, err
	}
	if pkg != nil && pkg.entry() != "" {
		main := filepath.Join(dir, filepath.FromSlash(pkg.entry()))
		if filename, ok := loadAsFile(main, extensions); ok {
			return filename, true, nil
		}
		if filename, ok := loadIndex(main, extensions); ok {
			return filename, true, nil
		}
	}
	filename, ok := loadIndex(dir, extensions)
	return filename, ok, nil
}

// applyBrowserRemap swaps a resolved file for its browser replacement declared
// in the owning package.json, e.g. {"./lib/node.js": "./lib/browser.js"}.
func (r *Resolver) applyBrowserRemap(filename string, extensions []string) (string, error) {
	pkg, err := r.packages.nearest(filepath.Dir(filename))
	if err != nil || pkg == nil || len(pkg.browserFiles) == 0 {
		return filename, err
	}
	for key, target := range pkg.browserFiles {
		if !isPathReference(key) {
			continue
		}
		keyPath := filepath.Join(pkg.dir, filepath.FromSlash(key))
		if !matchesWithExtensions(keyPath, filename, extensions) {
			continue
		}
		if target.Disabled {
			return "", fmt.Errorf("%s: %w", filename, ErrDisabled)
		}
		if replacement, ok := loadAsFile(filepath.Join(pkg.dir, filepath.FromSlash(target.Path)), extensions); ok {
			return replacement, nil
		}
	}
	return filename, nil
}

func matchesWithExtensions(keyPath, filename string, extensions []string) bool {
	if keyPath == filename {
		return true
	}
	for _, ext := range extensions {
		if keyPath+ext == filename {
			return true
		}
	}
	return false
}

// moduleSearchPaths lists the module directories to probe, nearest first.
// Relative entries are tried in every ancestor of basedir; absolute entries
// are tried once, after the ancestors.
func moduleSearchPaths(basedir string, moduleDirectories []string) []string {
	if len(moduleDirectories) == 0 {
		moduleDirectories = []string{"node_modules"}
	}
	relative := make([]string, 0, len(moduleDirectories))
	absolute := make([]string, 0)
	for _, dir := range moduleDirectories {
		if filepath.IsAbs(dir) {
			absolute = append(absolute, filepath.Clean(dir))
			continue
		}
		relative = append(relative, dir)
	}

	paths := make([]string, 0, 8)
	for current := basedir; ; {
		for _, name := range relative {
			if filepath.Base(current) == name {
				continue
			}
			paths = append(paths, filepath.Join(current, name))
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return append(paths, absolute...)
}

func isPathReference(moduleName string) bool {
	return moduleName == "." || moduleName == ".." ||
		strings.HasPrefix(moduleName, "./") || strings.HasPrefix(moduleName, "../") ||
		filepath.IsAbs(moduleName)
}

func requiringDir(filename string) (string, error) {
	if strings.TrimSpace(filename) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(filename)
	if err != nil {
		return "", fmt.Errorf("resolve requiring file: %w", err)
	}
	return filepath.Dir(abs), nil
}
