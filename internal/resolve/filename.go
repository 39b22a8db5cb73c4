package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/ben-ranford/bundlegraph/internal/bundle"
	"github.com/ben-ranford/bundlegraph/internal/noderesolve"
	"github.com/ben-ranford/bundlegraph/internal/shims"
)

// Registry answers package-name lookups from a prebuilt package registry snapshot.
type Registry interface {
	Lookup(moduleName string) (string, bool)
}

// Lookup is the generic module resolution capability.
type Lookup interface {
	Resolve(ctx context.Context, moduleName string, opts noderesolve.Options) (string, error)
}

type FilenameConfig struct {
	BasePath    string
	Alias       map[string]string
	Extensions  []string
	Directories []string
	// Modules maps core module names to shim files. It stays nil unless node
	// globals are injected.
	Modules map[string]string
}

// FilenameResolver turns a module reference into an absolute filename. The
// registry snapshot wins over the alias map, which wins over generic resolution.
type FilenameResolver struct {
	registry Registry
	lookup   Lookup
	config   FilenameConfig
	logger   *slog.Logger
}

func NewFilenameResolver(registry Registry, lookup Lookup, config FilenameConfig, logger *slog.Logger) *FilenameResolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FilenameResolver{registry: registry, lookup: lookup, config: config, logger: logger}
}

func (f *FilenameResolver) Resolve(ctx context.Context, requiringFile string, item *bundle.Item) (string, error) {
	if f.registry != nil {
		if filename, ok := f.registry.Lookup(item.ModuleName); ok {
			f.logger.Debug("resolved from registry", "module", item.ModuleName, "filename", filename)
			return filename, nil
		}
	}
	if alias, ok := f.config.Alias[item.ModuleName]; ok {
		filename := f.aliasPath(alias)
		f.logger.Debug("resolved from alias", "module", item.ModuleName, "filename", filename)
		return filename, nil
	}

	opts := noderesolve.Options{
		Extensions:      f.config.Extensions,
		Filename:        requiringFile,
		ModuleDirectory: f.config.Directories,
		Modules:         f.config.Modules,
	}
	filename, err := f.lookup.Resolve(ctx, item.ModuleName, opts)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &UnresolvedError{
			ModuleName:    item.ModuleName,
			RequiringFile: requiringFile,
			Options:       opts,
			Hint:          f.coreModuleHint(item.ModuleName),
			Err:           err,
		}
	}
	return filename, nil
}

// aliasPath normalizes an alias target against the base path. Relative
// targets are taken to be relative to the base path.
// coreModuleHint names the missing browser shim when moduleName is a node
// core module.
func (f *FilenameResolver) coreModuleHint(moduleName string) string {
	pkg, ok := shims.ShimPackage(moduleName)
	if !ok {
		return ""
	}
	f.logger.Debug("node core module without browser shim", "module", moduleName, "package", pkg)
	if f.config.Modules == nil {
		return fmt.Sprintf("%s is a node core module: enable bundlerOptions.addNodeGlobals and install %s", moduleName, pkg)
	}
	return fmt.Sprintf("%s is a node core module: install %s to provide its browser shim", moduleName, pkg)
}

func (f *FilenameResolver) aliasPath(alias string) string {
	base := f.config.BasePath
	target := alias
	if !filepath.IsAbs(target) {
		target = filepath.Join(base, target)
	}
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return filepath.Clean(target)
	}
	return filepath.Join(base, rel)
}
