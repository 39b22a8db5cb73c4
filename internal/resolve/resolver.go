// Package resolve walks CommonJS module graphs. A Resolver holds the caches of
// one resolution session: lookup names to filenames, and the set of filenames
// whose source was already loaded.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/ben-ranford/bundlegraph/internal/bundle"
	"github.com/ben-ranford/bundlegraph/internal/noderesolve"
	"github.com/ben-ranford/bundlegraph/internal/safeio"
)

const defaultMaxConcurrentReads = 16

// Loader populates Source and AST of a resolved item.
type Loader interface {
	Read(ctx context.Context, item *bundle.Item) error
}

// Discoverer lists the module names a loaded item requires.
type Discoverer interface {
	HasRequire(source string) bool
	CollectDependencies(ctx context.Context, item *bundle.Item) ([]string, error)
}

type Config struct {
	Exclude            []string
	MaxConcurrentReads int
}

type Resolver struct {
	filenames  *FilenameResolver
	loader     Loader
	discoverer Discoverer
	exclude    map[string]struct{}
	reads      *semaphore.Weighted
	logger     *slog.Logger

	mu       sync.Mutex
	lookups  map[string]string
	disabled map[string]struct{}
	seen     map[string]struct{}
	inflight singleflight.Group
}

func New(filenames *FilenameResolver, loader Loader, discoverer Discoverer, config Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxReads := config.MaxConcurrentReads
	if maxReads <= 0 {
		maxReads = defaultMaxConcurrentReads
	}
	exclude := make(map[string]struct{}, len(config.Exclude))
	for _, name := range config.Exclude {
		exclude[name] = struct{}{}
	}
	return &Resolver{
		filenames:  filenames,
		loader:     loader,
		discoverer: discoverer,
		exclude:    exclude,
		reads:      semaphore.NewWeighted(int64(maxReads)),
		logger:     logger,
		lookups:    make(map[string]string),
		disabled:   make(map[string]struct{}),
		seen:       make(map[string]struct{}),
	}
}

// ResolveEntries resolves every entry file concurrently into one buffer and
// returns the entry items in input order.
func (r *Resolver) ResolveEntries(ctx context.Context, filenames []string) ([]*bundle.Item, *bundle.Buffer, error) {
	buffer := bundle.NewBuffer()
	entries := make([]*bundle.Item, len(filenames))

	g, gctx := errgroup.WithContext(ctx)
	for i, filename := range filenames {
		g.Go(func() error {
			entry, err := r.ResolveModule(gctx, filename, bundle.NewEntry(filename), buffer)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return entries, buffer, nil
}

// ResolveModule resolves item as required from requiringModule. Every item
// whose source gets loaded is appended to buffer after all of its own
// dependencies completed. The returned item is the one passed in.
func (r *Resolver) ResolveModule(ctx context.Context, requiringModule string, item *bundle.Item, buffer *bundle.Buffer) (*bundle.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if item.IsTypeScript() {
		item.State = bundle.StateSkipped
		return item, nil
	}
	if item.IsTypings() && !item.IsPackage() {
		r.resolveTypingAsJavaScript(item)
		item.State = bundle.StateSkipped
		return item, nil
	}

	item.LookupName = lookupName(requiringModule, item)
	if filename, ok := r.cachedFilename(item.LookupName); ok {
		item.Filename = filename
		item.State = bundle.StateSkipped
		return item, nil
	}
	if r.isDisabled(item.LookupName) {
		item.State = bundle.StateExcluded
		return item, nil
	}

	if r.isExcluded(item.ModuleName) {
		r.logger.Debug("excluded module", "module", item.ModuleName, "requiring", requiringModule)
		item.State = bundle.StateExcluded
		return item, nil
	}

	filename, err := r.resolveFilename(ctx, requiringModule, item)
	if errors.Is(err, noderesolve.ErrDisabled) {
		r.logger.Debug("module disabled by browser field", "module", item.ModuleName, "requiring", requiringModule)
		item.State = bundle.StateExcluded
		return item, nil
	}
	if err != nil {
		return nil, err
	}
	item.Filename = filename

	if item.IsTypeScript() || !r.markSeen(filename) {
		item.State = bundle.StateSkipped
		return item, nil
	}

	if err := r.load(ctx, item); err != nil {
		return nil, err
	}
	item.State = bundle.StateLoaded

	if item.IsScript() && r.discoverer.HasRequire(item.Source) {
		if err := r.resolveDependencies(ctx, item, buffer); err != nil {
			return nil, err
		}
	}
	buffer.Append(item)
	return item, nil
}

func (r *Resolver) resolveDependencies(ctx context.Context, item *bundle.Item, buffer *bundle.Buffer) error {
	names, err := r.discoverer.CollectDependencies(ctx, item)
	if err != nil {
		return fmt.Errorf("collect dependencies of %s: %w", item.Filename, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			dependency, err := r.ResolveModule(gctx, item.Filename, bundle.NewItem(name), buffer)
			if err != nil {
				return err
			}
			if dependency != nil {
				item.AddDependency(dependency)
			}
			return nil
		})
	}
	return g.Wait()
}

// resolveFilename shares one filename resolution between concurrent
// references that carry the same lookup name, and caches the result.
// Lookup names disabled by a browser field are cached as such.
func (r *Resolver) resolveFilename(ctx context.Context, requiringModule string, item *bundle.Item) (string, error) {
	value, err, _ := r.inflight.Do(item.LookupName, func() (any, error) {
		if filename, ok := r.cachedFilename(item.LookupName); ok {
			return filename, nil
		}
		if r.isDisabled(item.LookupName) {
			return "", noderesolve.ErrDisabled
		}
		filename, err := r.filenames.Resolve(ctx, requiringModule, item)
		if errors.Is(err, noderesolve.ErrDisabled) {
			r.mu.Lock()
			r.disabled[item.LookupName] = struct{}{}
			r.mu.Unlock()
		}
		if err != nil {
			return "", err
		}
		r.mu.Lock()
		r.lookups[item.LookupName] = filename
		r.mu.Unlock()
		return filename, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

func (r *Resolver) load(ctx context.Context, item *bundle.Item) error {
	if err := r.reads.Acquire(ctx, 1); err != nil {
		return err
	}
	defer r.reads.Release(1)

	if err := r.loader.Read(ctx, item); err != nil {
		return fmt.Errorf("load module %s: %w", item.Filename, err)
	}
	return nil
}

// resolveTypingAsJavaScript points a typings reference at its sibling
// JavaScript file when one exists.
func (r *Resolver) resolveTypingAsJavaScript(item *bundle.Item) {
	candidate := item.Filename[:len(item.Filename)-len(".d.ts")] + ".js"
	if !safeio.IsFile(candidate) {
		return
	}
	r.logger.Debug("resolved typings to javascript", "module", item.ModuleName, "filename", candidate)
	item.Filename = candidate
}

func (r *Resolver) cachedFilename(lookupName string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	filename, ok := r.lookups[lookupName]
	return filename, ok
}

func (r *Resolver) isDisabled(lookupName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.disabled[lookupName]
	return ok
}

// markSeen records filename and reports whether this call was the first.
func (r *Resolver) markSeen(filename string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[filename]; ok {
		return false
	}
	r.seen[filename] = struct{}{}
	return true
}

func (r *Resolver) isExcluded(moduleName string) bool {
	_, ok := r.exclude[moduleName]
	return ok
}

func lookupName(requiringModule string, item *bundle.Item) string {
	switch {
	case item.IsPackage():
		return item.ModuleName
	case filepath.IsAbs(item.ModuleName):
		return filepath.Clean(item.ModuleName)
	default:
		return filepath.Join(filepath.Dir(requiringModule), item.ModuleName)
	}
}
