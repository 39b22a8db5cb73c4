package resolve

import (
	"context"
	"os"
	"sync"

	"github.com/ben-ranford/bundlegraph/internal/bundle"
	"github.com/ben-ranford/bundlegraph/internal/lang/js"
	"github.com/ben-ranford/bundlegraph/internal/noderesolve"
)

type mapRegistry map[string]string

func (m mapRegistry) Lookup(moduleName string) (string, bool) {
	filename, ok := m[moduleName]
	return filename, ok
}

type countingLookup struct {
	inner Lookup

	mu       sync.Mutex
	calls    map[string]int
	lastOpts noderesolve.Options
}

func newCountingLookup(inner Lookup) *countingLookup {
	return &countingLookup{inner: inner, calls: make(map[string]int)}
}

func (l *countingLookup) Resolve(ctx context.Context, moduleName string, opts noderesolve.Options) (string, error) {
	l.mu.Lock()
	l.calls[moduleName]++
	l.lastOpts = opts
	l.mu.Unlock()
	return l.inner.Resolve(ctx, moduleName, opts)
}

func (l *countingLookup) count(moduleName string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[moduleName]
}

func (l *countingLookup) total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for _, n := range l.calls {
		total += n
	}
	return total
}

type staticLookup map[string]string

func (s staticLookup) Resolve(_ context.Context, moduleName string, _ noderesolve.Options) (string, error) {
	if filename, ok := s[moduleName]; ok {
		return filename, nil
	}
	return "", noderesolve.ErrNotFound
}

// fileLoader reads the resolved file and parses scripts with tree-sitter.
type fileLoader struct {
	parser *js.Parser
	failOn string

	mu    sync.Mutex
	reads map[string]int
}

func newFileLoader() *fileLoader {
	return &fileLoader{parser: js.NewParser(), reads: make(map[string]int)}
}

func (l *fileLoader) Read(ctx context.Context, item *bundle.Item) error {
	l.mu.Lock()
	l.reads[item.Filename]++
	l.mu.Unlock()
	if item.Filename == l.failOn {
		return errLoadFailed
	}

	content, err := os.ReadFile(item.Filename)
	if err != nil {
		return err
	}
	item.Source = string(content)
	if !item.IsScript() {
		return nil
	}
	tree, err := l.parser.Parse(ctx, item.Filename, content)
	if err != nil {
		return err
	}
	item.AST = tree
	return nil
}

func (l *fileLoader) count(filename string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads[filename]
}

func (l *fileLoader) total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for _, n := range l.reads {
		total += n
	}
	return total
}

type countingDiscoverer struct {
	inner *js.DependencyWalker

	mu      sync.Mutex
	collect map[string]int
}

func newCountingDiscoverer() *countingDiscoverer {
	return &countingDiscoverer{inner: js.NewDependencyWalker(), collect: make(map[string]int)}
}

func (d *countingDiscoverer) HasRequire(source string) bool {
	return d.inner.HasRequire(source)
}

func (d *countingDiscoverer) CollectDependencies(ctx context.Context, item *bundle.Item) ([]string, error) {
	d.mu.Lock()
	d.collect[item.Filename]++
	d.mu.Unlock()
	return d.inner.CollectDependencies(ctx, item)
}

func (d *countingDiscoverer) count(filename string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.collect[filename]
}
