package bundle

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// State records how far an Item got through resolution.
type State int

const (
	StatePending State = iota
	// StateExcluded marks a reference skipped by the exclude list; it has no filename.
	StateExcluded
	// StateSkipped marks a reference that resolved without loading any source:
	// TypeScript and typings references, lookup cache hits and already seen files.
	StateSkipped
	// StateLoaded marks the single Item that read and walked its file.
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateExcluded:
		return "excluded"
	case StateSkipped:
		return "skipped"
	case StateLoaded:
		return "loaded"
	default:
		return "pending"
	}
}

var scriptExtensions = map[string]bool{
	".js":  true,
	".jsx": true,
	".mjs": true,
	".cjs": true,
	".ts":  true,
	".tsx": true,
}

// Item is one module reference together with its resolution state.
type Item struct {
	ModuleName string
	LookupName string
	Filename   string
	Source     string
	AST        *sitter.Tree
	State      State

	mu           sync.Mutex
	dependencies []*Item
}

func NewItem(moduleName string) *Item {
	return &Item{ModuleName: moduleName}
}

// NewEntry creates the Item for an entry file. The absolute filename doubles as
// the module name so that it resolves like any other absolute reference.
func NewEntry(filename string) *Item {
	return &Item{ModuleName: filename, Filename: filename}
}

// IsPackage reports whether the reference is resolved through a package root
// rather than a file path.
func (i *Item) IsPackage() bool {
	if i.ModuleName == "" {
		return false
	}
	if strings.HasPrefix(i.ModuleName, ".") || strings.HasPrefix(i.ModuleName, "/") {
		return false
	}
	return !filepath.IsAbs(i.ModuleName)
}

func (i *Item) IsScript() bool {
	if i.Filename == "" {
		return false
	}
	return scriptExtensions[strings.ToLower(filepath.Ext(i.Filename))]
}

func (i *Item) IsTypings() bool {
	return i.Filename != "" && strings.HasSuffix(strings.ToLower(i.Filename), ".d.ts")
}

func (i *Item) IsTypeScript() bool {
	if i.Filename == "" || i.IsTypings() {
		return false
	}
	switch strings.ToLower(filepath.Ext(i.Filename)) {
	case ".ts", ".tsx":
		return true
	default:
		return false
	}
}

func (i *Item) AddDependency(dependency *Item) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.dependencies = append(i.dependencies, dependency)
}

// Dependencies returns a snapshot of the resolved dependencies in completion order.
func (i *Item) Dependencies() []*Item {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]*Item(nil), i.dependencies...)
}
