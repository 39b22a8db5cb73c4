package noderesolve

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ben-ranford/bundlegraph/internal/safeio"
)

type packageJSON struct {
	Name    string          `json:"name"`
	Main    string          `json:"main"`
	Browser json.RawMessage `json:"browser"`

	dir          string
	browserMain  string
	browserFiles map[string]browserTarget
}

// browserTarget is one entry of an object-valued "browser" field. A false
// value disables the module.
type browserTarget struct {
	Path     string
	Disabled bool
}

func (p *packageJSON) parseBrowserField() error {
	raw := strings.TrimSpace(string(p.Browser))
	if raw == "" || raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, "\"") {
		return json.Unmarshal(p.Browser, &p.browserMain)
	}
	var fields map[string]any
	if err := json.Unmarshal(p.Browser, &fields); err != nil {
		return err
	}
	p.browserFiles = make(map[string]browserTarget, len(fields))
	for key, value := range fields {
		switch typed := value.(type) {
		case string:
			p.browserFiles[key] = browserTarget{Path: typed}
		case bool:
			if !typed {
				p.browserFiles[key] = browserTarget{Disabled: true}
			}
		}
	}
	return nil
}

// entry returns the main file declared for browsers, falling back to "main".
func (p *packageJSON) entry() string {
	if p.browserMain != "" {
		return p.browserMain
	}
	return p.Main
}

type packageCache struct {
	mu       sync.Mutex
	packages map[string]*packageJSON
}

func newPackageCache() *packageCache {
	return &packageCache{packages: make(map[string]*packageJSON)}
}

// load returns the parsed package.json of dir, or nil when dir has none.
func (c *packageCache) load(dir string) (*packageJSON, error) {
	c.mu.Lock()
	pkg, ok := c.packages[dir]
	c.mu.Unlock()
	if ok {
		return pkg, nil
	}

	pkg, err := readPackageJSON(dir)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.packages[dir] = pkg
	c.mu.Unlock()
	return pkg, nil
}

// nearest walks up from dir to the closest directory holding a package.json.
func (c *packageCache) nearest(dir string) (*packageJSON, error) {
	for current := dir; ; {
		if filepath.Base(current) != "node_modules" {
			pkg, err := c.load(current)
			if err != nil {
				return nil, err
			}
			if pkg != nil {
				return pkg, nil
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			return nil, nil
		}
		current = parent
	}
}

func readPackageJSON(dir string) (*packageJSON, error) {
	path := filepath.Join(dir, "package.json")
	data, err := safeio.ReadFileUnder(dir, path)
	if err != nil {
		if os.IsNotExist(err) || !safeio.IsFile(path) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	pkg := &packageJSON{dir: dir}
	if err := json.Unmarshal(data, pkg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := pkg.parseBrowserField(); err != nil {
		return nil, fmt.Errorf("parse %s: browser field: %w", path, err)
	}
	return pkg, nil
}
