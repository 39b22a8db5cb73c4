// Package shims maps Node.js core modules to the browser implementations that
// browserify-style bundles substitute for them.
package shims

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ben-ranford/bundlegraph/internal/noderesolve"
)

// browserShims lists the core modules that have a browser port and the
// package specifier providing it. Core modules without a port (fs, net,
// child_process, ...) are absent and must be excluded by configuration.
var browserShims = map[string]string{
	"assert":         "assert/",
	"buffer":         "buffer/",
	"console":        "console-browserify",
	"constants":      "constants-browserify",
	"crypto":         "crypto-browserify",
	"domain":         "domain-browser",
	"events":         "events/",
	"http":           "stream-http",
	"https":          "https-browserify",
	"os":             "os-browserify/browser.js",
	"path":           "path-browserify",
	"process":        "process/browser.js",
	"punycode":       "punycode/",
	"querystring":    "querystring-es3/",
	"stream":         "stream-browserify",
	"string_decoder": "string_decoder/",
	"sys":            "util/util.js",
	"timers":         "timers-browserify",
	"tty":            "tty-browserify",
	"url":            "url/",
	"util":           "util/util.js",
	"vm":             "vm-browserify",
	"zlib":           "browserify-zlib",
}

// Lookup is the generic resolution capability used to locate shim packages.
type Lookup interface {
	Resolve(ctx context.Context, moduleName string, opts noderesolve.Options) (string, error)
}

// Names returns the core module names that have a browser shim, sorted.
func Names() []string {
	names := make([]string, 0, len(browserShims))
	for name := range browserShims {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ShimPackage returns the npm package providing the browser shim for the core
// module moduleName (optionally "node:" prefixed, with or without a subpath).
func ShimPackage(moduleName string) (string, bool) {
	shim, ok := browserShims[coreName(moduleName)]
	if !ok {
		return "", false
	}
	pkg, _, _ := strings.Cut(shim, "/")
	return pkg, true
}

func coreName(moduleName string) string {
	name := strings.TrimPrefix(moduleName, "node:")
	if head, _, found := strings.Cut(name, "/"); found {
		return head
	}
	return name
}

// Resolve locates every installed shim package from basePath and returns the
// core module name to shim filename table. Shims that are not installed are
// left out. Both the bare and the "node:" prefixed names are mapped.
func Resolve(ctx context.Context, lookup Lookup, basePath string, opts noderesolve.Options, logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts.Filename = filepath.Join(basePath, "noop.js")
	opts.Modules = nil

	modules := make(map[string]string, len(browserShims)*2)
	for _, name := range Names() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		filename, err := lookup.Resolve(ctx, browserShims[name], opts)
		if err != nil {
			logger.Debug("shim not installed", "module", name, "package", browserShims[name], "error", err)
			continue
		}
		modules[name] = filename
		modules["node:"+name] = filename
	}
	logger.Debug("resolved node global shims", "count", len(modules)/2)
	return modules, nil
}
