package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const SafeSystemPath = "/usr/local/bin:/usr/bin:/bin:/usr/sbin:/sbin"

var fixedBowerPaths = []string{
	"/usr/local/bin/bower",
	"/usr/bin/bower",
}

// Command lists packages through `bower list --json --offline`.
type Command struct {
	BaseDir string
	// Binary overrides the bower executable lookup.
	Binary string
}

type listNode struct {
	CanonicalDir string              `json:"canonicalDir"`
	PkgMeta      pkgMeta             `json:"pkgMeta"`
	Missing      bool                `json:"missing"`
	Dependencies map[string]listNode `json:"dependencies"`
}

func (c Command) List(ctx context.Context) (map[string]Package, error) {
	binary := c.Binary
	if binary == "" {
		resolved, err := ResolveBinaryPath()
		if err != nil {
			return nil, err
		}
		binary = resolved
	}

	// #nosec G204 -- arguments are fixed and the binary comes from fixed paths or PATH.
	cmd := exec.CommandContext(ctx, binary, "list", "--json", "--offline")
	cmd.Dir = c.BaseDir
	cmd.Env = SanitizedEnv(filepath.Dir(binary))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("run bower list: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseListOutput(output)
}

// parseListOutput flattens the dependency tree printed by bower list. When a
// package appears more than once the shallowest occurrence wins.
func parseListOutput(output []byte) (map[string]Package, error) {
	var root listNode
	if err := json.Unmarshal(output, &root); err != nil {
		return nil, fmt.Errorf("parse bower list output: %w", err)
	}

	packages := make(map[string]Package)
	level := root.Dependencies
	for len(level) > 0 {
		next := make(map[string]listNode)
		for name, node := range level {
			if _, ok := packages[name]; ok || node.Missing || node.CanonicalDir == "" {
				continue
			}
			packages[name] = Package{CanonicalDir: node.CanonicalDir, Main: node.PkgMeta.Main}
			for depName, dep := range node.Dependencies {
				if _, ok := next[depName]; !ok {
					next[depName] = dep
				}
			}
		}
		level = next
	}
	return packages, nil
}

// ResolveBinaryPath finds bower in the fixed system locations, then on PATH.
func ResolveBinaryPath() (string, error) {
	for _, candidate := range fixedBowerPaths {
		if ExecutableAvailable(candidate) {
			return candidate, nil
		}
	}
	if path, err := exec.LookPath("bower"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("bower executable not found")
}

// SanitizedEnv drops bower_* overrides and pins PATH to system directories
// plus binDir, where the node interpreter usually lives next to bower.
func SanitizedEnv(binDir string) []string {
	env := os.Environ()
	filtered := make([]string, 0, len(env)+1)
	for _, entry := range env {
		if strings.HasPrefix(strings.ToLower(entry), "bower_") || strings.HasPrefix(entry, "PATH=") {
			continue
		}
		filtered = append(filtered, entry)
	}
	path := SafeSystemPath
	if binDir != "" && binDir != "." {
		path = binDir + string(os.PathListSeparator) + path
	}
	return append(filtered, "PATH="+path)
}

func ExecutableAvailable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}
