package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunHelp(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer

	code := run(context.Background(), []string{"--help"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit code 0 for help, got %d", code)
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Fatalf("expected usage output on stdout, got %q", out.String())
	}
	if errOut.Len() != 0 {
		t.Fatalf("expected no stderr output for help, got %q", errOut.String())
	}
}

func TestRunParseError(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer

	code := run(context.Background(), []string{"nope"}, &out, &errOut)
	if code != 2 {
		t.Fatalf("expected parse error exit code 2, got %d", code)
	}
	if !strings.Contains(errOut.String(), "unknown command") {
		t.Fatalf("expected parse error details on stderr, got %q", errOut.String())
	}
	if !strings.Contains(errOut.String(), "Usage:") {
		t.Fatalf("expected usage text on stderr for parse error, got %q", errOut.String())
	}
	if out.Len() != 0 {
		t.Fatalf("expected no stdout output for parse error, got %q", out.String())
	}
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	base := t.TempDir()
	for name, content := range files {
		path := filepath.Join(base, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return base
}

func TestRunResolve(t *testing.T) {
	base := writeProject(t, map[string]string{
		"bundlegraph.json": `{"registry": "none", "bundlerOptions": {"addNodeGlobals": false}}`,
		"src/a.js":         `require("./b");`,
		"src/b.js":         `module.exports = 1;`,
	})
	var out bytes.Buffer
	var errOut bytes.Buffer

	code := run(context.Background(), []string{"resolve", "--base", base, "--log-level", "error", "src/a.js"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr %q)", code, errOut.String())
	}
	if !strings.Contains(out.String(), "Summary: 2 modules, 1 edges") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestRunResolveUnresolved(t *testing.T) {
	base := writeProject(t, map[string]string{
		"bundlegraph.json": `{"registry": "none", "bundlerOptions": {"addNodeGlobals": false}}`,
		"src/a.js":         `require("./missing");`,
	})
	var out bytes.Buffer
	var errOut bytes.Buffer

	code := run(context.Background(), []string{"resolve", "--base", base, "src/a.js"}, &out, &errOut)
	if code != 3 {
		t.Fatalf("expected exit code 3, got %d", code)
	}
	if !strings.Contains(errOut.String(), "unable to resolve module [./missing]") {
		t.Fatalf("expected unresolved error on stderr, got %q", errOut.String())
	}
}
