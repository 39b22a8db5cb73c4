package cli

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ben-ranford/bundlegraph/internal/app"
	"github.com/ben-ranford/bundlegraph/internal/report"
)

const (
	unexpectedErrFmt = "unexpected error: %v"
	modeMismatchFmt  = "expected mode %q, got %q"
	excludeFlagName  = "--exclude"
)

func mustParseArgs(t *testing.T, args []string) app.Request {
	t.Helper()

	req, err := ParseArgs(args)
	if err != nil {
		t.Fatalf(unexpectedErrFmt, err)
	}
	return req
}

func expectParseArgsError(t *testing.T, args []string, wantMsg string) error {
	t.Helper()

	_, err := ParseArgs(args)
	if err == nil {
		t.Fatal(wantMsg)
	}
	return err
}

func TestParseArgsHelp(t *testing.T) {
	for _, args := range [][]string{nil, {"help"}, {"-h"}, {"--help"}, {"resolve", "-h"}, {"registry", "--help"}} {
		if _, err := ParseArgs(args); !errors.Is(err, ErrHelpRequested) {
			t.Fatalf("expected help for %v, got %v", args, err)
		}
	}
}

func TestParseResolveDefaults(t *testing.T) {
	req := mustParseArgs(t, []string{"resolve", "src/a.js"})
	if req.Mode != app.ModeResolve {
		t.Fatalf(modeMismatchFmt, app.ModeResolve, req.Mode)
	}
	if req.BasePath != "." || req.Format != report.FormatTable || req.LogLevel != "" {
		t.Fatalf("unexpected defaults: %+v", req)
	}
	if !reflect.DeepEqual(req.Entries, []string{"src/a.js"}) {
		t.Fatalf("unexpected entries: %v", req.Entries)
	}
}

func TestParseResolveFlagsAfterEntries(t *testing.T) {
	req := mustParseArgs(t, []string{
		"resolve", "src/a.js",
		"--base", "web",
		excludeFlagName, "fs",
		"src/b.js",
		excludeFlagName + "=net,child_process",
		"--format=json",
		"--config", "ci.yml",
		"--log-level", "DEBUG",
		"--log-format", "json",
	})
	if req.BasePath != "web" || req.ConfigPath != "ci.yml" || req.Format != report.FormatJSON {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.LogLevel != "debug" || req.LogFormat != "json" {
		t.Fatalf("unexpected log settings: %q %q", req.LogLevel, req.LogFormat)
	}
	if !reflect.DeepEqual(req.Entries, []string{"src/a.js", "src/b.js"}) {
		t.Fatalf("unexpected entries: %v", req.Entries)
	}
	if !reflect.DeepEqual(req.Exclude, []string{"fs", "net", "child_process"}) {
		t.Fatalf("unexpected excludes: %v", req.Exclude)
	}
}

func TestParseResolveDoubleDash(t *testing.T) {
	req := mustParseArgs(t, []string{"resolve", "--", "-weird.js"})
	if !reflect.DeepEqual(req.Entries, []string{"-weird.js"}) {
		t.Fatalf("expected entry after --, got %v", req.Entries)
	}
}

func TestParseResolveErrors(t *testing.T) {
	err := expectParseArgsError(t, []string{"resolve"}, "expected missing entry error")
	if !errors.Is(err, ErrMissingEntry) {
		t.Fatalf("expected ErrMissingEntry, got %v", err)
	}

	err = expectParseArgsError(t, []string{"resolve", "--format", "xml", "a.js"}, "expected format error")
	if !errors.Is(err, report.ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}

	err = expectParseArgsError(t, []string{"resolve", "--log-level", "trace", "a.js"}, "expected log level error")
	if !strings.Contains(err.Error(), "--log-level") {
		t.Fatalf("unexpected log level error: %v", err)
	}

	err = expectParseArgsError(t, []string{"resolve", "--log-format", "xml", "a.js"}, "expected log format error")
	if !strings.Contains(err.Error(), "--log-format") {
		t.Fatalf("unexpected log format error: %v", err)
	}

	expectParseArgsError(t, []string{"resolve", "--bogus", "a.js"}, "expected unknown flag error")
}

func TestParseRegistry(t *testing.T) {
	req := mustParseArgs(t, []string{"registry", "--base", "web", "--config", "x.toml"})
	if req.Mode != app.ModeRegistry {
		t.Fatalf(modeMismatchFmt, app.ModeRegistry, req.Mode)
	}
	if req.BasePath != "web" || req.ConfigPath != "x.toml" {
		t.Fatalf("unexpected registry request: %+v", req)
	}

	err := expectParseArgsError(t, []string{"registry", "extra"}, "expected unexpected arguments error")
	if !strings.Contains(err.Error(), "unexpected arguments") {
		t.Fatalf("unexpected error: %v", err)
	}
	expectParseArgsError(t, []string{"registry", excludeFlagName, "fs"}, "expected exclude to be rejected for registry")
}

func TestNormalizeArgs(t *testing.T) {
	got := normalizeArgs([]string{"a.js", "--base", "web", "b.js", "--format=json"})
	want := []string{"--base", "web", "--format=json", "--", "a.js", "b.js"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := normalizeArgs([]string{"--base", "web"}); !reflect.DeepEqual(got, []string{"--base", "web"}) {
		t.Fatalf("unexpected flags-only normalization: %v", got)
	}
}
