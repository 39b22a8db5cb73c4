package registry

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ben-ranford/bundlegraph/internal/testutil"
)

func TestComponentsDirList(t *testing.T) {
	root := testutil.ProjectDir(t, map[string]string{
		"bower_components/jquery/.bower.json": `{"name": "jquery", "main": "dist/jquery.js"}`,
		"bower_components/jquery/bower.json":  `{"name": "jquery", "main": "src/jquery.js"}`,
		"bower_components/lodash/bower.json":  `{"name": "lodash", "main": ["lodash.js", "lodash.css"]}`,
		"bower_components/plain/index.js":     "",
		"bower_components/stray-file.txt":     "",
	})

	packages, err := ComponentsDir{BaseDir: root}.List(context.Background())
	if err != nil {
		t.Fatalf("list components: %v", err)
	}
	if len(packages) != 3 {
		t.Fatalf("expected three packages, got %#v", packages)
	}
	jquery := packages["jquery"]
	if jquery.CanonicalDir != filepath.Join(root, "bower_components", "jquery") {
		t.Fatalf("unexpected canonical dir %s", jquery.CanonicalDir)
	}
	if len(jquery.Main) != 1 || jquery.Main[0] != "dist/jquery.js" {
		t.Fatalf("expected .bower.json to win, got %#v", jquery.Main)
	}
	if len(packages["lodash"].Main) != 2 {
		t.Fatalf("expected list main for lodash, got %#v", packages["lodash"].Main)
	}
	if packages["plain"].Main != nil {
		t.Fatalf("expected no main for plain package")
	}
}

func TestComponentsDirHonoursBowerrc(t *testing.T) {
	root := testutil.ProjectDir(t, map[string]string{
		".bowerrc":                 `{"directory": "vendor/components"}`,
		"vendor/components/x/x.js": "",
	})
	lister := ComponentsDir{BaseDir: root}

	dir, err := lister.Dir()
	if err != nil {
		t.Fatalf("components dir: %v", err)
	}
	if want := filepath.Join(root, "vendor", "components"); dir != want {
		t.Fatalf("expected %s, got %s", want, dir)
	}
	packages, err := lister.List(context.Background())
	if err != nil || len(packages) != 1 {
		t.Fatalf("expected one package, got %#v (%v)", packages, err)
	}
}

func TestComponentsDirErrors(t *testing.T) {
	missing := testutil.ProjectDir(t, map[string]string{"a.js": ""})
	if _, err := (ComponentsDir{BaseDir: missing}).List(context.Background()); err == nil {
		t.Fatalf("expected error for missing components directory")
	}

	badRC := testutil.ProjectDir(t, map[string]string{".bowerrc": "{"})
	if _, err := (ComponentsDir{BaseDir: badRC}).Dir(); err == nil {
		t.Fatalf("expected error for invalid .bowerrc")
	}
}

func TestComponentsDirSkipsMalformedMetadata(t *testing.T) {
	root := testutil.ProjectDir(t, map[string]string{
		"bower_components/broken/bower.json": "{",
		"bower_components/broken/broken.js":  "",
		"bower_components/lodash/bower.json": `{"name": "lodash", "main": "lodash.js"}`,
	})
	var logs bytes.Buffer
	lister := ComponentsDir{BaseDir: root, Logger: slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	packages, err := lister.List(context.Background())
	if err != nil {
		t.Fatalf("list components: %v", err)
	}
	if _, ok := packages["broken"]; ok || len(packages) != 1 {
		t.Fatalf("expected only the healthy package, got %#v", packages)
	}
	if !strings.Contains(logs.String(), "package=broken") {
		t.Fatalf("expected skipped package to be logged, got %s", logs.String())
	}
}
