package source

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ben-ranford/bundlegraph/internal/bundle"
	"github.com/ben-ranford/bundlegraph/internal/lang/js"
	"github.com/ben-ranford/bundlegraph/internal/safeio"
	"github.com/ben-ranford/bundlegraph/internal/testutil"
)

func readItem(t *testing.T, reader *Reader, moduleName, filename, content string) *bundle.Item {
	t.Helper()
	path := testutil.WriteTempFile(t, filename, content)
	item := bundle.NewItem(moduleName)
	item.Filename = path
	if err := reader.Read(context.Background(), item); err != nil {
		t.Fatalf("read %s: %v", filename, err)
	}
	return item
}

func defaultReader(options Options) *Reader {
	return NewReader(js.NewParser(), options, nil)
}

func TestReadIgnoredModule(t *testing.T) {
	reader := defaultReader(Options{Ignore: []string{"jquery"}})
	item := bundle.NewItem("jquery")
	item.Filename = filepath.Join(t.TempDir(), "does-not-exist.js")

	if err := reader.Read(context.Background(), item); err != nil {
		t.Fatalf("read ignored: %v", err)
	}
	if item.Source != "module.exports={};" || item.AST != nil {
		t.Fatalf("expected empty export without AST, got %q", item.Source)
	}
}

func TestReadScriptSourceAndAST(t *testing.T) {
	item := readItem(t, defaultReader(Options{}), "./x", "x.js", "var x;")
	if item.Source != "var x;" {
		t.Fatalf("expected raw source, got %q", item.Source)
	}
	if item.AST == nil || item.AST.RootNode().Type() != "program" {
		t.Fatalf("expected program AST")
	}
}

func TestReadNoParseModuleHasNoAST(t *testing.T) {
	item := readItem(t, defaultReader(Options{NoParse: []string{"big"}}), "big", "big.js", `require("./other");`)
	if item.AST != nil {
		t.Fatalf("expected no AST for noParse module")
	}
	if item.Source != `require("./other");` {
		t.Fatalf("expected raw source, got %q", item.Source)
	}
}

func TestReadWrapsNonScriptContent(t *testing.T) {
	cases := []struct {
		filename string
		content  string
		want     string
	}{
		{"data.json", `[1,2,3,"a","b","c"]`, "\nmodule.exports = [1,2,3,\"a\",\"b\",\"c\"];"},
		{"style.css", ".color { color: red; }", "\nmodule.exports = \".color { color: red; }\";"},
		{"style.css.json", `{"color":"_color_xkpkl_5"}`, "\nmodule.exports = {\"color\":\"_color_xkpkl_5\"};"},
		{"already.css", "module.exports = '';", "module.exports = '';"},
		{"quoted.css", "{ color: '_color_xkpkl_5'; }", "\nmodule.exports = \"{ color: '_color_xkpkl_5'; }\";"},
		{"code.txt", "(function() {return {foo: 'baz',bork: true}})();", "\nmodule.exports = \"(function() {return {foo: 'baz',bork: true}})();\";"},
		{"markup.html", "<b>&</b>\n", "\nmodule.exports = \"<b>&</b>\\n\";"},
		{"empty.txt", "", "\nmodule.exports = \"\";"},
	}
	reader := defaultReader(Options{ValidateSyntax: true})
	for _, tc := range cases {
		item := readItem(t, reader, "./"+tc.filename, tc.filename, tc.content)
		if item.Source != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.filename, tc.want, item.Source)
		}
		if item.AST != nil {
			t.Fatalf("%s: expected no AST for non-script file", tc.filename)
		}
	}
}

func TestReadValidateSyntax(t *testing.T) {
	path := testutil.WriteTempFile(t, "broken.js", "var = ;\n")
	item := bundle.NewItem("./broken")
	item.Filename = path

	err := defaultReader(Options{ValidateSyntax: true}).Read(context.Background(), item)
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected ErrSyntax, got %v", err)
	}

	lenient := bundle.NewItem("./broken")
	lenient.Filename = path
	if err := defaultReader(Options{}).Read(context.Background(), lenient); err != nil {
		t.Fatalf("expected lenient parse without validation, got %v", err)
	}
	if lenient.AST == nil {
		t.Fatalf("expected partial AST without validation")
	}
}

func TestReadErrors(t *testing.T) {
	reader := defaultReader(Options{MaxBytes: 4})

	missing := bundle.NewItem("./missing")
	missing.Filename = filepath.Join(t.TempDir(), "missing.js")
	if err := reader.Read(context.Background(), missing); err == nil {
		t.Fatalf("expected error for missing file")
	}

	large := bundle.NewItem("./large")
	large.Filename = testutil.WriteTempFile(t, "large.js", "var abc = 1;")
	if err := reader.Read(context.Background(), large); !errors.Is(err, safeio.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}

	if err := reader.Read(testutil.CanceledContext(), large); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
