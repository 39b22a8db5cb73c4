// Package source loads module files for the resolver: it reads them, wraps
// non-script content into a CommonJS export and parses scripts.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ben-ranford/bundlegraph/internal/bundle"
	"github.com/ben-ranford/bundlegraph/internal/lang/js"
	"github.com/ben-ranford/bundlegraph/internal/safeio"
)

const (
	ignoredSource = "module.exports={};"
	exportsPrefix = "module.exports"
)

var ErrSyntax = errors.New("syntax error")

type Parser interface {
	Parse(ctx context.Context, path string, content []byte) (*sitter.Tree, error)
}

type Options struct {
	// Ignore lists module names whose source is replaced by an empty export.
	Ignore []string
	// NoParse lists module names that are loaded but never parsed, so their
	// requires are not followed.
	NoParse        []string
	ValidateSyntax bool
	MaxBytes       int64
}

type Reader struct {
	parser  Parser
	ignore  map[string]struct{}
	noParse map[string]struct{}
	options Options
	logger  *slog.Logger
}

func NewReader(parser Parser, options Options, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reader{
		parser:  parser,
		ignore:  toSet(options.Ignore),
		noParse: toSet(options.NoParse),
		options: options,
		logger:  logger,
	}
}

// Read populates item.Source and, for parsed scripts, item.AST.
func (r *Reader) Read(ctx context.Context, item *bundle.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := r.ignore[item.ModuleName]; ok {
		r.logger.Debug("ignoring module source", "module", item.ModuleName)
		item.Source = ignoredSource
		item.AST = nil
		return nil
	}

	data, err := safeio.ReadFileLimit(item.Filename, r.options.MaxBytes)
	if err != nil {
		return fmt.Errorf("read %s: %w", item.Filename, err)
	}

	if !item.IsScript() {
		source, err := wrapNonScript(data)
		if err != nil {
			return fmt.Errorf("wrap %s: %w", item.Filename, err)
		}
		item.Source = source
		item.AST = nil
		return nil
	}

	item.Source = string(data)
	item.AST = nil
	if _, ok := r.noParse[item.ModuleName]; ok {
		return nil
	}

	tree, err := r.parser.Parse(ctx, item.Filename, data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", item.Filename, err)
	}
	if r.options.ValidateSyntax {
		if line, column, found := js.SyntaxErrorLocation(tree); found {
			return fmt.Errorf("%w in %s:%d:%d", ErrSyntax, item.Filename, line, column)
		}
	}
	item.AST = tree
	return nil
}

// wrapNonScript turns JSON, stylesheets and other assets into a CommonJS
// module. Content already assigning module.exports is kept as is.
func wrapNonScript(data []byte) (string, error) {
	content := string(data)
	if strings.HasPrefix(content, exportsPrefix) {
		return content, nil
	}
	if json.Valid(data) {
		return "\nmodule.exports = " + content + ";", nil
	}

	var encoded bytes.Buffer
	encoder := json.NewEncoder(&encoded)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(content); err != nil {
		return "", err
	}
	return "\nmodule.exports = " + strings.TrimSuffix(encoded.String(), "\n") + ";", nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	return set
}
