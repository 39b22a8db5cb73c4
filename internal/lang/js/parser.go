package js

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	tsxlang "github.com/smacker/go-tree-sitter/typescript/tsx"
	tslang "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Parser builds tree-sitter syntax trees for JavaScript and TypeScript sources.
// It is safe for concurrent use; every Parse call gets its own sitter.Parser.
type Parser struct {
	js  *sitter.Language
	ts  *sitter.Language
	tsx *sitter.Language
}

func NewParser() *Parser {
	return &Parser{
		js:  javascript.GetLanguage(),
		ts:  tslang.GetLanguage(),
		tsx: tsxlang.GetLanguage(),
	}
}

func (p *Parser) Parse(ctx context.Context, path string, content []byte) (*sitter.Tree, error) {
	lang, err := p.languageForPath(path)
	if err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned nil tree for %s", path)
	}
	return tree, nil
}

func (p *Parser) languageForPath(path string) (*sitter.Language, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".js", ".cjs", ".mjs", ".jsx":
		return p.js, nil
	case ".ts", ".mts", ".cts":
		return p.ts, nil
	case ".tsx":
		return p.tsx, nil
	default:
		return nil, fmt.Errorf("unsupported extension: %s", ext)
	}
}

// SyntaxErrorLocation returns the 1-based position of the first error node, if any.
func SyntaxErrorLocation(tree *sitter.Tree) (int, int, bool) {
	if tree == nil || !tree.RootNode().HasError() {
		return 0, 0, false
	}
	var found *sitter.Node
	walkAllNodes(tree.RootNode(), func(node *sitter.Node) bool {
		if found != nil {
			return false
		}
		if node.Type() == "ERROR" || node.IsMissing() {
			found = node
			return false
		}
		return node.HasError()
	})
	if found == nil {
		return 1, 1, true
	}
	point := found.StartPoint()
	return int(point.Row) + 1, int(point.Column) + 1, true
}

// walkNode visits named descendants depth first. Returning false from visit
// skips the children of that node.
func walkNode(node *sitter.Node, visit func(*sitter.Node) bool) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if visit(child) {
			walkNode(child, visit)
		}
	}
}

// walkAllNodes is walkNode over every child, anonymous tokens included.
// Missing tokens inserted by error recovery are anonymous.
func walkAllNodes(node *sitter.Node, visit func(*sitter.Node) bool) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if visit(child) {
			walkAllNodes(child, visit)
		}
	}
}

func nodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	return string(content[node.StartByte():node.EndByte()])
}
