package js

import (
	"context"
	"regexp"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ben-ranford/bundlegraph/internal/bundle"
)

var requirePattern = regexp.MustCompile(`require\s*\(`)

// DependencyWalker discovers the CommonJS require references of loaded items.
type DependencyWalker struct{}

func NewDependencyWalker() *DependencyWalker {
	return &DependencyWalker{}
}

// HasRequire is a textual pre-check; it may report true for sources whose
// syntax tree holds no usable require call.
func (w *DependencyWalker) HasRequire(source string) bool {
	return requirePattern.MatchString(source)
}

// CollectDependencies returns the module names passed as string literals to
// require, in source order and without duplicates.
func (w *DependencyWalker) CollectDependencies(ctx context.Context, item *bundle.Item) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if item.AST == nil {
		return nil, nil
	}
	return collectRequireNames(item.AST.RootNode(), []byte(item.Source)), nil
}

func collectRequireNames(root *sitter.Node, content []byte) []string {
	names := make([]string, 0)
	seen := make(map[string]struct{})
	walkNode(root, func(node *sitter.Node) bool {
		if node.Type() != "call_expression" {
			return true
		}
		name, ok := parseRequireCall(node, content)
		if !ok {
			return true
		}
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			names = append(names, name)
		}
		return true
	})
	return names
}

func parseRequireCall(node *sitter.Node, content []byte) (string, bool) {
	functionNode := node.ChildByFieldName("function")
	if functionNode == nil || functionNode.Type() != "identifier" {
		return "", false
	}
	if nodeText(functionNode, content) != "require" {
		return "", false
	}

	argumentsNode := node.ChildByFieldName("arguments")
	if argumentsNode == nil || argumentsNode.NamedChildCount() == 0 {
		return "", false
	}
	return extractStringLiteral(argumentsNode.NamedChild(0), content)
}

func extractStringLiteral(node *sitter.Node, content []byte) (string, bool) {
	if node == nil || node.Type() != "string" {
		return "", false
	}
	text := nodeText(node, content)
	if len(text) < 2 {
		return "", false
	}
	quote := text[0]
	if (quote != '"' && quote != '\'') || text[len(text)-1] != quote {
		return "", false
	}
	value := text[1 : len(text)-1]
	if value == "" {
		return "", false
	}
	return value, true
}
