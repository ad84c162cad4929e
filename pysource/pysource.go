package pysource

// Package pysource locates function and method definitions in Python source
// files so executed line numbers can be mapped back onto them.

import (
	"fmt"
	"os"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// Function is a function or method definition. Lines are 1-based and
// inclusive.
type Function struct {
	// Enclosing class names joined with ".", empty for module level functions
	Class string
	Name  string
	// Lines of the whole definition, decorators excluded
	StartLine int
	EndLine   int
	// Lines of the body. The def line itself runs at import time, so only
	// the body says whether the function was called.
	BodyStartLine int
	BodyEndLine   int
}

// Parse returns every function definition in source, nested ones included,
// in source order.
func Parse(source []byte) ([]Function, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(tree_sitter.NewLanguage(tree_sitter_python.Language())); err != nil {
		return nil, fmt.Errorf("set language python: %w", err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned nil tree")
	}
	defer tree.Close()

	var funcs []Function
	walk(tree.RootNode(), source, nil, &funcs)
	return funcs, nil
}

// ParseFile parses the Python file at path.
func ParseFile(path string) ([]Function, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	funcs, err := Parse(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return funcs, nil
}

func walk(node *tree_sitter.Node, source []byte, classes []string, funcs *[]Function) {
	switch node.Kind() {
	case "class_definition":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			classes = append(classes[:len(classes):len(classes)], nameNode.Utf8Text(source))
		}

	case "function_definition":
		if fn, ok := function(node, source, classes); ok {
			*funcs = append(*funcs, fn)
		}
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			walk(child, source, classes, funcs)
		}
	}
}

func function(node *tree_sitter.Node, source []byte, classes []string) (Function, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return Function{}, false
	}

	fn := Function{
		Name:      nameNode.Utf8Text(source),
		StartLine: int(node.StartPosition().Row) + 1,
		EndLine:   int(node.EndPosition().Row) + 1,
	}
	for i, c := range classes {
		if i > 0 {
			fn.Class += "."
		}
		fn.Class += c
	}

	fn.BodyStartLine, fn.BodyEndLine = fn.StartLine, fn.EndLine
	if body := node.ChildByFieldName("body"); body != nil {
		fn.BodyStartLine = int(body.StartPosition().Row) + 1
		fn.BodyEndLine = int(body.EndPosition().Row) + 1
	}
	return fn, true
}

// Find returns the definition of method in class. class may be a dotted
// path; only its last segment has to match the innermost enclosing class.
// When no class matches, a module level function of that name is returned.
func Find(funcs []Function, class, method string) (Function, bool) {
	simple := lastSegment(class)
	for _, fn := range funcs {
		if fn.Name == method && fn.Class != "" && lastSegment(fn.Class) == simple {
			return fn, true
		}
	}
	for _, fn := range funcs {
		if fn.Name == method && fn.Class == "" {
			return fn, true
		}
	}
	return Function{}, false
}

func lastSegment(s string) string {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[i+1:]
		}
	}
	return s
}
