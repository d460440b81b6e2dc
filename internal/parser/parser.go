package parser

import (
	"errors"
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

var pythonLanguage = sitter.NewLanguage(tree_sitter_python.Language())

// ParseError reports invalid Python source. Line and Column are 1-based and
// locate the first syntax error in the file.
type ParseError struct {
	Line    int
	Column  int
	Snippet string
}

func (e *ParseError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("syntax error at %d:%d near %q", e.Line, e.Column, e.Snippet)
	}
	return fmt.Sprintf("syntax error at %d:%d", e.Line, e.Column)
}

// AsParseError unwraps err as a *ParseError.
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// Tree is a parsed syntax tree together with the source it was built from.
// Trees own C-side memory; the caller that obtained one must Close it.
type Tree struct {
	src  []byte
	tree *sitter.Tree
}

func (t *Tree) Root() *sitter.Node { return t.tree.RootNode() }

func (t *Tree) Source() []byte { return t.src }

// Text returns the source slice covered by node.
func (t *Tree) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(t.src[node.StartByte():node.EndByte()])
}

func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

// Parse parses Python source text. tree-sitter recovers from nearly any
// input, so leniency is undone here: a tree containing ERROR or missing
// nodes is rejected and reported as a *ParseError.
func Parse(source []byte) (*Tree, error) {
	p := defaultPool.Get()
	defer defaultPool.Put(p)

	tree := p.Parse(source, nil)
	if tree == nil {
		return nil, &ParseError{Line: 1, Column: 1}
	}

	root := tree.RootNode()
	if root.HasError() {
		err := errorAt(root, source)
		tree.Close()
		return nil, err
	}

	return &Tree{src: source, tree: tree}, nil
}

func errorAt(root *sitter.Node, source []byte) *ParseError {
	bad := firstErrorNode(root)
	if bad == nil {
		bad = root
	}

	start := bad.StartByte()
	end := bad.EndByte()
	if end > start+40 {
		end = start + 40
	}
	if end > uint(len(source)) {
		end = uint(len(source))
	}

	pos := bad.StartPosition()
	return &ParseError{
		Line:    int(pos.Row) + 1,
		Column:  int(pos.Column) + 1,
		Snippet: strings.TrimSpace(string(source[start:end])),
	}
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	if !node.HasError() {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if found := firstErrorNode(node.Child(i)); found != nil {
			return found
		}
	}
	return node
}
