package analysis

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pylens/internal/parser"
)

// ModuleDocstringKey is the Docstrings key for the module-level docstring.
const ModuleDocstringKey = "__module__"

// Snapshot is the structural inventory of one version of a Python source
// file. Every field is fully materialized at extraction time; nothing holds
// on to the syntax tree. Names share one flat namespace: a duplicate
// definition overwrites the earlier one (last wins).
type Snapshot struct {
	Functions    map[string]bool
	Classes      map[string]bool
	ClassMethods map[string]map[string]bool
	Imports      map[string]bool
	Decorators   map[string][]string
	Docstrings   map[string]string
	Complexity   map[string]int
	Annotations  map[string]float64
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		Functions:    make(map[string]bool),
		Classes:      make(map[string]bool),
		ClassMethods: make(map[string]map[string]bool),
		Imports:      make(map[string]bool),
		Decorators:   make(map[string][]string),
		Docstrings:   make(map[string]string),
		Complexity:   make(map[string]int),
		Annotations:  make(map[string]float64),
	}
}

// Extract parses source and builds its snapshot. Invalid source returns a
// *parser.ParseError.
func Extract(src []byte) (*Snapshot, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	return ExtractTree(tree), nil
}

// ExtractTree builds a snapshot from an already parsed tree.
func ExtractTree(tree *parser.Tree) *Snapshot {
	e := &extractor{tree: tree, snap: newSnapshot()}
	root := tree.Root()

	if doc, ok := e.docstringOf(root); ok {
		e.snap.Docstrings[ModuleDocstringKey] = doc
	}

	e.walk(root)
	return e.snap
}

// extractor threads the snapshot under construction through one pre-order
// walk of the tree.
type extractor struct {
	tree *parser.Tree
	snap *Snapshot
}

func (e *extractor) walk(node *sitter.Node) {
	switch node.Kind() {
	case nodeImport:
		e.importStatement(node)
		return
	case nodeImportFrom:
		e.importFrom(node)
		return
	case nodeFunctionDef:
		e.function(node)
	case nodeClassDef:
		e.class(node)
	}

	// Nested definitions flatten into the same namespace, so the walk always
	// descends.
	for i := uint(0); i < node.ChildCount(); i++ {
		e.walk(node.Child(i))
	}
}

func (e *extractor) text(node *sitter.Node) string {
	return e.tree.Text(node)
}

// importStatement records `import X` and `import X as Y` as X.
func (e *extractor) importStatement(node *sitter.Node) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case nodeDottedName, nodeIdentifier:
			e.snap.Imports[e.text(child)] = true
		case nodeAliasedImport:
			if name := child.ChildByFieldName("name"); name != nil {
				e.snap.Imports[e.text(name)] = true
			}
		}
	}
}

// importFrom records `from M import X` as M.X and `from M import *` as M.*.
// Relative dots are stripped, so `from . import X` records the bare X.
// Aliases never change the recorded name.
func (e *extractor) importFrom(node *sitter.Node) {
	module := importedModule(e.tree, node)

	qualify := func(name string) string {
		if module == "" {
			return name
		}
		return module + "." + name
	}

	seenImport := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "import":
			seenImport = true
		case nodeWildcardImport:
			e.snap.Imports[qualify("*")] = true
		case nodeDottedName, nodeIdentifier:
			if seenImport {
				e.snap.Imports[qualify(e.text(child))] = true
			}
		case nodeAliasedImport:
			if name := child.ChildByFieldName("name"); name != nil {
				e.snap.Imports[qualify(e.text(name))] = true
			}
		}
	}
}

// importedModule resolves the module_name field of an import_from_statement,
// stripping the leading dots of a relative import.
func importedModule(tree *parser.Tree, node *sitter.Node) string {
	mod := node.ChildByFieldName("module_name")
	if mod == nil {
		return ""
	}
	if mod.Kind() == nodeRelativeImport {
		return strings.TrimLeft(tree.Text(mod), ".")
	}
	return tree.Text(mod)
}

func (e *extractor) function(node *sitter.Node) {
	name := e.definitionName(node)
	if name == "" {
		return
	}

	e.snap.Functions[name] = true
	e.snap.Complexity[name] = functionComplexity(node)
	e.snap.Annotations[name] = e.annotationCoverage(node)

	if decs := e.decorators(node); len(decs) > 0 {
		e.snap.Decorators[name] = decs
	}
	if doc, ok := e.docstringOf(node.ChildByFieldName("body")); ok {
		e.snap.Docstrings[name] = doc
	}
}

func (e *extractor) class(node *sitter.Node) {
	name := e.definitionName(node)
	if name == "" {
		return
	}

	e.snap.Classes[name] = true
	e.snap.ClassMethods[name] = e.directMethods(node)

	if decs := e.decorators(node); len(decs) > 0 {
		e.snap.Decorators[name] = decs
	}
	if doc, ok := e.docstringOf(node.ChildByFieldName("body")); ok {
		e.snap.Docstrings[name] = doc
	}
}

func (e *extractor) definitionName(node *sitter.Node) string {
	return e.text(node.ChildByFieldName("name"))
}

// directMethods collects the function definitions that sit immediately in the
// class body. Functions nested deeper belong to their enclosing method, not
// the class.
func (e *extractor) directMethods(class *sitter.Node) map[string]bool {
	methods := make(map[string]bool)
	for _, name := range directMethodNames(e.tree, class) {
		methods[name] = true
	}
	return methods
}

// decorators renders the decorators attached to a definition, in source
// order, each kept as its `@...` source text. A decorator whose text cannot
// be rendered falls back to the placeholder.
func (e *extractor) decorators(node *sitter.Node) []string {
	parent := node.Parent()
	if parent == nil || parent.Kind() != nodeDecoratedDef {
		return nil
	}

	var decs []string
	for i := uint(0); i < parent.ChildCount(); i++ {
		child := parent.Child(i)
		if child.Kind() != nodeDecorator {
			continue
		}
		dec := strings.TrimSpace(e.text(child))
		if dec == "" || dec == "@" {
			dec = "@<complex>"
		}
		decs = append(decs, dec)
	}
	return decs
}

// docstringOf returns the docstring of a body block: present only when the
// first statement (comments skipped) is a bare string-literal expression.
func (e *extractor) docstringOf(body *sitter.Node) (string, bool) {
	stmt := firstStatement(body)
	if stmt == nil || stmt.Kind() != nodeExpressionStmt {
		return "", false
	}

	var str *sitter.Node
	for i := uint(0); i < stmt.ChildCount(); i++ {
		child := stmt.Child(i)
		if child.Kind() == nodeString {
			if str != nil {
				return "", false
			}
			str = child
		}
	}

	content, ok := plainStringContent(e.tree, str)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(content), true
}

func firstStatement(body *sitter.Node) *sitter.Node {
	if body == nil {
		return nil
	}
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		if child.Kind() == nodeComment {
			continue
		}
		return child
	}
	return nil
}

// annotationCoverage is the share of annotatable slots that carry a type
// annotation: every named parameter except a leading bare self/cls receiver,
// plus one slot for the return type. One-decimal percentage.
func (e *extractor) annotationCoverage(fn *sitter.Node) float64 {
	total := 1 // return slot
	annotated := 0
	if fn.ChildByFieldName("return_type") != nil {
		annotated++
	}

	params := fn.ChildByFieldName("parameters")
	if params != nil {
		first := true
		for i := uint(0); i < params.ChildCount(); i++ {
			child := params.Child(i)
			switch child.Kind() {
			case nodeIdentifier:
				name := e.text(child)
				if first && (name == "self" || name == "cls") {
					first = false
					continue
				}
				first = false
				total++
			case nodeTypedParameter, nodeTypedDefault:
				first = false
				total++
				annotated++
			case nodeDefaultParam, nodeListSplat, nodeDictSplat:
				first = false
				total++
			}
		}
	}

	return round1(float64(annotated) / float64(total) * 100)
}
