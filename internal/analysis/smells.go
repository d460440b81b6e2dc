package analysis

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pylens/internal/parser"
)

// Thresholds for the maintainability checks. Loaded once, passed explicitly,
// never mutated by the detector. A value equal to the threshold is clean;
// threshold+1 flags.
type Thresholds struct {
	LongFunctionLines int `toml:"long_function_lines" json:"long_function_lines"`
	MaxParameters     int `toml:"max_parameters" json:"max_parameters"`
	MaxNestingDepth   int `toml:"max_nesting_depth" json:"max_nesting_depth"`
	GodClassMethods   int `toml:"god_class_methods" json:"god_class_methods"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		LongFunctionLines: 50,
		MaxParameters:     5,
		MaxNestingDepth:   4,
		GodClassMethods:   20,
	}
}

type SmellKind string

const (
	SmellLongFunction  SmellKind = "long_function"
	SmellTooManyParams SmellKind = "too_many_params"
	SmellDeepNesting   SmellKind = "deep_nesting"
	SmellGodClass      SmellKind = "god_class"
)

// SmellFinding is one flagged symbol: what was measured, against which
// threshold, and how bad it is.
type SmellFinding struct {
	Kind      SmellKind `json:"kind"`
	Name      string    `json:"name"`
	Value     int       `json:"value"`
	Threshold int       `json:"threshold"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Params    []string  `json:"params,omitempty"`
	Methods   []string  `json:"methods,omitempty"`
}

type SmellReport struct {
	LongFunctions  []SmellFinding   `json:"long_functions"`
	TooManyParams  []SmellFinding   `json:"too_many_params"`
	DeepNesting    []SmellFinding   `json:"deep_nesting"`
	GodClasses     []SmellFinding   `json:"god_classes"`
	TotalSmells    int              `json:"total_smells"`
	SeverityCounts map[Severity]int `json:"severity_counts"`
}

func emptySmellReport() *SmellReport {
	return &SmellReport{
		LongFunctions:  []SmellFinding{},
		TooManyParams:  []SmellFinding{},
		DeepNesting:    []SmellFinding{},
		GodClasses:     []SmellFinding{},
		SeverityCounts: map[Severity]int{SeverityWarning: 0, SeverityError: 0},
	}
}

// DetectSmells runs the maintainability checks on one version of a source
// file. Invalid source returns a *parser.ParseError; the detector itself
// never panics on any input.
func DetectSmells(src []byte, th Thresholds) (*SmellReport, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	return detectSmellsTree(tree, th), nil
}

func detectSmellsTree(tree *parser.Tree, th Thresholds) *SmellReport {
	d := &smellDetector{tree: tree, th: th, report: emptySmellReport()}
	d.walk(tree.Root())

	for _, findings := range [][]SmellFinding{
		d.report.LongFunctions,
		d.report.TooManyParams,
		d.report.DeepNesting,
		d.report.GodClasses,
	} {
		d.report.TotalSmells += len(findings)
		for _, f := range findings {
			d.report.SeverityCounts[f.Severity]++
		}
	}
	return d.report
}

type smellDetector struct {
	tree   *parser.Tree
	th     Thresholds
	report *SmellReport
}

func (d *smellDetector) walk(node *sitter.Node) {
	switch node.Kind() {
	case nodeFunctionDef:
		d.checkFunction(node)
	case nodeClassDef:
		d.checkClass(node)
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		d.walk(node.Child(i))
	}
}

func (d *smellDetector) checkFunction(fn *sitter.Node) {
	name := d.tree.Text(fn.ChildByFieldName("name"))
	if name == "" {
		return
	}

	d.checkLength(fn, name)
	d.checkParameters(fn, name)
	d.checkNesting(fn, name)
}

// checkLength measures from the def line through the last line the function
// node spans, inclusive.
func (d *smellDetector) checkLength(fn *sitter.Node, name string) {
	lines := int(fn.EndPosition().Row-fn.StartPosition().Row) + 1
	if lines <= d.th.LongFunctionLines {
		return
	}

	severity := SeverityWarning
	if lines > d.th.LongFunctionLines*2 {
		severity = SeverityError
	}
	d.report.LongFunctions = append(d.report.LongFunctions, SmellFinding{
		Kind:      SmellLongFunction,
		Name:      name,
		Value:     lines,
		Threshold: d.th.LongFunctionLines,
		Severity:  severity,
		Message:   fmt.Sprintf("function %q is %d lines long (threshold %d)", name, lines, d.th.LongFunctionLines),
	})
}

func (d *smellDetector) checkParameters(fn *sitter.Node, name string) {
	params := d.parameterNames(fn)
	if len(params) <= d.th.MaxParameters {
		return
	}

	d.report.TooManyParams = append(d.report.TooManyParams, SmellFinding{
		Kind:      SmellTooManyParams,
		Name:      name,
		Value:     len(params),
		Threshold: d.th.MaxParameters,
		Severity:  SeverityWarning,
		Message:   fmt.Sprintf("function %q takes %d parameters (threshold %d)", name, len(params), d.th.MaxParameters),
		Params:    params,
	})
}

// parameterNames lists the named parameters, skipping splat forms and the
// receiver name self.
func (d *smellDetector) parameterNames(fn *sitter.Node) []string {
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}

	names := make([]string, 0, params.ChildCount())
	appendName := func(name string) {
		if name != "" && name != "self" {
			names = append(names, name)
		}
	}

	for i := uint(0); i < params.ChildCount(); i++ {
		child := params.Child(i)
		switch child.Kind() {
		case nodeIdentifier:
			appendName(d.tree.Text(child))
		case nodeTypedParameter:
			// The pattern is the first child; splat patterns stay excluded.
			if inner := child.Child(0); inner != nil && inner.Kind() == nodeIdentifier {
				appendName(d.tree.Text(inner))
			}
		case nodeDefaultParam, nodeTypedDefault:
			if inner := child.ChildByFieldName("name"); inner != nil && inner.Kind() == nodeIdentifier {
				appendName(d.tree.Text(inner))
			}
		}
	}
	return names
}

func (d *smellDetector) checkNesting(fn *sitter.Node, name string) {
	depth := maxNesting(fn.ChildByFieldName("body"), 0)
	if depth <= d.th.MaxNestingDepth {
		return
	}

	severity := SeverityWarning
	if depth > d.th.MaxNestingDepth+2 {
		severity = SeverityError
	}
	d.report.DeepNesting = append(d.report.DeepNesting, SmellFinding{
		Kind:      SmellDeepNesting,
		Name:      name,
		Value:     depth,
		Threshold: d.th.MaxNestingDepth,
		Severity:  severity,
		Message:   fmt.Sprintf("function %q nests %d levels deep (threshold %d)", name, depth, d.th.MaxNestingDepth),
	})
}

// maxNesting is the deepest stack of control structures in a body. A nested
// def adds no level of its own, but the structures inside it charge the
// enclosing function as well as the nested one.
func maxNesting(node *sitter.Node, depth int) int {
	if node == nil {
		return depth
	}

	deepest := depth
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		childDepth := depth

		switch child.Kind() {
		case nodeIf, nodeElif,
			nodeFor, nodeWhile,
			nodeTry, nodeExcept, nodeExceptGroup,
			nodeWith:
			childDepth = depth + 1
		}

		if sub := maxNesting(child, childDepth); sub > deepest {
			deepest = sub
		}
	}
	return deepest
}

func (d *smellDetector) checkClass(class *sitter.Node) {
	name := d.tree.Text(class.ChildByFieldName("name"))
	if name == "" {
		return
	}

	methods := directMethodNames(d.tree, class)
	if len(methods) <= d.th.GodClassMethods {
		return
	}

	d.report.GodClasses = append(d.report.GodClasses, SmellFinding{
		Kind:      SmellGodClass,
		Name:      name,
		Value:     len(methods),
		Threshold: d.th.GodClassMethods,
		Severity:  SeverityError,
		Message:   fmt.Sprintf("class %q has %d methods (threshold %d)", name, len(methods), d.th.GodClassMethods),
		Methods:   methods,
	})
}

// directMethodNames lists a class body's immediate function definitions in
// source order, unwrapping decorated ones.
func directMethodNames(tree *parser.Tree, class *sitter.Node) []string {
	body := class.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	var methods []string
	for i := uint(0); i < body.ChildCount(); i++ {
		member := body.Child(i)
		if member.Kind() == nodeDecoratedDef {
			if def := member.ChildByFieldName("definition"); def != nil {
				member = def
			}
		}
		if member.Kind() != nodeFunctionDef {
			continue
		}
		if name := tree.Text(member.ChildByFieldName("name")); name != "" {
			methods = append(methods, name)
		}
	}
	return methods
}
