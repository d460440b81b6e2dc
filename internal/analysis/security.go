package analysis

import (
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pylens/internal/parser"
)

// SecurityPatterns configures the scanner. Kinds and severities are fixed;
// only the matched names are configurable.
type SecurityPatterns struct {
	DangerousCalls []string            `toml:"dangerous_calls"`
	RiskyModules   map[string][]string `toml:"risky_modules"`
	SecretPatterns []string            `toml:"secret_patterns"`
	ShellCalls     []string            `toml:"shell_calls"`
}

func DefaultSecurityPatterns() SecurityPatterns {
	return SecurityPatterns{
		DangerousCalls: []string{
			"eval", "exec", "compile", "__import__", "getattr", "setattr", "delattr",
		},
		RiskyModules: map[string][]string{
			"pickle":     {"load", "loads", "Unpickler"},
			"marshal":    {"load", "loads"},
			"shelve":     {"open"},
			"subprocess": {"call", "run", "Popen", "check_output", "check_call"},
			"os":         {"system", "popen", "spawn", "exec"},
			"commands":   {"getoutput", "getstatusoutput"},
		},
		SecretPatterns: []string{
			`(?i)(api[_-]?key|apikey)`,
			`(?i)(secret[_-]?key|secretkey)`,
			`(?i)(password|passwd|pwd)`,
			`(?i)(token|auth[_-]?token)`,
			`(?i)(private[_-]?key)`,
			`(?i)(access[_-]?key)`,
			`(?i)(credentials?)`,
		},
		ShellCalls: []string{
			"subprocess.run", "subprocess.call", "subprocess.Popen",
			"run", "call", "Popen",
		},
	}
}

type SecurityKind string

const (
	SecurityDangerousCall   SecurityKind = "dangerous_call"
	SecurityRiskyImport     SecurityKind = "risky_import"
	SecurityRiskyCall       SecurityKind = "risky_call"
	SecurityHardcodedSecret SecurityKind = "hardcoded_secret"
	SecurityShellInjection  SecurityKind = "shell_injection"
)

type SecurityFinding struct {
	Kind     SecurityKind `json:"kind"`
	Subject  string       `json:"subject"`
	Line     int          `json:"line"`
	Severity Severity     `json:"severity"`
	Message  string       `json:"message"`
	Module   string       `json:"module,omitempty"`
}

type SecurityReport struct {
	DangerousCalls   []SecurityFinding `json:"dangerous_calls"`
	RiskyImports     []SecurityFinding `json:"risky_imports"`
	RiskyCalls       []SecurityFinding `json:"risky_calls"`
	HardcodedSecrets []SecurityFinding `json:"hardcoded_secrets"`
	ShellInjection   []SecurityFinding `json:"shell_injection"`
	TotalIssues      int               `json:"total_issues"`
	SeverityCounts   map[Severity]int  `json:"severity_counts"`
}

func emptySecurityReport() *SecurityReport {
	return &SecurityReport{
		DangerousCalls:   []SecurityFinding{},
		RiskyImports:     []SecurityFinding{},
		RiskyCalls:       []SecurityFinding{},
		HardcodedSecrets: []SecurityFinding{},
		ShellInjection:   []SecurityFinding{},
		SeverityCounts: map[Severity]int{
			SeverityCritical: 0,
			SeverityHigh:     0,
			SeverityMedium:   0,
		},
	}
}

// Scanner holds the compiled form of one SecurityPatterns set. Build it once
// and share it; Scan is safe for concurrent use.
type Scanner struct {
	dangerous map[string]bool
	risky     map[string]map[string]bool
	secrets   []*regexp.Regexp
	shell     map[string]bool
}

// NewScanner compiles the pattern set. Secret patterns anchor at the start
// of the identifier, matching the way assignment targets are checked.
func NewScanner(p SecurityPatterns) (*Scanner, error) {
	s := &Scanner{
		dangerous: make(map[string]bool, len(p.DangerousCalls)),
		risky:     make(map[string]map[string]bool, len(p.RiskyModules)),
		shell:     make(map[string]bool, len(p.ShellCalls)),
	}

	for _, name := range p.DangerousCalls {
		s.dangerous[name] = true
	}
	for module, funcs := range p.RiskyModules {
		set := make(map[string]bool, len(funcs))
		for _, fn := range funcs {
			set[fn] = true
		}
		s.risky[module] = set
	}
	for _, name := range p.ShellCalls {
		s.shell[name] = true
	}

	for _, pattern := range p.SecretPatterns {
		re, err := regexp.Compile("^(?:" + pattern + ")")
		if err != nil {
			return nil, fmt.Errorf("compile secret pattern %q: %w", pattern, err)
		}
		s.secrets = append(s.secrets, re)
	}

	return s, nil
}

// Scan runs the security checks over one version of a source file. Invalid
// source returns a *parser.ParseError; the scanner never panics on any
// input.
func (s *Scanner) Scan(src []byte) (*SecurityReport, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	return s.scanTree(tree), nil
}

func (s *Scanner) scanTree(tree *parser.Tree) *SecurityReport {
	w := &securityWalk{
		scanner: s,
		tree:    tree,
		aliases: make(map[string]string),
		report:  emptySecurityReport(),
	}
	w.walk(tree.Root())

	for _, findings := range [][]SecurityFinding{
		w.report.DangerousCalls,
		w.report.RiskyImports,
		w.report.RiskyCalls,
		w.report.HardcodedSecrets,
		w.report.ShellInjection,
	} {
		w.report.TotalIssues += len(findings)
		for _, f := range findings {
			w.report.SeverityCounts[f.Severity]++
		}
	}
	return w.report
}

// securityWalk is one pre-order pass. The alias table fills as import
// statements are reached, so resolution is order-dependent: an alias used
// above its import does not resolve.
type securityWalk struct {
	scanner *Scanner
	tree    *parser.Tree
	aliases map[string]string
	report  *SecurityReport
}

func (w *securityWalk) walk(node *sitter.Node) {
	switch node.Kind() {
	case nodeImport:
		w.importStatement(node)
	case nodeImportFrom:
		w.importFrom(node)
	case nodeCall:
		w.call(node)
	case nodeAssignment:
		w.assignment(node)
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		w.walk(node.Child(i))
	}
}

func (w *securityWalk) text(node *sitter.Node) string {
	return w.tree.Text(node)
}

func line(node *sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

// importStatement only feeds the alias table; plain imports of risky modules
// are not findings until a risky function is called through them.
func (w *securityWalk) importStatement(node *sitter.Node) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case nodeDottedName, nodeIdentifier:
			module := w.text(child)
			w.aliases[module] = module
		case nodeAliasedImport:
			name := child.ChildByFieldName("name")
			alias := child.ChildByFieldName("alias")
			if name != nil && alias != nil {
				w.aliases[w.text(alias)] = w.text(name)
			}
		}
	}
}

func (w *securityWalk) importFrom(node *sitter.Node) {
	module := importedModule(w.tree, node)
	riskySet := w.scanner.risky[module]

	flag := func(name string, at *sitter.Node) {
		if riskySet == nil {
			return
		}
		if name != "*" && !riskySet[name] {
			return
		}
		w.report.RiskyImports = append(w.report.RiskyImports, SecurityFinding{
			Kind:     SecurityRiskyImport,
			Subject:  name,
			Module:   module,
			Line:     line(at),
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("import of %s from risky module %q", name, module),
		})
	}

	seenImport := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "import":
			seenImport = true
		case nodeWildcardImport:
			flag("*", child)
		case nodeDottedName, nodeIdentifier:
			if !seenImport {
				continue
			}
			name := w.text(child)
			w.aliases[name] = qualifyName(module, name)
			flag(name, child)
		case nodeAliasedImport:
			name := child.ChildByFieldName("name")
			if name == nil {
				continue
			}
			imported := w.text(name)
			target := qualifyName(module, imported)
			if alias := child.ChildByFieldName("alias"); alias != nil {
				w.aliases[w.text(alias)] = target
			} else {
				w.aliases[imported] = target
			}
			flag(imported, child)
		}
	}
}

func qualifyName(module, name string) string {
	if module == "" {
		return name
	}
	return module + "." + name
}

func (w *securityWalk) call(node *sitter.Node) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}

	switch fn.Kind() {
	case nodeIdentifier:
		name := w.text(fn)
		if w.scanner.dangerous[name] {
			w.report.DangerousCalls = append(w.report.DangerousCalls, SecurityFinding{
				Kind:     SecurityDangerousCall,
				Subject:  name,
				Line:     line(node),
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("call to dangerous builtin %q", name),
			})
		}
		if w.scanner.shell[name] {
			w.checkShellFlag(node, name)
		}
	case nodeAttribute:
		dotted := w.text(fn)
		// A shell=True finding covers the call; reporting it as a risky
		// call too would double-count one line.
		if w.scanner.shell[dotted] && w.checkShellFlag(node, dotted) {
			return
		}
		w.checkRiskyCall(node, dotted)
	}
}

// checkRiskyCall resolves the leading segment of a dotted call through the
// alias table and checks the trailing one against the risky sets.
func (w *securityWalk) checkRiskyCall(node *sitter.Node, dotted string) {
	parts := strings.Split(dotted, ".")
	if len(parts) < 2 {
		return
	}

	module := parts[0]
	if actual, ok := w.aliases[module]; ok {
		module = actual
	}
	if i := strings.IndexByte(module, '.'); i >= 0 {
		module = module[:i]
	}

	method := parts[len(parts)-1]
	if set := w.scanner.risky[module]; set != nil && set[method] {
		w.report.RiskyCalls = append(w.report.RiskyCalls, SecurityFinding{
			Kind:     SecurityRiskyCall,
			Subject:  module + "." + method,
			Module:   module,
			Line:     line(node),
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("call to %s.%s", module, method),
		})
	}
}

// checkShellFlag flags a listed process-spawning call carrying a literal
// shell=True keyword argument, reporting whether it fired.
func (w *securityWalk) checkShellFlag(call *sitter.Node, name string) bool {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return false
	}

	for i := uint(0); i < args.ChildCount(); i++ {
		arg := args.Child(i)
		if arg.Kind() != nodeKeywordArg {
			continue
		}
		key := arg.ChildByFieldName("name")
		value := arg.ChildByFieldName("value")
		if key == nil || value == nil {
			continue
		}
		if w.text(key) != "shell" || value.Kind() != nodeTrue {
			continue
		}
		w.report.ShellInjection = append(w.report.ShellInjection, SecurityFinding{
			Kind:     SecurityShellInjection,
			Subject:  name,
			Line:     line(call),
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("%s invoked with shell=True", name),
		})
		return true
	}
	return false
}

// assignment flags a secret-looking target name assigned a plain string
// literal longer than five characters. The first matching pattern decides;
// one finding per assignment. Interpolated or computed values never match,
// an accepted false negative.
func (w *securityWalk) assignment(node *sitter.Node) {
	left := node.ChildByFieldName("left")
	if left == nil || left.Kind() != nodeIdentifier {
		return
	}
	name := w.text(left)

	matched := false
	for _, re := range w.scanner.secrets {
		if re.MatchString(name) {
			matched = true
			break
		}
	}
	if !matched {
		return
	}

	value := node.ChildByFieldName("right")
	for value != nil && value.Kind() == nodeAssignment {
		value = value.ChildByFieldName("right")
	}
	content, ok := plainStringContent(w.tree, value)
	if !ok || len(content) <= 5 {
		return
	}

	w.report.HardcodedSecrets = append(w.report.HardcodedSecrets, SecurityFinding{
		Kind:     SecurityHardcodedSecret,
		Subject:  name,
		Line:     line(node),
		Severity: SeverityCritical,
		Message:  fmt.Sprintf("variable %q is assigned a hardcoded value", name),
	})
}

// plainStringContent returns the quoted content of a plain string literal,
// folding implicit concatenation the way Python folds adjacent literals into
// one constant. f-strings, byte strings, and anything with interpolation
// report false; only expressions that evaluate to a constant str qualify.
func plainStringContent(tree *parser.Tree, node *sitter.Node) (string, bool) {
	if node == nil {
		return "", false
	}

	if node.Kind() == nodeConcatString {
		var folded strings.Builder
		parts := 0
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child.Kind() != nodeString {
				continue
			}
			content, ok := plainStringContent(tree, child)
			if !ok {
				return "", false
			}
			folded.WriteString(content)
			parts++
		}
		return folded.String(), parts > 0
	}

	if node.Kind() != nodeString {
		return "", false
	}

	start := node.StartByte()
	end := node.EndByte()
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case nodeInterpolation:
			return "", false
		case nodeStringStart:
			if prefix := strings.ToLower(tree.Text(child)); strings.ContainsAny(prefix, "fb") {
				return "", false
			}
			start = child.EndByte()
		case nodeStringEnd:
			end = child.StartByte()
		}
	}
	if end < start {
		return "", false
	}
	return string(tree.Source()[start:end]), true
}
