package analysis

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"pylens/internal/parser"
)

// Analyzer binds the engine pieces behind one boundary. Each call parses a
// source once and fans the tree out to the extractors; no analysis logic
// lives here.
type Analyzer struct {
	thresholds Thresholds
	scanner    *Scanner
	log        *slog.Logger
}

func NewAnalyzer(th Thresholds, scanner *Scanner, log *slog.Logger) *Analyzer {
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{thresholds: th, scanner: scanner, log: log}
}

func (a *Analyzer) Thresholds() Thresholds { return a.thresholds }

// Summary is the single-version structural report. Collections are sorted so
// identical inputs marshal identically.
type Summary struct {
	Functions          []string                   `json:"functions"`
	Classes            []string                   `json:"classes"`
	ClassMethods       map[string][]string        `json:"class_methods"`
	Imports            []string                   `json:"imports"`
	Decorators         map[string][]string        `json:"decorators"`
	Docstrings         map[string]string          `json:"docstrings"`
	Complexity         map[string]ComplexityScore `json:"complexity"`
	AnnotationCoverage map[string]float64         `json:"annotation_coverage"`
}

type ComplexityScore struct {
	Value   int   `json:"value"`
	Level   Level `json:"level"`
	Warning bool  `json:"warning"`
}

// FileReport is the aggregate result for one version of one file. When the
// source does not parse, Error carries the message and the finding sections
// hold zero findings.
type FileReport struct {
	RunID    string          `json:"run_id"`
	Path     string          `json:"path"`
	Summary  *Summary        `json:"summary,omitempty"`
	Smells   *SmellReport    `json:"smells,omitempty"`
	Security *SecurityReport `json:"security,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// ChangeReport is the aggregate result of comparing two versions of one
// file. Smells and Security describe the new version.
type ChangeReport struct {
	RunID    string          `json:"run_id"`
	Path     string          `json:"path"`
	Diff     *DiffResult     `json:"diff,omitempty"`
	Smells   *SmellReport    `json:"smells,omitempty"`
	Security *SecurityReport `json:"security,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// File analyzes one version of a source file. Invalid source returns both a
// marker-filled report with zero findings and the typed *parser.ParseError:
// batch callers keep the report and move on, propagating callers check err.
func (a *Analyzer) File(path string, src []byte) (*FileReport, error) {
	report := &FileReport{RunID: uuid.NewString(), Path: path}

	tree, err := parser.Parse(src)
	if err != nil {
		a.markFailed(path, err, &report.Error, &report.Smells, &report.Security)
		return report, err
	}
	defer tree.Close()

	report.Summary = buildSummary(ExtractTree(tree))
	report.Smells = detectSmellsTree(tree, a.thresholds)
	report.Security = a.scanner.scanTree(tree)

	a.log.Debug("analyzed file",
		"path", path,
		"functions", len(report.Summary.Functions),
		"smells", report.Smells.TotalSmells,
		"security", report.Security.TotalIssues)
	return report, nil
}

// Change analyzes the transition between two versions of a source file.
func (a *Analyzer) Change(path string, oldSrc, newSrc []byte) (*ChangeReport, error) {
	report := &ChangeReport{RunID: uuid.NewString(), Path: path}

	oldSnap, err := Extract(oldSrc)
	if err != nil {
		err = fmt.Errorf("old version: %w", err)
		a.markFailed(path, err, &report.Error, &report.Smells, &report.Security)
		return report, err
	}

	newTree, err := parser.Parse(newSrc)
	if err != nil {
		err = fmt.Errorf("new version: %w", err)
		a.markFailed(path, err, &report.Error, &report.Smells, &report.Security)
		return report, err
	}
	defer newTree.Close()

	report.Diff = Diff(oldSnap, ExtractTree(newTree))
	report.Smells = detectSmellsTree(newTree, a.thresholds)
	report.Security = a.scanner.scanTree(newTree)

	a.log.Debug("analyzed change",
		"path", path,
		"added", len(report.Diff.AddedFunctions),
		"removed", len(report.Diff.RemovedFunctions))
	return report, nil
}

// Summarize builds the single-version structural summary.
func (a *Analyzer) Summarize(src []byte) (*Summary, error) {
	snap, err := Extract(src)
	if err != nil {
		return nil, err
	}
	return buildSummary(snap), nil
}

func (a *Analyzer) markFailed(path string, err error, msg *string, smells **SmellReport, security **SecurityReport) {
	*msg = err.Error()
	*smells = emptySmellReport()
	*security = emptySecurityReport()
	a.log.Debug("analysis skipped", "path", path, "error", err)
}

func buildSummary(snap *Snapshot) *Summary {
	s := &Summary{
		Functions:          sortedSetKeys(snap.Functions),
		Classes:            sortedSetKeys(snap.Classes),
		Imports:            sortedSetKeys(snap.Imports),
		ClassMethods:       make(map[string][]string, len(snap.ClassMethods)),
		Decorators:         make(map[string][]string, len(snap.Decorators)),
		Docstrings:         make(map[string]string, len(snap.Docstrings)),
		Complexity:         make(map[string]ComplexityScore, len(snap.Complexity)),
		AnnotationCoverage: make(map[string]float64, len(snap.Annotations)),
	}

	for class, methods := range snap.ClassMethods {
		s.ClassMethods[class] = sortedSetKeys(methods)
	}
	for name, decs := range snap.Decorators {
		s.Decorators[name] = append([]string(nil), decs...)
	}
	for name, doc := range snap.Docstrings {
		s.Docstrings[name] = doc
	}
	for name, score := range snap.Complexity {
		s.Complexity[name] = ComplexityScore{
			Value:   score,
			Level:   ComplexityLevel(score),
			Warning: score > 10,
		}
	}
	for name, pct := range snap.Annotations {
		s.AnnotationCoverage[name] = pct
	}
	return s
}

func sortedSetKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
