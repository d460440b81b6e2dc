package analysis

import (
	"strings"
	"testing"

	"pylens/internal/parser"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	return NewAnalyzer(DefaultThresholds(), newTestScanner(t), nil)
}

func TestAnalyzerFile(t *testing.T) {
	a := newTestAnalyzer(t)
	src := []byte(`
import os

def greet(name):
    """Say hello."""
    return "hi " + name
`)

	report, err := a.File("svc/greet.py", src)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}

	if report.RunID == "" {
		t.Error("run id must be set")
	}
	if report.Path != "svc/greet.py" {
		t.Errorf("path = %q", report.Path)
	}
	if report.Error != "" {
		t.Errorf("error marker set on valid source: %q", report.Error)
	}
	if report.Summary == nil || !equalStrings(report.Summary.Functions, []string{"greet"}) {
		t.Fatalf("summary = %+v", report.Summary)
	}
	if report.Smells.TotalSmells != 0 || report.Security.TotalIssues != 0 {
		t.Errorf("clean source produced findings: %+v %+v", report.Smells, report.Security)
	}

	second, err := a.File("svc/greet.py", src)
	if err != nil {
		t.Fatal(err)
	}
	if second.RunID == report.RunID {
		t.Error("run ids must differ between calls")
	}
}

func TestAnalyzerFileParseError(t *testing.T) {
	a := newTestAnalyzer(t)

	report, err := a.File("bad.py", []byte("def broken(:"))
	if err == nil {
		t.Fatal("Expected a parse error")
	}
	if _, ok := parser.AsParseError(err); !ok {
		t.Fatalf("Expected *parser.ParseError, got %T", err)
	}

	// The report survives as an explicit error marker with zero findings.
	if report == nil || report.Error == "" {
		t.Fatalf("Expected marker report, got %+v", report)
	}
	if report.Summary != nil {
		t.Error("summary must be empty for unparsable source")
	}
	if report.Smells == nil || report.Smells.TotalSmells != 0 {
		t.Errorf("smells = %+v, want zero findings", report.Smells)
	}
	if report.Security == nil || report.Security.TotalIssues != 0 {
		t.Errorf("security = %+v, want zero findings", report.Security)
	}
}

func TestAnalyzerChange(t *testing.T) {
	a := newTestAnalyzer(t)

	report, err := a.Change("svc/api.py",
		[]byte("def hello(): pass"),
		[]byte("def hello(): pass\ndef world():\n    eval(expr)\n"))
	if err != nil {
		t.Fatalf("Change failed: %v", err)
	}

	if !equalStrings(report.Diff.AddedFunctions, []string{"world"}) {
		t.Errorf("added_functions = %v, want [world]", report.Diff.AddedFunctions)
	}
	// Smells and security describe the new version.
	if len(report.Security.DangerousCalls) != 1 {
		t.Errorf("dangerous calls = %+v, want the new version's eval", report.Security.DangerousCalls)
	}
}

func TestAnalyzerChangeParseError(t *testing.T) {
	a := newTestAnalyzer(t)

	report, err := a.Change("bad.py", []byte("def broken(:"), []byte("def ok(): pass"))
	if err == nil || !strings.Contains(err.Error(), "old version") {
		t.Fatalf("Expected old version error, got %v", err)
	}
	if report.Error == "" || report.Diff != nil {
		t.Errorf("Expected marker report without a diff, got %+v", report)
	}

	_, err = a.Change("bad.py", []byte("def ok(): pass"), []byte("def broken(:"))
	if err == nil || !strings.Contains(err.Error(), "new version") {
		t.Fatalf("Expected new version error, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	a := newTestAnalyzer(t)
	src := []byte(`
import sys
import os

def zeta(): pass
def alpha(): pass

class C:
    def b(self): pass
    def a(self): pass
`)

	summary, err := a.Summarize(src)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	if !equalStrings(summary.Functions, []string{"a", "alpha", "b", "zeta"}) {
		t.Errorf("functions not sorted: %v", summary.Functions)
	}
	if !equalStrings(summary.Imports, []string{"os", "sys"}) {
		t.Errorf("imports not sorted: %v", summary.Imports)
	}
	if !equalStrings(summary.ClassMethods["C"], []string{"a", "b"}) {
		t.Errorf("class methods not sorted: %v", summary.ClassMethods["C"])
	}
}

func TestSummaryComplexityScores(t *testing.T) {
	a := newTestAnalyzer(t)

	var b strings.Builder
	b.WriteString("def hot(x):\n")
	for i := 0; i < 11; i++ {
		b.WriteString("    if x:\n        x += 1\n")
	}
	b.WriteString("def cool(x):\n    return x\n")

	summary, err := a.Summarize([]byte(b.String()))
	if err != nil {
		t.Fatal(err)
	}

	hot := summary.Complexity["hot"]
	if hot.Value != 12 || hot.Level != LevelMedium || !hot.Warning {
		t.Errorf("hot = %+v, want value 12 level medium warning", hot)
	}
	cool := summary.Complexity["cool"]
	if cool.Value != 1 || cool.Level != LevelLow || cool.Warning {
		t.Errorf("cool = %+v, want value 1 level low", cool)
	}
}
