package report

import (
	"fmt"
	"strings"

	"pylens/internal/analysis"
	"pylens/internal/gate"
	"pylens/internal/history"
	"pylens/internal/shared/util"
)

// RenderFileReport produces the per-file Markdown section: summary counts,
// per-function complexity, then smell and security findings.
func RenderFileReport(r *analysis.FileReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## `%s`\n\n", r.Path)

	if r.Error != "" {
		fmt.Fprintf(&b, "Parse failed: %s\n", r.Error)
		return b.String()
	}

	writeSummaryTable(&b, r.Summary, r.Smells, r.Security)
	writeComplexityTable(&b, r.Summary)
	writeSmellTable(&b, r.Smells)
	writeSecurityTable(&b, r.Security)
	return b.String()
}

// RenderChangeReport produces the Markdown section for an old/new comparison
// of one file.
func RenderChangeReport(r *analysis.ChangeReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## `%s`\n\n", r.Path)

	if r.Error != "" {
		fmt.Fprintf(&b, "Parse failed: %s\n", r.Error)
		return b.String()
	}

	diff := r.Diff
	changed := false

	var symbols strings.Builder
	writeSymbolList(&symbols, "Added functions", diff.AddedFunctions)
	writeSymbolList(&symbols, "Removed functions", diff.RemovedFunctions)
	writeSymbolList(&symbols, "Added classes", diff.AddedClasses)
	writeSymbolList(&symbols, "Removed classes", diff.RemovedClasses)
	writeSymbolList(&symbols, "Added imports", diff.AddedImports)
	writeSymbolList(&symbols, "Removed imports", diff.RemovedImports)
	if symbols.Len() > 0 {
		b.WriteString("### Symbols\n")
		b.WriteString(symbols.String())
		b.WriteString("\n")
		changed = true
	}

	changed = writeMethodChanges(&b, diff.MethodChanges) || changed
	changed = writeComplexityChanges(&b, diff.ComplexityChanges) || changed
	changed = writeDocstringChanges(&b, diff.DocstringChanges) || changed
	changed = writeDecoratorChanges(&b, diff.DecoratorChanges) || changed
	changed = writeAnnotationChanges(&b, diff.AnnotationChanges) || changed

	if !changed {
		b.WriteString("No changes detected.\n")
	}
	return b.String()
}

// RenderGateResult produces the Markdown gate verdict with one row per check.
func RenderGateResult(result *gate.Result) string {
	var b strings.Builder
	b.WriteString("## Quality gate\n\n")
	if result.Pass {
		b.WriteString("**PASS**\n\n")
	} else {
		b.WriteString("**FAIL**\n\n")
	}

	b.WriteString("| Check | Status | Detail |\n")
	b.WriteString("| --- | --- | --- |\n")
	for _, c := range result.Checks {
		status := "✅"
		if !c.OK {
			status = "❌"
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", c.Name, status, c.Detail)
	}

	counts := result.Counts
	fmt.Fprintf(&b, "\n%d files, %d parse errors, %d smell errors, %d warnings, %d critical and %d high security findings.\n",
		counts.Files, counts.ParseErrors, counts.SmellErrors,
		counts.SmellWarnings, counts.SecurityCritical, counts.SecurityHigh)
	return b.String()
}

// RenderTrendReport produces the Markdown trend table, oldest run first.
func RenderTrendReport(report history.TrendReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Trend (%d runs)\n\n", report.ScanCount)
	fmt.Fprintf(&b, "Smells %s, security %s, complexity %s.\n\n",
		report.SmellTrend, report.SecurityTrend, report.ComplexityTrend)

	b.WriteString("| When | Commit | Files | Functions | Smells | Security | Avg Complexity | Moving Avg |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- | --- | --- |\n")
	for _, p := range report.Points {
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %d | %.2f | %.2f |\n",
			p.CreatedAt.Format("2006-01-02 15:04"),
			orDash(p.GitCommit),
			p.Files,
			p.Functions,
			p.TotalSmells,
			p.TotalSecurity,
			p.AvgComplexity,
			p.MovingAvgComplexity,
		)
	}
	return b.String()
}

func writeSummaryTable(b *strings.Builder, s *analysis.Summary, smells *analysis.SmellReport, security *analysis.SecurityReport) {
	b.WriteString("| Metric | Value |\n")
	b.WriteString("| --- | --- |\n")
	fmt.Fprintf(b, "| Functions | %d |\n", len(s.Functions))
	fmt.Fprintf(b, "| Classes | %d |\n", len(s.Classes))
	fmt.Fprintf(b, "| Imports | %d |\n", len(s.Imports))
	fmt.Fprintf(b, "| Smells | %d |\n", smells.TotalSmells)
	fmt.Fprintf(b, "| Security findings | %d |\n\n", security.TotalIssues)
}

func writeComplexityTable(b *strings.Builder, s *analysis.Summary) {
	b.WriteString("### Complexity\n")
	if len(s.Complexity) == 0 {
		b.WriteString("No functions found.\n\n")
		return
	}
	b.WriteString("| Function | Score | Level |\n")
	b.WriteString("| --- | --- | --- |\n")
	for _, name := range util.SortedStringKeys(s.Complexity) {
		score := s.Complexity[name]
		value := fmt.Sprintf("%d", score.Value)
		if score.Warning {
			value += " ⚠️"
		}
		fmt.Fprintf(b, "| `%s` | %s | %s |\n", name, value, score.Level)
	}
	b.WriteString("\n")
}

func writeSmellTable(b *strings.Builder, smells *analysis.SmellReport) {
	b.WriteString("### Smells\n")
	if smells.TotalSmells == 0 {
		b.WriteString("No smells detected.\n\n")
		return
	}
	b.WriteString("| Kind | Name | Value | Threshold | Severity |\n")
	b.WriteString("| --- | --- | --- | --- | --- |\n")
	groups := [][]analysis.SmellFinding{
		smells.LongFunctions,
		smells.TooManyParams,
		smells.DeepNesting,
		smells.GodClasses,
	}
	for _, group := range groups {
		for _, f := range group {
			fmt.Fprintf(b, "| %s | `%s` | %d | %d | %s |\n", f.Kind, f.Name, f.Value, f.Threshold, f.Severity)
		}
	}
	b.WriteString("\n")
}

func writeSecurityTable(b *strings.Builder, security *analysis.SecurityReport) {
	b.WriteString("### Security\n")
	if security.TotalIssues == 0 {
		b.WriteString("No security findings.\n\n")
		return
	}
	b.WriteString("| Kind | Subject | Line | Severity |\n")
	b.WriteString("| --- | --- | --- | --- |\n")
	groups := [][]analysis.SecurityFinding{
		security.DangerousCalls,
		security.RiskyImports,
		security.RiskyCalls,
		security.HardcodedSecrets,
		security.ShellInjection,
	}
	for _, group := range groups {
		for _, f := range group {
			fmt.Fprintf(b, "| %s | `%s` | %d | %s |\n", f.Kind, f.Subject, f.Line, f.Severity)
		}
	}
	b.WriteString("\n")
}

func writeSymbolList(b *strings.Builder, label string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", label, codeJoin(names))
}

func writeMethodChanges(b *strings.Builder, changes map[string]analysis.MethodChange) bool {
	if len(changes) == 0 {
		return false
	}
	b.WriteString("### Method changes\n")
	b.WriteString("| Class | Added | Removed |\n")
	b.WriteString("| --- | --- | --- |\n")
	for _, class := range util.SortedStringKeys(changes) {
		mc := changes[class]
		fmt.Fprintf(b, "| `%s` | %s | %s |\n", class, orDash(codeJoin(mc.Added)), orDash(codeJoin(mc.Removed)))
	}
	b.WriteString("\n")
	return true
}

func writeComplexityChanges(b *strings.Builder, changes map[string]analysis.ComplexityChange) bool {
	if len(changes) == 0 {
		return false
	}
	b.WriteString("### Complexity changes\n")
	b.WriteString("| Function | Old | New | Delta | Trend |\n")
	b.WriteString("| --- | --- | --- | --- | --- |\n")
	for _, name := range util.SortedStringKeys(changes) {
		cc := changes[name]
		fmt.Fprintf(b, "| `%s` | %s | %s | %+d | %s |\n", name, intOrDash(cc.Old), intOrDash(cc.New), cc.Delta, cc.Trend)
	}
	b.WriteString("\n")
	return true
}

func writeDocstringChanges(b *strings.Builder, changes map[string]analysis.DocstringChange) bool {
	if len(changes) == 0 {
		return false
	}
	b.WriteString("### Docstring changes\n")
	b.WriteString("| Symbol | Change |\n")
	b.WriteString("| --- | --- |\n")
	for _, name := range util.SortedStringKeys(changes) {
		dc := changes[name]
		status := "rewritten"
		switch {
		case dc.Old == nil:
			status = "added"
		case dc.New == nil:
			status = "removed"
		}
		fmt.Fprintf(b, "| `%s` | %s |\n", name, status)
	}
	b.WriteString("\n")
	return true
}

func writeDecoratorChanges(b *strings.Builder, changes map[string]analysis.DecoratorChange) bool {
	if len(changes) == 0 {
		return false
	}
	b.WriteString("### Decorator changes\n")
	b.WriteString("| Symbol | Old | New |\n")
	b.WriteString("| --- | --- | --- |\n")
	for _, name := range util.SortedStringKeys(changes) {
		dc := changes[name]
		fmt.Fprintf(b, "| `%s` | %s | %s |\n", name, orDash(codeJoin(dc.Old)), orDash(codeJoin(dc.New)))
	}
	b.WriteString("\n")
	return true
}

func writeAnnotationChanges(b *strings.Builder, changes map[string]analysis.AnnotationChange) bool {
	if len(changes) == 0 {
		return false
	}
	b.WriteString("### Annotation coverage changes\n")
	b.WriteString("| Function | Old | New | Delta | Trend |\n")
	b.WriteString("| --- | --- | --- | --- | --- |\n")
	for _, name := range util.SortedStringKeys(changes) {
		ac := changes[name]
		fmt.Fprintf(b, "| `%s` | %s | %s | %+.1f | %s |\n", name, floatOrDash(ac.Old), floatOrDash(ac.New), ac.Delta, ac.Trend)
	}
	b.WriteString("\n")
	return true
}

func codeJoin(names []string) string {
	if len(names) == 0 {
		return ""
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "`" + n + "`"
	}
	return strings.Join(quoted, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func floatOrDash(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}
