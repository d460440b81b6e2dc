// # cmd/pylens/app.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.opentelemetry.io/otel/attribute"

	"pylens/internal/analysis"
	"pylens/internal/config"
	"pylens/internal/gate"
	"pylens/internal/history"
	"pylens/internal/observability"
	"pylens/internal/report"
	"pylens/internal/shared/util"
	"pylens/internal/watcher"
)

type App struct {
	Config   *config.Config
	Analyzer *analysis.Analyzer
	JSON     bool

	store          *history.Store
	teaProgram     *tea.Program
	shutdownTracer func(context.Context) error

	// Per-file watch state keyed by path for incremental change reports.
	files map[string]*fileState
}

type fileState struct {
	content       []byte
	metric        history.FileMetric
	complexitySum float64
	complexityFns int
}

func NewApp(cfg *config.Config) (*App, error) {
	scanner, err := analysis.NewScanner(cfg.Security)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		Analyzer: analysis.NewAnalyzer(cfg.Thresholds, scanner, slog.Default()),
		files:    make(map[string]*fileState),
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		switch {
		case err == nil:
			app.store = store
		case history.IsCorruptError(err):
			slog.Warn("history database unusable, continuing without history",
				"path", cfg.History.Path, "error", err)
		default:
			return nil, fmt.Errorf("open history store: %w", err)
		}
	}

	shutdown, err := observability.Setup(context.Background(), cfg.Observability.OTLPEndpoint, cfg.Observability.ServiceName)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
	} else {
		app.shutdownTracer = shutdown
	}

	return app, nil
}

func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("failed to close history store", "error", err)
		}
	}
	if a.shutdownTracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.shutdownTracer(ctx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}
}

// CollectFiles expands files and directories into the sorted list of Python
// sources to analyze. Directory walks honor the exclude patterns; paths
// given explicitly are always included.
func CollectFiles(paths []string, excludes []string) ([]string, error) {
	set, err := watcher.CompileExcludes(excludes)
	if err != nil {
		return nil, err
	}

	var files []string
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && set.Match(path, true) {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != ".py" || set.Match(path, false) {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

func (a *App) RunScan(ctx context.Context, paths []string) error {
	ctx, span := observability.Tracer().Start(ctx, "scan")
	defer span.End()

	start := time.Now()

	files, err := CollectFiles(paths, a.Config.Watch.Exclude)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no python files found under %s", strings.Join(paths, ", "))
	}

	reports := make([]*analysis.FileReport, 0, len(files))
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read file", "path", path, "error", err)
			continue
		}
		rep, err := a.Analyzer.File(path, content)
		if err != nil {
			a.reportParseFailure(path, err)
		}
		reports = append(reports, rep)
		observeFindings(rep.Smells, rep.Security)
	}

	observability.ScansTotal.WithLabelValues("scan").Inc()
	observability.ScanDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("files", len(reports)),
		attribute.Int("findings", totalFindings(reports)),
	)

	if err := a.recordRun(ctx, buildRun(reports)); err != nil {
		slog.Warn("failed to record run", "error", err)
	}

	if a.JSON {
		return printJSON(reports)
	}

	var b strings.Builder
	for _, r := range reports {
		b.WriteString(report.RenderFileReport(r))
		b.WriteString("\n")
	}
	out := strings.TrimRight(b.String(), "\n") + "\n"
	fmt.Print(out)
	a.updateMarkdown("scan", out)
	return nil
}

func (a *App) RunDiff(ctx context.Context, oldFile, newFile string) error {
	_, span := observability.Tracer().Start(ctx, "diff")
	defer span.End()
	span.SetAttributes(attribute.String("path", newFile))

	oldSrc, err := os.ReadFile(oldFile)
	if err != nil {
		return err
	}
	newSrc, err := os.ReadFile(newFile)
	if err != nil {
		return err
	}

	change, err := a.Analyzer.Change(newFile, oldSrc, newSrc)
	if err != nil {
		observability.ParseErrorsTotal.Inc()
		return err
	}

	observability.ScansTotal.WithLabelValues("diff").Inc()
	observeFindings(change.Smells, change.Security)

	if a.JSON {
		return printJSON(change)
	}
	out := report.RenderChangeReport(change)
	fmt.Print(out)
	a.updateMarkdown("diff", out)
	return nil
}

func (a *App) RunGate(ctx context.Context, paths []string) (bool, error) {
	ctx, span := observability.Tracer().Start(ctx, "gate")
	defer span.End()

	start := time.Now()

	files, err := CollectFiles(paths, a.Config.Watch.Exclude)
	if err != nil {
		return false, err
	}

	reports := make([]*analysis.FileReport, 0, len(files))
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read file", "path", path, "error", err)
			continue
		}
		rep, err := a.Analyzer.File(path, content)
		if err != nil {
			a.reportParseFailure(path, err)
		}
		reports = append(reports, rep)
		observeFindings(rep.Smells, rep.Security)
	}

	result := gate.Evaluate(reports, gate.Config{
		MaxWarnings:    a.Config.Gate.MaxWarnings,
		FailOnSecurity: a.Config.Gate.FailOnSecurity,
	})

	observability.ScansTotal.WithLabelValues("gate").Inc()
	observability.ScanDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("files", len(reports)),
		attribute.Int("findings", totalFindings(reports)),
		attribute.Bool("pass", result.Pass),
	)

	if err := a.recordRun(ctx, buildRun(reports)); err != nil {
		slog.Warn("failed to record run", "error", err)
	}

	if a.JSON {
		return result.Pass, printJSON(result)
	}
	out := report.RenderGateResult(result)
	fmt.Print(out)
	a.updateMarkdown("gate", out)
	return result.Pass, nil
}

func (a *App) RunTrend(ctx context.Context, limit int) error {
	if a.store == nil {
		return fmt.Errorf("history is disabled, no trend data available")
	}

	runs, err := a.store.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	trend, err := history.BuildTrendReport(runs)
	if err != nil {
		return err
	}

	if a.JSON {
		return printJSON(trend)
	}
	out := report.RenderTrendReport(trend)
	fmt.Print(out)
	a.updateMarkdown("trend", out)
	return nil
}

func (a *App) RunWatch(ctx context.Context, withTUI bool) error {
	w, err := watcher.NewWatcher(a.Config.Watch.Debounce(), a.Config.Watch.Exclude)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Watch(a.Config.Watch.Paths); err != nil {
		return err
	}

	if a.Config.Observability.MetricsAddr != "" {
		srv := observability.Serve(a.Config.Observability.MetricsAddr, slog.Default())
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := srv.Stop(stopCtx); err != nil {
				slog.Warn("failed to stop observability server", "error", err)
			}
		}()
	}

	limiters := util.NewLimiterRegistry(a.Config.Watch.RescanPerSec, a.Config.Watch.RescanBurst, time.Minute)
	defer limiters.Close()

	if !withTUI {
		a.initialScan(ctx)
		slog.Info("watching for changes", "paths", strings.Join(a.Config.Watch.Paths, ", "))
		a.watchLoop(ctx, w, limiters)
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(initialModel(), tea.WithAltScreen(), tea.WithContext(loopCtx))
	a.teaProgram = p

	go func() {
		a.initialScan(loopCtx)
		a.watchLoop(loopCtx, w, limiters)
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (a *App) initialScan(ctx context.Context) {
	start := time.Now()

	files, err := CollectFiles(a.Config.Watch.Paths, a.Config.Watch.Exclude)
	if err != nil {
		slog.Error("initial scan failed", "error", err)
		return
	}

	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read file", "path", path, "error", err)
			continue
		}
		rep, err := a.analyzeFile(path, content)
		if err != nil {
			a.reportParseFailure(path, err)
			continue
		}
		observeFindings(rep.Smells, rep.Security)
		a.send(scanMsg{
			path:     path,
			smells:   rep.Smells.TotalSmells,
			security: rep.Security.TotalIssues,
			severity: topSeverity(rep.Smells, rep.Security),
		})
	}

	observability.ScansTotal.WithLabelValues("watch").Inc()
	observability.ScanDuration.Observe(time.Since(start).Seconds())
	slog.Info("initial scan complete", "files", len(a.files), "duration", time.Since(start))

	if err := a.recordRun(ctx, a.snapshotRun()); err != nil {
		slog.Warn("failed to record run", "error", err)
	}
}

func (a *App) watchLoop(ctx context.Context, w *watcher.Watcher, limiters *util.LimiterRegistry) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.Events():
			observability.WatchEventsTotal.Inc()
			if !limiters.Get(path).Allow() {
				slog.Debug("rescan rate limited", "path", path)
				continue
			}
			a.handleChange(ctx, path)
		}
	}
}

func (a *App) handleChange(ctx context.Context, path string) {
	ctx, span := observability.Tracer().Start(ctx, "rescan")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	start := time.Now()

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			delete(a.files, path)
			slog.Info("file removed", "path", path)
			if err := a.recordRun(ctx, a.snapshotRun()); err != nil {
				slog.Warn("failed to record run", "error", err)
			}
			a.send(scanMsg{path: path, removed: true})
		} else {
			slog.Warn("failed to read file", "path", path, "error", err)
		}
		return
	}

	observability.ScansTotal.WithLabelValues("watch").Inc()

	st, seen := a.files[path]

	var (
		smells   *analysis.SmellReport
		security *analysis.SecurityReport
		body     string
	)

	if seen {
		change, err := a.Analyzer.Change(path, st.content, content)
		if err != nil {
			a.reportParseFailure(path, err)
			return
		}
		summary, err := a.Analyzer.Summarize(content)
		if err != nil {
			a.reportParseFailure(path, err)
			return
		}
		st.content = content
		st.metric, st.complexitySum, st.complexityFns = fileMetric(path, summary, change.Smells, change.Security)

		smells, security = change.Smells, change.Security
		body = report.RenderChangeReport(change)
		slog.Info("change analyzed",
			"path", path,
			"added_functions", len(change.Diff.AddedFunctions),
			"removed_functions", len(change.Diff.RemovedFunctions),
			"smells", smells.TotalSmells,
			"security", security.TotalIssues,
			"duration", time.Since(start))
	} else {
		rep, err := a.analyzeFile(path, content)
		if err != nil {
			a.reportParseFailure(path, err)
			return
		}
		smells, security = rep.Smells, rep.Security
		body = report.RenderFileReport(rep)
		slog.Info("file analyzed",
			"path", path,
			"functions", len(rep.Summary.Functions),
			"smells", smells.TotalSmells,
			"security", security.TotalIssues,
			"duration", time.Since(start))
	}

	observability.ScanDuration.Observe(time.Since(start).Seconds())
	observeFindings(smells, security)
	span.SetAttributes(attribute.Int("findings", smells.TotalSmells+security.TotalIssues))

	a.updateMarkdown("watch", body)

	if err := a.recordRun(ctx, a.snapshotRun()); err != nil {
		slog.Warn("failed to record run", "error", err)
	}

	a.send(scanMsg{
		path:     path,
		smells:   smells.TotalSmells,
		security: security.TotalIssues,
		severity: topSeverity(smells, security),
	})
}

// analyzeFile runs a full single-version analysis and stores the result as
// the file's watch state.
func (a *App) analyzeFile(path string, content []byte) (*analysis.FileReport, error) {
	rep, err := a.Analyzer.File(path, content)
	if err != nil {
		return nil, err
	}

	metric, sum, fns := fileMetric(path, rep.Summary, rep.Smells, rep.Security)
	a.files[path] = &fileState{
		content:       content,
		metric:        metric,
		complexitySum: sum,
		complexityFns: fns,
	}
	return rep, nil
}

func (a *App) reportParseFailure(path string, err error) {
	observability.ParseErrorsTotal.Inc()
	slog.Warn("parse failed", "path", path, "error", err)
	a.send(scanMsg{path: path, failed: true})
}

// send fills in the aggregate header fields and forwards the message to the
// TUI when one is running.
func (a *App) send(msg scanMsg) {
	if a.teaProgram == nil {
		return
	}
	msg.when = time.Now()
	msg.fileCount = len(a.files)
	for _, st := range a.files {
		msg.totalSmells += st.metric.Smells
		msg.totalSecurity += st.metric.Security
	}
	a.teaProgram.Send(msg)
}

func (a *App) updateMarkdown(section, body string) {
	if a.Config.Report.MarkdownPath == "" {
		return
	}
	if err := report.InjectSection(a.Config.Report.MarkdownPath, section, body); err != nil {
		slog.Warn("failed to update markdown report",
			"path", a.Config.Report.MarkdownPath, "error", err)
	}
}

func (a *App) recordRun(ctx context.Context, run *history.Run) error {
	if a.store == nil {
		return nil
	}
	run.GitCommit, run.GitBranch = history.ResolveGitMetadata(".")
	return a.store.RecordRun(ctx, run)
}

// snapshotRun aggregates the current watch state into a history run.
func (a *App) snapshotRun() *history.Run {
	run := &history.Run{}
	var sum float64
	var fns int

	for _, path := range util.SortedStringKeys(a.files) {
		st := a.files[path]
		run.Files++
		run.Functions += st.metric.Functions
		run.Classes += st.metric.Classes
		run.TotalSmells += st.metric.Smells
		run.TotalSecurity += st.metric.Security
		if st.metric.MaxComplexity > run.MaxComplexity {
			run.MaxComplexity = st.metric.MaxComplexity
		}
		sum += st.complexitySum
		fns += st.complexityFns
		run.FileMetrics = append(run.FileMetrics, st.metric)
	}

	run.AvgComplexity = avgComplexity(sum, fns)
	return run
}

func buildRun(reports []*analysis.FileReport) *history.Run {
	run := &history.Run{}
	var sum float64
	var fns int

	for _, r := range reports {
		if r == nil {
			continue
		}
		metric, s, n := fileMetric(r.Path, r.Summary, r.Smells, r.Security)
		run.Files++
		run.Functions += metric.Functions
		run.Classes += metric.Classes
		run.TotalSmells += metric.Smells
		run.TotalSecurity += metric.Security
		if metric.MaxComplexity > run.MaxComplexity {
			run.MaxComplexity = metric.MaxComplexity
		}
		sum += s
		fns += n
		run.FileMetrics = append(run.FileMetrics, metric)
	}

	run.AvgComplexity = avgComplexity(sum, fns)
	return run
}

// fileMetric flattens one file's reports into its history row plus the
// complexity sum and function count needed for run-level averaging.
func fileMetric(path string, summary *analysis.Summary, smells *analysis.SmellReport, security *analysis.SecurityReport) (history.FileMetric, float64, int) {
	m := history.FileMetric{Path: path}
	var sum float64
	var fns int

	if summary != nil {
		m.Functions = len(summary.Functions)
		m.Classes = len(summary.Classes)
		for _, score := range summary.Complexity {
			sum += float64(score.Value)
			fns++
			if score.Value > m.MaxComplexity {
				m.MaxComplexity = score.Value
			}
		}
	}
	if smells != nil {
		m.Smells = smells.TotalSmells
	}
	if security != nil {
		m.Security = security.TotalIssues
	}
	return m, sum, fns
}

func avgComplexity(sum float64, fns int) float64 {
	if fns == 0 {
		return 0
	}
	return math.Round(sum/float64(fns)*100) / 100
}

func observeFindings(smells *analysis.SmellReport, security *analysis.SecurityReport) {
	if smells != nil {
		observability.FindingsTotal.WithLabelValues("smell").Add(float64(smells.TotalSmells))
	}
	if security != nil {
		observability.FindingsTotal.WithLabelValues("security").Add(float64(security.TotalIssues))
	}
}

func totalFindings(reports []*analysis.FileReport) int {
	total := 0
	for _, r := range reports {
		if r.Smells != nil {
			total += r.Smells.TotalSmells
		}
		if r.Security != nil {
			total += r.Security.TotalIssues
		}
	}
	return total
}

var severityOrder = []analysis.Severity{
	analysis.SeverityCritical,
	analysis.SeverityHigh,
	analysis.SeverityError,
	analysis.SeverityMedium,
	analysis.SeverityWarning,
	analysis.SeverityInfo,
}

// topSeverity picks the worst severity present across both finding reports.
func topSeverity(smells *analysis.SmellReport, security *analysis.SecurityReport) string {
	for _, s := range severityOrder {
		if security != nil && security.SeverityCounts[s] > 0 {
			return string(s)
		}
		if smells != nil && smells.SeverityCounts[s] > 0 {
			return string(s)
		}
	}
	return ""
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
