package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pylens/internal/analysis"
	"pylens/internal/config"
	"pylens/internal/gate"
	"pylens/internal/history"
	"pylens/internal/report"
)

func createTestFiles(t *testing.T, tmpDir string) []string {
	api := `from subprocess import call


def fetch(url, timeout):
    if timeout > 0:
        return url
    return None


class Handler:
    def get(self):
        return fetch("x", 1)

    def post(self, cmd):
        call("ls " + cmd, shell=True)
`
	apiPath := filepath.Join(tmpDir, "api.py")
	err := os.WriteFile(apiPath, []byte(api), 0644)
	require.NoError(t, err)

	worker := `PASSWORD = "hunter2-secret"


def run_job(a, b, c, d, e, f):
    for i in range(a):
        if i > b:
            return eval(c)
    return d
`
	workerPath := filepath.Join(tmpDir, "worker.py")
	err = os.WriteFile(workerPath, []byte(worker), 0644)
	require.NoError(t, err)

	return []string{apiPath, workerPath}
}

func TestFullPipelineIntegration(t *testing.T) {
	tmpDir := t.TempDir()
	files := createTestFiles(t, tmpDir)

	cfg := config.Default()
	scanner, err := analysis.NewScanner(cfg.Security)
	require.NoError(t, err)
	analyzer := analysis.NewAnalyzer(cfg.Thresholds, scanner, nil)

	// Analyze every file the way a one-shot scan does.
	reports := make([]*analysis.FileReport, 0, len(files))
	for _, path := range files {
		content, err := os.ReadFile(path)
		require.NoError(t, err)
		rep, err := analyzer.File(path, content)
		require.NoError(t, err)
		reports = append(reports, rep)
	}

	// Structural extraction
	api := reports[0]
	assert.Contains(t, api.Summary.Functions, "fetch")
	assert.Contains(t, api.Summary.Classes, "Handler")
	assert.ElementsMatch(t, []string{"get", "post"}, api.Summary.ClassMethods["Handler"])

	// Security findings: shell=True yields one shell_injection finding, and
	// the from-import of call is flagged on its own line.
	require.Len(t, api.Security.ShellInjection, 1)
	assert.Empty(t, api.Security.RiskyCalls)
	assert.NotEmpty(t, api.Security.RiskyImports)

	worker := reports[1]
	assert.NotEmpty(t, worker.Security.DangerousCalls, "eval should be flagged")
	assert.NotEmpty(t, worker.Security.HardcodedSecrets, "PASSWORD literal should be flagged")
	assert.NotEmpty(t, worker.Smells.TooManyParams, "six parameters should be flagged")

	// The quality gate fails on the critical findings.
	result := gate.Evaluate(reports, gate.Config{
		MaxWarnings:    cfg.Gate.MaxWarnings,
		FailOnSecurity: cfg.Gate.FailOnSecurity,
	})
	assert.False(t, result.Pass)
	assert.Greater(t, result.Counts.SecurityCritical, 0)

	// Findings render into Markdown and are injected idempotently.
	reportPath := filepath.Join(tmpDir, "REPORT.md")
	body := report.RenderFileReport(api)
	assert.Contains(t, body, "shell_injection")

	require.NoError(t, report.InjectSection(reportPath, "scan", body))
	require.NoError(t, report.InjectSection(reportPath, "scan", body))
	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "<!-- pylens:scan:start -->"))

	// Runs persist and feed the trend report.
	store, err := history.Open(filepath.Join(tmpDir, "history.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordRun(ctx, &history.Run{
		CreatedAt: base, Files: 2, Functions: 2, TotalSmells: 1, TotalSecurity: 5, AvgComplexity: 3.0,
	}))
	require.NoError(t, store.RecordRun(ctx, &history.Run{
		CreatedAt: base.Add(time.Minute), Files: 2, Functions: 2, TotalSmells: 0, TotalSecurity: 3, AvgComplexity: 2.5,
	}))

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	trend, err := history.BuildTrendReport(runs)
	require.NoError(t, err)
	assert.Equal(t, 2, trend.ScanCount)
	assert.Equal(t, history.DirectionImproving, trend.SmellTrend)
	assert.Equal(t, history.DirectionImproving, trend.SecurityTrend)

	rendered := report.RenderTrendReport(trend)
	assert.Contains(t, rendered, "Trend (2 runs)")
}
