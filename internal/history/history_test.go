package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "pylens.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_RecordAndLoadRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	run := &Run{
		ID:            "run-1",
		CreatedAt:     created,
		GitCommit:     "abc123def456",
		GitBranch:     "main",
		Files:         2,
		Functions:     14,
		Classes:       3,
		TotalSmells:   5,
		TotalSecurity: 1,
		AvgComplexity: 3.25,
		MaxComplexity: 11,
		FileMetrics: []FileMetric{
			{Path: "src/api.py", Functions: 9, Classes: 2, Smells: 4, Security: 1, MaxComplexity: 11},
			{Path: "src/util.py", Functions: 5, Classes: 1, Smells: 1, Security: 0, MaxComplexity: 4},
		},
	}

	if err := store.RecordRun(ctx, run); err != nil {
		t.Fatalf("record run: %v", err)
	}

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("load recent runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.ID != "run-1" || got.GitCommit != "abc123def456" || got.GitBranch != "main" {
		t.Fatalf("unexpected run identity: %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("expected created_at %v, got %v", created, got.CreatedAt)
	}
	if got.Files != 2 || got.Functions != 14 || got.Classes != 3 {
		t.Fatalf("unexpected run counts: %+v", got)
	}
	if got.TotalSmells != 5 || got.TotalSecurity != 1 {
		t.Fatalf("unexpected finding totals: %+v", got)
	}
	if got.AvgComplexity != 3.25 || got.MaxComplexity != 11 {
		t.Fatalf("expected complexity metrics to roundtrip, got %+v", got)
	}

	entries, err := store.FileHistory(ctx, "src/api.py", 10)
	if err != nil {
		t.Fatalf("load file history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 file history entry, got %d", len(entries))
	}
	if entries[0].RunID != "run-1" || entries[0].Functions != 9 || entries[0].MaxComplexity != 11 {
		t.Fatalf("unexpected file history entry: %+v", entries[0])
	}
}

func TestStore_RecentRunsOrderAndLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := &Run{
			ID:        []string{"run-a", "run-b", "run-c"}[i],
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Files:     i + 1,
		}
		if err := store.RecordRun(ctx, run); err != nil {
			t.Fatalf("record run %d: %v", i, err)
		}
	}

	runs, err := store.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("load recent runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Fatalf("expected newest-first order, got %q then %q", runs[0].ID, runs[1].ID)
	}
}

func TestStore_RecordRunFillsDefaults(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	run := &Run{Files: 1}
	if err := store.RecordRun(ctx, run); err != nil {
		t.Fatalf("record run: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected generated run ID")
	}
	if run.CreatedAt.IsZero() {
		t.Fatal("expected generated created_at")
	}

	runs, err := store.RecentRuns(ctx, 1)
	if err != nil {
		t.Fatalf("load recent runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Fatalf("expected recorded run back, got %+v", runs)
	}
	if !runs[0].CreatedAt.Equal(run.CreatedAt) {
		t.Fatalf("expected created_at %v, got %v", run.CreatedAt, runs[0].CreatedAt)
	}
}

func TestStore_FileHistoryFiltersByPath(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		run := &Run{
			ID:        []string{"run-old", "run-new"}[i],
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			FileMetrics: []FileMetric{
				{Path: "a.py", Smells: i},
				{Path: "b.py", Smells: 10 + i},
			},
		}
		if err := store.RecordRun(ctx, run); err != nil {
			t.Fatalf("record run %d: %v", i, err)
		}
	}

	entries, err := store.FileHistory(ctx, "a.py", 10)
	if err != nil {
		t.Fatalf("load file history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for a.py, got %d", len(entries))
	}
	if entries[0].RunID != "run-new" || entries[0].Smells != 1 {
		t.Fatalf("expected newest entry first, got %+v", entries[0])
	}

	missing, err := store.FileHistory(ctx, "missing.py", 10)
	if err != nil {
		t.Fatalf("load missing file history: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("expected no entries for unknown path, got %d", len(missing))
	}
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pylens.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.RecordRun(context.Background(), &Run{ID: "run-1", Files: 3}); err != nil {
		t.Fatalf("record run: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	runs, err := reopened.RecentRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("load recent runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Files != 3 {
		t.Fatalf("expected persisted run after reopen, got %+v", runs)
	}
}

func TestStore_OpenRejectsDirectoryPath(t *testing.T) {
	tmpDir := t.TempDir()
	_, err := Open(tmpDir)
	if err == nil {
		t.Fatal("expected open error for directory path")
	}
	if !strings.Contains(err.Error(), "is a directory") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_OpenCorruptDBPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pylens.db")
	if err := os.WriteFile(path, []byte("this is not sqlite"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path)
	if err == nil {
		t.Fatal("expected sqlite open error")
	}
	if !IsCorruptError(err) {
		t.Fatalf("expected corrupt-database error, got: %v", err)
	}
}

func TestEnsureSchema_DetectsNewerVersionDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pylens.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	_, err = store.db.Exec(`INSERT OR REPLACE INTO schema_migrations(version) VALUES (?)`, SchemaVersion+1)
	if err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open(driverName, "file:"+path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	err = EnsureSchema(db)
	if err == nil {
		t.Fatal("expected drift error")
	}
	if !strings.Contains(err.Error(), "newer than supported") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBuildTrendReport(t *testing.T) {
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	runs := []Run{
		{ID: "r1", CreatedAt: base, Functions: 10, TotalSmells: 5, TotalSecurity: 2, AvgComplexity: 3.0},
		{ID: "r2", CreatedAt: base.Add(time.Hour), Functions: 12, TotalSmells: 4, TotalSecurity: 2, AvgComplexity: 4.0},
		{ID: "r3", CreatedAt: base.Add(2 * time.Hour), Functions: 12, TotalSmells: 2, TotalSecurity: 1, AvgComplexity: 3.5},
	}

	report, err := BuildTrendReport(runs)
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.ScanCount != 3 {
		t.Fatalf("expected scan_count=3, got %d", report.ScanCount)
	}
	if !report.Since.Equal(base) || !report.Until.Equal(base.Add(2*time.Hour)) {
		t.Fatalf("unexpected window: %v .. %v", report.Since, report.Until)
	}
	if report.Points[1].DeltaFunctions != 2 {
		t.Fatalf("expected delta_functions=2, got %d", report.Points[1].DeltaFunctions)
	}
	if report.Points[2].DeltaSmells != -2 {
		t.Fatalf("expected delta_smells=-2, got %d", report.Points[2].DeltaSmells)
	}
	if report.Points[2].DeltaSecurity != -1 {
		t.Fatalf("expected delta_security=-1, got %d", report.Points[2].DeltaSecurity)
	}
	if report.Points[0].MovingAvgComplexity != 3.0 {
		t.Fatalf("expected first moving average 3.0, got %v", report.Points[0].MovingAvgComplexity)
	}
	if report.Points[1].MovingAvgComplexity != 3.5 {
		t.Fatalf("expected second moving average 3.5, got %v", report.Points[1].MovingAvgComplexity)
	}
	if report.Points[2].MovingAvgComplexity != 3.5 {
		t.Fatalf("expected third moving average 3.5, got %v", report.Points[2].MovingAvgComplexity)
	}
	if report.SmellTrend != DirectionImproving {
		t.Fatalf("expected improving smell trend, got %s", report.SmellTrend)
	}
	if report.SecurityTrend != DirectionImproving {
		t.Fatalf("expected improving security trend, got %s", report.SecurityTrend)
	}
	if report.ComplexityTrend != DirectionWorsening {
		t.Fatalf("expected worsening complexity trend, got %s", report.ComplexityTrend)
	}
}

func TestBuildTrendReport_SortsOldestFirst(t *testing.T) {
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	runs := []Run{
		{ID: "newest", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "oldest", CreatedAt: base},
		{ID: "middle", CreatedAt: base.Add(time.Hour)},
	}

	report, err := BuildTrendReport(runs)
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.Points[0].RunID != "oldest" || report.Points[2].RunID != "newest" {
		t.Fatalf("expected chronological points, got %q .. %q", report.Points[0].RunID, report.Points[2].RunID)
	}
}

func TestBuildTrendReport_MovingAverageRounds(t *testing.T) {
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	runs := []Run{
		{ID: "r1", CreatedAt: base, AvgComplexity: 1.0},
		{ID: "r2", CreatedAt: base.Add(time.Hour), AvgComplexity: 2.0},
		{ID: "r3", CreatedAt: base.Add(2 * time.Hour), AvgComplexity: 2.1},
	}

	report, err := BuildTrendReport(runs)
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.Points[1].MovingAvgComplexity != 1.5 {
		t.Fatalf("expected moving average 1.5, got %v", report.Points[1].MovingAvgComplexity)
	}
	if report.Points[2].MovingAvgComplexity != 1.7 {
		t.Fatalf("expected moving average 1.7, got %v", report.Points[2].MovingAvgComplexity)
	}
}

func TestBuildTrendReport_SingleRunIsFlat(t *testing.T) {
	runs := []Run{{ID: "r1", CreatedAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC), TotalSmells: 7}}

	report, err := BuildTrendReport(runs)
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.ScanCount != 1 {
		t.Fatalf("expected scan_count=1, got %d", report.ScanCount)
	}
	if report.SmellTrend != DirectionFlat || report.SecurityTrend != DirectionFlat || report.ComplexityTrend != DirectionFlat {
		t.Fatalf("expected flat trends for single run, got %+v", report)
	}
	if report.Points[0].DeltaSmells != 0 {
		t.Fatalf("expected zero delta for first point, got %d", report.Points[0].DeltaSmells)
	}
}

func TestBuildTrendReport_Empty(t *testing.T) {
	_, err := BuildTrendReport(nil)
	if err == nil {
		t.Fatal("expected error for empty run set")
	}
}

func TestResolveGitMetadata_OutsideRepo(t *testing.T) {
	commit, branch := ResolveGitMetadata(t.TempDir())
	if commit != "" || branch != "" {
		t.Fatalf("expected empty metadata outside a repository, got %q %q", commit, branch)
	}
}
