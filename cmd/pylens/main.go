// # cmd/pylens/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"pylens/internal/config"
)

var (
	configPath = flag.String("config", "./pylens.toml", "Path to config file")
	scanPaths  = flag.String("scan", "", "Comma-separated files or directories for a one-shot scan")
	oldPath    = flag.String("old", "", "Old version of a file for a structural diff")
	newPath    = flag.String("new", "", "New version of a file for a structural diff")
	watchMode  = flag.Bool("watch", false, "Watch configured paths and rescan on change")
	tui        = flag.Bool("tui", false, "Enable terminal UI in watch mode")
	gatePaths  = flag.String("gate", "", "Comma-separated files or directories for the quality gate")
	trendMode  = flag.Bool("trend", false, "Print a trend report from scan history")
	limit      = flag.Int("limit", 10, "Number of history runs for the trend report")
	jsonOut    = flag.Bool("json", false, "Emit JSON instead of rendered Markdown")
	reportPath = flag.String("report", "", "Markdown file to keep updated with scan sections")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "0.1.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("pylens v%s\n", VERSION)
		os.Exit(0)
	}

	modes := 0
	if *scanPaths != "" {
		modes++
	}
	if *oldPath != "" || *newPath != "" {
		modes++
	}
	if *watchMode {
		modes++
	}
	if *gatePaths != "" {
		modes++
	}
	if *trendMode {
		modes++
	}
	if modes == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if modes > 1 {
		fmt.Fprintln(os.Stderr, "pick exactly one of -scan, -old/-new, -watch, -gate, -trend")
		os.Exit(1)
	}
	if (*oldPath == "") != (*newPath == "") {
		fmt.Fprintln(os.Stderr, "diff mode requires both -old and -new")
		os.Exit(1)
	}
	if *tui && !*watchMode {
		fmt.Fprintln(os.Stderr, "-tui requires -watch")
		os.Exit(1)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}

	output := os.Stdout
	if *tui {
		// In TUI mode, avoid stdout logs corrupting the terminal.
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else {
			if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
				fmt.Fprintf(os.Stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
			} else {
				f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
				if err == nil {
					output = f
				} else {
					fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
				}
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *reportPath != "" {
		cfg.Report.MarkdownPath = *reportPath
	}

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}
	app.JSON = *jsonOut

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := 0
	switch {
	case *oldPath != "":
		if err := app.RunDiff(ctx, *oldPath, *newPath); err != nil {
			slog.Error("diff failed", "error", err)
			code = 1
		}
	case *gatePaths != "":
		pass, err := app.RunGate(ctx, splitList(*gatePaths))
		if err != nil {
			slog.Error("gate failed", "error", err)
			code = 1
		} else if !pass {
			code = 1
		}
	case *trendMode:
		if err := app.RunTrend(ctx, *limit); err != nil {
			slog.Error("trend failed", "error", err)
			code = 1
		}
	case *watchMode:
		if err := app.RunWatch(ctx, *tui); err != nil {
			slog.Error("watch failed", "error", err)
			code = 1
		}
	default:
		if err := app.RunScan(ctx, splitList(*scanPaths)); err != nil {
			slog.Error("scan failed", "error", err)
			code = 1
		}
	}

	app.Close()
	if code != 0 {
		os.Exit(code)
	}
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "pylens", "pylens.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "pylens", "pylens.log")
	}

	return "pylens.log"
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
