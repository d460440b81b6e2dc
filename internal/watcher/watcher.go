// # internal/watcher/watcher.go
package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"pylens/internal/shared/util"
)

// ExcludeSet is a compiled list of glob patterns applied to scanned and
// watched paths.
type ExcludeSet []glob.Glob

func CompileExcludes(patterns []string) (ExcludeSet, error) {
	set := make(ExcludeSet, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(util.NormalizePatternPath(pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		set = append(set, g)
	}
	return set, nil
}

// Match reports whether any pattern matches the path. Each pattern is tried
// against the slash-normalized path and against every trailing sub-path;
// directories are also tried with a trailing slash so dir/** patterns match
// the directory itself.
func (s ExcludeSet) Match(path string, dir bool) bool {
	if len(s) == 0 {
		return false
	}

	rest := util.NormalizePatternPath(path)
	for {
		for _, g := range s {
			if g.Match(rest) || (dir && g.Match(rest+"/")) {
				return true
			}
		}
		i := strings.IndexByte(rest, '/')
		if i < 0 {
			return false
		}
		rest = rest[i+1:]
	}
}

// Watcher emits debounced change notifications for Python sources under a
// set of watched roots. Each path gets its own debounce timer, so a burst
// of editor writes to one file collapses into a single event without
// delaying events for other files.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	excludes  ExcludeSet

	events chan string
	done   chan struct{}

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

func NewWatcher(debounce time.Duration, excludes []string) (*Watcher, error) {
	set, err := CompileExcludes(excludes)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher: fsw,
		debounce:  debounce,
		excludes:  set,
		events:    make(chan string, 64),
		done:      make(chan struct{}),
		timers:    make(map[string]*time.Timer),
	}, nil
}

// Events delivers the path of a changed Python file once its debounce
// window closes. Delivery stops after Close.
func (w *Watcher) Events() <-chan string {
	return w.events
}

func (w *Watcher) Watch(paths []string) error {
	for _, path := range paths {
		if err := w.watchRecursive(path); err != nil {
			return err
		}
	}

	go w.run()
	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if w.excludes.Match(path, true) {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}

		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if !w.excludes.Match(event.Name, true) {
						if err := w.watchRecursive(event.Name); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						} else {
							w.enqueueExistingFiles(event.Name)
						}
					}
					continue
				}
			}

			if filepath.Ext(event.Name) != ".py" || w.excludes.Match(event.Name, false) {
				continue
			}

			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Remove == fsnotify.Remove {
				w.scheduleChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.emit(path)
	})
}

func (w *Watcher) emit(path string) {
	w.mu.Lock()
	delete(w.timers, path)
	closed := w.closed
	w.mu.Unlock()

	if closed {
		return
	}

	select {
	case w.events <- path:
	case <-w.done:
	}
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = nil
	w.mu.Unlock()

	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".py" || w.excludes.Match(path, false) {
			return nil
		}
		w.scheduleChange(path)
		return nil
	})
}
