package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kitamorio/galley/internal/model"
)

// debounceInterval coalesces event bursts: editors typically emit a
// write-rename-chmod flurry for a single save.
const debounceInterval = 100 * time.Millisecond

// skipDirNames are directory names never watched: build output and
// dependency trees churn constantly and would retrigger forever.
var skipDirNames = map[string]bool{
	"node_modules": true,
	"target":       true,
	"vendor":       true,
	"dist":         true,
}

// Watcher re-runs a function whenever files under its paths change.
type Watcher struct {
	// Paths are the files and directories to watch. Directories are
	// registered recursively.
	Paths []string

	// Verbose, when non-nil, receives debug/trace messages.
	Verbose func(format string, args ...interface{})
}

// Run executes fn once immediately, then re-executes it after each
// debounced change under the watched paths, cancelling the previous
// invocation's context first. It returns when ctx is cancelled.
//
// fn's error is deliberately not fatal to the loop: in a watch workflow
// a failing recipe (compile error, red tests) should keep the loop alive
// so the next save retries.
func (w *Watcher) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to create file watcher", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, path := range w.Paths {
		if err := addRecursive(watcher, path); err != nil {
			return model.WrapCLIError(model.ExitGeneralError,
				"failed to watch "+path, err)
		}
		w.verbose("Watching %s", path)
	}

	// trigger has capacity 1: while a re-run is already pending, further
	// changes collapse into it.
	trigger := make(chan struct{}, 1)
	go w.eventLoop(ctx, watcher, trigger)

	for {
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- fn(runCtx) }()

		select {
		case <-ctx.Done():
			cancel()
			<-done
			return nil
		case <-trigger:
			w.verbose("Change detected, re-running")
			cancel()
			<-done
		case err := <-done:
			cancel()
			if err != nil {
				w.verbose("Run failed, waiting for changes: %v", err)
			}
			// Run finished on its own; wait for the next change.
			select {
			case <-ctx.Done():
				return nil
			case <-trigger:
				w.verbose("Change detected, re-running")
			}
		}
	}
}

// eventLoop consumes fsnotify events, debounces them, and pokes trigger.
// Newly created directories are registered on the fly so edits inside
// them are seen.
func (w *Watcher) eventLoop(ctx context.Context, watcher *fsnotify.Watcher, trigger chan<- struct{}) {
	var mu sync.Mutex
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addRecursive(watcher, event.Name)
				}
			}

			mu.Lock()
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceInterval, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.verbose("Watcher error: %v", err)
		}
	}
}

// addRecursive registers path with the watcher; for directories it walks
// the tree, skipping hidden and known-churn directories.
func addRecursive(watcher *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		// Watch the containing directory: fsnotify watches on a file
		// break when editors replace the file on save.
		return watcher.Add(filepath.Dir(path))
	}

	return filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if ShouldSkipDir(fi.Name()) && p != path {
				return filepath.SkipDir
			}
			return watcher.Add(p)
		}
		return nil
	})
}

// ShouldSkipDir reports whether a directory name is excluded from
// watching: hidden directories and known build/dependency trees.
func ShouldSkipDir(name string) bool {
	if len(name) > 1 && name[0] == '.' {
		return true
	}
	return skipDirNames[name]
}

func (w *Watcher) verbose(format string, args ...interface{}) {
	if w.Verbose != nil {
		w.Verbose(format, args...)
	}
}
