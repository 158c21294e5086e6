package resolve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// debounceInterval batches bursts of filesystem events into one run.
// Variable so tests can shorten the wait.
var debounceInterval = 2 * time.Second

// Watch re-runs the analysis whenever a relevant file under the root
// changes, invoking onRun with each result. Blocks until the context
// is cancelled. Declaration files are re-read on every run, so edits
// to them take effect too.
func (a *Analyzer) Watch(ctx context.Context, onRun func(*PackageGraph, error)) error {
	root, err := filepath.Abs(a.cfg.Root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}

	matcher := loadIgnoreMatcher(root)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if shouldSkipWatchDir(info.Name(), path, root, matcher) {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	// First run before any change arrives.
	g, err := a.Run()
	onRun(g, err)

	pending := false
	debounce := time.NewTimer(debounceInterval)
	debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// Newly created directories need their own watch.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !shouldSkipWatchDir(info.Name(), event.Name, root, matcher) {
						_ = watcher.Add(event.Name)
					}
				}
			}

			if !relevantChange(event.Name, root, matcher, a.cfg) {
				continue
			}
			pending = true
			debounce.Reset(debounceInterval)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)

		case <-debounce.C:
			if pending {
				pending = false
				g, err := a.Run()
				onRun(g, err)
			}
		}
	}
}

// relevantChange reports whether a changed path can affect the result:
// an eligible source file or one of the two declaration files.
func relevantChange(path, root string, matcher gitignore.Matcher, cfg Config) bool {
	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	if matcher != nil && matcher.Match(strings.Split(relPath, string(filepath.Separator)), false) {
		return false
	}

	if strings.ToLower(filepath.Ext(path)) == ".py" {
		return true
	}

	reqFile := cfg.RequirementsFile
	if reqFile == "" {
		reqFile = defaultRequirementsFile
	}
	mapFile := cfg.ModuleMapFile
	if mapFile == "" {
		mapFile = defaultModuleMapFile
	}

	base := filepath.Base(path)
	return base == filepath.Base(reqFile) || base == filepath.Base(mapFile)
}

func shouldSkipWatchDir(name, path, root string, matcher gitignore.Matcher) bool {
	switch name {
	case ".git", "__pycache__", ".venv", "venv", "node_modules", ".tox":
		return true
	}
	if matcher == nil {
		return false
	}
	relPath, err := filepath.Rel(root, path)
	if err != nil || relPath == "." {
		return false
	}
	return matcher.Match(strings.Split(relPath, string(filepath.Separator)), true)
}

// loadIgnoreMatcher builds a gitignore matcher from the root's
// .gitignore, or returns nil when there is none.
func loadIgnoreMatcher(root string) gitignore.Matcher {
	content, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	if len(patterns) == 0 {
		return nil
	}
	return gitignore.NewMatcher(patterns)
}
