// Package tree provides the source tree index for pycarve.
//
// It walks a repository root, collects every eligible Python source
// file, and derives the dotted module identifier each file is
// importable under. The tree is immutable once built and backs both
// entry-set expansion and internal import resolution.
package tree

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// sourceExt is the single eligible source-file extension.
const sourceExt = ".py"

// packageIndexFile marks a directory as an importable package.
const packageIndexFile = "__init__.py"

// SourceFile is one discovered source file. Immutable after discovery.
type SourceFile struct {
	// ID is the interned index of the file within its tree.
	ID int

	// Path is the absolute file path.
	Path string

	// RelPath is the slash-separated path relative to the root.
	RelPath string

	// Module is the dotted module identifier derived from RelPath
	// (lib/util.py -> lib.util, pkg/__init__.py -> pkg).
	Module string
}

// SourceTree indexes every eligible source file under a root directory.
type SourceTree struct {
	// Root is the absolute root directory.
	Root string

	files     []*SourceFile
	byModule  map[string]*SourceFile
	byRelPath map[string]*SourceFile
}

// Default patterns to ignore (in addition to .gitignore).
var defaultIgnorePatterns = []string{
	".git/",
	"node_modules/",
	"__pycache__/",
	".venv/",
	"venv/",
	".tox/",
	".eggs/",
	"*.egg-info/",
	".pytest_cache/",
	".mypy_cache/",
	"*.pyc",
	"*.pyo",
	".DS_Store",
}

// Walk builds a SourceTree for the given root directory.
func Walk(root string) (*SourceTree, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("accessing root %s: %w", absRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", absRoot)
	}

	patterns, err := loadGitignore(absRoot)
	if err != nil {
		return nil, err
	}

	allPatterns := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns)+len(patterns))
	for _, p := range defaultIgnorePatterns {
		allPatterns = append(allPatterns, gitignore.ParsePattern(p, nil))
	}
	allPatterns = append(allPatterns, patterns...)
	matcher := gitignore.NewMatcher(allPatterns)

	t := &SourceTree{
		Root:      absRoot,
		byModule:  make(map[string]*SourceFile),
		byRelPath: make(map[string]*SourceFile),
	}

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			if d.Name() == ".git" || matcher.Match(splitPath(relPath), true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !isSourceFile(d.Name()) {
			return nil
		}
		if matcher.Match(splitPath(relPath), false) {
			return nil
		}

		rel := filepath.ToSlash(relPath)
		t.files = append(t.files, &SourceFile{
			Path:    path,
			RelPath: rel,
			Module:  ModuleName(rel),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", absRoot, err)
	}

	// Sort before interning so IDs are stable across runs.
	sort.Slice(t.files, func(i, j int) bool { return t.files[i].RelPath < t.files[j].RelPath })
	for i, f := range t.files {
		f.ID = i
		t.byRelPath[f.RelPath] = f
		if f.Module != "" {
			t.byModule[f.Module] = f
		}
	}

	return t, nil
}

// Len returns the number of indexed files.
func (t *SourceTree) Len() int {
	return len(t.files)
}

// Files returns all indexed files ordered by relative path.
func (t *SourceTree) Files() []*SourceFile {
	return t.files
}

// Lookup resolves a dotted module identifier to a source file.
// A plain module file wins; a directory-as-package resolves via its
// __init__.py index file, which carries the package's module name.
func (t *SourceTree) Lookup(module string) (*SourceFile, bool) {
	f, ok := t.byModule[module]
	return f, ok
}

// LookupRelPath resolves a root-relative path to a source file.
func (t *SourceTree) LookupRelPath(relPath string) (*SourceFile, bool) {
	f, ok := t.byRelPath[filepath.ToSlash(relPath)]
	return f, ok
}

// ModuleName derives the dotted module identifier for a root-relative
// source path. The package index file maps to its directory's module;
// a root-level index file has no importable name and yields "".
func ModuleName(relPath string) string {
	rel := filepath.ToSlash(relPath)
	if filepath.Base(rel) == packageIndexFile {
		dir := filepath.ToSlash(filepath.Dir(rel))
		if dir == "." {
			return ""
		}
		return strings.ReplaceAll(dir, "/", ".")
	}
	rel = strings.TrimSuffix(rel, sourceExt)
	return strings.ReplaceAll(rel, "/", ".")
}

// loadGitignore loads .gitignore patterns from the repository root.
func loadGitignore(root string) ([]gitignore.Pattern, error) {
	gitignorePath := filepath.Join(root, ".gitignore")

	if _, err := os.Stat(gitignorePath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(gitignorePath)
	if err != nil {
		return nil, err
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}

	return patterns, nil
}

// isSourceFile checks if a file has the eligible extension.
func isSourceFile(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == sourceExt
}

// splitPath splits a path into its components.
func splitPath(path string) []string {
	return strings.Split(path, string(filepath.Separator))
}
