package tree

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ExpandEntries turns user-supplied entry paths (files or directories)
// into a deduplicated set of source files from the tree.
//
// Relative paths resolve against the tree root. Every path must lie
// at or beneath the root; anything outside is a configuration error
// and the whole expansion fails. Directories expand recursively to
// every eligible file beneath them; a file argument must itself be an
// eligible source file known to the tree.
func (t *SourceTree) ExpandEntries(paths []string) ([]*SourceFile, error) {
	seen := make(map[int]*SourceFile)

	for _, p := range paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(t.Root, abs)
		}
		abs = filepath.Clean(abs)

		rel, err := filepath.Rel(t.Root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("entry path %s is outside root %s", p, t.Root)
		}
		rel = filepath.ToSlash(rel)

		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("accessing entry path %s: %w", p, err)
		}

		if info.IsDir() {
			for _, f := range t.filesUnder(rel) {
				seen[f.ID] = f
			}
			continue
		}

		if !isSourceFile(abs) {
			return nil, fmt.Errorf("entry file %s is not a %s file", p, sourceExt)
		}
		f, ok := t.byRelPath[rel]
		if !ok {
			return nil, fmt.Errorf("entry file %s is not part of the source tree (ignored or outside the walk)", p)
		}
		seen[f.ID] = f
	}

	entries := make([]*SourceFile, 0, len(seen))
	for _, f := range seen {
		entries = append(entries, f)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].RelPath < entries[j].RelPath })

	return entries, nil
}

// filesUnder returns the tree files located at or below the given
// root-relative directory. rel == "." means the whole tree.
func (t *SourceTree) filesUnder(rel string) []*SourceFile {
	if rel == "." {
		return t.files
	}
	prefix := rel + "/"
	var out []*SourceFile
	for _, f := range t.files {
		if strings.HasPrefix(f.RelPath, prefix) {
			out = append(out, f)
		}
	}
	return out
}
