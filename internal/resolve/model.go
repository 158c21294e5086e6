// Package resolve computes the dependency closure of an entry set.
//
// It drives the scanner over every reachable file, classifies each
// import reference with a closed tagged Resolution, and accumulates
// the result into an immutable PackageGraph handed to the formatter.
package resolve

import (
	"sort"

	"github.com/pycarve/pycarve/internal/registry"
	"github.com/pycarve/pycarve/internal/tree"
)

// ResolutionKind is the classification tag for one import reference.
type ResolutionKind int

const (
	// KindInternal is a reference to another file under the root.
	KindInternal ResolutionKind = iota

	// KindExternal is a reference provided by a declared requirement.
	KindExternal

	// KindBuiltin is a standard-library reference; never reported.
	KindBuiltin

	// KindUnresolved is a reference nothing accounts for.
	KindUnresolved
)

// Resolution is the outcome of classifying one import reference.
// Exactly one of File, Requirement or Name is meaningful per kind.
type Resolution struct {
	Kind        ResolutionKind
	File        *tree.SourceFile
	Requirement registry.Requirement

	// Name is the reported name for builtin and unresolved kinds.
	Name string
}

// FileNode is one reachable source file with its direct edges.
type FileNode struct {
	File *tree.SourceFile

	internal map[string]struct{} // imported files, by relative path
	external map[string]struct{} // used requirements, by name
}

// InternalEdges returns the relative paths of directly imported
// internal files, sorted.
func (n *FileNode) InternalEdges() []string {
	return sortedKeys(n.internal)
}

// ExternalEdges returns the names of directly used requirements, sorted.
func (n *FileNode) ExternalEdges() []string {
	return sortedKeys(n.external)
}

// RequirementUse is a requirement pulled into the closure, annotated
// with the reachable files that import a name mapping to it.
type RequirementUse struct {
	Requirement registry.Requirement

	usedBy map[string]struct{}
}

// UsedBy returns the relative paths of the using files, sorted.
func (u *RequirementUse) UsedBy() []string {
	return sortedKeys(u.usedBy)
}

// UnresolvedName is an imported name nothing accounts for, annotated
// with the reachable files that reference it.
type UnresolvedName struct {
	Name string

	referencedBy map[string]struct{}
}

// ReferencedBy returns the relative paths of the referencing files, sorted.
func (u *UnresolvedName) ReferencedBy() []string {
	return sortedKeys(u.referencedBy)
}

// FileIssue is an accumulated per-file resolution-time problem
// (scan error, above-root relative import, unreadable file).
type FileIssue struct {
	File    string
	Line    int
	Message string
}

// PackageGraph is the fully materialized result of one closure run.
// It is built once, never mutated afterwards, and every accessor
// returns deterministically ordered data.
type PackageGraph struct {
	// Root is the absolute root directory of the analyzed tree.
	Root string

	entries      []string
	files        map[string]*FileNode
	requirements map[string]*RequirementUse
	unresolved   map[string]*UnresolvedName
	issues       []FileIssue
}

func newPackageGraph(root string, entries []*tree.SourceFile) *PackageGraph {
	g := &PackageGraph{
		Root:         root,
		files:        make(map[string]*FileNode),
		requirements: make(map[string]*RequirementUse),
		unresolved:   make(map[string]*UnresolvedName),
	}
	for _, e := range entries {
		g.entries = append(g.entries, e.RelPath)
	}
	sort.Strings(g.entries)
	return g
}

// Entries returns the relative paths of the entry files, sorted.
func (g *PackageGraph) Entries() []string {
	return g.entries
}

// Files returns every reachable file node ordered by relative path.
func (g *PackageGraph) Files() []*FileNode {
	out := make([]*FileNode, 0, len(g.files))
	for _, n := range g.files {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File.RelPath < out[j].File.RelPath })
	return out
}

// FileCount returns the number of reachable files.
func (g *PackageGraph) FileCount() int {
	return len(g.files)
}

// Requirements returns every used requirement ordered by name.
func (g *PackageGraph) Requirements() []*RequirementUse {
	out := make([]*RequirementUse, 0, len(g.requirements))
	for _, u := range g.requirements {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Requirement.Name < out[j].Requirement.Name })
	return out
}

// Unresolved returns every unresolved name ordered lexicographically.
func (g *PackageGraph) Unresolved() []*UnresolvedName {
	out := make([]*UnresolvedName, 0, len(g.unresolved))
	for _, u := range g.unresolved {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// UnresolvedCount returns the number of distinct unresolved names.
func (g *PackageGraph) UnresolvedCount() int {
	return len(g.unresolved)
}

// Issues returns accumulated per-file issues ordered by file then line.
func (g *PackageGraph) Issues() []FileIssue {
	out := make([]FileIssue, len(g.issues))
	copy(out, g.issues)
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Message < out[j].Message
	})
	return out
}

// Accumulation helpers. All are idempotent: visiting the same file or
// reference twice never duplicates an edge or double-counts a usage.

func (g *PackageGraph) ensureFile(f *tree.SourceFile) *FileNode {
	if n, ok := g.files[f.RelPath]; ok {
		return n
	}
	n := &FileNode{
		File:     f,
		internal: make(map[string]struct{}),
		external: make(map[string]struct{}),
	}
	g.files[f.RelPath] = n
	return n
}

func (g *PackageGraph) useRequirement(req registry.Requirement, by *tree.SourceFile) {
	u, ok := g.requirements[req.Name]
	if !ok {
		u = &RequirementUse{
			Requirement: req,
			usedBy:      make(map[string]struct{}),
		}
		g.requirements[req.Name] = u
	}
	u.usedBy[by.RelPath] = struct{}{}
}

func (g *PackageGraph) addUnresolved(name string, by *tree.SourceFile) {
	u, ok := g.unresolved[name]
	if !ok {
		u = &UnresolvedName{
			Name:         name,
			referencedBy: make(map[string]struct{}),
		}
		g.unresolved[name] = u
	}
	u.referencedBy[by.RelPath] = struct{}{}
}

func (g *PackageGraph) addIssue(file string, line int, message string) {
	g.issues = append(g.issues, FileIssue{File: file, Line: line, Message: message})
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
