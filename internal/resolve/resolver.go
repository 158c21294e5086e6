package resolve

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/pycarve/pycarve/internal/registry"
	"github.com/pycarve/pycarve/internal/scan"
	"github.com/pycarve/pycarve/internal/tree"
)

// Options tunes the closure computation.
type Options struct {
	// Workers bounds the scanner pool per frontier wave.
	// Zero means GOMAXPROCS.
	Workers int
}

// BuildGraph computes the transitive dependency closure of the entry
// set. The frontier is scanned wave by wave: scanning is parallel,
// merging is single-threaded, so the accumulated graph is identical
// regardless of traversal or scheduling order. Cycles terminate
// because files are marked reachable before they are enqueued.
func BuildGraph(t *tree.SourceTree, reg *registry.Registry, entries []*tree.SourceFile, opts Options) *PackageGraph {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g := newPackageGraph(t.Root, entries)

	reachable := make([]bool, t.Len())
	frontier := make([]*tree.SourceFile, 0, len(entries))
	for _, e := range entries {
		if !reachable[e.ID] {
			reachable[e.ID] = true
			frontier = append(frontier, e)
		}
	}

	for len(frontier) > 0 {
		wave := scanWave(frontier, workers)

		var next []*tree.SourceFile
		for _, item := range wave {
			node := g.ensureFile(item.file)

			if item.err != nil {
				g.addIssue(item.file.RelPath, 0, fmt.Sprintf("reading file: %v", item.err))
				continue
			}

			for _, issue := range item.result.Issues {
				g.addIssue(item.file.RelPath, issue.Line, issue.Message)
			}

			for _, ref := range item.result.Refs {
				for _, res := range classifyRef(t, reg, item.file, ref, g) {
					switch res.Kind {
					case KindInternal:
						node.internal[res.File.RelPath] = struct{}{}
						if !reachable[res.File.ID] {
							reachable[res.File.ID] = true
							next = append(next, res.File)
						}
					case KindExternal:
						node.external[res.Requirement.Name] = struct{}{}
						g.useRequirement(res.Requirement, item.file)
					case KindBuiltin:
						// Recognized standard name: ignored, not reported.
					case KindUnresolved:
						g.addUnresolved(res.Name, item.file)
					}
				}
			}
		}

		sort.Slice(next, func(i, j int) bool { return next[i].RelPath < next[j].RelPath })
		frontier = next
	}

	return g
}

type waveItem struct {
	file   *tree.SourceFile
	result *scan.Result
	err    error
}

// scanWave scans one frontier with a bounded worker pool. Results are
// returned in frontier order regardless of completion order.
func scanWave(frontier []*tree.SourceFile, workers int) []waveItem {
	items := make([]waveItem, len(frontier))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				f := frontier[i]
				content, err := os.ReadFile(f.Path)
				if err != nil {
					items[i] = waveItem{file: f, err: err}
					continue
				}
				items[i] = waveItem{file: f, result: scan.Scan(content)}
			}
		}()
	}

	for i := range frontier {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return items
}

// classifyRef normalizes one scanned reference against its referencing
// file and classifies the resulting dotted candidates. A from-import
// yields one candidate per imported symbol; the candidates share the
// resolved base module.
func classifyRef(t *tree.SourceTree, reg *registry.Registry, from *tree.SourceFile, ref scan.ImportRef, g *PackageGraph) []Resolution {
	base, err := normalizeBase(from, ref)
	if err != nil {
		g.addIssue(from.RelPath, ref.Line, err.Error())
		return nil
	}

	var resolutions []Resolution
	if ref.Symbols == nil {
		resolutions = append(resolutions, classify(t, reg, base, ref.Level > 0))
		return resolutions
	}

	for _, sym := range ref.Symbols {
		candidate := base
		if sym != "*" {
			if candidate == "" {
				candidate = sym
			} else {
				candidate = candidate + "." + sym
			}
		}
		if candidate == "" {
			// "from . import *" at the tree root names nothing resolvable.
			continue
		}
		resolutions = append(resolutions, classify(t, reg, candidate, ref.Level > 0))
	}
	return resolutions
}

// normalizeBase resolves a reference's module path to an absolute
// dotted path, anchoring relative references at the referencing
// file's own package. Walking above the root is rejected.
func normalizeBase(from *tree.SourceFile, ref scan.ImportRef) (string, error) {
	if ref.Level == 0 {
		return ref.Module, nil
	}

	pkg := packageOf(from)
	segs := []string{}
	if pkg != "" {
		segs = strings.Split(pkg, ".")
	}

	ups := ref.Level - 1
	if ups > len(segs) {
		return "", fmt.Errorf("line %d: relative import walks above the root (%d dots from package %q)", ref.Line, ref.Level, pkg)
	}
	segs = segs[:len(segs)-ups]

	if ref.Module != "" {
		segs = append(segs, strings.Split(ref.Module, ".")...)
	}
	return strings.Join(segs, "."), nil
}

// packageOf returns the dotted package a file belongs to: a package
// index file anchors at its own module, any other file at its parent.
func packageOf(f *tree.SourceFile) string {
	if strings.HasSuffix(f.RelPath, "/__init__.py") || f.RelPath == "__init__.py" {
		return f.Module
	}
	if idx := strings.LastIndex(f.Module, "."); idx >= 0 {
		return f.Module[:idx]
	}
	return ""
}

// classify resolves one absolute dotted candidate. Internal matches
// win over everything and use the longest matching prefix, so
// "from a.b import helper" lands on a/b.py when a/b/helper.py does
// not exist. Relative references are internal by construction and
// never consult the registry or the builtin list.
func classify(t *tree.SourceTree, reg *registry.Registry, candidate string, relative bool) Resolution {
	segs := strings.Split(candidate, ".")
	for i := len(segs); i > 0; i-- {
		if f, ok := t.Lookup(strings.Join(segs[:i], ".")); ok {
			return Resolution{Kind: KindInternal, File: f}
		}
	}

	if relative {
		return Resolution{Kind: KindUnresolved, Name: candidate}
	}

	topLevel := segs[0]
	if req, ok := reg.Provider(topLevel); ok {
		return Resolution{Kind: KindExternal, Requirement: req}
	}
	if registry.IsBuiltin(topLevel) {
		return Resolution{Kind: KindBuiltin, Name: topLevel}
	}
	return Resolution{Kind: KindUnresolved, Name: topLevel}
}
