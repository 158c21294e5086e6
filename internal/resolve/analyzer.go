package resolve

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pycarve/pycarve/internal/registry"
	"github.com/pycarve/pycarve/internal/tree"
)

// Config is the explicit per-run configuration. Declaration state is
// loaded fresh on every run and threaded as values; there is no
// process-wide state and no cache between runs.
type Config struct {
	// Root is the monorepo root directory.
	Root string

	// Entries are the entry paths (files or directories) to expand.
	Entries []string

	// RequirementsFile is the requirement declaration file,
	// resolved against Root when relative.
	RequirementsFile string

	// ModuleMapFile is the module-to-requirement declaration file,
	// resolved against Root when relative.
	ModuleMapFile string

	// Workers bounds the scan pool; zero means GOMAXPROCS.
	Workers int
}

// Default declaration filenames, looked up under Root when the
// configuration leaves them blank.
const (
	defaultRequirementsFile = "requirements.txt"
	defaultModuleMapFile    = "module_map.tsv"
)

// Analyzer runs the full analysis for one configuration: walk the
// tree, load and validate declarations, expand the entry set, and
// compute the closure.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer creates an Analyzer for the given configuration.
func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// LoadRegistry reads and cross-validates both declaration files.
// Every failure here is a fatal configuration error.
func (a *Analyzer) LoadRegistry() (*registry.Registry, error) {
	reqPath := a.resolvePath(a.cfg.RequirementsFile, defaultRequirementsFile)
	reqContent, err := os.ReadFile(reqPath)
	if err != nil {
		return nil, fmt.Errorf("reading requirements file: %w", err)
	}
	reqs, err := registry.ParseRequirements(reqContent, reqPath)
	if err != nil {
		return nil, err
	}

	mapPath := a.resolvePath(a.cfg.ModuleMapFile, defaultModuleMapFile)
	mapContent, err := os.ReadFile(mapPath)
	if err != nil {
		return nil, fmt.Errorf("reading module map file: %w", err)
	}
	moduleMap, err := registry.ParseModuleMap(mapContent, mapPath)
	if err != nil {
		return nil, err
	}

	return registry.New(reqs, moduleMap, mapPath)
}

// Run performs one complete analysis and returns the materialized
// graph. Configuration errors abort before any graph is built;
// resolution-time issues accumulate inside the returned graph.
func (a *Analyzer) Run() (*PackageGraph, error) {
	reg, err := a.LoadRegistry()
	if err != nil {
		return nil, err
	}

	t, err := tree.Walk(a.cfg.Root)
	if err != nil {
		return nil, err
	}

	// No explicit entries means the whole root.
	entryPaths := a.cfg.Entries
	if len(entryPaths) == 0 {
		entryPaths = []string{"."}
	}

	entries, err := t.ExpandEntries(entryPaths)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("entry set is empty: no eligible source files under %v", entryPaths)
	}

	return BuildGraph(t, reg, entries, Options{Workers: a.cfg.Workers}), nil
}

func (a *Analyzer) resolvePath(p, fallback string) string {
	if p == "" {
		p = fallback
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.cfg.Root, p)
}
