// Package cmd provides CLI command implementations for Pycarve.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/pycarve/pycarve/internal/report"
	"github.com/pycarve/pycarve/internal/resolve"
	"github.com/pycarve/pycarve/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// AnalyzeCmd computes the dependency closure of an entry set.
type AnalyzeCmd struct {
	Entries []string `arg:"" optional:"" help:"Entry files or directories (default: whole root)"`

	Root             string `default:"." help:"Monorepo root directory"`
	Requirements     string `default:"requirements.txt" help:"Pinned requirements file, relative to root unless absolute"`
	ModuleMap        string `default:"module_map.tsv" help:"Module-to-requirement map file"`
	Format           string `default:"report" enum:"report,requirements,json" help:"Output format (report|requirements|json)"`
	Output           string `short:"o" help:"Write output to file instead of stdout"`
	Workers          int    `help:"Scan worker count (default: number of CPUs)"`
	NoFailUnresolved bool   `help:"Exit zero even when imports remain unresolved"`
}

// Run executes the analyze command.
func (c *AnalyzeCmd) Run() error {
	cfg, err := analyzerConfig(c.Root, c.Entries, c.Requirements, c.ModuleMap, c.Workers)
	if err != nil {
		return err
	}

	start := time.Now()
	g, err := resolve.NewAnalyzer(cfg).Run()
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if err := report.Render(out, g, report.Format(c.Format)); err != nil {
		return err
	}

	// Summary goes to stderr so piped output stays clean.
	if c.Format == string(report.FormatReport) && c.Output == "" {
		fmt.Fprintln(os.Stderr)
	}
	fmt.Fprintf(os.Stderr, "Analyzed %d files, %d requirements in %.2fs\n",
		g.FileCount(), len(g.Requirements()), time.Since(start).Seconds())

	if n := g.UnresolvedCount(); n > 0 && !c.NoFailUnresolved {
		return fmt.Errorf("%d unresolved imports remain", n)
	}
	return nil
}

// CheckCmd validates the declaration files without building a graph.
type CheckCmd struct {
	Root         string `default:"." help:"Monorepo root directory"`
	Requirements string `default:"requirements.txt" help:"Pinned requirements file"`
	ModuleMap    string `default:"module_map.tsv" help:"Module-to-requirement map file"`
}

// Run executes the check command.
func (c *CheckCmd) Run() error {
	cfg, err := analyzerConfig(c.Root, nil, c.Requirements, c.ModuleMap, 0)
	if err != nil {
		return err
	}

	reg, err := resolve.NewAnalyzer(cfg).LoadRegistry()
	if err != nil {
		return err
	}

	color.Green("✓ Declarations consistent")
	fmt.Printf("  Requirements:  %d\n", reg.Len())
	return nil
}

// WatchCmd re-runs the analysis whenever source or declaration files change.
type WatchCmd struct {
	Entries []string `arg:"" optional:"" help:"Entry files or directories (default: whole root)"`

	Root         string `default:"." help:"Monorepo root directory"`
	Requirements string `default:"requirements.txt" help:"Pinned requirements file"`
	ModuleMap    string `default:"module_map.tsv" help:"Module-to-requirement map file"`
	Format       string `default:"report" enum:"report,requirements,json" help:"Output format (report|requirements|json)"`
}

// Run executes the watch command.
func (c *WatchCmd) Run() error {
	cfg, err := analyzerConfig(c.Root, c.Entries, c.Requirements, c.ModuleMap, 0)
	if err != nil {
		return err
	}

	fmt.Printf("Watching %s for changes (Ctrl+C to stop)\n\n", cfg.Root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle Ctrl+C
	go func() {
		<-osSignalChannel()
		fmt.Println("\nStopping watch mode...")
		cancel()
	}()

	onRun := func(g *resolve.PackageGraph, err error) {
		if err != nil {
			color.Red("analysis failed: %v", err)
			return
		}
		if err := report.Render(os.Stdout, g, report.Format(c.Format)); err != nil {
			color.Red("rendering: %v", err)
			return
		}
		if n := g.UnresolvedCount(); n > 0 {
			color.Yellow("%d unresolved imports remain", n)
		} else {
			color.Green("✓ All imports resolved")
		}
		fmt.Println()
	}

	err = resolve.NewAnalyzer(cfg).Watch(ctx, onRun)
	if err != nil && err != context.Canceled {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Println("Watch mode stopped.")
	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct {
	Root string `default:"." help:"Monorepo root directory"`
}

// Run executes the mcp command.
func (c *MCPCmd) Run() error {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}

	server := mcp.NewServer(root)

	// Note: No output to stderr - MCP server uses stdio for JSON-RPC only
	return server.Run(context.Background(), os.Stdin, os.Stdout)
}

// ServeCmd starts the MCP server with optional watch mode.
type ServeCmd struct {
	Root  string `default:"." help:"Monorepo root directory"`
	Watch bool   `short:"w" help:"Re-analyze in the background on file changes"`
}

// Run executes the serve command.
func (c *ServeCmd) Run() error {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}

	server := mcp.NewServer(root)
	ctx := context.Background()

	if c.Watch {
		fmt.Fprintln(os.Stderr, "Starting MCP server with watch mode...")

		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		cfg := resolve.Config{Root: root}
		go func() {
			err := resolve.NewAnalyzer(cfg).Watch(watchCtx, func(g *resolve.PackageGraph, err error) {
				if err != nil {
					fmt.Fprintf(os.Stderr, "Watch analysis error: %v\n", err)
				}
			})
			if err != nil && err != context.Canceled {
				fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
			}
		}()

		fmt.Fprintln(os.Stderr, "File watching enabled")
	} else {
		fmt.Fprintln(os.Stderr, "Starting MCP server...")
	}

	return server.Run(ctx, os.Stdin, os.Stdout)
}

// Helper functions

func analyzerConfig(root string, entries []string, requirements, moduleMap string, workers int) (resolve.Config, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return resolve.Config{}, fmt.Errorf("resolving root: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return resolve.Config{}, fmt.Errorf("accessing %s: %w", absRoot, err)
	}
	if !info.IsDir() {
		return resolve.Config{}, fmt.Errorf("%s is not a directory", absRoot)
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return resolve.Config{
		Root:             absRoot,
		Entries:          entries,
		RequirementsFile: requirements,
		ModuleMapFile:    moduleMap,
		Workers:          workers,
	}, nil
}

// osSignalChannel returns a channel that receives OS signals for graceful shutdown.
func osSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Verbose bool             `short:"v" help:"Enable verbose output"`
	Quiet   bool             `short:"q" help:"Suppress non-essential output"`

	// Commands
	Analyze AnalyzeCmd `cmd:"" help:"Compute the dependency closure of an entry set"`
	Check   CheckCmd   `cmd:"" help:"Validate requirements and module map declarations"`
	Watch   WatchCmd   `cmd:"" help:"Re-run analysis on file changes"`
	MCP     MCPCmd     `cmd:"" help:"Start MCP server (stdio transport)"`
	Serve   ServeCmd   `cmd:"" help:"Start MCP server with optional watch mode"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	kongCtx := kong.Parse(c,
		kong.Name("pycarve"),
		kong.Description("Dependency carver for Python monorepos"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)

	return kongCtx.Run()
}
