// Pycarve - dependency carver for Python monorepos.
//
// Pycarve resolves the transitive import closure of a set of entry
// files inside a large single-tree repository, classifying every
// reference as an internal file, a declared external requirement,
// a builtin, or unresolved.
package main

import (
	"fmt"
	"os"

	"github.com/pycarve/pycarve/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
