// Package report renders a completed PackageGraph into text.
//
// Rendering is a pure projection: it never mutates the graph and
// never re-derives resolution. Every format emits deterministically
// ordered output so identical inputs produce byte-identical bytes.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pycarve/pycarve/internal/resolve"
)

// Format identifies an output shape.
type Format string

const (
	// FormatReport is the verbose human-readable report.
	FormatReport Format = "report"

	// FormatRequirements is one installable requirement per line,
	// with unresolved names appended as comment lines.
	FormatRequirements Format = "requirements"

	// FormatJSON is the machine-readable mirror of the graph.
	FormatJSON Format = "json"
)

// Formats lists the supported format identifiers.
func Formats() []string {
	return []string{string(FormatReport), string(FormatRequirements), string(FormatJSON)}
}

// Render writes the graph to w in the chosen format.
func Render(w io.Writer, g *resolve.PackageGraph, format Format) error {
	switch format {
	case FormatReport:
		return renderReport(w, g)
	case FormatRequirements:
		return renderRequirements(w, g)
	case FormatJSON:
		return renderJSON(w, g)
	default:
		return fmt.Errorf("unknown format %q (supported: %s)", format, strings.Join(Formats(), ", "))
	}
}

func renderReport(w io.Writer, g *resolve.PackageGraph) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Dependency report for %s\n\n", g.Root))

	entries := g.Entries()
	sb.WriteString(fmt.Sprintf("## Entry files (%d)\n", len(entries)))
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("- %s\n", e))
	}
	sb.WriteString("\n")

	files := g.Files()
	sb.WriteString(fmt.Sprintf("## Reachable internal files (%d)\n", len(files)))
	for _, n := range files {
		sb.WriteString(fmt.Sprintf("- %s\n", n.File.RelPath))
		if internal := n.InternalEdges(); len(internal) > 0 {
			sb.WriteString(fmt.Sprintf("    imports: %s\n", strings.Join(internal, ", ")))
		}
		if external := n.ExternalEdges(); len(external) > 0 {
			sb.WriteString(fmt.Sprintf("    requires: %s\n", strings.Join(external, ", ")))
		}
	}
	sb.WriteString("\n")

	reqs := g.Requirements()
	sb.WriteString(fmt.Sprintf("## Resolved requirements (%d)\n", len(reqs)))
	if len(reqs) == 0 {
		sb.WriteString("None\n")
	}
	for _, u := range reqs {
		sb.WriteString(fmt.Sprintf("- %s==%s\n", u.Requirement.Name, u.Requirement.Pin))
		sb.WriteString(fmt.Sprintf("    needed by: %s\n", strings.Join(u.UsedBy(), ", ")))
	}
	sb.WriteString("\n")

	unresolved := g.Unresolved()
	sb.WriteString(fmt.Sprintf("## Unresolved names (%d)\n", len(unresolved)))
	if len(unresolved) == 0 {
		sb.WriteString("None\n")
	}
	for _, u := range unresolved {
		sb.WriteString(fmt.Sprintf("- %s\n", u.Name))
		sb.WriteString(fmt.Sprintf("    referenced by: %s\n", strings.Join(u.ReferencedBy(), ", ")))
	}

	if issues := g.Issues(); len(issues) > 0 {
		sb.WriteString(fmt.Sprintf("\n## Scan issues (%d)\n", len(issues)))
		for _, issue := range issues {
			if issue.Line > 0 {
				sb.WriteString(fmt.Sprintf("- %s:%d: %s\n", issue.File, issue.Line, issue.Message))
			} else {
				sb.WriteString(fmt.Sprintf("- %s: %s\n", issue.File, issue.Message))
			}
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func renderRequirements(w io.Writer, g *resolve.PackageGraph) error {
	var sb strings.Builder

	for _, u := range g.Requirements() {
		sb.WriteString(fmt.Sprintf("%s==%s\n", u.Requirement.Name, u.Requirement.Pin))
	}
	for _, u := range g.Unresolved() {
		sb.WriteString(fmt.Sprintf("# unresolved: %s (%s)\n", u.Name, strings.Join(u.ReferencedBy(), ", ")))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// JSON shapes. Slices are always non-nil so the rendered document has
// stable structure even when sections are empty.

type jsonGraph struct {
	Root         string            `json:"root"`
	Entries      []string          `json:"entries"`
	Files        []jsonFile        `json:"files"`
	Requirements []jsonRequirement `json:"requirements"`
	Unresolved   []jsonUnresolved  `json:"unresolved"`
	Issues       []jsonIssue       `json:"issues"`
}

type jsonFile struct {
	Path         string   `json:"path"`
	Module       string   `json:"module"`
	Imports      []string `json:"imports"`
	Requirements []string `json:"requirements"`
}

type jsonRequirement struct {
	Name   string   `json:"name"`
	Pin    string   `json:"pin"`
	UsedBy []string `json:"used_by"`
}

type jsonUnresolved struct {
	Name         string   `json:"name"`
	ReferencedBy []string `json:"referenced_by"`
}

type jsonIssue struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func renderJSON(w io.Writer, g *resolve.PackageGraph) error {
	doc := jsonGraph{
		Root:         g.Root,
		Entries:      g.Entries(),
		Files:        []jsonFile{},
		Requirements: []jsonRequirement{},
		Unresolved:   []jsonUnresolved{},
		Issues:       []jsonIssue{},
	}
	if doc.Entries == nil {
		doc.Entries = []string{}
	}

	for _, n := range g.Files() {
		doc.Files = append(doc.Files, jsonFile{
			Path:         n.File.RelPath,
			Module:       n.File.Module,
			Imports:      nonNil(n.InternalEdges()),
			Requirements: nonNil(n.ExternalEdges()),
		})
	}
	for _, u := range g.Requirements() {
		doc.Requirements = append(doc.Requirements, jsonRequirement{
			Name:   u.Requirement.Name,
			Pin:    u.Requirement.Pin,
			UsedBy: nonNil(u.UsedBy()),
		})
	}
	for _, u := range g.Unresolved() {
		doc.Unresolved = append(doc.Unresolved, jsonUnresolved{
			Name:         u.Name,
			ReferencedBy: nonNil(u.ReferencedBy()),
		})
	}
	for _, issue := range g.Issues() {
		doc.Issues = append(doc.Issues, jsonIssue{File: issue.File, Line: issue.Line, Message: issue.Message})
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')
	_, err = w.Write(out)
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
