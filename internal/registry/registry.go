// Package registry holds the declared external requirements and the
// mapping from importable top-level names to the requirement that
// provides them. Both structures are parsed once per run, validated
// for internal consistency, and threaded into the resolver as values.
package registry

import (
	"fmt"
	"sort"
	"strings"
)

// Requirement is one declared external dependency with an exact pin.
type Requirement struct {
	// Name is the requirement (distribution) name.
	Name string

	// Pin is the exact version string from the declaration.
	Pin string

	// Line is the originating declaration line, kept for messages.
	Line string

	// LineNo is the 1-based line number in the declaration file.
	LineNo int
}

// Registry is the immutable declaration state for one run.
type Registry struct {
	requirements map[string]Requirement
	moduleToReq  map[string]string
}

// ParseRequirements parses the flat requirement declaration list:
// one "name==pin" per line, inline comments stripped, blank lines
// ignored. Two lines declaring the same name with different pins are
// a hard configuration error.
func ParseRequirements(content []byte, filename string) (map[string]Requirement, error) {
	reqs := make(map[string]Requirement)

	for i, raw := range strings.Split(string(content), "\n") {
		lineNo := i + 1
		line := raw
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		name, pin, ok := strings.Cut(line, "==")
		name = strings.TrimSpace(name)
		pin = strings.TrimSpace(pin)
		if !ok || name == "" || pin == "" {
			return nil, fmt.Errorf("%s:%d: malformed requirement %q (want name==pin)", filename, lineNo, strings.TrimSpace(raw))
		}

		if prev, exists := reqs[name]; exists {
			if prev.Pin != pin {
				return nil, fmt.Errorf("%s:%d: requirement %s pinned to both %s (line %d) and %s",
					filename, lineNo, name, prev.Pin, prev.LineNo, pin)
			}
			continue
		}

		reqs[name] = Requirement{
			Name:   name,
			Pin:    pin,
			Line:   strings.TrimSpace(raw),
			LineNo: lineNo,
		}
	}

	return reqs, nil
}

// ParseModuleMap parses the tab-separated two-column mapping from
// importable top-level name to requirement name. One importable name
// mapped to two different requirements is a hard configuration error;
// several importable names may share one requirement.
func ParseModuleMap(content []byte, filename string) (map[string]string, error) {
	mapping := make(map[string]string)

	for i, raw := range strings.Split(string(content), "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		module, reqName, ok := strings.Cut(line, "\t")
		module = strings.TrimSpace(module)
		reqName = strings.TrimSpace(reqName)
		if !ok || module == "" || reqName == "" {
			return nil, fmt.Errorf("%s:%d: malformed mapping %q (want module<TAB>requirement)", filename, lineNo, line)
		}

		if prev, exists := mapping[module]; exists && prev != reqName {
			return nil, fmt.Errorf("%s:%d: module %s mapped to both %s and %s", filename, lineNo, module, prev, reqName)
		}
		mapping[module] = reqName
	}

	return mapping, nil
}

// New builds a Registry from parsed declarations and cross-validates
// them: every requirement named on the mapping's right-hand side must
// be present in the requirement set.
func New(reqs map[string]Requirement, moduleMap map[string]string, mapFilename string) (*Registry, error) {
	if missing := missingRequirements(reqs, moduleMap); len(missing) > 0 {
		return nil, fmt.Errorf("%s: mapped requirements not declared: %s", mapFilename, strings.Join(missing, ", "))
	}

	return &Registry{
		requirements: reqs,
		moduleToReq:  moduleMap,
	}, nil
}

// missingRequirements returns, sorted, every requirement name that
// appears as a mapping target but is absent from the requirement set.
func missingRequirements(reqs map[string]Requirement, moduleMap map[string]string) []string {
	seen := make(map[string]bool)
	var missing []string
	for _, reqName := range moduleMap {
		if _, ok := reqs[reqName]; !ok && !seen[reqName] {
			seen[reqName] = true
			missing = append(missing, reqName)
		}
	}
	sort.Strings(missing)
	return missing
}

// Provider resolves an importable top-level name to its requirement.
// The explicit mapping wins; a requirement whose name equals the
// import name acts as an implicit identity mapping.
func (r *Registry) Provider(topLevel string) (Requirement, bool) {
	if reqName, ok := r.moduleToReq[topLevel]; ok {
		req, ok := r.requirements[reqName]
		return req, ok
	}
	req, ok := r.requirements[topLevel]
	return req, ok
}

// Requirements returns all declared requirements sorted by name.
func (r *Registry) Requirements() []Requirement {
	out := make([]Requirement, 0, len(r.requirements))
	for _, req := range r.requirements {
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of declared requirements.
func (r *Registry) Len() int {
	return len(r.requirements)
}
