// Package scan extracts import references from Python source text.
//
// The scanner is a narrow-purpose recognizer, not a full parser: it
// handles "import a.b.c" and "from [dots]a.b import c" statements,
// including aliases, comma lists, star imports and single-statement
// parenthesized lists. Anything outside that subset on an import line
// is recorded as a per-file issue rather than aborting the scan.
// The scanner is strictly line-based and does not model triple-quoted
// block strings: an import-shaped line inside a multi-line docstring
// is scanned like any other line.
// Same text in, same reference list out; the scanner never touches
// the filesystem.
package scan

import (
	"regexp"
	"strings"
)

// ImportRef is one statically-discovered import reference.
type ImportRef struct {
	// Module is the dotted module path. Empty for pure-relative
	// references such as "from . import x".
	Module string

	// Level is the number of leading dots on a relative reference
	// (0 = absolute). Resolution against the referencing file's own
	// location happens downstream, not here.
	Level int

	// Symbols are the names after "import" in a from-import
	// ("*" for star imports). Nil for plain "import a.b" forms.
	Symbols []string

	// Line is the 1-based source line of the statement.
	Line int
}

// Issue is a per-file scan problem. Issues are accumulated, never fatal.
type Issue struct {
	Line    int
	Message string
}

// Result holds the ordered references and issues found in one file.
type Result struct {
	Refs   []ImportRef
	Issues []Issue
}

var (
	fromRegex   = regexp.MustCompile(`^from\s+(\.*)([\w.]*)\s+import\s+(.+)$`)
	importRegex = regexp.MustCompile(`^import\s+(.+)$`)
	identRegex  = regexp.MustCompile(`^\w+$`)
)

// Scan extracts the import references appearing in content.
func Scan(content []byte) *Result {
	result := &Result{}

	lines := strings.Split(string(content), "\n")
	for i := 0; i < len(lines); i++ {
		lineNum := i + 1
		stmt := stripComment(strings.TrimSpace(lines[i]))

		if stmt == "" {
			continue
		}
		if !strings.HasPrefix(stmt, "import ") && !strings.HasPrefix(stmt, "from ") {
			continue
		}

		// Join a parenthesized from-import list onto one statement.
		// Comments are stripped per physical line: a trailing comment
		// on an inner line must not swallow the names after it.
		for strings.Count(stmt, "(") > strings.Count(stmt, ")") && i+1 < len(lines) {
			i++
			stmt += " " + stripComment(strings.TrimSpace(lines[i]))
		}

		if m := fromRegex.FindStringSubmatch(stmt); m != nil {
			result.scanFrom(m, lineNum)
			continue
		}
		if m := importRegex.FindStringSubmatch(stmt); m != nil {
			result.scanImport(m[1], lineNum)
			continue
		}

		result.Issues = append(result.Issues, Issue{
			Line:    lineNum,
			Message: "malformed import statement: " + stmt,
		})
	}

	return result
}

// scanFrom handles "from [dots][a.b] import c, d as e".
func (r *Result) scanFrom(m []string, lineNum int) {
	dots, module, list := m[1], m[2], m[3]

	if dots == "" && module == "" {
		r.Issues = append(r.Issues, Issue{Line: lineNum, Message: "from-import missing module"})
		return
	}
	if module != "" && !validModule(module) {
		r.Issues = append(r.Issues, Issue{Line: lineNum, Message: "malformed module path: " + module})
		return
	}

	ref := ImportRef{
		Module: module,
		Level:  len(dots),
		Line:   lineNum,
	}

	list = strings.Trim(list, "() ")
	for _, sym := range strings.Split(list, ",") {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		if idx := strings.Index(sym, " as "); idx > 0 {
			sym = strings.TrimSpace(sym[:idx])
		}
		if sym != "*" && !identRegex.MatchString(sym) {
			r.Issues = append(r.Issues, Issue{Line: lineNum, Message: "malformed imported name: " + sym})
			continue
		}
		ref.Symbols = append(ref.Symbols, sym)
	}

	if len(ref.Symbols) == 0 {
		r.Issues = append(r.Issues, Issue{Line: lineNum, Message: "from-import with no imported names"})
		return
	}

	r.Refs = append(r.Refs, ref)
}

// scanImport handles "import a.b.c as x, d".
func (r *Result) scanImport(list string, lineNum int) {
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if idx := strings.Index(part, " as "); idx > 0 {
			part = strings.TrimSpace(part[:idx])
		}
		if !validModule(part) {
			r.Issues = append(r.Issues, Issue{Line: lineNum, Message: "malformed module path: " + part})
			continue
		}
		r.Refs = append(r.Refs, ImportRef{Module: part, Line: lineNum})
	}
}

// validModule reports whether a dotted path has only non-empty
// identifier segments (rejects "a..b", ".a", trailing dots).
func validModule(module string) bool {
	for _, seg := range strings.Split(module, ".") {
		if !identRegex.MatchString(seg) {
			return false
		}
	}
	return true
}

// stripComment removes a trailing # comment from an import statement.
// Import lines in the accepted subset never contain string literals,
// so a bare scan for '#' is sufficient.
func stripComment(stmt string) string {
	if idx := strings.Index(stmt, "#"); idx >= 0 {
		return strings.TrimSpace(stmt[:idx])
	}
	return stmt
}
