// Package mcp provides the MCP (Model Context Protocol) server for Pycarve.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pycarve/pycarve/internal/registry"
	"github.com/pycarve/pycarve/internal/report"
	"github.com/pycarve/pycarve/internal/resolve"
)

// Server represents the MCP server.
type Server struct {
	root   string
	server *mcp.Server
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server rooted at the given repository path.
func NewServer(root string) *Server {
	s := &Server{
		root: root,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "pycarve",
		Version: "0.1.0",
	}, nil)

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "pycarve_analyze",
			Description: "Compute the dependency closure of an entry set: reachable files, pinned requirements, and unresolved imports.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"root": {Type: "string", Description: "Monorepo root directory (default: server root)"},
					"entries": {
						Type:        "array",
						Items:       &jsonschema.Schema{Type: "string"},
						Description: "Entry files or directories relative to root (default: whole root)",
					},
					"format": {Type: "string", Description: "Output format: report, requirements, or json (default: report)"},
				},
			},
		},
		{
			Name:        "pycarve_check",
			Description: "Validate the requirements file and module map for consistency without building a graph.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"root": {Type: "string", Description: "Monorepo root directory (default: server root)"},
				},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "pycarve://formats",
			Name:        "Output Formats",
			Description: "Supported output formats and what they contain",
			MimeType:    "text/plain",
		},
		{
			URI:         "pycarve://builtins",
			Name:        "Builtin Modules",
			Description: "Standard-library module names excluded from resolution",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "pycarve_analyze":
		root, _ := args["root"].(string)
		if root == "" {
			root = s.root
		}
		entriesArg, _ := args["entries"].([]any)
		entries := make([]string, 0, len(entriesArg))
		for _, e := range entriesArg {
			if entry, ok := e.(string); ok {
				entries = append(entries, entry)
			}
		}
		format, _ := args["format"].(string)
		if format == "" {
			format = string(report.FormatReport)
		}
		return handleAnalyze(root, entries, format)
	case "pycarve_check":
		root, _ := args["root"].(string)
		if root == "" {
			root = s.root
		}
		return handleCheck(root)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "pycarve://formats":
		return getFormats(), nil
	case "pycarve://builtins":
		return getBuiltins(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run starts the MCP server with stdio transport.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// Note: Do NOT use SetIndent - MCP protocol requires compact JSON (one line per message)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		// Parse JSON-RPC request
		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		// Handle request
		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    "pycarve",
				"version": "0.1.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		var schemaMap map[string]any
		json.Unmarshal(schema, &schemaMap)

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

// Tool Handlers

func handleAnalyze(root string, entries []string, format string) (string, error) {
	cfg := resolve.Config{
		Root:    root,
		Entries: entries,
		Workers: runtime.NumCPU(),
	}

	g, err := resolve.NewAnalyzer(cfg).Run()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, g, report.Format(format)); err != nil {
		return "", err
	}

	if n := g.UnresolvedCount(); n > 0 {
		buf.WriteString(fmt.Sprintf("\nWarning: %d unresolved imports remain.\n", n))
	}

	return buf.String(), nil
}

func handleCheck(root string) (string, error) {
	cfg := resolve.Config{Root: root}

	reg, err := resolve.NewAnalyzer(cfg).LoadRegistry()
	if err != nil {
		return fmt.Sprintf("Declarations inconsistent: %v", err), nil
	}

	var sb strings.Builder
	sb.WriteString("## Declaration Check\n\n")
	sb.WriteString("Declarations are consistent.\n\n")
	sb.WriteString(fmt.Sprintf("**Requirements:** %d\n\n", reg.Len()))
	for _, r := range reg.Requirements() {
		sb.WriteString(fmt.Sprintf("- %s==%s\n", r.Name, r.Pin))
	}

	return sb.String(), nil
}

// Resource Handlers

func getFormats() string {
	var sb strings.Builder
	sb.WriteString("# Pycarve Output Formats\n\n")
	sb.WriteString("| Format | Contents |\n")
	sb.WriteString("|--------|----------|\n")
	sb.WriteString("| `report` | Verbose report: entry files, reachable files with their imports, requirements with users, unresolved names with referrers, scan issues |\n")
	sb.WriteString("| `requirements` | One `name==pin` line per resolved requirement, installable as-is; unresolved names appended as `# unresolved:` comment lines |\n")
	sb.WriteString("| `json` | Machine-readable document mirroring the full graph |\n")
	sb.WriteString("\nAll formats emit deterministically ordered output.\n")
	return sb.String()
}

func getBuiltins() string {
	var sb strings.Builder
	sb.WriteString("# Builtin Modules\n\n")
	sb.WriteString("Imports of these top-level names resolve to the Python standard\n")
	sb.WriteString("library and never appear in the requirements output.\n\n")
	for _, name := range registry.Builtins() {
		sb.WriteString(fmt.Sprintf("- %s\n", name))
	}
	return sb.String()
}

// Helper functions

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}
