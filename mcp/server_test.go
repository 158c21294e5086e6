package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeRepo materializes a small analyzable repository.
func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func standardRepo(t *testing.T) string {
	t.Helper()
	return writeRepo(t, map[string]string{
		"requirements.txt": "PyYAML==6.0\n",
		"module_map.tsv":   "yaml\tPyYAML\n",
		"app.py":           "import yaml\nimport lib.util\n",
		"lib/util.py":      "import os\n",
	})
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	server := NewServer(t.TempDir())
	assert.NotNil(t, server)
	assert.NotNil(t, server.server)
}

func TestServer_Tools(t *testing.T) {
	t.Parallel()

	server := NewServer(t.TempDir())
	tools := server.ListTools()

	require.Len(t, tools, 2)
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		assert.NotEmpty(t, tool.Description)
		require.NotNil(t, tool.InputSchema)
		assert.Equal(t, "object", tool.InputSchema.Type)
	}
	assert.Contains(t, names, "pycarve_analyze")
	assert.Contains(t, names, "pycarve_check")
}

func TestServer_Resources(t *testing.T) {
	t.Parallel()

	server := NewServer(t.TempDir())
	resources := server.ListResources()

	require.Len(t, resources, 2)
	uris := make([]string, len(resources))
	for i, res := range resources {
		uris[i] = res.URI
		assert.Equal(t, "text/plain", res.MimeType)
	}
	assert.Contains(t, uris, "pycarve://formats")
	assert.Contains(t, uris, "pycarve://builtins")
}

func TestServer_CallTool(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("Analyze", func(t *testing.T) {
		server := NewServer(standardRepo(t))

		result, err := server.CallTool(ctx, "pycarve_analyze", map[string]any{})
		require.NoError(t, err)
		assert.Contains(t, result, "PyYAML==6.0")
		assert.Contains(t, result, "lib/util.py")
	})

	t.Run("AnalyzeRequirementsFormat", func(t *testing.T) {
		server := NewServer(standardRepo(t))

		result, err := server.CallTool(ctx, "pycarve_analyze", map[string]any{
			"format": "requirements",
		})
		require.NoError(t, err)
		assert.Equal(t, "PyYAML==6.0\n", result)
	})

	t.Run("AnalyzeWithEntries", func(t *testing.T) {
		root := writeRepo(t, map[string]string{
			"requirements.txt": "",
			"module_map.tsv":   "",
			"app.py":           "import os\n",
			"scripts/gen.py":   "import numpy\n",
		})
		server := NewServer(root)

		result, err := server.CallTool(ctx, "pycarve_analyze", map[string]any{
			"entries": []any{"app.py"},
		})
		require.NoError(t, err)
		assert.NotContains(t, result, "scripts/gen.py")
	})

	t.Run("AnalyzeWarnsOnUnresolved", func(t *testing.T) {
		root := writeRepo(t, map[string]string{
			"requirements.txt": "",
			"module_map.tsv":   "",
			"app.py":           "import numpy\n",
		})
		server := NewServer(root)

		result, err := server.CallTool(ctx, "pycarve_analyze", map[string]any{})
		require.NoError(t, err)
		assert.Contains(t, result, "1 unresolved imports remain")
	})

	t.Run("Check", func(t *testing.T) {
		server := NewServer(standardRepo(t))

		result, err := server.CallTool(ctx, "pycarve_check", map[string]any{})
		require.NoError(t, err)
		assert.Contains(t, result, "consistent")
		assert.Contains(t, result, "PyYAML==6.0")
	})

	t.Run("CheckReportsInconsistency", func(t *testing.T) {
		root := writeRepo(t, map[string]string{
			"requirements.txt": "",
			"module_map.tsv":   "yaml\tPyYAML\n",
		})
		server := NewServer(root)

		result, err := server.CallTool(ctx, "pycarve_check", map[string]any{})
		require.NoError(t, err)
		assert.Contains(t, result, "inconsistent")
	})

	t.Run("UnknownTool", func(t *testing.T) {
		server := NewServer(t.TempDir())

		_, err := server.CallTool(ctx, "pycarve_nope", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown tool")
	})
}

func TestServer_ReadResource(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	server := NewServer(t.TempDir())

	t.Run("Formats", func(t *testing.T) {
		content, err := server.ReadResource(ctx, "pycarve://formats")
		require.NoError(t, err)
		assert.Contains(t, content, "report")
		assert.Contains(t, content, "requirements")
		assert.Contains(t, content, "json")
	})

	t.Run("Builtins", func(t *testing.T) {
		content, err := server.ReadResource(ctx, "pycarve://builtins")
		require.NoError(t, err)
		assert.Contains(t, content, "- os\n")
		assert.Contains(t, content, "- typing\n")
	})

	t.Run("UnknownResource", func(t *testing.T) {
		_, err := server.ReadResource(ctx, "pycarve://ghost")
		require.Error(t, err)
	})
}

func TestServer_Run(t *testing.T) {
	t.Parallel()

	rpc := func(t *testing.T, server *Server, requests ...string) []map[string]any {
		t.Helper()
		input := strings.Join(requests, "\n") + "\n"
		var output bytes.Buffer

		err := server.Run(context.Background(), strings.NewReader(input), &output)
		require.NoError(t, err)

		var responses []map[string]any
		scanner := bufio.NewScanner(&output)
		scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
		for scanner.Scan() {
			var resp map[string]any
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
			responses = append(responses, resp)
		}
		return responses
	}

	t.Run("Initialize", func(t *testing.T) {
		server := NewServer(t.TempDir())

		responses := rpc(t, server, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
		require.Len(t, responses, 1)

		result := responses[0]["result"].(map[string]any)
		info := result["serverInfo"].(map[string]any)
		assert.Equal(t, "pycarve", info["name"])
	})

	t.Run("ToolsList", func(t *testing.T) {
		server := NewServer(t.TempDir())

		responses := rpc(t, server, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
		require.Len(t, responses, 1)

		result := responses[0]["result"].(map[string]any)
		tools := result["tools"].([]any)
		assert.Len(t, tools, 2)
	})

	t.Run("ToolsCall", func(t *testing.T) {
		server := NewServer(standardRepo(t))

		req := `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"pycarve_analyze","arguments":{"format":"requirements"}}}`
		responses := rpc(t, server, req)
		require.Len(t, responses, 1)

		result := responses[0]["result"].(map[string]any)
		content := result["content"].([]any)
		require.Len(t, content, 1)
		text := content[0].(map[string]any)["text"].(string)
		assert.Contains(t, text, "PyYAML==6.0")
	})

	t.Run("ResourcesRead", func(t *testing.T) {
		server := NewServer(t.TempDir())

		req := `{"jsonrpc":"2.0","id":4,"method":"resources/read","params":{"uri":"pycarve://formats"}}`
		responses := rpc(t, server, req)
		require.Len(t, responses, 1)

		result := responses[0]["result"].(map[string]any)
		contents := result["contents"].([]any)
		require.Len(t, contents, 1)
	})

	t.Run("UnknownMethod", func(t *testing.T) {
		server := NewServer(t.TempDir())

		responses := rpc(t, server, `{"jsonrpc":"2.0","id":5,"method":"nope/nothing"}`)
		require.Len(t, responses, 1)

		errObj := responses[0]["error"].(map[string]any)
		assert.Equal(t, float64(-32601), errObj["code"])
	})

	t.Run("MultipleRequests", func(t *testing.T) {
		server := NewServer(t.TempDir())

		responses := rpc(t, server,
			`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
			`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
			`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`,
		)
		require.Len(t, responses, 3)
		for i, resp := range responses {
			assert.Equal(t, float64(i+1), resp["id"], fmt.Sprintf("response %d", i))
		}
	})

	t.Run("NilStreamsRejected", func(t *testing.T) {
		server := NewServer(t.TempDir())

		err := server.Run(context.Background(), nil, nil)
		require.Error(t, err)
	})
}
