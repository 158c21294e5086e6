package tree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates a fixture directory from a map of relative path to content.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestModuleName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		relPath string
		want    string
	}{
		{"app.py", "app"},
		{"lib/util.py", "lib.util"},
		{"lib/db/conn.py", "lib.db.conn"},
		{"pkg/__init__.py", "pkg"},
		{"pkg/sub/__init__.py", "pkg.sub"},
		{"__init__.py", ""},
	}

	for _, tc := range cases {
		t.Run(tc.relPath, func(t *testing.T) {
			assert.Equal(t, tc.want, ModuleName(tc.relPath))
		})
	}
}

func TestWalk(t *testing.T) {
	t.Parallel()

	t.Run("CollectsOnlyPythonFiles", func(t *testing.T) {
		root := writeTree(t, map[string]string{
			"app.py":        "",
			"lib/util.py":   "",
			"README.md":     "",
			"data/config":   "",
			"lib/notes.txt": "",
		})

		tree, err := Walk(root)
		require.NoError(t, err)

		assert.Equal(t, 2, tree.Len())
		rels := make([]string, 0, tree.Len())
		for _, f := range tree.Files() {
			rels = append(rels, f.RelPath)
		}
		assert.Equal(t, []string{"app.py", "lib/util.py"}, rels)
	})

	t.Run("DerivesModuleNames", func(t *testing.T) {
		root := writeTree(t, map[string]string{
			"app.py":             "",
			"lib/__init__.py":    "",
			"lib/util.py":        "",
			"lib/db/__init__.py": "",
		})

		tree, err := Walk(root)
		require.NoError(t, err)

		f, ok := tree.Lookup("lib.util")
		require.True(t, ok)
		assert.Equal(t, "lib/util.py", f.RelPath)

		pkg, ok := tree.Lookup("lib")
		require.True(t, ok)
		assert.Equal(t, "lib/__init__.py", pkg.RelPath)

		sub, ok := tree.Lookup("lib.db")
		require.True(t, ok)
		assert.Equal(t, "lib/db/__init__.py", sub.RelPath)
	})

	t.Run("IDsFollowSortedOrder", func(t *testing.T) {
		root := writeTree(t, map[string]string{
			"z.py":   "",
			"a.py":   "",
			"m/b.py": "",
		})

		tree, err := Walk(root)
		require.NoError(t, err)

		files := tree.Files()
		require.Len(t, files, 3)
		for i, f := range files {
			assert.Equal(t, i, f.ID)
		}
		assert.Equal(t, "a.py", files[0].RelPath)
		assert.Equal(t, "z.py", files[2].RelPath)
	})

	t.Run("SkipsIgnoredDirectories", func(t *testing.T) {
		root := writeTree(t, map[string]string{
			"app.py":                "",
			"__pycache__/app.py":    "",
			".venv/lib/site.py":     "",
			"node_modules/pkg/x.py": "",
		})

		tree, err := Walk(root)
		require.NoError(t, err)

		assert.Equal(t, 1, tree.Len())
		assert.Equal(t, "app.py", tree.Files()[0].RelPath)
	})

	t.Run("HonorsGitignore", func(t *testing.T) {
		root := writeTree(t, map[string]string{
			".gitignore":       "generated/\nscratch.py\n",
			"app.py":           "",
			"generated/gen.py": "",
			"scratch.py":       "",
		})

		tree, err := Walk(root)
		require.NoError(t, err)

		assert.Equal(t, 1, tree.Len())
		assert.Equal(t, "app.py", tree.Files()[0].RelPath)
	})

	t.Run("RootMustBeDirectory", func(t *testing.T) {
		root := writeTree(t, map[string]string{"app.py": ""})

		_, err := Walk(filepath.Join(root, "app.py"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a directory")
	})

	t.Run("MissingRootFails", func(t *testing.T) {
		_, err := Walk(filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
	})
}

func TestExpandEntries(t *testing.T) {
	t.Parallel()

	fixture := func(t *testing.T) (*SourceTree, string) {
		t.Helper()
		root := writeTree(t, map[string]string{
			"app.py":          "",
			"tools/cli.py":    "",
			"tools/fmt.py":    "",
			"lib/__init__.py": "",
			"lib/util.py":     "",
			"notes.txt":       "",
		})
		tree, err := Walk(root)
		require.NoError(t, err)
		return tree, root
	}

	t.Run("SingleFile", func(t *testing.T) {
		tree, _ := fixture(t)

		entries, err := tree.ExpandEntries([]string{"app.py"})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "app.py", entries[0].RelPath)
	})

	t.Run("DirectoryExpandsRecursively", func(t *testing.T) {
		tree, _ := fixture(t)

		entries, err := tree.ExpandEntries([]string{"tools"})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "tools/cli.py", entries[0].RelPath)
		assert.Equal(t, "tools/fmt.py", entries[1].RelPath)
	})

	t.Run("DotExpandsWholeTree", func(t *testing.T) {
		tree, _ := fixture(t)

		entries, err := tree.ExpandEntries([]string{"."})
		require.NoError(t, err)
		assert.Len(t, entries, tree.Len())
	})

	t.Run("DeduplicatesOverlappingPaths", func(t *testing.T) {
		tree, _ := fixture(t)

		entries, err := tree.ExpandEntries([]string{"tools", "tools/cli.py", "tools/cli.py"})
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("ResultIsSorted", func(t *testing.T) {
		tree, _ := fixture(t)

		entries, err := tree.ExpandEntries([]string{"tools/fmt.py", "app.py", "lib"})
		require.NoError(t, err)
		require.Len(t, entries, 4)
		assert.Equal(t, "app.py", entries[0].RelPath)
		assert.Equal(t, "lib/__init__.py", entries[1].RelPath)
		assert.Equal(t, "lib/util.py", entries[2].RelPath)
		assert.Equal(t, "tools/fmt.py", entries[3].RelPath)
	})

	t.Run("AbsolutePathInsideRoot", func(t *testing.T) {
		tree, root := fixture(t)

		entries, err := tree.ExpandEntries([]string{filepath.Join(root, "app.py")})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "app.py", entries[0].RelPath)
	})

	t.Run("PathOutsideRootFails", func(t *testing.T) {
		tree, _ := fixture(t)
		outside := t.TempDir()

		_, err := tree.ExpandEntries([]string{outside})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "outside root")
	})

	t.Run("EscapingRelativePathFails", func(t *testing.T) {
		tree, _ := fixture(t)

		_, err := tree.ExpandEntries([]string{"../elsewhere.py"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "outside root")
	})

	t.Run("NonPythonFileFails", func(t *testing.T) {
		tree, _ := fixture(t)

		_, err := tree.ExpandEntries([]string{"notes.txt"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a .py file")
	})

	t.Run("MissingPathFails", func(t *testing.T) {
		tree, _ := fixture(t)

		_, err := tree.ExpandEntries([]string{"ghost.py"})
		require.Error(t, err)
	})
}
