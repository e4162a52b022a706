package aican_test

import (
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modulePath(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("go.mod")
	require.NoError(t, err)
	for line := range strings.Lines(string(data)) {
		if mod, ok := strings.CutPrefix(line, "module "); ok {
			return strings.TrimSpace(mod)
		}
	}
	t.Fatal("go.mod has no module directive")
	return ""
}

func TestLocalImportsMatchModulePath(t *testing.T) {
	mod := modulePath(t)
	fset := token.NewFileSet()

	for _, root := range []string{"cmd", "internal", "pkg"} {
		err := filepath.WalkDir(root,
			func(path string, d fs.DirEntry, err error) error {
				if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") {
					return err
				}
				f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
				if err != nil {
					return err
				}
				for _, imp := range f.Imports {
					p, err := strconv.Unquote(imp.Path.Value)
					require.NoError(t, err)
					if len(p) < len(mod) || !strings.EqualFold(p[:len(mod)], mod) {
						continue
					}
					assert.True(t, strings.HasPrefix(p, mod),
						"%s imports %s", path, p)
				}
				return nil
			},
		)
		require.NoError(t, err)
	}
}
