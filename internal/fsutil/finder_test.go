package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindDirsWithFile(t *testing.T) {
	t.Run("returns only subdirectories holding the marker file, sorted", func(t *testing.T) {
		root := t.TempDir()
		for _, name := range []string{"zeta", "alpha", "beta"} {
			dir := filepath.Join(root, name)
			require.NoError(t, os.Mkdir(dir, 0o755))
			if name != "beta" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "mod.hcl"), []byte(""), 0o644))
			}
		}
		// A plain file in the root must not be treated as a directory.
		require.NoError(t, os.WriteFile(filepath.Join(root, "mod.hcl"), []byte(""), 0o644))

		dirs, err := FindDirsWithFile(root, "mod.hcl")
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(root, "alpha"), filepath.Join(root, "zeta")}, dirs)
	})

	t.Run("missing root yields empty result", func(t *testing.T) {
		dirs, err := FindDirsWithFile(filepath.Join(t.TempDir(), "does-not-exist"), "mod.hcl")
		require.NoError(t, err)
		assert.Empty(t, dirs)
	})
}

func TestListFilesExcept(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mod.hcl"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "items.json"), []byte(""), 0o644))

	files, err := ListFilesExcept(dir, "mod.hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "data", "items.json"),
		filepath.Join(dir, "readme.txt"),
	}, files)
}
