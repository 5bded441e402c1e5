package enum

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huntlab/filehound/pkg/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func enumerate(t *testing.T, d *LocalDriver) []types.FileRef {
	t.Helper()
	var refs []types.FileRef
	err := d.Enumerate(context.Background(), func(ref types.FileRef) error {
		refs = append(refs, ref)
		return nil
	})
	require.NoError(t, err)
	sort.Slice(refs, func(i, j int) bool { return refs[i].FullPath < refs[j].FullPath })
	return refs
}

func TestLocalDriver_Walk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "alpha")
	writeFile(t, filepath.Join(root, "sub", "b.txt"), "beta")
	writeFile(t, filepath.Join(root, "sub", "deep", "c.txt"), "gamma")

	refs := enumerate(t, &LocalDriver{Roots: []string{root}})
	require.Len(t, refs, 3)

	assert.Equal(t, filepath.Join(root, "a.txt"), refs[0].FullPath)
	assert.Equal(t, int64(5), refs[0].Size)
	assert.Equal(t, types.ProtocolLocal, refs[0].Host.Protocol)

	content, err := refs[0].Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(content))
}

func TestLocalDriver_IgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ignoreFile), "skipme\n*.log\n")
	writeFile(t, filepath.Join(root, "keep.txt"), "k")
	writeFile(t, filepath.Join(root, "noise.log"), "n")
	writeFile(t, filepath.Join(root, "skipme", "hidden.txt"), "h")

	refs := enumerate(t, &LocalDriver{Roots: []string{root}})

	var names []string
	for _, r := range refs {
		names = append(names, filepath.Base(r.FullPath))
	}
	assert.Contains(t, names, "keep.txt")
	assert.NotContains(t, names, "noise.log")
	assert.NotContains(t, names, "hidden.txt")
}

func TestLocalDriver_SymlinkCycle(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dir", "f.txt"), "x")
	// dir/loop -> root creates a cycle when symlinks are followed.
	require.NoError(t, os.Symlink(root, filepath.Join(root, "dir", "loop")))

	refs := enumerate(t, &LocalDriver{Roots: []string{root}, FollowSymlinks: true})

	// The walk terminates and sees the file exactly once.
	count := 0
	for _, r := range refs {
		if filepath.Base(r.FullPath) == "f.txt" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestLocalDriver_SymlinksSkippedByDefault(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "real", "f.txt"), "x")
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "link")))

	refs := enumerate(t, &LocalDriver{Roots: []string{root}})
	require.Len(t, refs, 1)
	assert.Equal(t, filepath.Join(root, "real", "f.txt"), refs[0].FullPath)
}

func TestLocalDriver_Cancellation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &LocalDriver{Roots: []string{root}}
	err := d.Enumerate(ctx, func(types.FileRef) error {
		t.Fatal("no emissions after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
