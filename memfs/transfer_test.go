package memfs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memfsdev/memfs/clock"
	"github.com/memfsdev/memfs/internal/config"
	"github.com/memfsdev/memfs/internal/mfserrors"
	"github.com/memfsdev/memfs/memfs"
)

func TestExportAsBytesRoundTrips(t *testing.T) {
	fs, _ := newTestFS(t, 0)
	mustCreateFile(t, fs, "/a.txt")

	data, err := fs.ExportAsBytes("/a.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestExportAsBytesRejectsOversizedFile(t *testing.T) {
	fs, _ := newTestFS(t, 0)
	mustCreateFile(t, fs, "/a.txt")

	_, err := fs.ExportAsBytes("/a.txt", 1)
	require.ErrorIs(t, err, mfserrors.ErrInvalidArgument)
}

func TestExportAsBytesFailsOnMissingOrDirectory(t *testing.T) {
	fs, _ := newTestFS(t, 0)
	_, err := fs.ExportAsBytes("/missing.txt", 0)
	require.ErrorIs(t, err, mfserrors.ErrNotFound)

	require.NoError(t, fs.MkDir("/d", false))
	_, err = fs.ExportAsBytes("/d", 0)
	require.ErrorIs(t, err, mfserrors.ErrIsDir)
}

func TestExportTreeCollectsAllFilesConcurrently(t *testing.T) {
	fs, _ := newTestFS(t, 0)
	mustCreateFile(t, fs, "/a.txt")
	mustCreateFile(t, fs, "/sub/b.txt")
	mustCreateFile(t, fs, "/sub/c.txt")

	tree, err := fs.ExportTree("/", false)
	require.NoError(t, err)
	require.Len(t, tree, 3)
	assert.Equal(t, "data", string(tree["/a.txt"]))
	assert.Equal(t, "data", string(tree["/sub/b.txt"]))
}

func TestExportTreeOnlyDirtyFiltersUnmodifiedFiles(t *testing.T) {
	fs, _ := newTestFS(t, 0)
	h, err := fs.Open("/untouched.txt", memfs.ModeExclusiveCreate, 0, memfs.Infinite)
	require.NoError(t, err)
	require.NoError(t, h.Close())
	mustCreateFile(t, fs, "/touched.txt")

	tree, err := fs.ExportTree("/", true)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	_, ok := tree["/touched.txt"]
	assert.True(t, ok)
}

func TestExportTreeOfMissingPrefixReturnsEmpty(t *testing.T) {
	fs, _ := newTestFS(t, 0)
	tree, err := fs.ExportTree("/nothing", false)
	require.NoError(t, err)
	assert.Empty(t, tree)
}

func TestImportTreeCreatesNewFilesAndAppliesNetQuota(t *testing.T) {
	fs, _ := newTestFS(t, 0)
	err := fs.ImportTree(map[string][]byte{
		"/a.txt":     []byte("hello"),
		"/sub/b.txt": []byte("world"),
	})
	require.NoError(t, err)

	data, err := fs.ExportAsBytes("/a.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	data, err = fs.ExportAsBytes("/sub/b.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))

	assert.Greater(t, fs.Stats().UsedBytes, int64(0))
}

func TestImportTreeReplacesExistingFileAndNetsQuota(t *testing.T) {
	fs, _ := newTestFS(t, 0)
	mustCreateFile(t, fs, "/a.txt")

	require.NoError(t, fs.ImportTree(map[string][]byte{
		"/a.txt": []byte("replaced"),
	}))

	data, err := fs.ExportAsBytes("/a.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(data))
}

func TestImportTreeFailsWhenTargetFileIsOpen(t *testing.T) {
	fs, _ := newTestFS(t, 0)
	h, err := fs.Open("/a.txt", memfs.ModeWriteTruncate, 0, memfs.Infinite)
	require.NoError(t, err)
	defer h.Close()

	err = fs.ImportTree(map[string][]byte{"/a.txt": []byte("x")})
	require.ErrorIs(t, err, mfserrors.ErrBlocking)
}

func TestImportTreeRollsBackOnQuotaExhaustion(t *testing.T) {
	fs, _ := newTestFS(t, 96)
	mustCreateFile(t, fs, "/existing.txt")
	usedBefore := fs.Stats().UsedBytes

	err := fs.ImportTree(map[string][]byte{
		"/existing.txt": []byte("small"),
		"/huge.txt":     make([]byte, 10_000),
	})
	require.Error(t, err)

	assert.Equal(t, usedBefore, fs.Stats().UsedBytes)
	assert.False(t, fs.Exists("/huge.txt"))
	data, rerr := fs.ExportAsBytes("/existing.txt", 0)
	require.NoError(t, rerr)
	assert.Equal(t, "data", string(data))
}

func TestImportTreeRollsBackAutoCreatedParentDirectories(t *testing.T) {
	cfg := config.Default()
	cfg.MaxNodes = 3 // root + at most two more nodes
	sc := clock.NewSimulatedClock(time.Unix(0, 0))
	fs, err := memfs.New(cfg, memfs.WithClock(sc))
	require.NoError(t, err)

	err = fs.ImportTree(map[string][]byte{
		"/new/deep/a.txt": []byte("x"),
		"/other.txt":      []byte("y"),
	})
	require.Error(t, err)

	assert.False(t, fs.Exists("/new"))
	assert.False(t, fs.Exists("/other.txt"))
	assert.Zero(t, fs.Stats().UsedBytes)
	assert.Equal(t, 1, fs.Stats().DirCount)
	assert.Zero(t, fs.Stats().FileCount)
}

func TestCopyDuplicatesFileBytes(t *testing.T) {
	fs, _ := newTestFS(t, 0)
	mustCreateFile(t, fs, "/src.txt")

	require.NoError(t, fs.Copy("/src.txt", "/dst.txt"))
	data, err := fs.ExportAsBytes("/dst.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
	assert.True(t, fs.Exists("/src.txt"))
}

func TestCopyFailsIfDestinationExists(t *testing.T) {
	fs, _ := newTestFS(t, 0)
	mustCreateFile(t, fs, "/src.txt")
	mustCreateFile(t, fs, "/dst.txt")
	require.ErrorIs(t, fs.Copy("/src.txt", "/dst.txt"), mfserrors.ErrExists)
}

func TestCopyTreeDeepCopiesSubtree(t *testing.T) {
	fs, _ := newTestFS(t, 0)
	mustCreateFile(t, fs, "/src/a.txt")
	mustCreateFile(t, fs, "/src/sub/b.txt")

	require.NoError(t, fs.CopyTree("/src", "/dst"))
	assert.True(t, fs.Exists("/dst/a.txt"))
	assert.True(t, fs.Exists("/dst/sub/b.txt"))
	assert.True(t, fs.Exists("/src/a.txt"))

	// Mutating the copy must not affect the original.
	h, err := fs.Open("/dst/a.txt", memfs.ModeWriteTruncate, 0, memfs.Infinite)
	require.NoError(t, err)
	_, err = h.Write([]byte("changed"))
	require.NoError(t, err)
	require.NoError(t, h.Close())

	original, err := fs.ExportAsBytes("/src/a.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, "data", string(original))
}

func TestCopyTreeRejectsInsufficientQuota(t *testing.T) {
	fs, _ := newTestFS(t, 300)
	mustCreateFile(t, fs, "/src/a.txt")
	mustCreateFile(t, fs, "/src/b.txt")

	err := fs.CopyTree("/src", "/dst")
	require.Error(t, err)
	assert.False(t, fs.Exists("/dst"))
}
