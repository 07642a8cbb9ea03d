package node_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memfsdev/memfs/internal/mfserrors"
	"github.com/memfsdev/memfs/internal/node"
	"github.com/memfsdev/memfs/internal/storage"
)

func TestNewTableAllocatesRoot(t *testing.T) {
	tbl := node.NewTable(0, time.Unix(0, 0))
	root := tbl.Root()
	assert.Equal(t, node.ID(0), root.NodeID())
	assert.Equal(t, 1, tbl.Count())
	assert.Empty(t, root.Children)
}

func TestAllocDirectoryAndFileGetDistinctIDs(t *testing.T) {
	tbl := node.NewTable(0, time.Unix(0, 0))

	d, err := tbl.AllocDirectory(time.Unix(0, 0))
	require.NoError(t, err)

	f, err := tbl.AllocFile(storage.NewRandomAccess(), time.Unix(0, 0))
	require.NoError(t, err)

	assert.NotEqual(t, d.NodeID(), f.NodeID())
	assert.Equal(t, 3, tbl.Count())
	assert.Same(t, d, tbl.Get(d.NodeID()))
	assert.Same(t, f, tbl.Get(f.NodeID()))
}

func TestMaxNodesEnforced(t *testing.T) {
	tbl := node.NewTable(2, time.Unix(0, 0)) // root already counts as 1

	_, err := tbl.AllocDirectory(time.Unix(0, 0))
	require.NoError(t, err)

	_, err = tbl.AllocDirectory(time.Unix(0, 0))
	var nle *mfserrors.NodeLimitExceededError
	require.ErrorAs(t, err, &nle)
	assert.Equal(t, 2, nle.Current)
	assert.Equal(t, 2, nle.Limit)
}

func TestDeleteAndReinsert(t *testing.T) {
	tbl := node.NewTable(0, time.Unix(0, 0))
	d, err := tbl.AllocDirectory(time.Unix(0, 0))
	require.NoError(t, err)

	tbl.Delete(d.NodeID())
	assert.Nil(t, tbl.Get(d.NodeID()))

	tbl.Reinsert(d)
	assert.Same(t, d, tbl.Get(d.NodeID()))
}

func TestFileLockIndependentOfTreeLock(t *testing.T) {
	tbl := node.NewTable(0, time.Unix(0, 0))
	f, err := tbl.AllocFile(storage.NewRandomAccess(), time.Unix(0, 0))
	require.NoError(t, err)

	require.NoError(t, f.Lock.AcquireWrite(0))
	assert.True(t, f.Lock.IsLocked())
	f.Lock.ReleaseWrite()
	assert.False(t, f.Lock.IsLocked())
}
