package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArena map[uint64]*Checkpoint

func (f fakeArena) Get(id uint64) (*Checkpoint, bool) {
	c, ok := f[id]
	return c, ok
}

func buildS1Tree() fakeArena {
	a := fakeArena{}
	a[0] = New(0, 0, true, 0, false)
	a[1] = New(1, 10, false, 0, true)
	a[2] = New(2, 20, false, 1, true)
	a[0].AddNext(1)
	a[1].AddNext(2)
	return a
}

func TestRestoreChainSnapshotOnly(t *testing.T) {
	a := buildS1Tree()
	chain, err := RestoreChain(a, 0)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, uint64(0), chain[0].ID())
}

func TestRestoreChainWalksToSnapshot(t *testing.T) {
	a := buildS1Tree()
	chain, err := RestoreChain(a, 2)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, []uint64{0, 1, 2}, []uint64{chain[0].ID(), chain[1].ID(), chain[2].ID()})
}

func TestHistoryFromHeadToID(t *testing.T) {
	a := buildS1Tree()
	hist, err := History(a, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1, 2}, []uint64{hist[0].ID(), hist[1].ID(), hist[2].ID()})
}

func TestDistanceToPrevSnapshot(t *testing.T) {
	a := buildS1Tree()
	d0, err := DistanceToPrevSnapshot(a, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, d0)

	d2, err := DistanceToPrevSnapshot(a, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, d2)
}

func TestTombstoneThenRestoreDeletedID(t *testing.T) {
	c := New(5, 1, false, 0, true)
	c.Tombstone()
	assert.True(t, c.IsTombstoned())
	id, ok := c.DeletedID()
	assert.True(t, ok)
	assert.EqualValues(t, 5, id)
}
