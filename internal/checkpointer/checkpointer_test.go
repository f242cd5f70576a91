package checkpointer

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparcians/map-checkpoint/internal/archdata"
	"github.com/sparcians/map-checkpoint/pkg/ckpterrors"
)

// fakeNode is a leaf Node exposing a single archdata, enough to
// exercise the checkpointer without a real simulator tree.
type fakeNode struct {
	ads        []*archdata.ArchData
	kid        []Node
	unfinished bool
}

func (n *fakeNode) AssociatedArchDatas() []*archdata.ArchData { return n.ads }
func (n *fakeNode) Children() []Node                          { return n.kid }
func (n *fakeNode) IsFinalized() bool                         { return !n.unfinished }

// fakeScheduler hands back a settable tick and records RestartAt calls.
type fakeScheduler struct {
	tick     uint64
	restarts []uint64
}

func (s *fakeScheduler) CurrentTick() uint64 { return s.tick }
func (s *fakeScheduler) RestartAt(tick uint64) {
	s.restarts = append(s.restarts, tick)
	s.tick = tick
}

func newTestSetup(t *testing.T) (*Checkpointer, *archdata.ArchData, *fakeScheduler) {
	t.Helper()
	a := archdata.New("mem", 64, archdata.InitFill{Width: 1, Pattern: 0})
	a.GrowRegion(64)
	require.NoError(t, a.Layout())

	sched := &fakeScheduler{}
	root := &fakeNode{ads: []*archdata.ArchData{a}}
	c := New([]Node{root}, sched, 3)
	return c, a, sched
}

func writeByte(t *testing.T, a *archdata.ArchData, offset uint64, v uint8) {
	t.Helper()
	ln, err := a.GetLine(offset)
	require.NoError(t, err)
	lineOffset := offset % 64
	require.NoError(t, archdata.WriteT[uint8](ln, lineOffset, 0, binary.LittleEndian, v))
}

func readByte(t *testing.T, a *archdata.ArchData, offset uint64) uint8 {
	t.Helper()
	ln, err := a.GetLine(offset)
	require.NoError(t, err)
	v, err := archdata.ReadT[uint8](ln, offset%64, 0, binary.LittleEndian)
	require.NoError(t, err)
	return v
}

// TestS1SimpleDeltaChain mirrors spec scenario S1.
func TestS1SimpleDeltaChain(t *testing.T) {
	c, a, sched := newTestSetup(t)

	id0, err := c.CreateHead()
	require.NoError(t, err)
	assert.EqualValues(t, 0, id0)

	writeByte(t, a, 0, 0x01)
	writeByte(t, a, 1, 0x02)
	sched.tick = 10
	id1, err := c.CreateCheckpoint(false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, id1)

	writeByte(t, a, 5, 0x03)
	sched.tick = 20
	id2, err := c.CreateCheckpoint(false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, id2)

	require.NoError(t, c.Load(id1))
	assert.EqualValues(t, 0x01, readByte(t, a, 0))
	assert.EqualValues(t, 0x02, readByte(t, a, 1))
	assert.EqualValues(t, 0, readByte(t, a, 5))

	require.NoError(t, c.Load(id2))
	assert.EqualValues(t, 0x01, readByte(t, a, 0))
	assert.EqualValues(t, 0x02, readByte(t, a, 1))
	assert.EqualValues(t, 0x03, readByte(t, a, 5))
}

// TestS2SnapshotPromotionByThreshold mirrors spec scenario S2.
func TestS2SnapshotPromotionByThreshold(t *testing.T) {
	c, _, sched := newTestSetup(t)

	_, err := c.CreateHead()
	require.NoError(t, err)

	sched.tick = 1
	id1, err := c.CreateCheckpoint(false)
	require.NoError(t, err)
	dist1, err := c.DistanceToPrevSnapshot(id1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, dist1, "id1 was stored as a delta, so its own distance is that of a snapshot child")

	sched.tick = 2
	id2, err := c.CreateCheckpoint(false)
	require.NoError(t, err)

	sched.tick = 3
	id3, err := c.CreateCheckpoint(false)
	require.NoError(t, err)

	n3, ok := c.Get(id3)
	require.True(t, ok)
	assert.True(t, n3.IsSnapshot, "distance_to_prev_snapshot(id3) reaches the threshold and must promote to a snapshot")

	n2, ok := c.Get(id2)
	require.True(t, ok)
	assert.False(t, n2.IsSnapshot)
}

// TestS3TombstoneWithLiveDependent mirrors spec scenario S3.
func TestS3TombstoneWithLiveDependent(t *testing.T) {
	c, a, sched := newTestSetup(t)

	_, err := c.CreateHead()
	require.NoError(t, err)

	sched.tick = 1
	id1, err := c.CreateCheckpoint(false)
	require.NoError(t, err)

	writeByte(t, a, 0, 0x42)
	sched.tick = 2
	id2, err := c.CreateCheckpoint(false)
	require.NoError(t, err)

	require.NoError(t, c.Delete(id1))
	assert.False(t, c.Has(id1))

	require.NoError(t, c.Load(id2))
	assert.EqualValues(t, 0x42, readByte(t, a, 0))
}

// TestS4TombstoneFullyCollectible mirrors spec scenario S4.
func TestS4TombstoneFullyCollectible(t *testing.T) {
	c, _, sched := newTestSetup(t)

	id0, err := c.CreateHead()
	require.NoError(t, err)

	var ids []uint64
	for i := 1; i <= 4; i++ {
		sched.tick = uint64(i)
		id, err := c.CreateCheckpoint(false)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, c.Load(id0))

	for i := len(ids) - 1; i >= 0; i-- {
		require.NoError(t, c.Delete(ids[i]))
	}

	all := c.AllCheckpoints()
	assert.Equal(t, []uint64{id0}, all)
}

func TestCreateCheckpointAutoCreatesHead(t *testing.T) {
	c, _, _ := newTestSetup(t)
	id, err := c.CreateCheckpoint(false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)
	head, ok := c.Head()
	require.True(t, ok)
	assert.EqualValues(t, 0, head)
}

func TestTickRegressionRejected(t *testing.T) {
	c, _, sched := newTestSetup(t)
	sched.tick = 10
	_, err := c.CreateHead()
	require.NoError(t, err)

	sched.tick = 5
	_, err = c.CreateCheckpoint(false)
	assert.Error(t, err)
}

func TestCannotDeleteHeadOrCurrent(t *testing.T) {
	c, _, _ := newTestSetup(t)
	id0, err := c.CreateHead()
	require.NoError(t, err)
	assert.Error(t, c.Delete(id0))

	id1, err := c.CreateCheckpoint(false)
	require.NoError(t, err)
	assert.Error(t, c.Delete(id1), "id1 is current and cannot be deleted")
}

func TestCreateHeadRejectedBeforeTreeFinalized(t *testing.T) {
	a := archdata.New("mem", 64, archdata.InitFill{})
	a.GrowRegion(64)
	require.NoError(t, a.Layout())

	root := &fakeNode{ads: []*archdata.ArchData{a}, unfinished: true}
	c := New([]Node{root}, nil, 3)

	_, err := c.CreateHead()
	assert.ErrorIs(t, err, ckpterrors.ErrUnfinalizedTree)

	root.unfinished = false
	id0, err := c.CreateHead()
	require.NoError(t, err)
	assert.EqualValues(t, 0, id0)
}

func TestDuplicateArchDataRejectedAtHeadCreation(t *testing.T) {
	a := archdata.New("shared", 64, archdata.InitFill{})
	a.GrowRegion(64)
	require.NoError(t, a.Layout())

	leaf := &fakeNode{ads: []*archdata.ArchData{a}}
	root := &fakeNode{kid: []Node{leaf, leaf}}
	c := New([]Node{root}, nil, 3)

	_, err := c.CreateHead()
	assert.Error(t, err)
}

func TestLoadRestartsSchedulerAtCheckpointTick(t *testing.T) {
	c, _, sched := newTestSetup(t)
	_, err := c.CreateHead()
	require.NoError(t, err)

	sched.tick = 7
	id1, err := c.CreateCheckpoint(false)
	require.NoError(t, err)

	sched.tick = 99
	require.NoError(t, c.Load(id1))
	assert.EqualValues(t, 7, sched.tick)
}

func TestRenderChain(t *testing.T) {
	c, _, sched := newTestSetup(t)
	id0, err := c.CreateHead()
	require.NoError(t, err)

	sched.tick = 1
	id1, err := c.CreateCheckpoint(false)
	require.NoError(t, err)

	sched.tick = 2
	id2, err := c.CreateCheckpoint(false)
	require.NoError(t, err)

	require.NoError(t, c.Delete(id1))

	out, err := c.RenderChain(id2)
	require.NoError(t, err)

	assert.Contains(t, out, "tick=0")
	assert.Contains(t, out, "snapshot")
	assert.Contains(t, out, "<deleted")
	assert.Contains(t, out, "tick=2")

	lines := strings.Count(out, "\n")
	assert.Equal(t, 3, lines)
	assert.Less(t, strings.Index(out, "tick=0"), strings.Index(out, "tick=2"))

	_, err = c.RenderChain(id0 + 999)
	assert.Error(t, err)
}
