package archdata

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparcians/map-checkpoint/pkg/ckptio"
	"github.com/sparcians/map-checkpoint/pkg/ckpterrors"
)

func newTestArchData(t *testing.T) *ArchData {
	t.Helper()
	a := New("test", 64, InitFill{Width: 1, Pattern: 0})
	a.GrowRegion(256)
	require.NoError(t, a.Layout())
	return a
}

func TestWriteSetsDirtyAndReadRoundTrips(t *testing.T) {
	a := newTestArchData(t)

	ln, err := a.GetLine(0)
	require.NoError(t, err)
	require.False(t, ln.Dirty())

	require.NoError(t, WriteT[uint16](ln, 0, 0, binary.LittleEndian, 0x0201))
	assert.True(t, ln.Dirty())

	got, err := ReadT[uint16](ln, 0, 0, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0201), got)
}

func TestGetLineOutOfRange(t *testing.T) {
	a := newTestArchData(t)
	_, err := a.GetLine(256)
	assert.ErrorIs(t, err, ckpterrors.ErrOutOfRange)
}

func TestAccessBeyondLineSizeFails(t *testing.T) {
	a := newTestArchData(t)
	ln, err := a.GetLine(0)
	require.NoError(t, err)
	_, err = ReadT[uint64](ln, 60, 0, binary.LittleEndian)
	assert.ErrorIs(t, err, ckpterrors.ErrBadAccessSize)
}

func TestFreshLineHasPhaseAlignedFill(t *testing.T) {
	a := New("fill", 16, InitFill{Width: 4, Pattern: 0xAABBCCDD})
	a.GrowRegion(64)
	require.NoError(t, a.Layout())

	ln, err := a.GetLine(16) // second line, offset 16, phase 0 for width 4
	require.NoError(t, err)
	v, err := ReadT[uint32](ln, 0, 0, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xAABBCCDD), v)
}

func TestSaveOnlyEmitsDirtyLinesThenClearsThem(t *testing.T) {
	a := newTestArchData(t)
	ln0, _ := a.GetLine(0)
	require.NoError(t, WriteT[uint8](ln0, 0, 0, binary.LittleEndian, 7))
	ln1, _ := a.GetLine(64)
	require.False(t, ln1.Dirty())

	sink := ckptio.NewVectorLineStorage()
	require.NoError(t, a.Save(sink))
	assert.False(t, ln0.Dirty())

	src := sink
	require.NoError(t, src.PrepareForLoad())
	idx, ok, err := src.NextRestoreLine()
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 0, idx)
}

func TestRestoreAllClearsThenAppliesLines(t *testing.T) {
	a := newTestArchData(t)
	ln0, _ := a.GetLine(0)
	require.NoError(t, WriteT[uint8](ln0, 5, 0, binary.LittleEndian, 9))

	vec := ckptio.NewVectorLineStorage()
	require.NoError(t, a.SaveAll(vec))

	b := newTestArchData(t)
	require.NoError(t, b.RestoreAll(vec))

	ln, err := b.GetLine(0)
	require.NoError(t, err)
	v, err := ReadT[uint8](ln, 5, 0, binary.LittleEndian)
	require.NoError(t, err)
	assert.EqualValues(t, 9, v)
}

func TestLayoutRejectsDuplicateSegment(t *testing.T) {
	a := New("dup", 64, InitFill{Width: 1})
	require.NoError(t, a.RegisterSegment(Segment{Name: "s1", Size: 8}))
	err := a.RegisterSegment(Segment{Name: "s1", Size: 8})
	var lc *ckpterrors.LayoutConflict
	require.ErrorAs(t, err, &lc)
}

func TestLayoutRejectsSubsetOfUnknownParent(t *testing.T) {
	a := New("orphan", 64, InitFill{Width: 1})
	off := uint64(0)
	require.NoError(t, a.RegisterSegment(Segment{Name: "child", Size: 4, Parent: "missing", SubsetOffset: &off}))
	err := a.Layout()
	var lc *ckpterrors.LayoutConflict
	require.ErrorAs(t, err, &lc)
	assert.Contains(t, lc.Reason, "unknown parent")
}

func TestLayoutPadsSegmentCrossingLineBoundary(t *testing.T) {
	a := New("pad", 16, InitFill{Width: 1})
	require.NoError(t, a.RegisterSegment(Segment{Name: "a", Size: 12}))
	require.NoError(t, a.RegisterSegment(Segment{Name: "b", Size: 8}))
	require.NoError(t, a.Layout())

	segB := a.segByName["b"]
	assert.EqualValues(t, 16, segB.Offset, "b must be pushed to the next line to avoid straddling")
}

func TestLayoutRejectsSegmentLargerThanLine(t *testing.T) {
	a := New("toobig", 16, InitFill{Width: 1})
	require.NoError(t, a.RegisterSegment(Segment{Name: "huge", Size: 32}))
	err := a.Layout()
	var lc *ckpterrors.LayoutConflict
	require.ErrorAs(t, err, &lc)
}

func TestResetReplaysSegmentInitializers(t *testing.T) {
	a := New("init", 16, InitFill{Width: 1, Pattern: 0})
	require.NoError(t, a.RegisterSegment(Segment{
		Name: "counter", Size: 4,
		Init: func(dst []byte) { binary.LittleEndian.PutUint32(dst, 42) },
	}))
	require.NoError(t, a.Layout())
	require.NoError(t, a.Reset())

	view, err := a.SegmentView("counter")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), binary.LittleEndian.Uint32(view))
}

func TestSubsetSegmentLiesWithinParent(t *testing.T) {
	a := New("subset", 64, InitFill{Width: 1})
	require.NoError(t, a.RegisterSegment(Segment{Name: "parent", Size: 16}))
	off := uint64(4)
	require.NoError(t, a.RegisterSegment(Segment{Name: "child", Size: 4, Parent: "parent", SubsetOffset: &off}))
	require.NoError(t, a.Layout())

	parent := a.segByName["parent"]
	child := a.segByName["child"]
	assert.Equal(t, parent.Offset+4, child.Offset)
}
