package intervalskiplist

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keysOf(ivs []*Interval) [][2]uint64 {
	out := make([][2]uint64, len(ivs))
	for i, iv := range ivs {
		out[i] = [2]uint64{iv.Left, iv.Right}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// TestS5StabbingQuery is the worked example from the spec: three
// overlapping intervals, queried at a point inside two, a point
// inside one, and a point inside none.
func TestS5StabbingQuery(t *testing.T) {
	sl := New(1)
	a := &Interval{0, 5}
	b := &Interval{3, 10}
	c := &Interval{8, 12}
	sl.Insert(a)
	sl.Insert(b)
	sl.Insert(c)

	assert.Equal(t, [][2]uint64{{0, 5}, {3, 10}}, keysOf(sl.FindIntervals(4)))
	assert.Equal(t, [][2]uint64{{8, 12}}, keysOf(sl.FindIntervals(10)))
	assert.Empty(t, sl.FindIntervals(12))
}

func TestInsertThenRemoveLeavesNoMarkers(t *testing.T) {
	sl := New(2)
	a := &Interval{0, 5}
	b := &Interval{3, 10}
	sl.Insert(a)
	sl.Insert(b)
	require.Len(t, sl.FindIntervals(4), 2)

	sl.Remove(a)
	assert.Equal(t, [][2]uint64{{3, 10}}, keysOf(sl.FindIntervals(4)))
	assert.Empty(t, sl.FindIntervals(1))

	sl.Remove(b)
	assert.Empty(t, sl.FindIntervals(4))
	assert.Equal(t, 0, sl.Len())
}

func TestSharedEndpointsSurviveIndependentRemoval(t *testing.T) {
	sl := New(3)
	a := &Interval{5, 10}
	b := &Interval{5, 20}
	sl.Insert(a)
	sl.Insert(b)

	assert.Equal(t, [][2]uint64{{5, 10}, {5, 20}}, keysOf(sl.FindIntervals(7)))

	sl.Remove(a)
	assert.Equal(t, [][2]uint64{{5, 20}}, keysOf(sl.FindIntervals(7)))
	assert.Equal(t, [][2]uint64{{5, 20}}, keysOf(sl.FindIntervals(15)))
}

func TestQueryOutsideAnyIntervalIsEmptyNotError(t *testing.T) {
	sl := New(4)
	sl.Insert(&Interval{10, 20})
	assert.Empty(t, sl.FindIntervals(100))
	assert.Empty(t, sl.FindIntervals(0))
}

func TestRemoveUnknownIntervalPanics(t *testing.T) {
	sl := New(5)
	sl.Insert(&Interval{0, 5})
	assert.Panics(t, func() {
		sl.Remove(&Interval{0, 5})
	})
}

func TestInvalidIntervalPanics(t *testing.T) {
	sl := New(6)
	assert.Panics(t, func() {
		sl.Insert(&Interval{5, 3})
	})
}

func TestDegenerateIntervalNeverMatches(t *testing.T) {
	sl := New(7)
	z := &Interval{5, 5}
	sl.Insert(z)
	assert.Empty(t, sl.FindIntervals(5))
	sl.Remove(z)
	assert.Equal(t, 0, sl.Len())
}
