package intervalwindow

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sparcians/map-checkpoint/internal/recordreader"
)

func buildToyFile(t *testing.T, n int, length uint64, heartbeat uint64) string {
	t.Helper()
	prefix := filepath.Join(t.TempDir(), "toy.")
	w, err := recordreader.Create(prefix, heartbeat)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		start := uint64(i)
		require.NoError(t, w.Append(recordreader.Record{
			StartTick:     start,
			EndTick:       start + length,
			TransactionID: uint64(i),
			Flags:         recordreader.TypeInstruction,
		}))
	}
	require.NoError(t, w.Close())
	return prefix
}

// TestWindowSlide mirrors spec §8 scenario S6: 1000 length-5 intervals
// starting at every tick, a 100/100 buffer with 80/80 hysteresis.
// Querying near the start returns 5 intervals; jumping far away forces
// a reload but still returns 5; the buffered set stays bounded.
func TestWindowSlide(t *testing.T) {
	prefix := buildToyFile(t, 1000, 5, 50)
	reader, err := recordreader.Open(prefix)
	require.NoError(t, err)
	defer reader.Close()

	win := New(reader, Config{
		OffsetL: 100, OffsetR: 100,
		LoadL: 80, LoadR: 80,
		LongEventCheck: 10,
		PollInterval:   time.Millisecond,
	}, 1)
	require.NoError(t, win.Start())
	defer win.Stop()

	recs := win.StabbingQuery(50)
	require.Len(t, recs, 5)

	recs = win.StabbingQuery(500)
	require.Len(t, recs, 5)

	require.LessOrEqual(t, win.Len(), 210)
}

func TestWindowStabbingMatchesSpecS5(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "s5.")
	w, err := recordreader.Create(prefix, 20)
	require.NoError(t, err)
	require.NoError(t, w.Append(recordreader.Record{StartTick: 0, EndTick: 5, TransactionID: 1, Flags: recordreader.TypeInstruction}))
	require.NoError(t, w.Append(recordreader.Record{StartTick: 3, EndTick: 10, TransactionID: 2, Flags: recordreader.TypeInstruction}))
	require.NoError(t, w.Append(recordreader.Record{StartTick: 8, EndTick: 12, TransactionID: 3, Flags: recordreader.TypeInstruction}))
	require.NoError(t, w.Close())

	reader, err := recordreader.Open(prefix)
	require.NoError(t, err)
	defer reader.Close()

	win := New(reader, Config{
		OffsetL: 50, OffsetR: 50,
		LoadL: 40, LoadR: 40,
		LongEventCheck: 5,
		PollInterval:   time.Millisecond,
	}, 2)
	require.NoError(t, win.Start())
	defer win.Stop()

	ids := func(recs []recordreader.Record) []uint64 {
		out := make([]uint64, len(recs))
		for i, r := range recs {
			out[i] = r.TransactionID
		}
		return out
	}

	require.ElementsMatch(t, []uint64{1, 2}, ids(win.StabbingQuery(4)))
	require.ElementsMatch(t, []uint64{3}, ids(win.StabbingQuery(10)))
	require.Empty(t, ids(win.StabbingQuery(12)))
}

func TestWindowStopClearsState(t *testing.T) {
	prefix := buildToyFile(t, 20, 5, 10)
	reader, err := recordreader.Open(prefix)
	require.NoError(t, err)
	defer reader.Close()

	win := New(reader, Config{
		OffsetL: 20, OffsetR: 20,
		LoadL: 15, LoadR: 15,
		PollInterval: time.Millisecond,
	}, 3)
	require.NoError(t, win.Start())
	require.Greater(t, win.Len(), 0)
	win.Stop()
	require.Equal(t, 0, win.Len())
}
