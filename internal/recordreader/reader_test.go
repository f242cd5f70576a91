package recordreader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// rewriteIndexWithoutHeader strips the version-header line a test
// fixture was written with, simulating a legacy producer that never
// wrote one (spec §6's backward-compatibility fallback).
func rewriteIndexWithoutHeader(t *testing.T, prefix string, heartbeat uint64) {
	t.Helper()
	raw, err := os.ReadFile(prefix + "index.bin")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(prefix+"index.bin", raw[indexHeaderSize:], 0o644))
}

func writeToy(t *testing.T, prefix string, heartbeat uint64, recs []Record) {
	t.Helper()
	w, err := Create(prefix, heartbeat)
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.Append(r))
	}
	require.NoError(t, w.Close())
}

func TestReaderRoundTrip(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "toy.")
	recs := []Record{
		{StartTick: 0, EndTick: 5, TransactionID: 1, LocationID: 1, Flags: TypeInstruction},
		{StartTick: 3, EndTick: 10, TransactionID: 2, LocationID: 1, Flags: TypeMemoryOperation},
		{StartTick: 8, EndTick: 12, TransactionID: 3, LocationID: 2, Flags: TypeAnnotation, Tail: []byte("hello")},
		{StartTick: 20, EndTick: 25, TransactionID: 4, LocationID: 2, Flags: TypePair},
	}
	writeToy(t, prefix, 10, recs)

	r, err := Open(prefix)
	require.NoError(t, err)
	defer r.Close()

	require.EqualValues(t, CurrentVersion, r.version)
	require.EqualValues(t, 10, r.Heartbeat())

	first, err := r.CycleFirst()
	require.NoError(t, err)
	require.EqualValues(t, 0, first)

	last, err := r.CycleLast()
	require.NoError(t, err)
	require.EqualValues(t, 24, last)

	var got []uint64
	require.NoError(t, r.ReadWindow(0, 12, func(rec Record) error {
		got = append(got, rec.TransactionID)
		return nil
	}))
	require.ElementsMatch(t, []uint64{1, 2, 3}, got)

	got = nil
	require.NoError(t, r.ReadWindow(12, 30, func(rec Record) error {
		got = append(got, rec.TransactionID)
		return nil
	}))
	require.ElementsMatch(t, []uint64{4}, got)
}

func TestReaderAnnotationTruncation(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "toy.")
	big := make([]byte, MaxAnnotationBytes+500)
	for i := range big {
		big[i] = 'x'
	}
	writeToy(t, prefix, 100, []Record{
		{StartTick: 0, EndTick: 5, TransactionID: 1, Flags: TypeAnnotation, Tail: big},
	})

	r, err := Open(prefix)
	require.NoError(t, err)
	defer r.Close()

	var got Record
	require.NoError(t, r.ReadWindow(0, 5, func(rec Record) error {
		got = rec
		return nil
	}))
	require.Len(t, got.Tail, MaxAnnotationBytes)
}

func TestReaderMissingIndexHeaderAssumesVersion1(t *testing.T) {
	// A record/index pair written without the version header (as if
	// produced by a pre-header-era writer) must still be readable.
	prefix := filepath.Join(t.TempDir(), "legacy.")
	w, err := Create(prefix, 10)
	require.NoError(t, err)
	require.NoError(t, w.Append(Record{StartTick: 0, EndTick: 4, TransactionID: 1, Flags: TypeInstruction}))
	require.NoError(t, w.Close())

	// Rewrite the index file without the header line to simulate a
	// legacy producer.
	rewriteIndexWithoutHeader(t, prefix, 10)

	r, err := Open(prefix)
	require.NoError(t, err)
	defer r.Close()
	require.EqualValues(t, 1, r.version)

	var got []uint64
	require.NoError(t, r.ReadWindow(0, 4, func(rec Record) error {
		got = append(got, rec.TransactionID)
		return nil
	}))
	require.Equal(t, []uint64{1}, got)
}
