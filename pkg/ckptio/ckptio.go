// Package ckptio defines the LineStorage contract (spec §4.2): a
// pluggable sink/source for checkpoint payload bytes, consumed by at
// most one save or restore operation at a time. Two concrete
// implementations are provided: FileLineStorage, which streams the §6
// binary layout to/from a file, and VectorLineStorage, the in-memory
// variant §6 names explicitly.
package ckptio

// Sink is the write side of a LineStorage. Calls must come in the
// order BeginLine, WriteLineBytes, ... , EndArchData.
type Sink interface {
	BeginLine(index uint64) error
	WriteLineBytes(b []byte) error
	EndArchData() error
}

// Source is the read side of a LineStorage, consumed by restore().
type Source interface {
	// PrepareForLoad resets the read cursor to the start of the stream.
	PrepareForLoad() error

	// NextRestoreLine yields the next stored line index within the
	// current archdata. ok is false (with err nil) at a well-formed
	// end_archdata. A non-nil err indicates corruption: the stream
	// ended before an end_archdata marker was seen.
	NextRestoreLine() (index uint64, ok bool, err error)

	// CopyLineBytes reads exactly len(dst) bytes for the line index
	// most recently returned by NextRestoreLine.
	CopyLineBytes(dst []byte) error
}
