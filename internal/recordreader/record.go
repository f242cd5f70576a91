// Package recordreader implements the spec §6 transaction record file
// reader: a heartbeat-indexed companion pair (`<prefix>record.bin`,
// `<prefix>index.bin`) that IntervalWindow replays through during a
// window load. Grounded on original_source's Reader.hpp/
// TransactionInterval.hpp for the file-trio contract, the versioned
// index header, the heartbeat-bucketed seek table, and the
// start/end/parent/transaction/location/flags header shape; the dense
// per-type tail payloads (Annotation/Instruction/MemoryOperation/Pair)
// are modeled as a length-prefixed opaque byte blob rather than
// byte-exhaustively, since the wire format itself is out of scope
// (spec §1) -- this reader only needs to be good enough to drive
// intervalwindow end-to-end. Reader consumes the pair; Writer (used by
// the tests; cmd/mapckpt only reads existing pairs) produces it, since
// no production Outputter is in scope either.
package recordreader

// TypeMask isolates the record-type nibble of Flags, per spec §6.
const TypeMask = 0x0F

// Record types, keyed by flags & TypeMask.
const (
	TypeAnnotation      = 1
	TypeInstruction     = 2
	TypeMemoryOperation = 3
	TypePair            = 4
)

// MaxAnnotationBytes is the cap on an Annotation tail; longer tails
// are truncated with a diagnostic (spec §6).
const MaxAnnotationBytes = 16384

// headerSize is the fixed packed transaction header's on-disk size:
// five uint64 fields plus a uint16 flags field.
const headerSize = 8*5 + 2

// Record is one transaction record: a half-open [StartTick, EndTick)
// interval plus the identifying fields IntervalWindow threads through
// to its iarray entries.
type Record struct {
	StartTick, EndTick                  uint64
	ParentID, TransactionID, LocationID uint64
	Flags                                uint16
	Tail                                 []byte
}

// Type returns the record's type nibble.
func (r Record) Type() uint16 { return r.Flags & TypeMask }
