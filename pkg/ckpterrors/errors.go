// Package ckpterrors defines the typed failure taxonomy shared by the
// checkpointer and its database overlay (spec §7). All of it is
// surfaced to callers; none of it is retried internally.
package ckpterrors

import "fmt"

var (
	// ErrUnfinalizedTree is returned when head creation is attempted
	// before the simulator tree has been finalized.
	ErrUnfinalizedTree = fmt.Errorf("checkpointer: simulator tree not finalized")

	// ErrTickRegression is returned when a new checkpoint's tick is
	// less than the head's tick or the current checkpoint's tick.
	ErrTickRegression = fmt.Errorf("checkpointer: tick regression")

	// ErrIDExhausted is returned when the monotonic id counter would
	// overflow on the next allocation.
	ErrIDExhausted = fmt.Errorf("checkpointer: checkpoint id space exhausted")

	// ErrUnknownCheckpoint is returned by queries and load() for an id
	// that does not exist (or was freed by chain-cleanup).
	ErrUnknownCheckpoint = fmt.Errorf("checkpointer: unknown checkpoint id")

	// ErrCannotDelete is returned when deleting the head, or deleting
	// the current checkpoint without first moving current elsewhere.
	ErrCannotDelete = fmt.Errorf("checkpointer: cannot delete head or current checkpoint")

	// ErrCorruptRestore is returned when a LineStorage source reports
	// malformed data during restore: an unknown tag, a premature end,
	// or an unexpected repeated line index.
	ErrCorruptRestore = fmt.Errorf("checkpointer: corrupt restore stream")

	// ErrHeadAlreadyExists is returned by create_head() when a head
	// checkpoint has already been established.
	ErrHeadAlreadyExists = fmt.Errorf("checkpointer: head already exists")

	// ErrDeleteUnsupported is returned by the database-backed overlay,
	// which does not support delete() (spec §4.4).
	ErrDeleteUnsupported = fmt.Errorf("ckptdb: delete is not supported by the database overlay")

	// ErrOutOfRange is returned by ArchData.get_line for an offset at
	// or beyond the region size.
	ErrOutOfRange = fmt.Errorf("archdata: offset out of range")

	// ErrBadAccessSize is returned for a typed access whose size is
	// not a power of two or exceeds the line size.
	ErrBadAccessSize = fmt.Errorf("archdata: access size invalid for line")

	// ErrDuplicateBeginLine is returned by a LineStorage sink given two
	// consecutive begin_line calls with the same index.
	ErrDuplicateBeginLine = fmt.Errorf("ckptio: duplicate begin_line for same index")
)

// DuplicateArchData is returned at head creation time when the same
// ArchData is reachable through two different tree paths.
type DuplicateArchData struct {
	Name string
}

func (e *DuplicateArchData) Error() string {
	return fmt.Sprintf("checkpointer: archdata %q reachable via two tree paths", e.Name)
}

// LayoutConflict enumerates the §4.1 layout validation failures:
// duplicate segment id, subset-of unknown parent, segment exceeds
// parent, segment exceeds line.
type LayoutConflict struct {
	Segment string
	Reason  string
}

func (e *LayoutConflict) Error() string {
	return fmt.Sprintf("archdata: layout conflict for segment %q: %s", e.Segment, e.Reason)
}
