// Package checkpoint implements the Checkpoint tree-node type and the
// DeltaChain walk (spec §3, §4.3's restore-chain math). Checkpoints
// are modeled as an id-indexed arena per spec §9's design note:
// prev/next links are ids, not pointers, which makes tombstoning
// trivial (flag the slot, free it later) without reference counting.
// Grounded on original_source's Checkpoint.hpp/CheckpointBase.hpp/
// DeltaCheckpoint.hpp for the data model, and on the teacher's
// internal/memorystore/level.go for the Go map-of-nodes idiom.
package checkpoint

import "github.com/sparcians/map-checkpoint/pkg/ckptio"

// Unidentified is the sentinel id a checkpoint carries once
// tombstoned (spec §3 invariant iii).
const Unidentified uint64 = ^uint64(0)

// Checkpoint is one node in the checkpoint tree.
type Checkpoint struct {
	id         uint64
	Tick       uint64
	IsSnapshot bool

	hasPrev bool
	prevID  uint64
	nextIDs []uint64 // ordered set, insertion order

	hasDeletedID bool
	deletedID    uint64

	// Payload holds one LineStorage per archdata name, populated by
	// Save/SaveAll at creation time.
	Payload map[string]*ckptio.VectorLineStorage
}

// New constructs a live checkpoint with the given id.
func New(id uint64, tick uint64, isSnapshot bool, prevID uint64, hasPrev bool) *Checkpoint {
	return &Checkpoint{
		id:         id,
		Tick:       tick,
		IsSnapshot: isSnapshot,
		hasPrev:    hasPrev,
		prevID:     prevID,
		Payload:    map[string]*ckptio.VectorLineStorage{},
	}
}

// ID returns Unidentified if this checkpoint has been tombstoned.
func (c *Checkpoint) ID() uint64 { return c.id }

// IsTombstoned reports whether Delete has been called on this node.
func (c *Checkpoint) IsTombstoned() bool { return c.id == Unidentified }

// DeletedID returns the pre-deletion id and whether this checkpoint
// was ever tombstoned (spec §3 invariant iii, kept for diagnostic
// chain rendering after the id itself has been cleared).
func (c *Checkpoint) DeletedID() (uint64, bool) { return c.deletedID, c.hasDeletedID }

// PrevID returns the parent id, if any (false only for the head).
func (c *Checkpoint) PrevID() (uint64, bool) { return c.prevID, c.hasPrev }

// SetPrev reparents this checkpoint, used by chain-cleanup when a
// tombstoned ancestor is physically freed (spec §4.3's cleanup).
func (c *Checkpoint) SetPrev(id uint64, has bool) {
	c.prevID = id
	c.hasPrev = has
}

// NextIDs returns the ordered set of child ids.
func (c *Checkpoint) NextIDs() []uint64 {
	out := make([]uint64, len(c.nextIDs))
	copy(out, c.nextIDs)
	return out
}

// AddNext appends a child id, maintaining the insertion-ordered set
// invariant (it is a programming error to add the same child twice;
// callers control uniqueness by construction).
func (c *Checkpoint) AddNext(id uint64) {
	c.nextIDs = append(c.nextIDs, id)
}

// RemoveNext removes a child id from the ordered set.
func (c *Checkpoint) RemoveNext(id uint64) {
	for i, n := range c.nextIDs {
		if n == id {
			c.nextIDs = append(c.nextIDs[:i], c.nextIDs[i+1:]...)
			return
		}
	}
}

// Tombstone marks the checkpoint deleted: deletedID records the
// pre-deletion id, and id becomes Unidentified (spec §3 invariant
// iii, §4.3's state machine).
func (c *Checkpoint) Tombstone() {
	c.deletedID = c.id
	c.hasDeletedID = true
	c.id = Unidentified
}

// ByteSize sums the serialized length of every archdata's payload,
// grounded on original_source's DeltaCheckpoint::total_memory_use
// accounting (SPEC_FULL §D.2).
func (c *Checkpoint) ByteSize() int {
	n := 0
	for _, p := range c.Payload {
		n += p.Bytes()
	}
	return n
}
