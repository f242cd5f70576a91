package checkpointer

import "github.com/sparcians/map-checkpoint/internal/archdata"

// Node is the external tree-of-nodes façade the checkpointer
// traverses exactly once, at head creation, to discover the fixed set
// of archdata it is responsible for (spec §6). IsFinalized reports
// whether this node's subtree has finished construction; CreateHead
// requires every root to report true (spec §4.3 "Creation" precondition
// (a), spec §7 ErrUnfinalizedTree), mirroring the ground truth's
// root->isFinalized() gate on checkpoint creation.
type Node interface {
	AssociatedArchDatas() []*archdata.ArchData
	Children() []Node
	IsFinalized() bool
}

// Scheduler is the optional external adapter used to read the
// simulator's current tick and to rewind it on load (spec §6). If no
// Scheduler is given to New, the checkpointer uses tick 0
// for everything and never calls RestartAt.
type Scheduler interface {
	CurrentTick() uint64
	RestartAt(tick uint64)
}
