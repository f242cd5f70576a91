package main

import (
	"encoding/binary"

	"github.com/sparcians/map-checkpoint/internal/archdata"
	"github.com/sparcians/map-checkpoint/internal/checkpointer"
)

// unit is a toy simulator component: one line-paginated archdata
// region with no children, standing in for a single register file or
// memory bank (spec §6's "anything satisfying Node").
type unit struct {
	ad *archdata.ArchData
}

func (u *unit) AssociatedArchDatas() []*archdata.ArchData { return []*archdata.ArchData{u.ad} }
func (u *unit) Children() []checkpointer.Node             { return nil }
func (u *unit) IsFinalized() bool                         { return true }

// cluster groups units the way a simulator's device tree groups
// register files under a core (spec §6's tree discovery walks
// Children() recursively).
type cluster struct {
	kids []checkpointer.Node
}

func (c *cluster) AssociatedArchDatas() []*archdata.ArchData { return nil }
func (c *cluster) Children() []checkpointer.Node            { return c.kids }
func (c *cluster) IsFinalized() bool                        { return true }

// newToySimulator builds a small two-unit device tree: a "regs" unit
// with byte-addressable lines and a "mem" unit with larger pages, both
// seeded with a zero fill.
func newToySimulator() (root checkpointer.Node, regs, mem *archdata.ArchData) {
	regs = archdata.New("regs", 64, archdata.InitFill{Width: 8, Pattern: 0})
	regs.GrowRegion(4096)
	if err := regs.Layout(); err != nil {
		panic(err)
	}

	mem = archdata.New("mem", 4096, archdata.InitFill{Width: 1, Pattern: 0})
	mem.GrowRegion(1 << 20)
	if err := mem.Layout(); err != nil {
		panic(err)
	}

	root = &cluster{kids: []checkpointer.Node{&unit{ad: regs}, &unit{ad: mem}}}
	return root, regs, mem
}

// touch writes a deterministic, tick-derived pattern into regs so
// successive checkpoints actually differ (spec §8's scenarios all
// assume the underlying state changes between checkpoints).
func touch(regs *archdata.ArchData, tick uint64) error {
	offset := (tick % 512) * 8
	ln, err := regs.GetLine(offset)
	if err != nil {
		return err
	}
	return archdata.WriteT[uint64](ln, offset%64, 0, binary.LittleEndian, tick)
}

// tickScheduler is the toy checkpointer.Scheduler: a bare counter with
// no real simulator event loop behind it.
type tickScheduler struct {
	tick uint64
}

func (s *tickScheduler) CurrentTick() uint64 { return s.tick }
func (s *tickScheduler) RestartAt(tick uint64) {
	s.tick = tick
}
