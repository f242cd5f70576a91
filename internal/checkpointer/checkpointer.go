// Package checkpointer implements the Checkpointer public API (spec
// §4.3): create/load/delete/query, id allocation, head/current
// bookkeeping, snapshot-threshold policy and tombstone chain cleanup.
// Grounded on original_source's FastCheckpointer.hpp/Checkpointer.hpp
// for the algorithm, and on the teacher's pkg/lrucache/cache.go for
// the single-mutex-guards-everything Go concurrency idiom (the
// checkpointer is single-threaded with respect to the simulator's own
// thread, spec §5, so a plain sync.Mutex — no reentrancy, no
// suspension points — is all that is needed).
package checkpointer

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sparcians/map-checkpoint/internal/archdata"
	"github.com/sparcians/map-checkpoint/internal/checkpoint"
	"github.com/sparcians/map-checkpoint/pkg/ckpterrors"
	"github.com/sparcians/map-checkpoint/pkg/ckptio"
	"github.com/sparcians/map-checkpoint/pkg/log"
)

// Checkpointer is the public API over a tree of checkpoints backed by
// a fixed set of archdata discovered once from Roots at head creation.
type Checkpointer struct {
	mu sync.Mutex

	roots     []Node
	archdatas []*archdata.ArchData
	scheduler Scheduler

	snapshotThreshold uint32

	arena   map[uint64]*checkpoint.Checkpoint
	nextID  uint64
	headID  uint64
	hasHead bool
	current uint64

	liveCount int
	deadCount int
}

// New constructs a Checkpointer. snapshotThreshold must be >= 1; a
// threshold of 1 makes every checkpoint a snapshot (spec §4.3).
func New(roots []Node, scheduler Scheduler, snapshotThreshold uint32) *Checkpointer {
	if snapshotThreshold < 1 {
		snapshotThreshold = 1
	}
	return &Checkpointer{
		roots:             roots,
		scheduler:         scheduler,
		snapshotThreshold: snapshotThreshold,
		arena:             map[uint64]*checkpoint.Checkpoint{},
	}
}

func (c *Checkpointer) currentTick() uint64 {
	if c.scheduler != nil {
		return c.scheduler.CurrentTick()
	}
	return 0
}

// discoverArchData walks Roots exactly once, rejecting any archdata
// reachable through two different tree nodes (spec §6).
func discoverArchData(roots []Node) ([]*archdata.ArchData, error) {
	seen := map[*archdata.ArchData]bool{}
	var out []*archdata.ArchData

	var walk func(n Node) error
	walk = func(n Node) error {
		for _, a := range n.AssociatedArchDatas() {
			if seen[a] {
				return &ckpterrors.DuplicateArchData{Name: a.Name}
			}
			seen[a] = true
			out = append(out, a)
		}
		for _, ch := range n.Children() {
			if err := walk(ch); err != nil {
				return err
			}
		}
		return nil
	}

	for _, r := range roots {
		if err := walk(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CreateHead requires that no head exists yet. It enumerates all
// archdata reachable from the roots (fixed for the checkpointer's
// lifetime), snapshots them at the current tick, and records the
// result as both head and current.
func (c *Checkpointer) CreateHead() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createHeadLocked()
}

func (c *Checkpointer) createHeadLocked() (uint64, error) {
	if c.hasHead {
		return 0, ckpterrors.ErrHeadAlreadyExists
	}
	for _, r := range c.roots {
		if !r.IsFinalized() {
			return 0, ckpterrors.ErrUnfinalizedTree
		}
	}

	archdatas, err := discoverArchData(c.roots)
	if err != nil {
		return 0, err
	}
	c.archdatas = archdatas

	id := c.nextID
	c.nextID++
	tick := c.currentTick()

	node := checkpoint.New(id, tick, true, 0, false)
	if err := c.saveAllInto(node); err != nil {
		return 0, err
	}

	c.arena[id] = node
	c.headID = id
	c.hasHead = true
	c.current = id
	c.liveCount++
	log.Debugf("checkpointer: created head %d at tick %d", id, tick)
	return id, nil
}

// CreateCheckpoint allocates a new checkpoint as a child of current,
// stored as a snapshot if forceSnapshot is set or the snapshot
// threshold has been reached, else as a delta (spec §4.3).
func (c *Checkpointer) CreateCheckpoint(forceSnapshot bool) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasHead {
		if _, err := c.createHeadLocked(); err != nil {
			return 0, err
		}
	}

	if c.nextID == checkpoint.Unidentified {
		return 0, ckpterrors.ErrIDExhausted
	}

	curNode := c.arena[c.current]
	tick := c.currentTick()
	head := c.arena[c.headID]
	if tick < head.Tick || tick < curNode.Tick {
		return 0, ckpterrors.ErrTickRegression
	}

	dist, err := checkpoint.DistanceToPrevSnapshot(arenaView{c}, c.current)
	if err != nil {
		return 0, err
	}
	isSnapshot := forceSnapshot || (dist+1) >= c.snapshotThreshold

	id := c.nextID
	c.nextID++

	node := checkpoint.New(id, tick, isSnapshot, c.current, true)
	if isSnapshot {
		if err := c.saveAllInto(node); err != nil {
			return 0, err
		}
	} else {
		if err := c.saveInto(node); err != nil {
			return 0, err
		}
	}

	curNode.AddNext(id)
	c.arena[id] = node
	oldCurrent := c.current
	c.current = id
	c.liveCount++

	if isSnapshot {
		c.cleanupFrom(oldCurrent)
	}

	log.Debugf("checkpointer: created checkpoint %d at tick %d (snapshot=%v)", id, tick, isSnapshot)
	return id, nil
}

func (c *Checkpointer) saveAllInto(node *checkpoint.Checkpoint) error {
	for _, a := range c.archdatas {
		storage := ckptio.NewVectorLineStorage()
		if err := a.SaveAll(storage); err != nil {
			return err
		}
		node.Payload[a.Name] = storage
	}
	return nil
}

func (c *Checkpointer) saveInto(node *checkpoint.Checkpoint) error {
	for _, a := range c.archdatas {
		storage := ckptio.NewVectorLineStorage()
		if err := a.Save(storage); err != nil {
			return err
		}
		node.Payload[a.Name] = storage
	}
	return nil
}

// Load reconstructs the restore chain for id and replays it onto the
// archdata set, moving current to id. If a Scheduler was given, its
// RestartAt is invoked with id's tick (spec §4.3).
func (c *Checkpointer) Load(id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	target, ok := c.arena[id]
	if !ok {
		return ckpterrors.ErrUnknownCheckpoint
	}

	chain, err := checkpoint.RestoreChain(arenaView{c}, id)
	if err != nil {
		return err
	}

	for _, a := range c.archdatas {
		a.Clean()
	}

	for i, node := range chain {
		for _, a := range c.archdatas {
			storage, ok := node.Payload[a.Name]
			if !ok {
				continue
			}
			if i == 0 {
				if err := a.RestoreAll(storage); err != nil {
					return err
				}
			} else {
				if err := a.Restore(storage); err != nil {
					return err
				}
			}
		}
	}

	oldCurrent := c.current
	c.current = id
	if c.scheduler != nil {
		c.scheduler.RestartAt(target.Tick)
	}

	c.cleanupFrom(oldCurrent)
	log.Debugf("checkpointer: loaded checkpoint %d (tick %d)", id, target.Tick)
	return nil
}

// Delete tombstones id: the head and the current checkpoint can never
// be deleted. Chain-cleanup then runs starting at the tombstoned node
// (spec §4.3).
func (c *Checkpointer) Delete(id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.arena[id]
	if !ok || node.IsTombstoned() {
		return ckpterrors.ErrUnknownCheckpoint
	}
	if id == c.headID || id == c.current {
		return ckpterrors.ErrCannotDelete
	}

	node.Tombstone()
	c.liveCount--
	c.deadCount++

	c.cleanupFrom(id)
	return nil
}

// Has reports whether id names a live (non-tombstoned) checkpoint.
func (c *Checkpointer) Has(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.arena[id]
	return ok && !n.IsTombstoned()
}

// Get implements checkpoint.Arena for external callers that need a
// single lookup (e.g. diagnostics); it takes the checkpointer's lock.
func (c *Checkpointer) Get(id uint64) (*checkpoint.Checkpoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.arena[id]
	return n, ok
}

// CheckpointsAt returns, in ascending order, the ids of all live
// checkpoints created at the given tick.
func (c *Checkpointer) CheckpointsAt(tick uint64) []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []uint64
	for id, n := range c.arena {
		if !n.IsTombstoned() && n.Tick == tick {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AllCheckpoints returns every live checkpoint id, sorted ascending.
func (c *Checkpointer) AllCheckpoints() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint64, 0, len(c.arena))
	for id, n := range c.arena {
		if !n.IsTombstoned() {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NextIDs returns the live children of id.
func (c *Checkpointer) NextIDs(id uint64) ([]uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.arena[id]
	if !ok {
		return nil, ckpterrors.ErrUnknownCheckpoint
	}
	var out []uint64
	for _, ch := range n.NextIDs() {
		if chNode, ok := c.arena[ch]; ok && !chNode.IsTombstoned() {
			out = append(out, ch)
		}
	}
	return out, nil
}

// PrevID returns the raw parent id, which may be a tombstoned-but-not-
// yet-freed node still required for restore-chain walking.
func (c *Checkpointer) PrevID(id uint64) (uint64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.arena[id]
	if !ok {
		return 0, false, ckpterrors.ErrUnknownCheckpoint
	}
	prev, has := n.PrevID()
	return prev, has, nil
}

// ChainEntry is one rendered element of Chain(id): tombstoned nodes
// are rendered with a placeholder (their DeletedID), per spec §4.3.
type ChainEntry struct {
	ID         uint64
	Tombstoned bool
	DeletedID  uint64
	Tick       uint64
	IsSnapshot bool
}

// Chain renders the checkpoint history from head down to id,
// inclusive, with tombstoned nodes rendered as placeholders.
func (c *Checkpointer) Chain(id uint64) ([]ChainEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hist, err := checkpoint.History(arenaView{c}, id)
	if err != nil {
		return nil, err
	}
	out := make([]ChainEntry, len(hist))
	for i, n := range hist {
		e := ChainEntry{Tick: n.Tick, IsSnapshot: n.IsSnapshot}
		if n.IsTombstoned() {
			e.Tombstoned = true
			e.DeletedID, _ = n.DeletedID()
		} else {
			e.ID = n.ID()
		}
		out[i] = e
	}
	return out, nil
}

// RenderChain formats Chain(id) as a human-readable one-line-per-node
// dump (oldest ancestor first), grounded on
// FastCheckpointer.hpp's dumpAllCheckpoints-style diagnostic text
// (SPEC_FULL §D.1). Intended for operator tooling, not machine parsing.
func (c *Checkpointer) RenderChain(id uint64) (string, error) {
	entries, err := c.Chain(id)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, e := range entries {
		if e.Tombstoned {
			fmt.Fprintf(&b, "tick=%-8d <deleted, was id=%d>\n", e.Tick, e.DeletedID)
			continue
		}
		kind := "delta"
		if e.IsSnapshot {
			kind = "snapshot"
		}
		fmt.Fprintf(&b, "tick=%-8d id=%-6d %s\n", e.Tick, e.ID, kind)
	}
	return b.String(), nil
}

// FindLatestAtOrBefore returns the latest live checkpoint at or before
// tick, searching the PrevID chain starting at from.
func (c *Checkpointer) FindLatestAtOrBefore(tick uint64, from uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := from
	for {
		n, ok := c.arena[cur]
		if !ok {
			return 0, ckpterrors.ErrUnknownCheckpoint
		}
		if !n.IsTombstoned() && n.Tick <= tick {
			return cur, nil
		}
		prev, has := n.PrevID()
		if !has {
			return 0, ckpterrors.ErrUnknownCheckpoint
		}
		cur = prev
	}
}

// DistanceToPrevSnapshot returns 0 if id is itself a snapshot, else 1
// plus the distance of its parent.
func (c *Checkpointer) DistanceToPrevSnapshot(id uint64) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return checkpoint.DistanceToPrevSnapshot(arenaView{c}, id)
}

// Current returns the id of the current checkpoint.
func (c *Checkpointer) Current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Head returns the id of the head checkpoint and whether one exists.
func (c *Checkpointer) Head() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.headID, c.hasHead
}

// Sweep retries chain-cleanup for every tombstoned checkpoint still
// in the arena. Delete and Load already trigger cleanup inline; Sweep
// exists for the periodic maintenance job to catch nodes whose
// eligibility changed as a side effect of cleanup starting from a
// different branch (spec §4.3's cleanup is a local walk up one
// parent chain, so a sibling branch's deletion can free a node this
// walk never revisited).
func (c *Checkpointer) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var tombstoned []uint64
	for id, n := range c.arena {
		if n.IsTombstoned() {
			tombstoned = append(tombstoned, id)
		}
	}
	for _, id := range tombstoned {
		if _, ok := c.arena[id]; ok {
			c.cleanupFrom(id)
		}
	}
}

// TotalBytes sums the stored payload size of every checkpoint still
// held in the arena, tombstoned ones included, grounded on original_source's total_memory_use accounting
// (SPEC_FULL §D.2).
func (c *Checkpointer) TotalBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, node := range c.arena {
		n += node.ByteSize()
	}
	return n
}

// arenaView adapts *Checkpointer to checkpoint.Arena without
// re-acquiring the (already-held) mutex.
type arenaView struct{ c *Checkpointer }

func (v arenaView) Get(id uint64) (*checkpoint.Checkpoint, bool) {
	n, ok := v.c.arena[id]
	return n, ok
}
