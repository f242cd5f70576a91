package checkpoint

import "github.com/sparcians/map-checkpoint/pkg/ckpterrors"

// Arena is the read-only view into the checkpoint tree that the
// delta-chain walk needs; implemented by checkpointer.Checkpointer.
type Arena interface {
	Get(id uint64) (*Checkpoint, bool)
}

// RestoreChain returns [S, d1, d2, ..., C], the stack spec §3 defines:
// S is the nearest snapshot ancestor of id (inclusive, if id is
// itself a snapshot), and d1..dk are the deltas strictly between S
// and C in creation order (oldest first).
func RestoreChain(a Arena, id uint64) ([]*Checkpoint, error) {
	var reversed []*Checkpoint
	cur := id
	for {
		c, ok := a.Get(cur)
		if !ok {
			return nil, ckpterrors.ErrUnknownCheckpoint
		}
		reversed = append(reversed, c)
		if c.IsSnapshot {
			break
		}
		prev, has := c.PrevID()
		if !has {
			// Head is always a snapshot (spec §3 invariant i); reaching
			// a node with no parent that isn't a snapshot means the
			// tree is malformed.
			return nil, ckpterrors.ErrUnknownCheckpoint
		}
		cur = prev
	}
	chain := make([]*Checkpoint, len(reversed))
	for i, c := range reversed {
		chain[len(reversed)-1-i] = c
	}
	return chain, nil
}

// History returns the full chain from head down to id, inclusive,
// for diagnostics and trace (spec §4.3 Queries: chain(id)).
func History(a Arena, id uint64) ([]*Checkpoint, error) {
	var reversed []*Checkpoint
	cur := id
	for {
		c, ok := a.Get(cur)
		if !ok {
			return nil, ckpterrors.ErrUnknownCheckpoint
		}
		reversed = append(reversed, c)
		prev, has := c.PrevID()
		if !has {
			break
		}
		cur = prev
	}
	chain := make([]*Checkpoint, len(reversed))
	for i, c := range reversed {
		chain[len(reversed)-1-i] = c
	}
	return chain, nil
}

// DistanceToPrevSnapshot is 0 if id is itself a snapshot, else 1 +
// the distance of its parent (spec §4.3's snapshot threshold policy).
func DistanceToPrevSnapshot(a Arena, id uint64) (uint32, error) {
	c, ok := a.Get(id)
	if !ok {
		return 0, ckpterrors.ErrUnknownCheckpoint
	}
	dist := uint32(0)
	for !c.IsSnapshot {
		prev, has := c.PrevID()
		if !has {
			break
		}
		dist++
		c, ok = a.Get(prev)
		if !ok {
			return 0, ckpterrors.ErrUnknownCheckpoint
		}
	}
	return dist, nil
}
