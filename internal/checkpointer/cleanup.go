package checkpointer

// cleanupFrom walks the parent chain upward from id, physically
// freeing any tombstoned node that no live checkpoint still depends on
// for its restore chain (spec §4.3). It stops the first time it finds
// a node that is either live or a still load-bearing delta; a
// load-bearing tombstoned snapshot is kept and the walk moves on to
// its parent.
//
// Called with c.mu held.
func (c *Checkpointer) cleanupFrom(id uint64) {
	cur := id
	for {
		node, ok := c.arena[cur]
		if !ok {
			return
		}

		if !node.IsTombstoned() {
			// A live node is never freed; nothing above it can be freed
			// either, since a live delta still needs its whole chain.
			return
		}

		if c.hasLiveDependent(cur) {
			if node.IsSnapshot {
				// The snapshot survives to anchor its tombstoned
				// dependents' restore chains, but its own ancestors may
				// now be dead weight; keep walking up.
				prev, has := node.PrevID()
				if !has {
					return
				}
				cur = prev
				continue
			}
			// A tombstoned delta with a live dependent can never be
			// freed: its bytes are load-bearing for every descendant's
			// restore chain until that descendant is itself freed.
			return
		}

		// No live checkpoint's restore chain needs this node any more.
		// Detach it from the tree, reparenting its own children (each
		// either tombstoned or a snapshot, else hasLiveDependent would
		// have been true) onto its parent.
		prev, hasPrev := node.PrevID()
		for _, childID := range node.NextIDs() {
			if child, ok := c.arena[childID]; ok {
				child.SetPrev(prev, hasPrev)
			}
		}
		if hasPrev {
			if parent, ok := c.arena[prev]; ok {
				parent.RemoveNext(cur)
				for _, childID := range node.NextIDs() {
					parent.AddNext(childID)
				}
			}
		}

		delete(c.arena, cur)
		c.deadCount--

		if !hasPrev {
			return
		}
		cur = prev
	}
}

// hasLiveDependent reports whether any live checkpoint reachable
// through id's descendants still needs id for its restore chain. A
// snapshot child -- live or tombstoned -- is self-sufficient and
// never depends on an ancestor delta, so it ends that branch of the
// search without counting as a dependent (spec §4.3's "without
// crossing a snapshot"); this must be checked before the child's own
// tombstoned-ness, since a live snapshot descendant is still not a
// dependent of id. Only a live, non-snapshot descendant counts as a
// live dependent; a tombstoned, non-snapshot descendant still needs
// id, so the search continues through its own children.
//
// Called with c.mu held.
func (c *Checkpointer) hasLiveDependent(id uint64) bool {
	node, ok := c.arena[id]
	if !ok {
		return false
	}

	var walk func(childIDs []uint64) bool
	walk = func(childIDs []uint64) bool {
		for _, cid := range childIDs {
			child, ok := c.arena[cid]
			if !ok {
				continue
			}
			if child.IsSnapshot {
				// A snapshot child is self-sufficient on restore;
				// neither it nor anything below it depends on id.
				continue
			}
			if !child.IsTombstoned() {
				return true
			}
			if walk(child.NextIDs()) {
				return true
			}
		}
		return false
	}

	return walk(node.NextIDs())
}
