package intervalskiplist

// placeMarkers walks the ascending-then-descending path between left
// and right, placing iv on the highest edge whose span it still fully
// covers (spec §4.5's place_markers, ported near-verbatim from
// IntervalSkipList.hpp's placeMarkers_, which carries no reported
// defect).
func (s *SkipList) placeMarkers(left, right *node, iv *Interval) {
	x := left
	if iv.Contains(x.key) {
		x.eqMarkers.insert(iv)
	}
	i := 0
	for x.forward[i] != nil && iv.ContainsInterval(x.key, x.forward[i].key) {
		for i != x.level()-1 && x.forward[i+1] != nil && iv.ContainsInterval(x.key, x.forward[i+1].key) {
			i++
		}
		if x.forward[i] != nil {
			x.markers[i].insert(iv)
			x = x.forward[i]
			if iv.Contains(x.key) {
				x.eqMarkers.insert(iv)
			}
		}
	}
	for x.key != right.key {
		for i != 0 && (x.forward[i] == nil || !iv.ContainsInterval(x.key, x.forward[i].key)) {
			i--
		}
		x.markers[i].insert(iv)
		x = x.forward[i]
		if iv.Contains(x.key) {
			x.eqMarkers.insert(iv)
		}
	}
}

// removeMarkersForInterval is placeMarkers' inverse, used only while
// the topology around left/right is still intact (i.e. before any
// node is spliced out for reaching a zero owner count). Unlike
// IntervalSkipList.hpp's removeMarkers_, the walk's termination test
// compares key equality directly instead of calling a neq method that
// was never defined.
func (s *SkipList) removeMarkersForInterval(left, right *node, iv *Interval) {
	x := left
	if iv.Contains(x.key) {
		x.eqMarkers.remove(iv)
	}
	i := 0
	for x.forward[i] != nil && iv.ContainsInterval(x.key, x.forward[i].key) {
		for i != x.level()-1 && x.forward[i+1] != nil && iv.ContainsInterval(x.key, x.forward[i+1].key) {
			i++
		}
		if x.forward[i] != nil {
			x.markers[i].remove(iv)
			x = x.forward[i]
			if iv.Contains(x.key) {
				x.eqMarkers.remove(iv)
			}
		}
	}
	for x.key != right.key {
		for i != 0 && (x.forward[i] == nil || !iv.ContainsInterval(x.key, x.forward[i].key)) {
			i--
		}
		x.markers[i].remove(iv)
		x = x.forward[i]
		if iv.Contains(x.key) {
			x.eqMarkers.remove(iv)
		}
	}
}

// adjustMarkersOnInsert repairs markers after a brand-new node x has
// just been spliced into the skip list with predecessors update[]
// (spec §4.5's "Insert endpoint adjustment"), in O(x.level()) instead
// of a full rebuild. Every level i < x.level() used to be a single
// edge update[i] -> (x's successor); x's insertion splits that edge
// in two. A marker on the original edge satisfied
// iv.ContainsInterval(update[i].key, successor.key); since
// update[i].key <= x.key <= successor.key, ContainsInterval is
// monotonic under splitting a covered range at an interior point, so
// every such marker remains valid, unchanged, on both halves -- it
// simply needs to be copied onto x's new outgoing edge at the same
// level (update[i]'s own copy, now representing the shorter
// update[i]->x edge, is untouched). No promotion is possible here:
// splitting an edge can only ever shrink the spans markers already
// cover, never widen one enough to newly qualify for a higher level,
// so unlike IntervalSkipList.hpp's adjustMarkersOnInsert_ this pass
// never needs a promoted-marker carry set. The same argument shows
// every copied marker also covers x.key itself, so x.eq_markers is
// simply their union (spec §4.5: "eq_markers is populated with the
// union of markers on every level at x").
func (s *SkipList) adjustMarkersOnInsert(x *node, update []*node) {
	for i := 0; i < x.level(); i++ {
		pred := update[i]
		for iv := range pred.markers[i] {
			x.markers[i].insert(iv)
			x.eqMarkers.insert(iv)
		}
	}
}

// stripAffectedMarkers collects every interval marker touching node n
// --  on n's own outgoing edges, on the incoming edge from each of n's
// predecessors update[], and in n.eq_markers -- and removes each one
// from its current placement while n is still part of the topology.
// Intervals untouched by n's removal are never visited, so this costs
// O(markers adjacent to n), not O(live intervals) (spec §4.5 Remove's
// "adjusting any markers that must be demoted"). The caller splices n
// out immediately after this returns, then re-places every returned
// marker fresh via placeMarkers against the now-smaller topology --
// composing the two already-correct placeMarkers/removeMarkersForInterval
// primitives instead of replaying the original's buggy
// promote/demote bookkeeping (spec §9's Open Question).
func (s *SkipList) stripAffectedMarkers(n *node, update []*node) markerSet {
	affected := newMarkerSet()
	for i := 0; i < n.level(); i++ {
		if update[i].forward[i] != n {
			continue
		}
		affected.unionFrom(update[i].markers[i])
		affected.unionFrom(n.markers[i])
	}
	affected.unionFrom(n.eqMarkers)

	for iv := range affected {
		left, ok := s.nodes[iv.Left]
		if !ok {
			panic("intervalskiplist: inconsistent marker set during removal")
		}
		right, ok := s.nodes[iv.Right]
		if !ok {
			panic("intervalskiplist: inconsistent marker set during removal")
		}
		s.removeMarkersForInterval(left, right, iv)
	}
	return affected
}
