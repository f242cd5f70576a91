package ckptdb

import "sync"

// windowCache is the in-memory window cache of spec §4.4: a FIFO of
// recently-created windows, the ids they hold, and (once persisted)
// the database row id backing them. Head and current are never
// evicted regardless of FIFO order; every other id is eligible for
// eviction once its window has been durably persisted.
//
// Adapted from pkg/lrucache/cache.go's single-mutex-guards-everything
// shape: the teacher's cache evicts by TTL/size across independent
// keys, but a window cache evicts by *completion* (a window is
// atomic — persisted and evicted as one unit, never partially), so
// the doubly-linked LRU list is replaced by a plain FIFO queue of
// windows and the generic eviction loop by one that skips any id
// pinned as head or current.
type windowCache struct {
	mu sync.Mutex

	maxWindows int
	order      []uint64 // window ids (snapshot ids), oldest first
	byWindow   map[uint64]*cachedWindow

	pinned map[uint64]bool // head, current
}

type cachedWindow struct {
	ids       []uint64
	persisted bool
	rowID     int64 // valid iff persisted
}

func newWindowCache(maxWindows int) *windowCache {
	return &windowCache{
		maxWindows: maxWindows,
		byWindow:   map[uint64]*cachedWindow{},
		pinned:     map[uint64]bool{},
	}
}

// setPinned replaces the pin set (head, current) used to veto
// eviction of a window regardless of FIFO position.
func (c *windowCache) setPinned(ids ...uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinned = map[uint64]bool{}
	for _, id := range ids {
		c.pinned[id] = true
	}
}

// open records a new window (keyed by its leading snapshot id) as
// in-flight: not yet persisted, never eligible for eviction.
func (c *windowCache) open(snapshotID uint64, ids []uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = append(c.order, snapshotID)
	c.byWindow[snapshotID] = &cachedWindow{ids: ids}
}

// markPersisted records the database row id a window was written to
// and evicts older, already-persisted, unpinned windows so the cache
// only keeps the configured number of windows in memory at once. It
// returns the ids that became eligible for eviction from the live
// checkpoint arena.
func (c *windowCache) markPersisted(snapshotID uint64, rowID int64) []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.byWindow[snapshotID]
	if !ok {
		return nil
	}
	w.persisted = true
	w.rowID = rowID

	var evicted []uint64
	kept := make([]uint64, 0, len(c.order))
	excess := len(c.order) - c.maxWindows
	for _, candidate := range c.order {
		cw, ok := c.byWindow[candidate]
		if excess <= 0 || !ok || !cw.persisted || c.anyPinned(cw.ids) {
			kept = append(kept, candidate)
			continue
		}
		evicted = append(evicted, cw.ids...)
		delete(c.byWindow, candidate)
		excess--
	}
	c.order = kept
	return evicted
}

func (c *windowCache) anyPinned(ids []uint64) bool {
	for _, id := range ids {
		if c.pinned[id] {
			return true
		}
	}
	return false
}

// lookup reports whether id is known to belong to a persisted window
// still tracked by the cache, and if so its database row id.
func (c *windowCache) lookup(id uint64) (rowID int64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.byWindow {
		if !w.persisted {
			continue
		}
		for _, member := range w.ids {
			if member == id {
				return w.rowID, true
			}
		}
	}
	return 0, false
}
