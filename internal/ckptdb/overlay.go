// Package ckptdb's DatabaseBackend wraps a checkpointer.Checkpointer
// with the optional database offload overlay of spec §4.4: windows
// (a snapshot plus the deltas taken before the next snapshot) are
// cloned, serialized, zlib-compressed and persisted by a background
// worker, after which their in-memory payload is released; load()
// transparently rehydrates a window from the database the first time
// one of its members is needed again.
package ckptdb

import (
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"

	"github.com/sparcians/map-checkpoint/internal/checkpointer"
	"github.com/sparcians/map-checkpoint/pkg/ckpterrors"
	"github.com/sparcians/map-checkpoint/pkg/ckptio"
	"github.com/sparcians/map-checkpoint/pkg/log"
)

type closingWindow struct {
	snapshotID uint64
	ids        []uint64
	ticks      []uint64
	startTick  uint64
	endTick    uint64
}

// DatabaseBackend is the spec §4.4 overlay. It must be the only thing
// that mutates its wrapped Checkpointer's lifecycle operations; code
// holding a reference to the bare Checkpointer would bypass windowing
// and defeat eviction bookkeeping.
type DatabaseBackend struct {
	ckpt  *checkpointer.Checkpointer
	db    *sqlx.DB
	cache *windowCache

	mu          sync.Mutex
	open        *openWindow
	evicted     map[uint64]bool
	pending     chan closingWindow
	workerWG    sync.WaitGroup
	flushErrors *multierror.Error
}

// New wraps ckpt with a database overlay. maxWindows bounds how many
// persisted windows the in-memory cache holds before evicting their
// payload from the live checkpointer (head and current are always
// exempt).
func New(ckpt *checkpointer.Checkpointer, db *sqlx.DB, maxWindows int) *DatabaseBackend {
	d := &DatabaseBackend{
		ckpt:    ckpt,
		db:      db,
		cache:   newWindowCache(maxWindows),
		evicted: map[uint64]bool{},
		pending: make(chan closingWindow, 16),
	}
	d.workerWG.Add(1)
	go d.worker()
	return d
}

// CreateHead delegates to the wrapped checkpointer and starts the
// first window.
func (d *DatabaseBackend) CreateHead() (uint64, error) {
	id, err := d.ckpt.CreateHead()
	if err != nil {
		return 0, err
	}
	d.track(id, true)
	return id, nil
}

// CreateCheckpoint delegates to the wrapped checkpointer, closing the
// previous window (and handing it to the background pipeline) if the
// new checkpoint is a snapshot.
func (d *DatabaseBackend) CreateCheckpoint(forceSnapshot bool) (uint64, error) {
	id, err := d.ckpt.CreateCheckpoint(forceSnapshot)
	if err != nil {
		return 0, err
	}
	node, ok := d.ckpt.Get(id)
	if !ok {
		return id, nil
	}
	d.track(id, node.IsSnapshot)
	return id, nil
}

func (d *DatabaseBackend) track(id uint64, isSnapshot bool) {
	node, ok := d.ckpt.Get(id)
	if !ok {
		return
	}

	d.mu.Lock()
	var toClose *closingWindow
	if isSnapshot {
		if d.open != nil {
			toClose = closeWindow(d.open)
		}
		d.open = &openWindow{ids: []uint64{id}, ticks: []uint64{node.Tick}, startTick: node.Tick, endTick: node.Tick}
	} else if d.open != nil {
		d.open.ids = append(d.open.ids, id)
		d.open.ticks = append(d.open.ticks, node.Tick)
		d.open.endTick = node.Tick
	}
	d.updatePinsLocked()
	d.mu.Unlock()

	// The channel send (and the worker it unblocks) must happen
	// without d.mu held, else a full channel and a worker waiting on
	// d.mu in evict() deadlock against each other.
	if toClose != nil {
		d.cache.open(toClose.snapshotID, append([]uint64(nil), toClose.ids...))
		d.pending <- *toClose
	}
}

func (d *DatabaseBackend) updatePinsLocked() {
	head, _ := d.ckpt.Head()
	current := d.ckpt.Current()
	d.cache.setPinned(head, current)
}

// closeWindow snapshots an openWindow into the immutable value handed
// to the background pipeline.
func closeWindow(w *openWindow) *closingWindow {
	return &closingWindow{
		snapshotID: w.ids[0],
		ids:        append([]uint64(nil), w.ids...),
		ticks:      append([]uint64(nil), w.ticks...),
		startTick:  w.startTick,
		endTick:    w.endTick,
	}
}

func (d *DatabaseBackend) worker() {
	defer d.workerWG.Done()
	for cw := range d.pending {
		if err := d.persist(cw); err != nil {
			log.Errorf("ckptdb: failed to persist window %d: %v", cw.snapshotID, err)
			d.mu.Lock()
			d.flushErrors = multierror.Append(d.flushErrors, err)
			d.mu.Unlock()
			continue
		}
	}
}

func (d *DatabaseBackend) persist(cw closingWindow) error {
	payloads := make([]map[string]*ckptio.VectorLineStorage, len(cw.ids))
	for i, id := range cw.ids {
		node, ok := d.ckpt.Get(id)
		if !ok {
			continue
		}
		cloned := map[string]*ckptio.VectorLineStorage{}
		for name, storage := range node.Payload {
			cloned[name] = storage.Clone()
		}
		payloads[i] = cloned
	}

	wire := &wireWindow{
		IDs:       cw.ids,
		Ticks:     cw.ticks,
		Payloads:  payloads,
		StartTick: cw.startTick,
		EndTick:   cw.endTick,
	}
	raw, err := encodeWindow(wire)
	if err != nil {
		return err
	}
	compressed, err := zlibCompress(raw)
	if err != nil {
		return err
	}

	rowID, err := insertWindow(d.db, compressed, cw.ids, cw.startTick, cw.endTick)
	if err != nil {
		return err
	}

	toEvict := d.cache.markPersisted(cw.snapshotID, rowID)
	if len(toEvict) > 0 {
		d.evict(toEvict)
	}
	return nil
}

// evict releases the in-memory payload of ids whose window has been
// durably persisted, marking them for rehydration on next use (spec
// §4.4 invariant: only complete, persisted windows are evicted).
func (d *DatabaseBackend) evict(ids []uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		if node, ok := d.ckpt.Get(id); ok {
			node.Payload = nil
		}
		d.evicted[id] = true
	}
	log.Debugf("ckptdb: evicted %d checkpoint payloads after persist", len(ids))
}

// Load rehydrates any evicted checkpoint along id's restore chain from
// the database before delegating to the wrapped checkpointer.
func (d *DatabaseBackend) Load(id uint64) error {
	chain, err := d.ckpt.Chain(id)
	if err != nil {
		return err
	}
	for _, entry := range chain {
		if entry.Tombstoned {
			continue
		}
		if err := d.rehydrateIfNeeded(entry.ID); err != nil {
			return err
		}
	}
	err = d.ckpt.Load(id)
	d.mu.Lock()
	d.updatePinsLocked()
	d.mu.Unlock()
	return err
}

func (d *DatabaseBackend) rehydrateIfNeeded(id uint64) error {
	d.mu.Lock()
	needed := d.evicted[id]
	d.mu.Unlock()
	if !needed {
		return nil
	}

	rowID, ok := d.cache.lookup(id)
	if !ok {
		var err error
		rowID, ok, err = findWindowForCheckpoint(d.db, id)
		if err != nil {
			return err
		}
		if !ok {
			return ckpterrors.ErrUnknownCheckpoint
		}
	}

	wire, err := d.loadWindow(rowID)
	if err != nil {
		return err
	}

	d.mu.Lock()
	for i, wid := range wire.IDs {
		if node, ok := d.ckpt.Get(wid); ok {
			node.Payload = wire.Payloads[i]
		}
		delete(d.evicted, wid)
	}
	d.mu.Unlock()
	log.Debugf("ckptdb: rehydrated window %d (%d ids)", rowID, len(wire.IDs))
	return nil
}

// CheckpointsAt returns every checkpoint at tick, exactly like
// Checkpointer.CheckpointsAt for any id still resident in the live
// arena (creating/tombstoning never evicts a node's id/tick
// bookkeeping, only its payload), plus a database lookup via
// findWindowsAtTick -- the spec §4.4/§6 "checkpoints at tick t"
// range-intersection query on window_ticks -- so that a tick whose
// checkpoint no longer has a live counterpart (e.g. after a process
// restart that only has the database, not the old in-memory arena)
// is still answered from the persisted archive. Candidate windows are
// rehydrated (spec §4.4's "Query extension") just far enough to read
// back each member's recorded tick, since window_ticks only brackets
// a whole window's range, not each checkpoint's own tick.
func (d *DatabaseBackend) CheckpointsAt(tick uint64) ([]uint64, error) {
	seen := map[uint64]bool{}
	out := append([]uint64(nil), d.ckpt.CheckpointsAt(tick)...)
	for _, id := range out {
		seen[id] = true
	}

	rowIDs, err := findWindowsAtTick(d.db, tick)
	if err != nil {
		return nil, err
	}
	for _, rowID := range rowIDs {
		wire, err := d.loadWindow(rowID)
		if err != nil {
			return nil, err
		}
		for i, id := range wire.IDs {
			if wire.Ticks[i] != tick || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// TotalBytes sums the stored payload size of every checkpoint,
// resident or evicted (spec §4.4/SPEC_FULL §D.2): Checkpointer.
// TotalBytes only sees resident Payload bytes, so once any window has
// been persisted and its checkpoints' in-memory payloads released by
// evict, the bare checkpointer's own TotalBytes silently undercounts.
// This adds the compressed on-disk size of every distinct persisted
// window still backing an evicted checkpoint, deduplicated by row id
// so a multi-checkpoint window is only counted once.
func (d *DatabaseBackend) TotalBytes() (int, error) {
	total := d.ckpt.TotalBytes()

	d.mu.Lock()
	evictedIDs := make([]uint64, 0, len(d.evicted))
	for id := range d.evicted {
		evictedIDs = append(evictedIDs, id)
	}
	d.mu.Unlock()

	seenRow := map[int64]bool{}
	for _, id := range evictedIDs {
		rowID, ok := d.cache.lookup(id)
		if !ok {
			var err error
			rowID, ok, err = findWindowForCheckpoint(d.db, id)
			if err != nil {
				return 0, err
			}
			if !ok {
				continue
			}
		}
		if seenRow[rowID] {
			continue
		}
		seenRow[rowID] = true

		compressed, err := loadWindowBytes(d.db, rowID)
		if err != nil {
			return 0, err
		}
		total += len(compressed)
	}
	return total, nil
}

// loadWindow reads back and decompresses/decodes the window stored at
// rowID, shared by CheckpointsAt and rehydrateIfNeeded.
func (d *DatabaseBackend) loadWindow(rowID int64) (*wireWindow, error) {
	compressed, err := loadWindowBytes(d.db, rowID)
	if err != nil {
		return nil, err
	}
	raw, err := zlibDecompress(compressed)
	if err != nil {
		return nil, err
	}
	return decodeWindow(raw)
}

// Delete is not supported by the database overlay (spec §4.4): once a
// checkpoint's window has been handed to the pipeline it is durable,
// and partial-window tombstoning would break the portable archive's
// all-or-nothing persistence unit.
func (d *DatabaseBackend) Delete(uint64) error {
	return ckpterrors.ErrDeleteUnsupported
}

// Close flushes any open window and waits for the background pipeline
// to drain, aggregating every persist failure (spec §4.4 "on forced
// shutdown, all pending windows are flushed").
func (d *DatabaseBackend) Close() error {
	d.mu.Lock()
	var toClose *closingWindow
	if d.open != nil {
		toClose = closeWindow(d.open)
		d.open = nil
	}
	d.mu.Unlock()

	if toClose != nil {
		d.cache.open(toClose.snapshotID, append([]uint64(nil), toClose.ids...))
		d.pending <- *toClose
	}

	close(d.pending)
	d.workerWG.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.flushErrors != nil {
		return d.flushErrors.ErrorOrNil()
	}
	return nil
}
