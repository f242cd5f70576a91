// Package intervalwindow implements IntervalWindow (spec §4.6): a
// sliding tick window over the event interval store, backed by
// internal/intervalskiplist and fed asynchronously by a background
// worker so that stabbing queries near the current active cycle don't
// block on disk I/O. Grounded on
// original_source's IntervalWindow.hpp for the window-maintenance
// state machine (the window_L_==0/else branches of maintainInterval_,
// collapsed here into one branch structure since Go's unsigned
// arithmetic hazards are handled by subOrZero rather than by
// duplicating the rollover-guard ladder). Per spec §9's design note,
// the polled loading_Hold_ boolean is replaced with a sync.Cond
// rendezvous, grounded on the teacher's pkg/lrucache/cache.go
// wait/broadcast idiom; the single mutex guarding iarray/isl is
// exactly what spec §4.6's "Threads" paragraph calls for.
package intervalwindow

import (
	"sync"
	"time"

	"github.com/sparcians/map-checkpoint/internal/intervalskiplist"
	"github.com/sparcians/map-checkpoint/internal/recordreader"
	"github.com/sparcians/map-checkpoint/pkg/log"
)

// RecordReader is the external collaborator (spec §6) the background
// worker replays through during a window load. recordreader.Reader
// satisfies this.
type RecordReader interface {
	ReadWindow(left, right uint64, fn func(recordreader.Record) error) error
}

// Config holds the window's tuning knobs (spec §3, §4.6).
type Config struct {
	OffsetL, OffsetR uint64
	LoadL, LoadR     uint64
	LongEventCheck   uint64
	PollInterval     time.Duration
}

type entry struct {
	iv  *intervalskiplist.Interval
	rec recordreader.Record
}

// Window maintains the buffered tick range around a user-updated
// active cycle (spec §3 "IntervalWindow state"). Not safe to copy
// after first use.
type Window struct {
	reader RecordReader
	cfg    Config

	mu          sync.Mutex
	cond        *sync.Cond
	active      uint64
	windowL     uint64
	windowR     uint64
	loadingHold bool
	maintainRun bool

	isl        *intervalskiplist.SkipList
	iarray     []*entry
	byInterval map[*intervalskiplist.Interval]recordreader.Record

	wg sync.WaitGroup
}

// New constructs a Window. It does not start the background worker or
// perform the initial load; call Start for that.
func New(reader RecordReader, cfg Config, seed int64) *Window {
	w := &Window{
		reader:     reader,
		cfg:        cfg,
		isl:        intervalskiplist.New(seed),
		byInterval: map[*intervalskiplist.Interval]recordreader.Record{},
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func subOrZero(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

// setWindowsLocked recomputes window_L/window_R from active and the
// configured offsets, clamping window_L at 0 (spec §3).
func (w *Window) setWindowsLocked() {
	w.windowL = subOrZero(w.active, w.cfg.OffsetL)
	w.windowR = w.active + w.cfg.OffsetR
}

func (w *Window) insertEntryLocked(rec recordreader.Record) {
	iv := &intervalskiplist.Interval{Left: rec.StartTick, Right: rec.EndTick}
	w.isl.Insert(iv)
	w.iarray = append(w.iarray, &entry{iv: iv, rec: rec})
	w.byInterval[iv] = rec
}

// generateWindowLocked asks the external reader to replay every
// interval ending in (left, right] and inserts each into iarray/isl
// (spec §4.6 generate_window).
func (w *Window) generateWindowLocked(left, right uint64) error {
	return w.reader.ReadWindow(left, right, func(rec recordreader.Record) error {
		w.insertEntryLocked(rec)
		return nil
	})
}

// trimLocked removes any interval no longer overlapping
// [windowL, windowR] from both iarray and the skip list (spec §4.6
// trim).
func (w *Window) trimLocked() {
	kept := w.iarray[:0]
	for _, e := range w.iarray {
		if e.iv.Right < w.windowL || e.iv.Left > w.windowR {
			w.isl.Remove(e.iv)
			delete(w.byInterval, e.iv)
			continue
		}
		kept = append(kept, e)
	}
	w.iarray = kept
}

func (w *Window) clearListLocked() {
	for _, e := range w.iarray {
		w.isl.Remove(e.iv)
	}
	w.iarray = nil
	w.byInterval = map[*intervalskiplist.Interval]recordreader.Record{}
}

// stepLocked is one pass of the background maintenance loop (spec
// §4.6): depending on where active sits relative to the current
// window, it does a full reload, a one-sided slide, or nothing, then
// always trims.
func (w *Window) stepLocked() error {
	oldL, oldR := w.windowL, w.windowR
	var err error

	switch {
	case w.active < oldL:
		// entirely left of the window: full reload.
		w.setWindowsLocked()
		err = w.generateWindowLocked(w.windowL, w.windowR+w.cfg.LongEventCheck)
	case w.active <= oldL+w.cfg.LoadL:
		// inside the left load band: slide left, loading the newly
		// exposed strip (new windowL, old windowL].
		loadL := subOrZero(w.active, w.cfg.OffsetL)
		w.setWindowsLocked()
		err = w.generateWindowLocked(loadL, oldL)
	case w.active < subOrZero(oldR, w.cfg.LoadR):
		// dead center: nothing to load.
	case w.active < oldR:
		// inside the right load band: slide right, loading the newly
		// exposed strip (old windowR, new windowR].
		w.setWindowsLocked()
		err = w.generateWindowLocked(oldR, w.windowR)
	default:
		// at or beyond the window's right edge: full reload.
		w.setWindowsLocked()
		err = w.generateWindowLocked(w.windowL, w.windowR+w.cfg.LongEventCheck)
	}

	w.trimLocked()
	return err
}

// Start performs the initial window load and launches the background
// maintenance worker.
func (w *Window) Start() error {
	w.mu.Lock()
	w.maintainRun = true
	w.setWindowsLocked()
	err := w.generateWindowLocked(w.windowL, w.windowR+w.cfg.LongEventCheck)
	w.mu.Unlock()
	if err != nil {
		return err
	}

	w.wg.Add(1)
	go w.maintainLoop()
	return nil
}

// Stop signals the background worker to exit and waits for it, per
// spec §5's cancellation contract (set maintain_run false, join).
func (w *Window) Stop() {
	w.mu.Lock()
	w.maintainRun = false
	w.cond.Broadcast()
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Window) maintainLoop() {
	defer w.wg.Done()
	for {
		w.mu.Lock()
		if !w.maintainRun {
			w.clearListLocked()
			w.loadingHold = false
			w.cond.Broadcast()
			w.mu.Unlock()
			return
		}
		if err := w.stepLocked(); err != nil {
			log.Errorf("intervalwindow: background window load failed: %v", err)
		}
		w.loadingHold = false
		w.cond.Broadcast()
		w.mu.Unlock()
		time.Sleep(w.cfg.PollInterval)
	}
}

// StabbingQuery updates the active cycle to tick and returns every
// transaction record whose interval covers it (spec §4.6). If tick
// falls outside the current window, the call blocks until the
// background worker has loaded a window that covers it.
func (w *Window) StabbingQuery(tick uint64) []recordreader.Record {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.active = tick
	if tick < w.windowL || tick > w.windowR {
		w.loadingHold = true
		w.cond.Broadcast()
		for w.loadingHold && w.maintainRun {
			w.cond.Wait()
		}
	}

	ivs := w.isl.FindIntervals(tick)
	recs := make([]recordreader.Record, 0, len(ivs))
	for _, iv := range ivs {
		if rec, ok := w.byInterval[iv]; ok {
			recs = append(recs, rec)
		}
	}
	return recs
}

// Bounds reports the current [windowL, windowR] range, for
// diagnostics and tests.
func (w *Window) Bounds() (uint64, uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.windowL, w.windowR
}

// Len reports how many intervals are currently buffered in iarray.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.iarray)
}
