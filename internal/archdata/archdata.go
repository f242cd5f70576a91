// Package archdata implements the byte-addressable, line-paginated
// memory region that is the foundation of all checkpoint data (spec
// §3, §4.1). It is grounded on original_source's ArchData.hpp /
// ArchDataSegment.hpp for semantics, and on the teacher's
// internal/memorystore/level.go and buffer.go for the Go idiom of a
// lock-protected sparse map of fixed-size storage units backed by a
// sync.Pool.
package archdata

import (
	"encoding/binary"
	"math/bits"
	"sync"

	"github.com/sparcians/map-checkpoint/pkg/ckpterrors"
	"github.com/sparcians/map-checkpoint/pkg/ckptio"
	"github.com/sparcians/map-checkpoint/pkg/log"
)

// wordSize is the host-word alignment unit for root segments (§4.1).
const wordSize = 8

// InitFill describes the phase-aligned fill pattern a freshly
// allocated line (or a reset archdata) is seeded with. Width must be
// 1, 2, 4 or 8.
type InitFill struct {
	Width   int
	Pattern uint64
}

// ArchData is a contiguous, line-paginated byte region. A lineSize of
// 0 means the whole region is a single unbounded line.
type ArchData struct {
	mu sync.Mutex

	Name     string
	lineSize uint64
	logLine  uint // valid iff lineSize > 0; lineSize == 1<<logLine
	initFill InitFill

	segments   []Segment
	segByName  map[string]*Segment
	laidOut    bool
	regionSize uint64

	lines map[uint64]*Line
	order []uint64

	linePool sync.Pool
}

// New creates an ArchData with the given line size (0 for a single
// unbounded line, otherwise a power of two) and initial-fill pattern.
func New(name string, lineSize uint64, fill InitFill) *ArchData {
	if lineSize != 0 && lineSize&(lineSize-1) != 0 {
		log.Fatalf("archdata %q: line size %d is not a power of two", name, lineSize)
	}
	a := &ArchData{
		Name:      name,
		lineSize:  lineSize,
		initFill:  fill,
		segByName: map[string]*Segment{},
		lines:     map[uint64]*Line{},
	}
	if lineSize != 0 {
		a.logLine = uint(bits.TrailingZeros64(lineSize))
	}
	a.linePool = sync.Pool{New: func() any { return &Line{} }}
	return a
}

// RegionSize returns the fully laid-out size of the region. Valid only
// after Layout() has run.
func (a *ArchData) RegionSize() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.regionSize
}

func (a *ArchData) lineIndex(offset uint64) uint64 {
	if a.lineSize == 0 {
		return 0
	}
	return offset >> a.logLine
}

func (a *ArchData) lineStart(idx uint64) uint64 {
	if a.lineSize == 0 {
		return 0
	}
	return idx << a.logLine
}

func (a *ArchData) lineSizeFor(idx uint64) uint32 {
	if a.lineSize == 0 {
		return uint32(a.regionSize)
	}
	start := a.lineStart(idx)
	remaining := a.regionSize - start
	if remaining < a.lineSize {
		return uint32(remaining)
	}
	return uint32(a.lineSize)
}

// GetLine returns (allocating if needed) the line containing offset.
func (a *ArchData) GetLine(offset uint64) (*Line, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if offset >= a.regionSize {
		return nil, ckpterrors.ErrOutOfRange
	}
	idx := a.lineIndex(offset)
	if ln, ok := a.lines[idx]; ok {
		return ln, nil
	}
	return a.allocLineLocked(idx), nil
}

// TryGetLine returns the line containing offset without allocating.
func (a *ArchData) TryGetLine(offset uint64) (*Line, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if offset >= a.regionSize {
		return nil, false
	}
	ln, ok := a.lines[a.lineIndex(offset)]
	return ln, ok
}

func (a *ArchData) allocLineLocked(idx uint64) *Line {
	size := a.lineSizeFor(idx)
	ln := a.linePool.Get().(*Line)
	if cap(ln.bytes) < int(size) {
		ln.bytes = make([]byte, size)
	} else {
		ln.bytes = ln.bytes[:size]
	}
	ln.index = idx
	ln.offset = a.lineStart(idx)
	ln.size = size
	ln.dirty = false
	fillBuffer(ln.bytes, ln.offset, a.initFill)

	a.lines[idx] = ln
	a.order = append(a.order, idx)
	return ln
}

func fillBuffer(buf []byte, startOffset uint64, fill InitFill) {
	w := fill.Width
	if w != 1 && w != 2 && w != 4 && w != 8 {
		w = 1
	}
	var pat [8]byte
	switch w {
	case 1:
		pat[0] = byte(fill.Pattern)
	case 2:
		binary.LittleEndian.PutUint16(pat[:2], uint16(fill.Pattern))
	case 4:
		binary.LittleEndian.PutUint32(pat[:4], uint32(fill.Pattern))
	case 8:
		binary.LittleEndian.PutUint64(pat[:8], fill.Pattern)
	}
	for i := range buf {
		phase := (startOffset + uint64(i)) % uint64(w)
		buf[i] = pat[phase]
	}
}

// Clean deallocates every line, returning poolable ones to the pool.
func (a *ArchData) Clean() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cleanLocked()
}

func (a *ArchData) cleanLocked() {
	for _, idx := range a.order {
		ln := a.lines[idx]
		if ln != nil {
			a.linePool.Put(ln)
		}
	}
	a.lines = map[uint64]*Line{}
	a.order = a.order[:0]
}

// Reset returns all memory to the initial-fill pattern and replays
// every registered segment's initializer (§4.1 invariant e).
func (a *ArchData) Reset() error {
	a.mu.Lock()
	a.cleanLocked()
	a.mu.Unlock()

	for i := range a.segments {
		seg := &a.segments[i]
		if seg.Init == nil {
			continue
		}
		view, err := a.segmentView(seg)
		if err != nil {
			return err
		}
		seg.Init(view)
	}
	return nil
}

// segmentView returns the (allocating) byte slice backing seg. Layout
// guarantees a segment never straddles a line boundary, so a single
// GetLine call suffices.
func (a *ArchData) segmentView(seg *Segment) ([]byte, error) {
	ln, err := a.GetLine(seg.Offset)
	if err != nil {
		return nil, err
	}
	lo := seg.Offset - ln.offset
	return ln.bytes[lo : lo+seg.Size], nil
}

// SegmentView is the public accessor behind DataView-style typed
// access composed over a named segment (spec §9 design note:
// composition over the ArchDataSegment/DataView inheritance).
func (a *ArchData) SegmentView(name string) ([]byte, error) {
	seg, ok := a.segByName[name]
	if !ok {
		return nil, ckpterrors.ErrOutOfRange
	}
	return a.segmentView(seg)
}

// Save implements spec §4.1's save(): every dirty line, in allocation
// order, through sink, then clears dirty bits.
func (a *ArchData) Save(sink ckptio.Sink) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, idx := range a.order {
		ln := a.lines[idx]
		if !ln.dirty {
			continue
		}
		if err := sink.BeginLine(idx); err != nil {
			return err
		}
		if err := sink.WriteLineBytes(ln.bytes); err != nil {
			return err
		}
		ln.dirty = false
	}
	return sink.EndArchData()
}

// SaveAll implements save_all(): every allocated line regardless of
// dirty bit, then clears dirty bits.
func (a *ArchData) SaveAll(sink ckptio.Sink) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, idx := range a.order {
		ln := a.lines[idx]
		if err := sink.BeginLine(idx); err != nil {
			return err
		}
		if err := sink.WriteLineBytes(ln.bytes); err != nil {
			return err
		}
		ln.dirty = false
	}
	return sink.EndArchData()
}

// Restore implements restore(): overlay src's lines onto the existing
// region without clearing it first.
func (a *ArchData) Restore(src ckptio.Source) error {
	return a.restore(src, false)
}

// RestoreAll implements restore_all(): clear the region first, then
// apply src's lines.
func (a *ArchData) RestoreAll(src ckptio.Source) error {
	return a.restore(src, true)
}

func (a *ArchData) restore(src ckptio.Source, clearFirst bool) error {
	if err := src.PrepareForLoad(); err != nil {
		return err
	}
	if clearFirst {
		a.mu.Lock()
		a.cleanLocked()
		a.mu.Unlock()
	}
	for {
		idx, ok, err := src.NextRestoreLine()
		if err != nil {
			return ckpterrors.ErrCorruptRestore
		}
		if !ok {
			return nil
		}
		a.mu.Lock()
		ln, exists := a.lines[idx]
		if !exists {
			ln = a.allocLineLocked(idx)
		}
		if err := src.CopyLineBytes(ln.bytes); err != nil {
			a.mu.Unlock()
			return err
		}
		ln.dirty = false
		a.mu.Unlock()
	}
}
