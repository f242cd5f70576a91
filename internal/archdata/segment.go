package archdata

import "github.com/sparcians/map-checkpoint/pkg/ckpterrors"

// SegmentInit replays a segment's own initial state into its backing
// bytes, beyond the archdata-wide fill pattern. Called by Reset().
type SegmentInit func(dst []byte)

// Segment is a logical sub-region descriptor: a size, an optional
// parent segment id (to be laid out inside another) and an optional
// subset offset. Per spec §9's design note, this replaces the
// ArchDataSegment-as-base-class-of-DataView inheritance with plain
// composition: a Segment is a descriptor, and callers borrow the byte
// slice via ArchData.SegmentView.
type Segment struct {
	Name         string
	Size         uint64
	Parent       string // "" for a root segment
	SubsetOffset *uint64
	Init         SegmentInit

	// Offset is assigned by Layout; zero until then.
	Offset uint64
}

// RegisterSegment adds seg to the archdata's segment vector. Layout is
// idempotent and one-shot, so all segments must be registered before
// the first call to Layout; registering after it fails.
func (a *ArchData) RegisterSegment(seg Segment) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.laidOut {
		return &ckpterrors.LayoutConflict{Segment: seg.Name, Reason: "archdata already laid out"}
	}
	if _, dup := a.segByName[seg.Name]; dup {
		return &ckpterrors.LayoutConflict{Segment: seg.Name, Reason: "duplicate segment id"}
	}
	a.segments = append(a.segments, seg)
	// append may have moved the backing array; re-point every entry.
	for i := range a.segments {
		a.segByName[a.segments[i].Name] = &a.segments[i]
	}
	return nil
}

// Layout assigns every registered segment an absolute offset such
// that root segments are word-aligned, no segment straddles a line
// boundary, and subsets lie fully within their parent at
// parent.Offset + SubsetOffset (spec §4.1). It is idempotent and may
// only meaningfully run once; subsequent calls are no-ops.
//
// Subset segments must be registered after the parent they reference.
func (a *ArchData) Layout() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.laidOut {
		return nil
	}

	offset := uint64(0)
	for i := range a.segments {
		seg := &a.segments[i]

		if seg.Parent == "" {
			if rem := offset % wordSize; rem != 0 {
				offset += wordSize - rem
			}
			if a.lineSize > 0 && seg.Size > 0 {
				lineStart := offset >> a.logLine
				lineEnd := (offset + seg.Size - 1) >> a.logLine
				if lineStart != lineEnd {
					offset = (lineStart + 1) << a.logLine
				}
				if seg.Size > a.lineSize {
					return &ckpterrors.LayoutConflict{Segment: seg.Name, Reason: "segment exceeds line"}
				}
			}
			seg.Offset = offset
			offset += seg.Size
			continue
		}

		parent, ok := a.segByName[seg.Parent]
		if !ok || parent == seg {
			return &ckpterrors.LayoutConflict{Segment: seg.Name, Reason: "subset of unknown parent"}
		}
		so := uint64(0)
		if seg.SubsetOffset != nil {
			so = *seg.SubsetOffset
		}
		if so+seg.Size > parent.Size {
			return &ckpterrors.LayoutConflict{Segment: seg.Name, Reason: "segment exceeds parent"}
		}
		abs := parent.Offset + so
		if a.lineSize > 0 && seg.Size > 0 {
			lineStart := abs >> a.logLine
			lineEnd := (abs + seg.Size - 1) >> a.logLine
			if lineStart != lineEnd {
				return &ckpterrors.LayoutConflict{Segment: seg.Name, Reason: "segment exceeds line"}
			}
		}
		seg.Offset = abs
	}

	if offset > a.regionSize {
		a.regionSize = offset
	}
	a.laidOut = true
	return nil
}

// GrowRegion raises the region size to at least size; used when an
// archdata has no statically registered segments and is sized purely
// by its caller (e.g. a toy simulator memory). Must be called before
// Layout.
func (a *ArchData) GrowRegion(size uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if size > a.regionSize {
		a.regionSize = size
	}
}
