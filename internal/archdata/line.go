package archdata

// Line is a fixed-size page within an archdata: the unit of dirty
// tracking and checkpoint granularity (spec §3). Lines are exclusively
// owned by their archdata and are recycled through a sync.Pool, so
// callers must not retain a *Line past the call that produced it.
type Line struct {
	index  uint64
	offset uint64
	size   uint32
	dirty  bool
	bytes  []byte
}

func (l *Line) Index() uint64  { return l.index }
func (l *Line) Offset() uint64 { return l.offset }
func (l *Line) Size() uint32   { return l.size }
func (l *Line) Dirty() bool    { return l.dirty }

// Bytes returns the line's backing storage directly. Writes through
// this slice do not set the dirty bit; use ReadT/WriteT for
// bounds-checked, dirty-tracking access.
func (l *Line) Bytes() []byte { return l.bytes }
