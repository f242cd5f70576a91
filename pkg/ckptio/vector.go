package ckptio

import (
	"bytes"
	"encoding/gob"

	"github.com/sparcians/map-checkpoint/pkg/ckpterrors"
)

// vectorEntry is one (index, bytes) pair in a VectorLineStorage
// stream, mirroring original_source's VectorStorage.hpp.
type vectorEntry struct {
	index uint64
	bytes []byte
}

// VectorLineStorage is the in-memory LineStorage variant named in
// spec §6: a sequence of (u64, []byte) pairs terminated by a sentinel
// empty pair, instead of the tagged byte stream FileLineStorage uses.
// It is the variant the database overlay uses to clone a checkpoint's
// payload before handing it to the compression stage, since it never
// touches disk.
type VectorLineStorage struct {
	entries []vectorEntry

	// sink state
	begun       bool
	beginIndex  uint64
	haveBegun   bool
	lastBegunOK bool

	// source state
	readPos int
}

func NewVectorLineStorage() *VectorLineStorage {
	return &VectorLineStorage{}
}

func (v *VectorLineStorage) BeginLine(index uint64) error {
	if v.haveBegun && v.beginIndex == index && !v.begunEnded() {
		return ckpterrors.ErrDuplicateBeginLine
	}
	v.begun = true
	v.haveBegun = true
	v.beginIndex = index
	v.entries = append(v.entries, vectorEntry{index: index})
	return nil
}

// begunEnded reports whether the entry most recently begun already has
// its bytes written; BeginLine is only a "consecutive duplicate" if
// called again for the same index before any bytes were attached.
func (v *VectorLineStorage) begunEnded() bool {
	if len(v.entries) == 0 {
		return true
	}
	return v.entries[len(v.entries)-1].bytes != nil
}

func (v *VectorLineStorage) WriteLineBytes(b []byte) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	v.entries[len(v.entries)-1].bytes = cp
	return nil
}

func (v *VectorLineStorage) EndArchData() error {
	v.begun = false
	v.haveBegun = false
	// sentinel empty pair
	v.entries = append(v.entries, vectorEntry{})
	return nil
}

func (v *VectorLineStorage) PrepareForLoad() error {
	v.readPos = 0
	return nil
}

func (v *VectorLineStorage) NextRestoreLine() (uint64, bool, error) {
	if v.readPos >= len(v.entries) {
		return 0, false, ckpterrors.ErrCorruptRestore
	}
	e := v.entries[v.readPos]
	if e.bytes == nil {
		// sentinel: consume it and report end-of-archdata
		v.readPos++
		return 0, false, nil
	}
	v.readPos++
	return e.index, true, nil
}

func (v *VectorLineStorage) CopyLineBytes(dst []byte) error {
	e := v.entries[v.readPos-1]
	copy(dst, e.bytes)
	return nil
}

// Clone returns a deep copy good for handing off to another goroutine
// (the database overlay's "clone a complete window out of the cache"
// pipeline stage, spec §4.4).
func (v *VectorLineStorage) Clone() *VectorLineStorage {
	out := &VectorLineStorage{entries: make([]vectorEntry, len(v.entries))}
	for i, e := range v.entries {
		b := make([]byte, len(e.bytes))
		copy(b, e.bytes)
		out.entries[i] = vectorEntry{index: e.index, bytes: b}
		if e.bytes == nil {
			out.entries[i].bytes = nil
		}
	}
	return out
}

// Bytes returns a simple length estimate used for cache accounting.
func (v *VectorLineStorage) Bytes() int {
	n := 0
	for _, e := range v.entries {
		n += len(e.bytes)
	}
	return n
}

// wireEntry mirrors vectorEntry with exported fields; gob cannot
// encode a struct with none, so GobEncode/GobDecode translate through
// this shape instead of exposing vectorEntry itself.
type wireEntry struct {
	Index uint64
	Bytes []byte
}

// GobEncode makes VectorLineStorage a portable archive format (spec
// §4.4 stage 3): the database overlay gob-encodes a window's payload
// before zlib-compressing it for durable storage.
func (v *VectorLineStorage) GobEncode() ([]byte, error) {
	wire := make([]wireEntry, len(v.entries))
	for i, e := range v.entries {
		wire[i] = wireEntry{Index: e.index, Bytes: e.bytes}
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wire); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *VectorLineStorage) GobDecode(data []byte) error {
	var wire []wireEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&wire); err != nil {
		return err
	}
	v.entries = make([]vectorEntry, len(wire))
	for i, e := range wire {
		v.entries[i] = vectorEntry{index: e.Index, bytes: e.Bytes}
	}
	return nil
}
