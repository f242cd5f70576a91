package ckptdb

import (
	"bytes"
	"encoding/gob"

	"github.com/sparcians/map-checkpoint/pkg/ckptio"
)

// wireWindow is the portable archive a closed window serializes to
// before zlib-compression (spec §4.4 stages 3-4): the snapshot-plus-
// deltas group's ids, in creation order, paired with each
// checkpoint's per-archdata payload.
type wireWindow struct {
	IDs       []uint64
	Ticks     []uint64
	Payloads  []map[string]*ckptio.VectorLineStorage
	StartTick uint64
	EndTick   uint64
}

func encodeWindow(w *wireWindow) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeWindow(data []byte) (*wireWindow, error) {
	var w wireWindow
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return nil, err
	}
	return &w, nil
}

// openWindow is the in-progress window: a snapshot id followed by the
// deltas created since, not yet closed by the next snapshot.
type openWindow struct {
	ids       []uint64
	ticks     []uint64
	startTick uint64
	endTick   uint64
}
