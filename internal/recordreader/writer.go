package recordreader

import (
	"fmt"
	"os"
)

// Writer builds a record.bin/index.bin pair in the layout Reader
// consumes. It exists to drive internal/intervalwindow end-to-end
// without a real simulator event stream attached (spec §1 treats the
// dense wire format as an external collaborator); production record
// files are produced by the simulator's own Outputter, out of scope
// here. Records must be appended in non-decreasing StartTick order.
type Writer struct {
	heartbeat  uint64
	recordFile *os.File
	indexFile  *os.File

	nextBucket uint64
	pos        int64
}

// Create creates a new record/index pair at prefix, stamped with the
// current index-header version, indexed at the given heartbeat tick
// stride.
func Create(prefix string, heartbeat uint64) (*Writer, error) {
	if heartbeat == 0 {
		return nil, fmt.Errorf("recordreader: heartbeat must be nonzero")
	}
	recordFile, err := os.Create(prefix + "record.bin")
	if err != nil {
		return nil, err
	}
	indexFile, err := os.Create(prefix + "index.bin")
	if err != nil {
		recordFile.Close()
		return nil, err
	}

	header := fmt.Sprintf("%s%04d\n", indexHeaderPrefix, CurrentVersion)
	if _, err := indexFile.WriteString(header); err != nil {
		return nil, err
	}
	var hb [8]byte
	byteOrder.PutUint64(hb[:], heartbeat)
	if _, err := indexFile.Write(hb[:]); err != nil {
		return nil, err
	}

	return &Writer{heartbeat: heartbeat, recordFile: recordFile, indexFile: indexFile}, nil
}

// Append writes one record, backfilling index entries for every
// heartbeat bucket up to and including the one rec.StartTick falls
// in.
func (w *Writer) Append(rec Record) error {
	for w.nextBucket*w.heartbeat <= rec.StartTick {
		var posBuf [8]byte
		byteOrder.PutUint64(posBuf[:], uint64(w.pos))
		if _, err := w.indexFile.Write(posBuf[:]); err != nil {
			return err
		}
		w.nextBucket++
	}

	var header [headerSize]byte
	byteOrder.PutUint64(header[0:8], rec.StartTick)
	byteOrder.PutUint64(header[8:16], rec.EndTick)
	byteOrder.PutUint64(header[16:24], rec.ParentID)
	byteOrder.PutUint64(header[24:32], rec.TransactionID)
	byteOrder.PutUint64(header[32:40], rec.LocationID)
	byteOrder.PutUint16(header[40:42], rec.Flags)
	if _, err := w.recordFile.Write(header[:]); err != nil {
		return err
	}

	var lenBuf [2]byte
	byteOrder.PutUint16(lenBuf[:], uint16(len(rec.Tail)))
	if _, err := w.recordFile.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(rec.Tail) > 0 {
		if _, err := w.recordFile.Write(rec.Tail); err != nil {
			return err
		}
	}

	w.pos += int64(headerSize) + 2 + int64(len(rec.Tail))
	return nil
}

// Close writes the final sentinel index entry (pointing past the
// last record) and closes both files.
func (w *Writer) Close() error {
	var posBuf [8]byte
	byteOrder.PutUint64(posBuf[:], uint64(w.pos))
	if _, err := w.indexFile.Write(posBuf[:]); err != nil {
		return err
	}

	err1 := w.recordFile.Close()
	err2 := w.indexFile.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
