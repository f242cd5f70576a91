package recordreader

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sparcians/map-checkpoint/pkg/log"
)

// indexHeaderPrefix is the literal header prefix spec §6 requires the
// index file to begin with, followed by a 4-digit decimal version and
// a newline. Grounded on original_source's Reader.hpp
// EXPECTED_HEADER_PREFIX/HEADER_SIZE constants.
const indexHeaderPrefix = "sparta_pipeout_version:"

const indexHeaderSize = len(indexHeaderPrefix) + 4 + 1

// CurrentVersion is the index-header version this package's Writer
// stamps new files with.
const CurrentVersion = 2

var byteOrder = binary.LittleEndian

// Reader consumes the <prefix>record.bin / <prefix>index.bin
// companion pair (spec §6). It is not safe for concurrent use by
// multiple goroutines, matching original_source's Reader, which
// sparta_asserts a single-caller lock; internal/intervalwindow only
// ever calls it from its single background worker.
type Reader struct {
	prefix string

	recordFile *os.File
	indexFile  *os.File

	version    uint32
	heartbeat  uint64
	firstIndex int64
	indexSize  int64
	recordSize int64
}

// Open opens the record/index file pair named "<prefix>record.bin"
// and "<prefix>index.bin"; a missing file is an error. If the index
// file's header does not start with the expected prefix, version 1 is
// assumed per spec §6's backward-compatibility rule.
func Open(prefix string) (*Reader, error) {
	recordFile, err := os.Open(prefix + "record.bin")
	if err != nil {
		return nil, fmt.Errorf("recordreader: opening record file: %w", err)
	}
	indexFile, err := os.Open(prefix + "index.bin")
	if err != nil {
		recordFile.Close()
		return nil, fmt.Errorf("recordreader: opening index file: %w", err)
	}

	r := &Reader{prefix: prefix, recordFile: recordFile, indexFile: indexFile}
	if err := r.readHeader(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	header := make([]byte, indexHeaderSize)
	n, err := io.ReadFull(r.indexFile, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fmt.Errorf("recordreader: reading index header: %w", err)
	}

	r.version = 1
	if n == indexHeaderSize && strings.HasPrefix(string(header), indexHeaderPrefix) {
		versionField := strings.TrimSuffix(string(header[len(indexHeaderPrefix):]), "\n")
		if v, err := strconv.ParseUint(strings.TrimLeft(versionField, "0"), 10, 32); err == nil {
			r.version = uint32(v)
		} else if versionField == "0000" {
			r.version = 0
		} else {
			log.Warnf("recordreader: %s: malformed version field %q, assuming version 1", r.prefix, versionField)
			if _, err := r.indexFile.Seek(0, io.SeekStart); err != nil {
				return err
			}
		}
	} else {
		// Header prefix did not match (or file too small): rewind and
		// assume version 1, per spec §6.
		if _, err := r.indexFile.Seek(0, io.SeekStart); err != nil {
			return err
		}
	}

	var hb [8]byte
	if _, err := io.ReadFull(r.indexFile, hb[:]); err != nil {
		return fmt.Errorf("recordreader: reading heartbeat: %w", err)
	}
	r.heartbeat = byteOrder.Uint64(hb[:])
	if r.heartbeat == 0 {
		return fmt.Errorf("recordreader: %s: heartbeat of 0 is not usable", r.prefix)
	}

	pos, err := r.indexFile.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	r.firstIndex = pos

	indexInfo, err := r.indexFile.Stat()
	if err != nil {
		return err
	}
	r.indexSize = indexInfo.Size()

	recordInfo, err := r.recordFile.Stat()
	if err != nil {
		return err
	}
	r.recordSize = recordInfo.Size()
	return nil
}

// Close releases the underlying file handles.
func (r *Reader) Close() error {
	err1 := r.recordFile.Close()
	err2 := r.indexFile.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Heartbeat returns the index file's tick stride.
func (r *Reader) Heartbeat() uint64 { return r.heartbeat }

// findRecordReadPos returns the record.bin byte offset of the first
// record belonging to tick's heartbeat bucket, or the record file's
// size if tick is past the last indexed bucket (meaning: no more
// records), matching original_source's findRecordReadPos_.
func (r *Reader) findRecordReadPos(tick uint64) (int64, error) {
	step := r.firstIndex + int64(tick/r.heartbeat)*8
	if step > r.indexSize-8 {
		return r.recordSize, nil
	}
	var buf [8]byte
	if _, err := r.indexFile.ReadAt(buf[:], step); err != nil {
		if err == io.EOF {
			return r.recordSize, nil
		}
		return 0, fmt.Errorf("recordreader: reading index entry: %w", err)
	}
	return int64(byteOrder.Uint64(buf[:])), nil
}

func roundUp(num, step uint64) uint64 {
	if rem := num % step; rem != 0 {
		return num + step - rem
	}
	return num
}

// CycleFirst returns the start tick of the first record in the file.
func (r *Reader) CycleFirst() (uint64, error) {
	rec, _, err := r.readRecordAt(0)
	if err != nil {
		return 0, err
	}
	return rec.StartTick, nil
}

// CycleLast returns the end tick (minus one) of the last record in
// the file, i.e. the highest tick any interval actually covers.
func (r *Reader) CycleLast() (uint64, error) {
	last, err := r.lastRecordBefore(r.recordSize)
	if err != nil {
		return 0, err
	}
	return last.EndTick - 1, nil
}

func (r *Reader) lastRecordBefore(endPos int64) (Record, error) {
	var last Record
	found := false
	cur := int64(0)
	for cur < endPos {
		rec, n, err := r.readRecordAt(cur)
		if err != nil {
			if err == io.EOF {
				break
			}
			return Record{}, err
		}
		last, found = rec, true
		cur += n
	}
	if !found {
		return Record{}, fmt.Errorf("recordreader: %s: empty record file", r.prefix)
	}
	return last, nil
}

// ReadWindow replays the records whose end tick lies in the
// half-open-on-the-left range (left, right] through fn, in on-disk
// order (spec §4.6/§6). The scan starts at the heartbeat bucket that
// contains left, so a record whose start tick lies in an earlier
// bucket is not replayed even when its end tick is in range. This is
// the external collaborator
// internal/intervalwindow's background worker drives during
// generate_window.
func (r *Reader) ReadWindow(left, right uint64, fn func(Record) error) error {
	chunkEnd := roundUp(right, r.heartbeat)
	pos, err := r.findRecordReadPos(left)
	if err != nil {
		return err
	}
	endPos, err := r.findRecordReadPos(chunkEnd)
	if err != nil {
		return err
	}

	cur := pos
	for cur < endPos {
		rec, n, err := r.readRecordAt(cur)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		cur += n
		if rec.EndTick > left && rec.EndTick <= right {
			if err := fn(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// readRecordAt reads one record starting at record.bin byte offset
// pos, returning the record and its total on-disk byte length.
func (r *Reader) readRecordAt(pos int64) (Record, int64, error) {
	header := make([]byte, headerSize)
	if _, err := r.recordFile.ReadAt(header, pos); err != nil {
		return Record{}, 0, err
	}

	rec := Record{
		StartTick:     byteOrder.Uint64(header[0:8]),
		EndTick:       byteOrder.Uint64(header[8:16]),
		ParentID:      byteOrder.Uint64(header[16:24]),
		TransactionID: byteOrder.Uint64(header[24:32]),
		LocationID:    byteOrder.Uint64(header[32:40]),
		Flags:         byteOrder.Uint16(header[40:42]),
	}

	var lenBuf [2]byte
	if _, err := r.recordFile.ReadAt(lenBuf[:], pos+int64(headerSize)); err != nil {
		return Record{}, 0, err
	}
	tailLen := int(byteOrder.Uint16(lenBuf[:]))
	stored := tailLen

	if rec.Type() == TypeAnnotation && tailLen > MaxAnnotationBytes {
		log.Warnf("recordreader: %s: truncating annotation txn %d (len %d) to %d bytes",
			r.prefix, rec.TransactionID, tailLen, MaxAnnotationBytes)
		stored = MaxAnnotationBytes
	}

	tail := make([]byte, stored)
	if stored > 0 {
		if _, err := r.recordFile.ReadAt(tail, pos+int64(headerSize)+2); err != nil {
			return Record{}, 0, err
		}
	}
	rec.Tail = tail

	total := int64(headerSize) + 2 + int64(tailLen)
	return rec, total, nil
}
