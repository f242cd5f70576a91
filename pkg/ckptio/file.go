package ckptio

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/sparcians/map-checkpoint/pkg/ckpterrors"
)

const (
	tagLine byte = 'L'
	tagEnd  byte = 'E'
)

// FileLineStorage streams the spec §6 binary layout to or from a file:
// a sequence of (tag 'L', line_index uint64, line bytes) entries per
// archdata, terminated by a tag 'E' byte. Grounded on the teacher's
// buffered-writer checkpoint file format (internal/memorystore/checkpoint.go).
type FileLineStorage struct {
	f  *os.File
	bw *bufio.Writer
	br *bufio.Reader

	lastBegun   uint64
	haveLast    bool
	pendingSize int
}

// NewFileSink opens path for writing (truncating any existing file)
// and returns a Sink over it. The caller must Close() when done.
func NewFileSink(path string) (*FileLineStorage, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileLineStorage{f: f, bw: bufio.NewWriter(f)}, nil
}

// NewFileSource opens path for reading and returns a Source over it.
// The caller must Close() when done.
func NewFileSource(path string) (*FileLineStorage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileLineStorage{f: f, br: bufio.NewReader(f)}, nil
}

func (fs *FileLineStorage) Close() error {
	if fs.bw != nil {
		if err := fs.bw.Flush(); err != nil {
			fs.f.Close()
			return err
		}
	}
	return fs.f.Close()
}

func (fs *FileLineStorage) BeginLine(index uint64) error {
	if fs.haveLast && fs.lastBegun == index {
		return ckpterrors.ErrDuplicateBeginLine
	}
	if err := fs.bw.WriteByte(tagLine); err != nil {
		return err
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], index)
	if _, err := fs.bw.Write(buf[:]); err != nil {
		return err
	}
	fs.lastBegun = index
	fs.haveLast = true
	return nil
}

func (fs *FileLineStorage) WriteLineBytes(b []byte) error {
	_, err := fs.bw.Write(b)
	// A begin_line/write pair always closes the "duplicate" window;
	// the next begin_line for the same index is a fresh line.
	fs.haveLast = false
	return err
}

func (fs *FileLineStorage) EndArchData() error {
	return fs.bw.WriteByte(tagEnd)
}

func (fs *FileLineStorage) PrepareForLoad() error {
	if _, err := fs.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	fs.br.Reset(fs.f)
	return nil
}

func (fs *FileLineStorage) NextRestoreLine() (uint64, bool, error) {
	tag, err := fs.br.ReadByte()
	if err == io.EOF {
		return 0, false, ckpterrors.ErrCorruptRestore
	}
	if err != nil {
		return 0, false, err
	}
	switch tag {
	case tagEnd:
		return 0, false, nil
	case tagLine:
		var buf [8]byte
		if _, err := io.ReadFull(fs.br, buf[:]); err != nil {
			return 0, false, ckpterrors.ErrCorruptRestore
		}
		index := binary.LittleEndian.Uint64(buf[:])
		fs.pendingSize = -1
		return index, true, nil
	default:
		return 0, false, ckpterrors.ErrCorruptRestore
	}
}

func (fs *FileLineStorage) CopyLineBytes(dst []byte) error {
	if _, err := io.ReadFull(fs.br, dst); err != nil {
		return ckpterrors.ErrCorruptRestore
	}
	return nil
}
