package archdata

import (
	"encoding/binary"
	"unsafe"

	"github.com/sparcians/map-checkpoint/pkg/ckpterrors"
)

// Numeric is the set of fixed-width integer types ReadT/WriteT accept.
// All have power-of-two sizes by construction, which is what spec
// §4.1 requires of a typed access's size.
type Numeric interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64
}

// ReadT performs a bounds-checked typed read of a value of type T at
// intra-line byte offset o+k*sizeof(T), per spec §4.1.
func ReadT[T Numeric](ln *Line, o uint64, k uint64, bo binary.ByteOrder) (T, error) {
	var zero T
	sz := uint64(unsafe.Sizeof(zero))
	byteOff := o + k*sz
	if sz > uint64(ln.size) || byteOff+sz > uint64(ln.size) {
		return zero, ckpterrors.ErrBadAccessSize
	}
	switch sz {
	case 1:
		return T(ln.bytes[byteOff]), nil
	case 2:
		return T(bo.Uint16(ln.bytes[byteOff:])), nil
	case 4:
		return T(bo.Uint32(ln.bytes[byteOff:])), nil
	case 8:
		return T(bo.Uint64(ln.bytes[byteOff:])), nil
	default:
		return zero, ckpterrors.ErrBadAccessSize
	}
}

// WriteT performs a bounds-checked typed write, setting the line's
// dirty bit on success.
func WriteT[T Numeric](ln *Line, o uint64, k uint64, bo binary.ByteOrder, val T) error {
	sz := uint64(unsafe.Sizeof(val))
	byteOff := o + k*sz
	if sz > uint64(ln.size) || byteOff+sz > uint64(ln.size) {
		return ckpterrors.ErrBadAccessSize
	}
	switch sz {
	case 1:
		ln.bytes[byteOff] = byte(val)
	case 2:
		bo.PutUint16(ln.bytes[byteOff:], uint16(val))
	case 4:
		bo.PutUint32(ln.bytes[byteOff:], uint32(val))
	case 8:
		bo.PutUint64(ln.bytes[byteOff:], uint64(val))
	default:
		return ckpterrors.ErrBadAccessSize
	}
	ln.dirty = true
	return nil
}
