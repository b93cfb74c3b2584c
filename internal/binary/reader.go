// Package binary provides bounds-checked binary primitives shared by the
// Ogg page layer, the Opus header codecs and the picture block codec.
package binary

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/simonhull/opusmeta/internal/types"
)

// Unsigned is the set of fixed-width integers the helpers decode.
type Unsigned interface {
	uint8 | uint16 | uint32 | uint64
}

// SafeReader wraps io.ReaderAt with bounds checking and helpful error messages.
type SafeReader struct {
	r    io.ReaderAt
	path string
	size int64
}

// NewSafeReader creates a new SafeReader.
func NewSafeReader(r io.ReaderAt, size int64, path string) *SafeReader {
	return &SafeReader{
		r:    r,
		size: size,
		path: path,
	}
}

// Path returns the file path associated with this reader.
func (sr *SafeReader) Path() string {
	return sr.path
}

// Size returns the size the reader was created with.
func (sr *SafeReader) Size() int64 {
	return sr.size
}

// ReadAt reads len(b) bytes at off. Reads that fall outside the reader
// return *types.OutOfBoundsError.
func (sr *SafeReader) ReadAt(b []byte, off int64, what string) error {
	if off < 0 || off >= sr.size || off+int64(len(b)) > sr.size {
		return &types.OutOfBoundsError{
			Path:   sr.path,
			What:   what,
			Offset: off,
			Length: int64(len(b)),
			Size:   sr.size,
		}
	}

	n, err := sr.r.ReadAt(b, off)
	if err != nil && err != io.EOF {
		return fmt.Errorf("%s: failed to read %s at offset %d: %w", sr.path, what, off, err)
	}

	if n < len(b) {
		return fmt.Errorf("%s: short read for %s at offset %d: got %d bytes, expected %d",
			sr.path, what, off, n, len(b))
	}

	return nil
}

// ReadLE reads a little-endian value of type T at off.
//
// Ogg page headers and Opus headers are little-endian:
//
//	serial, err := binary.ReadLE[uint32](sr, pageOffset+14, "serial number")
func ReadLE[T Unsigned](sr *SafeReader, off int64, what string) (T, error) {
	return readOrder[T](sr, off, what, binary.LittleEndian)
}

// ReadBE reads a big-endian value of type T at off.
func ReadBE[T Unsigned](sr *SafeReader, off int64, what string) (T, error) {
	return readOrder[T](sr, off, what, binary.BigEndian)
}

func readOrder[T Unsigned](sr *SafeReader, off int64, what string, order binary.ByteOrder) (T, error) {
	buf := make([]byte, sizeOf[T]())
	if err := sr.ReadAt(buf, off, what); err != nil {
		var zero T
		return zero, err
	}
	return decode[T](buf, order), nil
}

func sizeOf[T Unsigned]() int {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return 1
	case uint16:
		return 2
	case uint32:
		return 4
	default:
		return 8
	}
}

func decode[T Unsigned](buf []byte, order binary.ByteOrder) T {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return T(buf[0])
	case uint16:
		return T(order.Uint16(buf))
	case uint32:
		return T(order.Uint32(buf))
	default:
		return T(order.Uint64(buf))
	}
}
