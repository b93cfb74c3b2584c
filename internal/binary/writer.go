package binary

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/simonhull/opusmeta/internal/types"
)

// SafeWriter wraps io.Writer with position tracking.
type SafeWriter struct {
	w      io.Writer
	offset int64
}

// NewSafeWriter creates a new SafeWriter.
func NewSafeWriter(w io.Writer) *SafeWriter {
	return &SafeWriter{w: w}
}

// Offset returns the current position (number of bytes written).
func (sw *SafeWriter) Offset() int64 {
	return sw.offset
}

// WriteBytes writes raw bytes to the underlying writer.
func (sw *SafeWriter) WriteBytes(b []byte) error {
	n, err := sw.w.Write(b)
	sw.offset += int64(n)
	return err
}

// WriteString writes a string as bytes to the underlying writer.
func (sw *SafeWriter) WriteString(s string) error {
	n, err := io.WriteString(sw.w, s)
	sw.offset += int64(n)
	return err
}

// Write writes a value of type T in big-endian byte order.
func Write[T Unsigned](sw *SafeWriter, val T) error {
	return sw.WriteBytes(encode(val, binary.BigEndian))
}

// WriteLE writes a value of type T in little-endian byte order.
func WriteLE[T Unsigned](sw *SafeWriter, val T) error {
	return sw.WriteBytes(encode(val, binary.LittleEndian))
}

// WriteCounted writes a 32-bit length in the given byte order followed by
// the bytes of s. Strings longer than 4 GiB cannot be represented.
func WriteCounted(sw *SafeWriter, order binary.ByteOrder, what, s string) error {
	if int64(len(s)) > math.MaxUint32 {
		return &types.OutOfBoundsError{What: what, Length: int64(len(s)), Size: math.MaxUint32}
	}
	buf := make([]byte, 4)
	order.PutUint32(buf, uint32(len(s)))
	if err := sw.WriteBytes(buf); err != nil {
		return err
	}
	return sw.WriteString(s)
}

func encode[T Unsigned](val T, order binary.ByteOrder) []byte {
	buf := make([]byte, sizeOf[T]())
	switch len(buf) {
	case 1:
		buf[0] = byte(val)
	case 2:
		order.PutUint16(buf, uint16(val))
	case 4:
		order.PutUint32(buf, uint32(val))
	default:
		order.PutUint64(buf, uint64(val))
	}
	return buf
}
