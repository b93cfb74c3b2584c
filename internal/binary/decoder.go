package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/simonhull/opusmeta/internal/types"
)

// Decoder reads fields sequentially from a stream that holds at most
// limit bytes. Every length read from the stream is checked against the
// remaining budget before anything is allocated.
//
// Errors are sticky: once a read fails, later reads return zero values
// and Err reports the first failure. This keeps field-by-field decoders
// free of repetitive error checks.
type Decoder struct {
	r        io.Reader
	path     string
	limit    int64
	consumed int64
	err      error
}

// NewDecoder creates a Decoder over r with a budget of limit bytes.
func NewDecoder(r io.Reader, limit int64, path string) *Decoder {
	return &Decoder{r: r, limit: limit, path: path}
}

// Err returns the first error encountered, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Consumed returns the number of bytes read so far.
func (d *Decoder) Consumed() int64 {
	return d.consumed
}

// Remaining returns the unread part of the budget.
func (d *Decoder) Remaining() int64 {
	return d.limit - d.consumed
}

// Fail records err unless an earlier error is already recorded.
func (d *Decoder) Fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Decoder) reserve(n int64, what string) bool {
	if d.err != nil {
		return false
	}
	if n < 0 || n > d.Remaining() {
		d.err = &types.OutOfBoundsError{
			Path:   d.path,
			What:   what,
			Offset: d.consumed,
			Length: n,
			Size:   d.limit,
		}
		return false
	}
	return true
}

func (d *Decoder) fill(buf []byte, what string) bool {
	if !d.reserve(int64(len(buf)), what) {
		return false
	}
	n, err := io.ReadFull(d.r, buf)
	d.consumed += int64(n)
	if err != nil {
		d.readFailed(err, what, int64(n), int64(len(buf)))
		return false
	}
	return true
}

// readFailed records a short read of length bytes that stopped after n.
func (d *Decoder) readFailed(err error, what string, n, length int64) {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		d.err = &types.OutOfBoundsError{
			Path:   d.path,
			What:   what,
			Offset: d.consumed - n,
			Length: length,
			Size:   d.consumed,
		}
		return
	}
	d.err = fmt.Errorf("%s: read %s: %w", d.path, what, err)
}

// Bytes reads n bytes. The budget only bounds what the stream may hold,
// so the buffer grows with the data actually read.
func (d *Decoder) Bytes(n int64, what string) []byte {
	if !d.reserve(n, what) {
		return nil
	}
	var buf bytes.Buffer
	buf.Grow(int(min(n, 1<<16)))
	copied, err := io.CopyN(&buf, d.r, n)
	d.consumed += copied
	if err != nil {
		d.readFailed(err, what, copied, n)
		return nil
	}
	return buf.Bytes()
}

// String reads n bytes as a string.
func (d *Decoder) String(n int64, what string) string {
	return string(d.Bytes(n, what))
}

// Skip discards n bytes without buffering them.
func (d *Decoder) Skip(n int64, what string) {
	if !d.reserve(n, what) {
		return
	}
	copied, err := io.CopyN(io.Discard, d.r, n)
	d.consumed += copied
	if err != nil {
		d.err = &types.OutOfBoundsError{
			Path:   d.path,
			What:   what,
			Offset: d.consumed - copied,
			Length: n,
			Size:   d.consumed,
		}
	}
}

// BE reads a big-endian value of type T.
func BE[T Unsigned](d *Decoder, what string) T {
	return decodeField[T](d, what, binary.BigEndian)
}

// LE reads a little-endian value of type T.
func LE[T Unsigned](d *Decoder, what string) T {
	return decodeField[T](d, what, binary.LittleEndian)
}

func decodeField[T Unsigned](d *Decoder, what string, order binary.ByteOrder) T {
	buf := make([]byte, sizeOf[T]())
	if !d.fill(buf, what) {
		var zero T
		return zero
	}
	return decode[T](buf, order)
}
