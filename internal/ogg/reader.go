package ogg

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/simonhull/opusmeta/internal/binary"
	"github.com/simonhull/opusmeta/internal/types"
)

// Source is what a Reader pulls pages from. *os.File satisfies it.
type Source interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

// bufferSize holds two maximum-size pages, rounded up to a power of two
// and doubled.
const bufferSize = 1 << 19

// Reader streams pages from a Source through a single reusable buffer.
//
// Pages returned by Next own their data, so a caller may hold a page
// while reading the next one. A Reader is not safe for concurrent use.
type Reader struct {
	src  Source
	path string

	buf   []byte
	read  int   // next unconsumed byte in buf
	limit int   // end of valid data in buf
	base  int64 // file offset of buf[0]
	eof   bool

	peeked *Header
	pos    int64 // offset of the most recently peeked or returned page
}

// NewReader creates a Reader starting at the source's current offset.
func NewReader(src Source, path string) (*Reader, error) {
	off, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("%s: locate read position: %w", path, err)
	}
	return &Reader{
		src:  src,
		path: path,
		buf:  make([]byte, bufferSize),
		base: off,
		pos:  off,
	}, nil
}

// Path returns the file path used in error messages.
func (r *Reader) Path() string {
	return r.path
}

// Position returns the file offset of the most recently peeked or
// returned page.
func (r *Reader) Position() int64 {
	return r.pos
}

// Offset returns the file offset of the next unread byte.
func (r *Reader) Offset() int64 {
	return r.base + int64(r.read)
}

// Seek repositions the reader at off, which must be a page boundary.
func (r *Reader) Seek(off int64) error {
	if _, err := r.src.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("%s: seek to %d: %w", r.path, off, err)
	}
	r.base = off
	r.pos = off
	r.read, r.limit = 0, 0
	r.eof = false
	r.peeked = nil
	return nil
}

// fill buffers at least n unread bytes unless the source ends first.
func (r *Reader) fill(n int) error {
	if r.limit-r.read >= n || r.eof {
		return nil
	}

	// Compact so the unread tail starts the buffer.
	if r.read > 0 {
		copy(r.buf, r.buf[r.read:r.limit])
		r.base += int64(r.read)
		r.limit -= r.read
		r.read = 0
	}

	for r.limit < n {
		m, err := r.src.Read(r.buf[r.limit:])
		r.limit += m
		if errors.Is(err, io.EOF) {
			r.eof = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: read at offset %d: %w", r.path, r.base+int64(r.limit), err)
		}
	}
	return nil
}

func (r *Reader) corrupt(off int64, seq uint32, err error) error {
	return &types.CorruptedFileError{Path: r.path, Offset: off, Sequence: seq, Err: err}
}

// PeekHeader decodes the header of the next page without consuming it.
//
// It returns io.EOF when no bytes remain. A partial header at the end of
// the file is a framing error.
func (r *Reader) PeekHeader() (*Header, error) {
	if r.peeked != nil {
		return r.peeked, nil
	}

	if err := r.fill(MaxHeaderSize); err != nil {
		return nil, err
	}
	if r.limit == r.read {
		return nil, io.EOF
	}

	off := r.Offset()
	h, err := ParseHeader(r.buf[r.read:r.limit])
	if err != nil {
		return nil, r.corrupt(off, 0, err)
	}

	r.peeked = h
	r.pos = off
	return h, nil
}

// Next returns the next page with its checksum verified.
func (r *Reader) Next() (*Page, error) {
	h, err := r.PeekHeader()
	if err != nil {
		return nil, err
	}

	size := h.Len()
	if err := r.fill(size); err != nil {
		return nil, err
	}
	if r.limit-r.read < size {
		return nil, r.corrupt(r.pos, h.Sequence, types.ErrUnterminatedPage)
	}

	raw := r.buf[r.read : r.read+size]
	if checksum(raw) != h.CRC {
		return nil, r.corrupt(r.pos, h.Sequence, types.ErrChecksum)
	}

	page := &Page{
		Header: *h,
		Data:   bytes.Clone(raw[h.HeaderLen():]),
		Offset: r.pos,
	}
	if page.Data == nil {
		page.Data = []byte{}
	}

	r.read += size
	r.peeked = nil
	return page, nil
}

// SeekLastPage returns the last page of the logical stream serial.
//
// The tail of the file is searched backwards for a capture pattern that
// starts a valid page. If that page belongs to another stream or does
// not carry the end-of-stream flag, every page is scanned from the start
// of the file instead.
func (r *Reader) SeekLastPage(serial uint32) (*Page, error) {
	size, err := r.src.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("%s: locate end of file: %w", r.path, err)
	}

	start := max(size-MaxPageSize, 0)
	tail := make([]byte, size-start)
	if len(tail) > 0 {
		sr := binary.NewSafeReader(r.src, size, r.path)
		if err := sr.ReadAt(tail, start, "trailing pages"); err != nil {
			return nil, err
		}
	}

	magic := []byte(Magic)
	for i := bytes.LastIndex(tail, magic); i >= 0; i = bytes.LastIndex(tail[:i], magic) {
		if err := r.Seek(start + int64(i)); err != nil {
			return nil, err
		}
		page, err := r.Next()
		if err != nil {
			// Capture pattern inside packet data.
			continue
		}
		if page.Serial == serial && page.IsLast() {
			return page, nil
		}
		break
	}

	return r.scanLastPage(serial)
}

func (r *Reader) scanLastPage(serial uint32) (*Page, error) {
	if err := r.Seek(0); err != nil {
		return nil, err
	}

	var last *Page
	for {
		page, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if page.Serial == serial {
			last = page
		}
	}

	if last == nil {
		return nil, r.corrupt(0, 0, fmt.Errorf("no page for stream %08x: %w", serial, types.ErrSerialMismatch))
	}
	return last, nil
}
