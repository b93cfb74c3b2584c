package ogg

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/simonhull/opusmeta/internal/types"
)

// PacketReader exposes one logical packet as a byte stream, pulling
// further pages from the underlying Reader as needed.
//
// The packet is the one whose data starts at the beginning of the first
// page read: either a fresh packet, or the continuation of one when the
// reader is resumed mid-packet. Every follow-on page must carry the
// continuation flag and the same serial number.
type PacketReader struct {
	r      *Reader
	serial uint32

	page       *Page
	off        int  // next byte in page.Data
	end        int  // end of this packet's bytes in page.Data
	terminated bool // the packet ends on the current page

	resumed  bool
	pages    int
	consumed int64
}

// NewPacketReader returns a reader for the packet that starts on the next
// page of r.
func NewPacketReader(r *Reader, serial uint32) *PacketReader {
	return &PacketReader{r: r, serial: serial}
}

// ResumePacketReader continues a packet at byteOffset within the page at
// pageOffset. The offsets are the ones reported by Position.
func ResumePacketReader(r *Reader, serial uint32, pageOffset int64, byteOffset int) (*PacketReader, error) {
	if err := r.Seek(pageOffset); err != nil {
		return nil, err
	}

	p := &PacketReader{r: r, serial: serial, resumed: true}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if byteOffset < 0 || byteOffset > p.end {
		return nil, &types.OutOfBoundsError{
			Path:   r.path,
			What:   "packet resume offset",
			Offset: int64(byteOffset),
			Size:   int64(p.end),
		}
	}
	p.off = byteOffset
	return p, nil
}

// advance loads the next page of the packet.
func (p *PacketReader) advance() error {
	if p.page != nil && p.terminated {
		return io.EOF
	}

	page, err := p.r.Next()
	if errors.Is(err, io.EOF) {
		return p.r.corrupt(p.r.Offset(), 0, fmt.Errorf("packet continues past end of file: %w", io.ErrUnexpectedEOF))
	}
	if err != nil {
		return err
	}

	if page.Serial != p.serial {
		return p.r.corrupt(page.Offset, page.Sequence, types.ErrSerialMismatch)
	}
	switch {
	case p.page == nil && !p.resumed && page.IsContinued():
		return p.r.corrupt(page.Offset, page.Sequence,
			fmt.Errorf("packet start page is marked continued: %w", types.ErrContinuation))
	case p.page != nil && !page.IsContinued():
		return p.r.corrupt(page.Offset, page.Sequence,
			fmt.Errorf("packet continuation page is not marked continued: %w", types.ErrContinuation))
	}

	p.page = page
	p.off = 0
	p.end, p.terminated = packetEnd(page.Segments)
	p.pages++
	return nil
}

// Read implements io.Reader. It returns io.EOF at the end of the packet.
func (p *PacketReader) Read(b []byte) (int, error) {
	for p.page == nil || p.off == p.end {
		if err := p.advance(); err != nil {
			return 0, err
		}
	}

	n := copy(b, p.page.Data[p.off:p.end])
	p.off += n
	p.consumed += int64(n)
	return n, nil
}

// ReadByte implements io.ByteReader. It returns io.EOF at the end of the
// packet.
func (p *PacketReader) ReadByte() (byte, error) {
	for p.page == nil || p.off == p.end {
		if err := p.advance(); err != nil {
			return 0, err
		}
	}
	b := p.page.Data[p.off]
	p.off++
	p.consumed++
	return b, nil
}

// ReadFull reads exactly n bytes. Hitting the end of the packet first is
// reported as *types.OutOfBoundsError.
func (p *PacketReader) ReadFull(n int, what string) ([]byte, error) {
	start := p.consumed
	// Grow with the data actually present so a corrupt length cannot
	// force a huge allocation up front.
	var buf bytes.Buffer
	buf.Grow(min(n, 1<<16))
	if _, err := io.CopyN(&buf, p, int64(n)); err != nil {
		return nil, p.shortRead(err, what, start, int64(n))
	}
	return buf.Bytes(), nil
}

// Skip discards n bytes of the packet.
func (p *PacketReader) Skip(n int64, what string) error {
	start := p.consumed
	for remaining := n; remaining > 0; {
		for p.page == nil || p.off == p.end {
			if err := p.advance(); err != nil {
				return p.shortRead(err, what, start, n)
			}
		}
		k := min(int64(p.end-p.off), remaining)
		p.off += int(k)
		p.consumed += k
		remaining -= k
	}
	return nil
}

// ReadRest returns everything left in the packet.
func (p *PacketReader) ReadRest() ([]byte, error) {
	return io.ReadAll(p)
}

func (p *PacketReader) shortRead(err error, what string, start, n int64) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		var corrupt *types.CorruptedFileError
		if errors.As(err, &corrupt) {
			return err
		}
		return &types.OutOfBoundsError{
			Path:   p.r.path,
			What:   what,
			Offset: start,
			Length: n,
			Size:   p.consumed,
		}
	}
	return err
}

// Position returns the page offset and the byte offset within that page's
// data of the next unread packet byte. An exhausted page is stepped over
// first, so the position always names the page that holds the byte.
func (p *PacketReader) Position() (int64, int, error) {
	for p.page == nil || (p.off == p.end && !p.terminated) {
		if err := p.advance(); err != nil {
			return 0, 0, err
		}
	}
	return p.page.Offset, p.off, nil
}

// Done reports whether the whole packet has been consumed.
func (p *PacketReader) Done() bool {
	return p.page != nil && p.terminated && p.off == p.end
}

// Trailing returns the number of bytes on the current page after the end
// of the packet. It is only meaningful once Done reports true.
func (p *PacketReader) Trailing() int {
	if p.page == nil {
		return 0
	}
	return len(p.page.Data) - p.end
}

// Pages returns how many pages the reader has pulled.
func (p *PacketReader) Pages() int {
	return p.pages
}

// Last returns the most recently pulled page, or nil.
func (p *PacketReader) Last() *Page {
	return p.page
}

// Consumed returns the number of packet bytes read so far.
func (p *PacketReader) Consumed() int64 {
	return p.consumed
}
