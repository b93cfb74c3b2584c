package opus

import (
	"bytes"
	gobinary "encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/simonhull/opusmeta/internal/binary"
	"github.com/simonhull/opusmeta/internal/ogg"
	"github.com/simonhull/opusmeta/internal/picture"
	"github.com/simonhull/opusmeta/internal/types"
	"github.com/simonhull/opusmeta/internal/vorbis"
)

// Comment header layout parameters.
const (
	// PageDataSize is 4096 rounded down to a multiple of 255, so every
	// full comment page ends on a lacing boundary.
	PageDataSize = 4080

	// WiggleRoom is the largest remainder merged into the previous page
	// instead of getting a page of its own.
	WiggleRoom = 2048

	MinPadding     = 1024
	MaxPadding     = 10240
	DefaultPadding = (MinPadding + MaxPadding) / 2

	shiftChunk = 1 << 20
)

// CommentHeader is the content of an OpusTags packet.
type CommentHeader struct {
	Vendor   string
	Comments types.Comments
	Pictures []*types.Picture

	// RawPictures are METADATA_BLOCK_PICTURE values written as given,
	// between the comments and Pictures.
	RawPictures []string
}

// Options controls WriteTags.
type Options struct {
	// Padding forces this many zero bytes of padding. Zero picks an
	// amount automatically.
	Padding int

	// NoPadding drops regenerable padding altogether. Padding whose
	// preserve bit is set is always kept.
	NoPadding bool

	Logger logrus.FieldLogger
}

func (o *Options) logger() logrus.FieldLogger {
	if o.Logger == nil {
		return logrus.StandardLogger()
	}
	return o.Logger
}

// Result describes a completed rewrite.
type Result struct {
	OldLen     int64 // encoded comment pages before
	NewLen     int64 // encoded comment pages after
	OldPages   int
	NewPages   int
	Padding    int
	Preserved  bool // existing padding was kept verbatim
	Renumbered int  // audio pages whose sequence number was rewritten
}

// File is the handle WriteTags edits in place. *os.File satisfies it.
type File interface {
	io.Reader
	io.ReaderAt
	io.WriterAt
	io.Seeker
	Truncate(size int64) error
	Stat() (os.FileInfo, error)
}

// WriteTags replaces the comment header of the Opus file at path in place.
// Audio pages are moved and renumbered but otherwise left untouched.
//
// A failure part way through can leave the file damaged; callers wanting
// atomicity should work on a copy.
func WriteTags(path string, h *CommentHeader, opts Options) (*Result, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	res, err := Rewrite(f, path, h, opts)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close file: %w", cerr)
	}
	return res, err
}

// Rewrite replaces the comment header of f. See WriteTags.
func Rewrite(f File, path string, h *CommentHeader, opts Options) (*Result, error) {
	log := opts.logger().WithField("path", path)

	old, err := readLayout(f, path)
	if err != nil {
		return nil, err
	}

	body, err := Serialize(h)
	if err != nil {
		return nil, err
	}

	res := &Result{OldLen: old.audio - old.headEnd, OldPages: old.pages}
	pad := choosePadding(int64(len(body)), res.OldLen, old.padding, opts)
	res.Preserved = preserved(old.padding)
	res.Padding = len(pad)

	pages, err := Paginate(append(body, pad...), old.serial)
	if err != nil {
		return nil, err
	}
	res.NewPages = len(pages)
	for _, p := range pages {
		res.NewLen += int64(len(p))
	}

	log = log.WithFields(logrus.Fields{
		"old_len":   res.OldLen,
		"new_len":   res.NewLen,
		"old_pages": res.OldPages,
		"new_pages": res.NewPages,
		"padding":   res.Padding,
		"preserved": res.Preserved,
	})

	// A new page count renumbers every audio page, so all of them must
	// belong to this stream before the file is touched.
	if res.NewPages != res.OldPages {
		if err := checkSerials(f, path, old.serial, old.audio, old.size); err != nil {
			return nil, err
		}
	}

	delta := res.NewLen - res.OldLen
	if delta != 0 {
		direction := "grow"
		if delta < 0 {
			direction = "shrink"
		}
		log.WithFields(logrus.Fields{"delta": delta, "direction": direction}).Debug("shifting audio pages")
		if err := Splice(f, old.audio, old.size, delta); err != nil {
			return nil, err
		}
	}

	off := old.headEnd
	for _, p := range pages {
		if _, err := f.WriteAt(p, off); err != nil {
			return nil, fmt.Errorf("%s: write comment page: %w", path, err)
		}
		off += int64(len(p))
	}

	n, err := renumber(f, path, old, off, old.size+delta, uint32(len(pages)+1))
	if err != nil {
		return nil, err
	}
	res.Renumbered = n
	log.WithField("renumbered", n).Debug("comment header rewritten")
	return res, nil
}

// layout is what Rewrite needs to know about the existing headers.
type layout struct {
	serial  uint32
	headEnd int64 // end of the identification page
	audio   int64 // start of the first audio page
	size    int64
	pages   int
	padding []byte
}

func readLayout(f File, path string) (*layout, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%s: seek: %w", path, err)
	}
	r, err := ogg.NewReader(f, path)
	if err != nil {
		return nil, err
	}

	tr := NewTagReader(r)
	if _, err := tr.ReadHead(); err != nil {
		return nil, err
	}
	padding, err := tr.ReadPadding()
	if err != nil {
		return nil, err
	}
	audio, err := tr.AudioOffset()
	if err != nil {
		return nil, err
	}

	hp := tr.HeadPage()
	return &layout{
		serial:  tr.Serial(),
		headEnd: hp.Offset + int64(hp.Len()),
		audio:   audio,
		size:    stat.Size(),
		pages:   tr.CommentPages(),
		padding: padding,
	}, nil
}

// Serialize encodes h as an OpusTags packet without padding. Pictures
// follow the comments as base64 METADATA_BLOCK_PICTURE entries.
func Serialize(h *CommentHeader) ([]byte, error) {
	var buf bytes.Buffer
	sw := binary.NewSafeWriter(&buf)

	if err := sw.WriteString(tagsMagic); err != nil {
		return nil, err
	}
	if err := binary.WriteCounted(sw, gobinary.LittleEndian, "vendor string", h.Vendor); err != nil {
		return nil, err
	}

	// The count is patched once every entry is written.
	countAt := sw.Offset()
	if err := binary.WriteLE(sw, uint32(0)); err != nil {
		return nil, err
	}

	for _, c := range h.Comments {
		key, err := vorbis.CanonicalKey(c.Key)
		if err != nil {
			return nil, err
		}
		if err := binary.WriteCounted(sw, gobinary.LittleEndian, "comment", key+"="+c.Value); err != nil {
			return nil, err
		}
	}

	prefix := vorbis.PictureKey + "="
	for _, v := range h.RawPictures {
		if err := binary.WriteCounted(sw, gobinary.LittleEndian, "picture comment", prefix+v); err != nil {
			return nil, err
		}
	}
	for _, p := range h.Pictures {
		n := int64(len(prefix)) + picture.Base64Len(p)
		if n > math.MaxUint32 {
			return nil, &types.OutOfBoundsError{What: "picture comment", Length: n, Size: math.MaxUint32}
		}
		if err := binary.WriteLE(sw, uint32(n)); err != nil {
			return nil, err
		}
		if err := sw.WriteString(prefix); err != nil {
			return nil, err
		}
		if err := picture.EncodeBase64(&buf, p); err != nil {
			return nil, fmt.Errorf("encode picture: %w", err)
		}
	}

	count := len(h.Comments) + len(h.RawPictures) + len(h.Pictures)
	if count > math.MaxUint32 {
		return nil, &types.OutOfBoundsError{What: "comment count", Length: int64(count), Size: math.MaxUint32}
	}
	gobinary.LittleEndian.PutUint32(buf.Bytes()[countAt:], uint32(count))
	return buf.Bytes(), nil
}

// preserved reports whether trailing packet data must be kept verbatim:
// the low bit of its first byte is set.
func preserved(padding []byte) bool {
	return len(padding) > 0 && padding[0]&1 == 1
}

// choosePadding returns the bytes to append to a body of bodyLen bytes
// replacing a header that encoded to oldLen bytes.
func choosePadding(bodyLen, oldLen int64, old []byte, opts Options) []byte {
	switch {
	case preserved(old):
		return old
	case opts.NoPadding:
		return nil
	case opts.Padding > 0:
		return make([]byte, opts.Padding)
	}
	return make([]byte, autoPadding(bodyLen, oldLen))
}

// autoPadding looks for a padding amount within the band that makes the
// new pages exactly as long as the old ones, and falls back to the middle
// of the band.
func autoPadding(bodyLen, oldLen int64) int64 {
	// Page overhead depends on the padding itself, so refine a few times.
	p := oldLen - LayoutLen(Layout(bodyLen))
	for range 4 {
		if p < MinPadding || p > MaxPadding {
			break
		}
		diff := oldLen - LayoutLen(Layout(bodyLen+p))
		if diff == 0 {
			return p
		}
		p += diff
	}
	return DefaultPadding
}

// Layout splits a packet of n bytes into comment page payload sizes. A
// remainder of at most WiggleRoom bytes joins the last full page.
func Layout(n int64) []int {
	full := int(n / PageDataSize)
	rem := int(n % PageDataSize)

	sizes := make([]int, full, full+1)
	for i := range sizes {
		sizes[i] = PageDataSize
	}
	switch {
	case rem == 0 && full > 0:
	case rem <= WiggleRoom && full > 0:
		sizes[full-1] += rem
	default:
		sizes = append(sizes, rem)
	}
	return sizes
}

// LayoutLen returns the encoded length of pages with the given payload
// sizes. Only the last page terminates the packet.
func LayoutLen(sizes []int) int64 {
	var total int64
	for i, n := range sizes {
		total += int64(ogg.HeaderSize + len(ogg.Lacing(n, i == len(sizes)-1)) + n)
	}
	return total
}

// Paginate encodes packet as comment pages: granule 0, the first page
// fresh and the rest continued, sequence numbers from 1.
func Paginate(packet []byte, serial uint32) ([][]byte, error) {
	sizes := Layout(int64(len(packet)))
	pages := make([][]byte, 0, len(sizes))

	off := 0
	for i, n := range sizes {
		p := &ogg.Page{
			Header: ogg.Header{
				Serial:   serial,
				Sequence: uint32(i + 1),
				Segments: ogg.Lacing(n, i == len(sizes)-1),
			},
			Data: packet[off : off+n],
		}
		if i > 0 {
			p.Type = ogg.FlagContinued
		}

		raw, err := p.Encode()
		if err != nil {
			return nil, fmt.Errorf("encode comment page %d: %w", i+1, err)
		}
		pages = append(pages, raw)
		off += n
	}
	return pages, nil
}

// Splice moves the bytes in [start, end) by delta and resizes the file to
// end+delta. Growing copies back to front and shrinking front to back, so
// no chunk is overwritten before it is read.
func Splice(f File, start, end, delta int64) error {
	buf := make([]byte, min(shiftChunk, max(end-start, 1)))

	if delta > 0 {
		for pos := end; pos > start; {
			n := min(int64(len(buf)), pos-start)
			pos -= n
			if err := moveChunk(f, buf[:n], pos, delta); err != nil {
				return err
			}
		}
	} else if delta < 0 {
		for pos := start; pos < end; {
			n := min(int64(len(buf)), end-pos)
			if err := moveChunk(f, buf[:n], pos, delta); err != nil {
				return err
			}
			pos += n
		}
	}

	if err := f.Truncate(end + delta); err != nil {
		return fmt.Errorf("resize file: %w", err)
	}
	return nil
}

func moveChunk(f File, buf []byte, pos, delta int64) error {
	if err := readAt(f, buf, pos); err != nil {
		return fmt.Errorf("read audio at %d: %w", pos, err)
	}
	if _, err := f.WriteAt(buf, pos+delta); err != nil {
		return fmt.Errorf("write audio at %d: %w", pos+delta, err)
	}
	return nil
}

// readAt fills buf, accepting io.EOF when it arrives with the last byte.
func readAt(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) && (err == nil || errors.Is(err, io.EOF)) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// renumber rewrites the sequence numbers of the stream's pages in
// [off, end), starting at seq. It does nothing when the comment page count
// is unchanged.
func renumber(f File, path string, old *layout, off, end int64, seq uint32) (int, error) {
	if int(seq-1) == old.pages {
		return 0, nil
	}

	buf := make([]byte, ogg.MaxPageSize)
	count := 0
	for off < end {
		h, size, err := pageAt(f, path, buf, off, end)
		if err != nil {
			return count, err
		}
		if h.Serial != old.serial {
			return count, &types.CorruptedFileError{Path: path, Offset: off, Sequence: h.Sequence, Err: types.ErrSerialMismatch}
		}

		raw := buf[:size]
		if err := readAt(f, raw, off); err != nil {
			return count, fmt.Errorf("%s: read page at %d: %w", path, off, err)
		}
		if err := ogg.Resequence(raw, seq); err != nil {
			return count, &types.CorruptedFileError{Path: path, Offset: off, Sequence: h.Sequence, Err: err}
		}
		// Only the sequence number and checksum changed.
		if _, err := f.WriteAt(raw[:ogg.HeaderSize], off); err != nil {
			return count, fmt.Errorf("%s: write page header at %d: %w", path, off, err)
		}

		seq++
		count++
		off += size
	}
	return count, nil
}

// checkSerials fails on the first page in [off, end) that belongs to
// another logical stream.
func checkSerials(f File, path string, serial uint32, off, end int64) error {
	buf := make([]byte, ogg.MaxHeaderSize)
	for off < end {
		h, size, err := pageAt(f, path, buf, off, end)
		if err != nil {
			return err
		}
		if h.Serial != serial {
			return &types.CorruptedFileError{Path: path, Offset: off, Sequence: h.Sequence, Err: types.ErrSerialMismatch}
		}
		off += size
	}
	return nil
}

// pageAt parses the header of the page at off, which must end by end.
// buf holds at least ogg.MaxHeaderSize bytes.
func pageAt(f File, path string, buf []byte, off, end int64) (*ogg.Header, int64, error) {
	hdr := buf[:min(ogg.MaxHeaderSize, end-off)]
	if err := readAt(f, hdr, off); err != nil {
		return nil, 0, fmt.Errorf("%s: read page header at %d: %w", path, off, err)
	}
	h, err := ogg.ParseHeader(hdr)
	if err != nil {
		return nil, 0, &types.CorruptedFileError{Path: path, Offset: off, Err: err}
	}
	size := int64(h.Len())
	if off+size > end {
		return nil, 0, &types.CorruptedFileError{Path: path, Offset: off, Sequence: h.Sequence, Err: types.ErrUnterminatedPage}
	}
	return h, size, nil
}
