package opus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/simonhull/opusmeta/internal/ogg"
	"github.com/simonhull/opusmeta/internal/types"
	"github.com/simonhull/opusmeta/internal/vorbis"
)

const tagsMagic = "OpusTags"

// State is the position of a TagReader within the header packets.
type State int

// States in stream order. StateCommentLength, StateComment and
// StateCommentValue repeat once per comment.
const (
	StateHead State = iota
	StateVendorLength
	StateVendor
	StateCommentCount
	StateCommentLength
	StateComment
	StateCommentValue
	StateAudio
)

var stateNames = [...]string{
	StateHead:          "head",
	StateVendorLength:  "vendor length",
	StateVendor:        "vendor",
	StateCommentCount:  "comment count",
	StateCommentLength: "comment length",
	StateComment:       "comment key",
	StateCommentValue:  "comment value",
	StateAudio:         "audio",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) inComment() bool {
	return s >= StateCommentLength && s <= StateCommentValue
}

// TagReader walks the identification and comment headers of an Ogg Opus
// stream in order.
//
// Every method belongs to one State. Calling a method of a later state
// skips whatever lies in between; calling one of an earlier state fails
// with *types.StateError. The comment states form a cycle: asking for a
// comment state the reader has already passed moves on to that state of
// the next comment. Once all comments are consumed the comment methods
// return io.EOF.
//
// A TagReader is not safe for concurrent use.
type TagReader struct {
	r     *ogg.Reader
	path  string
	state State
	err   error // sticky fatal error

	headPage *ogg.Page
	head     *Head
	serial   uint32
	pkt      *ogg.PacketReader

	vendorLen uint32
	count     uint32
	remaining uint32 // comments not yet finished, including the current one
	index     int    // index of the current comment, -1 before the first
	left      int64  // unread bytes of the current comment
	keyErr    error  // malformed key in the current comment

	padding     []byte
	paddingRead bool
}

// NewTagReader returns a reader positioned before the identification
// header page.
func NewTagReader(r *ogg.Reader) *TagReader {
	return &TagReader{r: r, path: r.Path(), index: -1}
}

// State returns the current state.
func (t *TagReader) State() State {
	return t.state
}

// Head returns the identification header, or nil before ReadHead.
func (t *TagReader) Head() *Head {
	return t.head
}

// HeadPage returns the page holding the identification header.
func (t *TagReader) HeadPage() *ogg.Page {
	return t.headPage
}

// Serial returns the stream serial number, valid after ReadHead.
func (t *TagReader) Serial() uint32 {
	return t.serial
}

// Count returns the declared number of comments, valid after
// ReadCommentCount.
func (t *TagReader) Count() uint32 {
	return t.count
}

// Index returns the zero-based index of the current comment.
func (t *TagReader) Index() int {
	return t.index
}

// ReadHead reads and validates the identification header page.
func (t *TagReader) ReadHead() (*Head, error) {
	if err := t.moveTo(StateHead, "ReadHead"); err != nil {
		return nil, err
	}
	if err := t.fail(t.readHead()); err != nil {
		return nil, err
	}
	return t.head, nil
}

// ReadVendorLength asserts the OpusTags magic and returns the vendor
// string length.
func (t *TagReader) ReadVendorLength() (uint32, error) {
	if err := t.moveTo(StateVendorLength, "ReadVendorLength"); err != nil {
		return 0, err
	}
	if err := t.fail(t.readVendorLength()); err != nil {
		return 0, err
	}
	return t.vendorLen, nil
}

// ReadVendor returns the vendor string.
func (t *TagReader) ReadVendor() (string, error) {
	if err := t.moveTo(StateVendor, "ReadVendor"); err != nil {
		return "", err
	}
	b, err := t.pkt.ReadFull(int(t.vendorLen), "vendor string")
	if err := t.fail(err); err != nil {
		return "", err
	}
	t.state = StateCommentCount
	return string(b), nil
}

// ReadCommentCount returns the declared number of comments.
func (t *TagReader) ReadCommentCount() (uint32, error) {
	if err := t.moveTo(StateCommentCount, "ReadCommentCount"); err != nil {
		return 0, err
	}
	if err := t.fail(t.readCommentCount()); err != nil {
		return 0, err
	}
	return t.count, nil
}

// ReadCommentLength starts the next comment and returns its length in
// bytes.
func (t *TagReader) ReadCommentLength() (uint32, error) {
	if err := t.moveTo(StateCommentLength, "ReadCommentLength"); err != nil {
		return 0, err
	}
	n, err := t.readCommentLength()
	if err := t.fail(err); err != nil {
		return 0, err
	}
	return n, nil
}

// ReadKey reads the field name of the current comment up to the '='
// separator and returns it upper-cased.
//
// A malformed name yields *types.InvalidKeyError. The reader stays usable:
// the next comment method skips the rest of the comment.
func (t *TagReader) ReadKey() (string, error) {
	if err := t.moveTo(StateComment, "ReadKey"); err != nil {
		return "", err
	}
	if t.keyErr != nil {
		return "", t.keyErr
	}
	return t.readKey()
}

// ReadValue returns the value of the current comment.
func (t *TagReader) ReadValue() (string, error) {
	if err := t.moveTo(StateCommentValue, "ReadValue"); err != nil {
		return "", err
	}
	b, err := t.pkt.ReadFull(int(t.left), "comment value")
	if err := t.fail(err); err != nil {
		return "", err
	}
	t.left = 0
	t.finishComment()
	return string(b), nil
}

// ValueReader returns a stream over the rest of the current value and its
// length. The stream ends with io.EOF at the end of the value; reading it
// after the TagReader has moved on fails with *types.StateError.
func (t *TagReader) ValueReader() (io.Reader, int64, error) {
	if err := t.moveTo(StateCommentValue, "ValueReader"); err != nil {
		return nil, 0, err
	}
	return &valueReader{t: t, index: t.index}, t.left, nil
}

// ValuePosition returns the page offset and the byte offset within that
// page's data of the next unread byte of the current value. Called before
// any of the value is read, it locates the start of the value.
func (t *TagReader) ValuePosition() (int64, int, error) {
	if err := t.moveTo(StateCommentValue, "ValuePosition"); err != nil {
		return 0, 0, err
	}
	page, off, err := t.pkt.Position()
	if err := t.fail(err); err != nil {
		return 0, 0, err
	}
	return page, off, nil
}

// SkipValue discards the rest of the current value.
func (t *TagReader) SkipValue() error {
	if err := t.moveTo(StateCommentValue, "SkipValue"); err != nil {
		return err
	}
	return t.fail(t.skipComment())
}

// ReadComment reads the next whole comment.
func (t *TagReader) ReadComment() (types.Comment, error) {
	if _, err := t.ReadCommentLength(); err != nil {
		return types.Comment{}, err
	}
	key, err := t.ReadKey()
	if err != nil {
		return types.Comment{}, err
	}
	value, err := t.ReadValue()
	if err != nil {
		return types.Comment{}, err
	}
	return types.Comment{Key: key, Value: value}, nil
}

// ReadPadding skips any remaining comments and returns the bytes that
// follow the comment list in the packet.
func (t *TagReader) ReadPadding() ([]byte, error) {
	if err := t.moveTo(StateAudio, "ReadPadding"); err != nil {
		return nil, err
	}
	if !t.paddingRead {
		rest, err := t.pkt.ReadRest()
		if err := t.fail(err); err != nil {
			return nil, err
		}
		t.padding = rest
		t.paddingRead = true
	}
	return t.padding, nil
}

// AudioOffset consumes the rest of the comment packet and returns the file
// offset of the first audio page, which is the end of the file when the
// stream has no audio.
func (t *TagReader) AudioOffset() (int64, error) {
	if _, err := t.ReadPadding(); err != nil {
		return 0, err
	}
	if n := t.pkt.Trailing(); n != 0 {
		last := t.pkt.Last()
		return 0, t.fail(&types.InvalidDataError{
			Path:   t.path,
			What:   "comment header",
			Offset: last.Offset,
			Reason: fmt.Sprintf("last comment page carries %d bytes of another packet", n),
		})
	}
	return t.r.Offset(), nil
}

// CommentPages returns how many pages of the comment packet have been
// read. After AudioOffset it is the page count of the whole packet.
func (t *TagReader) CommentPages() int {
	if t.pkt == nil {
		return 0
	}
	return t.pkt.Pages()
}

// moveTo advances the reader to target, skipping the states in between.
func (t *TagReader) moveTo(target State, op string) error {
	if t.err != nil {
		return t.err
	}
	if target < t.state && !(target.inComment() && t.state.inComment()) {
		if t.state == StateAudio && target.inComment() {
			return io.EOF
		}
		return &types.StateError{Op: op, Current: t.state.String(), Want: target.String()}
	}

	// Inside the comment cycle an earlier state means the same state of
	// the next comment, so finish the current one first.
	if target < t.state {
		for mark := t.remaining; t.remaining == mark; {
			if err := t.fail(t.step(target)); err != nil {
				return err
			}
		}
	}
	for t.state != target {
		if t.state == StateAudio {
			return io.EOF
		}
		if err := t.fail(t.step(target)); err != nil {
			return err
		}
	}
	return nil
}

// step leaves the current state, discarding what it covers.
func (t *TagReader) step(target State) error {
	switch t.state {
	case StateHead:
		return t.readHead()
	case StateVendorLength:
		return t.readVendorLength()
	case StateVendor:
		if err := t.pkt.Skip(int64(t.vendorLen), "vendor string"); err != nil {
			return err
		}
		t.state = StateCommentCount
		return nil
	case StateCommentCount:
		return t.readCommentCount()
	case StateCommentLength:
		_, err := t.readCommentLength()
		return err
	case StateComment:
		if target == StateCommentValue {
			if t.keyErr != nil {
				return t.keyErr
			}
			_, err := t.readKey()
			return err
		}
		return t.skipComment()
	case StateCommentValue:
		return t.skipComment()
	}
	return fmt.Errorf("step from %s", t.state)
}

func (t *TagReader) readHead() error {
	page, err := t.r.Next()
	if errors.Is(err, io.EOF) {
		return &types.UnsupportedFormatError{Path: t.path, Reason: "no Ogg pages"}
	}
	if err != nil {
		return err
	}
	head, err := ParseHeadPage(page, t.path)
	if err != nil {
		return err
	}

	t.headPage = page
	t.head = head
	t.serial = page.Serial
	t.pkt = ogg.NewPacketReader(t.r, page.Serial)
	t.state = StateVendorLength
	return nil
}

func (t *TagReader) readVendorLength() error {
	magic, err := t.pkt.ReadFull(len(tagsMagic), "OpusTags magic")
	if err != nil {
		return err
	}
	if string(magic) != tagsMagic {
		return &types.InvalidDataError{
			Path:   t.path,
			What:   "comment header",
			Reason: fmt.Sprintf("packet starts with %q, not %q", magic, tagsMagic),
		}
	}
	n, err := t.uint32("vendor length")
	if err != nil {
		return err
	}
	t.vendorLen = n
	t.state = StateVendor
	return nil
}

func (t *TagReader) readCommentCount() error {
	n, err := t.uint32("comment count")
	if err != nil {
		return err
	}
	t.count = n
	t.remaining = n
	if n == 0 {
		t.state = StateAudio
	} else {
		t.state = StateCommentLength
	}
	return nil
}

func (t *TagReader) readCommentLength() (uint32, error) {
	n, err := t.uint32("comment length")
	if err != nil {
		return 0, err
	}
	t.index++
	t.left = int64(n)
	t.keyErr = nil
	t.state = StateComment
	return n, nil
}

func (t *TagReader) readKey() (string, error) {
	key := make([]byte, 0, 32)
	for {
		if t.left == 0 {
			t.keyErr = &types.InvalidKeyError{Key: string(key), Reason: "missing '=' separator"}
			return "", t.keyErr
		}
		b, err := t.pkt.ReadByte()
		if err != nil {
			return "", t.fail(t.valueError(err, "comment key"))
		}
		t.left--

		if b == '=' {
			t.state = StateCommentValue
			return string(key), nil
		}
		if !vorbis.ValidKeyByte(b) {
			t.keyErr = &types.InvalidKeyError{
				Key:    string(append(key, b)),
				Reason: fmt.Sprintf("byte %#02x not allowed in field name", b),
			}
			return "", t.keyErr
		}
		if 'a' <= b && b <= 'z' {
			b -= 'a' - 'A'
		}
		key = append(key, b)
	}
}

// skipComment discards the rest of the current comment.
func (t *TagReader) skipComment() error {
	if err := t.pkt.Skip(t.left, "comment"); err != nil {
		return err
	}
	t.left = 0
	t.finishComment()
	return nil
}

func (t *TagReader) finishComment() {
	t.remaining--
	if t.remaining == 0 {
		t.state = StateAudio
	} else {
		t.state = StateCommentLength
	}
}

func (t *TagReader) uint32(what string) (uint32, error) {
	b, err := t.pkt.ReadFull(4, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// valueError turns the end of the packet inside a comment into a bounds
// error: the comment length promised more bytes than the packet holds.
func (t *TagReader) valueError(err error, what string) error {
	if errors.Is(err, io.EOF) {
		return &types.OutOfBoundsError{
			Path:   t.path,
			What:   what,
			Offset: t.pkt.Consumed(),
			Length: t.left,
			Size:   t.pkt.Consumed(),
		}
	}
	return err
}

// fail records err as the sticky error unless it leaves the reader usable.
func (t *TagReader) fail(err error) error {
	if err == nil {
		return nil
	}
	var keyErr *types.InvalidKeyError
	if !errors.As(err, &keyErr) && t.err == nil {
		t.err = err
	}
	return err
}

// valueReader streams one comment value. It leaves the reader in
// StateCommentValue; the next TagReader call finishes the comment.
type valueReader struct {
	t     *TagReader
	index int
}

func (v *valueReader) Read(b []byte) (int, error) {
	t := v.t
	if t.err != nil {
		return 0, t.err
	}
	if t.index != v.index || t.state != StateCommentValue {
		return 0, &types.StateError{Op: "value read", Current: t.state.String(), Want: StateCommentValue.String()}
	}
	if t.left == 0 {
		return 0, io.EOF
	}

	if int64(len(b)) > t.left {
		b = b[:t.left]
	}
	n, err := t.pkt.Read(b)
	t.left -= int64(n)
	if err != nil {
		return n, t.fail(t.valueError(err, "comment value"))
	}
	return n, nil
}
