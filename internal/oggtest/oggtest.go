// Package oggtest builds Ogg Opus byte streams for tests.
//
// The builder computes checksums on its own instead of using package ogg,
// so reader tests check against an independent encoder.
package oggtest

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

var crcTable = func() (t [256]uint32) {
	for i := range t {
		r := uint32(i) << 24
		for range 8 {
			if r&0x80000000 != 0 {
				r = r<<1 ^ 0x04C11DB7
			} else {
				r <<= 1
			}
		}
		t[i] = r
	}
	return t
}()

// Checksum computes the Ogg CRC of b.
func Checksum(b []byte) uint32 {
	var crc uint32
	for _, v := range b {
		crc = crc<<8 ^ crcTable[byte(crc>>24)^v]
	}
	return crc
}

// Page encodes one page with a valid checksum.
func Page(typ byte, granule int64, serial, seq uint32, segments, data []byte) []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("OggS")
	buf.WriteByte(0)
	buf.WriteByte(typ)
	binary.Write(buf, binary.LittleEndian, uint64(granule))
	binary.Write(buf, binary.LittleEndian, serial)
	binary.Write(buf, binary.LittleEndian, seq)
	binary.Write(buf, binary.LittleEndian, uint32(0))
	buf.WriteByte(byte(len(segments)))
	buf.Write(segments)
	buf.Write(data)

	raw := buf.Bytes()
	binary.LittleEndian.PutUint32(raw[22:], Checksum(raw))
	return raw
}

// Lacing returns the segment table of a complete packet of n bytes.
func Lacing(n int) []byte {
	segs := bytes.Repeat([]byte{255}, n/255)
	return append(segs, byte(n%255))
}

// Stream accumulates the pages of one logical stream.
type Stream struct {
	Serial uint32
	seq    uint32
	buf    bytes.Buffer

	// Offsets of every page written, in order.
	Offsets []int64
}

// NewStream starts an empty stream.
func NewStream(serial uint32) *Stream {
	return &Stream{Serial: serial}
}

// Page appends a page with the next sequence number.
func (s *Stream) Page(typ byte, granule int64, segments, data []byte) {
	s.Offsets = append(s.Offsets, int64(s.buf.Len()))
	s.buf.Write(Page(typ, granule, s.Serial, s.seq, segments, data))
	s.seq++
}

// Packet appends a packet split over pages holding at most pageData bytes
// each. pageData must be a multiple of 255. typ is applied to the first
// page; later pages add the continuation flag.
func (s *Stream) Packet(typ byte, granule int64, packet []byte, pageData int) {
	for first := true; ; first = false {
		flags := typ
		if !first {
			flags = 0x01
		}
		if len(packet) < pageData {
			s.Page(flags, granule, Lacing(len(packet)), packet)
			return
		}
		chunk := packet[:pageData]
		packet = packet[pageData:]
		if len(packet) == 0 {
			// Exact multiple: a zero lacing value ends the packet on this page.
			s.Page(flags, granule, Lacing(len(chunk)), chunk)
			return
		}
		s.Page(flags, granule, bytes.Repeat([]byte{255}, pageData/255), chunk)
	}
}

// Bytes returns the encoded stream.
func (s *Stream) Bytes() []byte {
	return s.buf.Bytes()
}

// Pages returns the number of pages written.
func (s *Stream) Pages() int {
	return int(s.seq)
}

// OpusHead builds an identification header. A nil mapping produces the
// 19-byte family 0 form.
func OpusHead(channels byte, preSkip uint16, rate uint32, gain int16, family byte, mapping []byte) []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("OpusHead")
	buf.WriteByte(1)
	buf.WriteByte(channels)
	binary.Write(buf, binary.LittleEndian, preSkip)
	binary.Write(buf, binary.LittleEndian, rate)
	binary.Write(buf, binary.LittleEndian, gain)
	buf.WriteByte(family)
	buf.Write(mapping)
	return buf.Bytes()
}

// OpusTags builds a comment header followed by padding.
func OpusTags(vendor string, comments []string, padding []byte) []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("OpusTags")
	binary.Write(buf, binary.LittleEndian, uint32(len(vendor)))
	buf.WriteString(vendor)
	binary.Write(buf, binary.LittleEndian, uint32(len(comments)))
	for _, c := range comments {
		binary.Write(buf, binary.LittleEndian, uint32(len(c)))
		buf.WriteString(c)
	}
	buf.Write(padding)
	return buf.Bytes()
}

// PictureBlock builds a big-endian FLAC picture block.
func PictureBlock(typ uint32, mime, desc string, width, height, depth, colors uint32, data []byte) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.BigEndian, typ)
	binary.Write(buf, binary.BigEndian, uint32(len(mime)))
	buf.WriteString(mime)
	binary.Write(buf, binary.BigEndian, uint32(len(desc)))
	buf.WriteString(desc)
	binary.Write(buf, binary.BigEndian, width)
	binary.Write(buf, binary.BigEndian, height)
	binary.Write(buf, binary.BigEndian, depth)
	binary.Write(buf, binary.BigEndian, colors)
	binary.Write(buf, binary.BigEndian, uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}

// PictureComment wraps a picture block as a METADATA_BLOCK_PICTURE comment.
func PictureComment(block []byte) string {
	return "METADATA_BLOCK_PICTURE=" + base64.StdEncoding.EncodeToString(block)
}

// AudioData returns deterministic payload bytes for audio page i.
func AudioData(i, n int) []byte {
	data := make([]byte, n)
	for j := range data {
		data[j] = byte(i*31 + j)
	}
	return data
}

// Spec describes a complete single-stream Opus file.
type Spec struct {
	Serial   uint32
	Channels byte
	PreSkip  uint16
	Vendor   string
	Comments []string
	Padding  []byte

	// TagsPageData caps comment page payloads (default 4080).
	TagsPageData int

	AudioPages     int   // default 3
	AudioPageSize  int   // default 200
	SamplesPerPage int64 // default 960
}

// Build encodes the file described by spec and returns it with the
// stream so callers can inspect page offsets.
func Build(spec Spec) ([]byte, *Stream) {
	if spec.Channels == 0 {
		spec.Channels = 2
	}
	if spec.TagsPageData == 0 {
		spec.TagsPageData = 4080
	}
	if spec.AudioPages == 0 {
		spec.AudioPages = 3
	}
	if spec.AudioPageSize == 0 {
		spec.AudioPageSize = 200
	}
	if spec.SamplesPerPage == 0 {
		spec.SamplesPerPage = 960
	}

	s := NewStream(spec.Serial)
	head := OpusHead(spec.Channels, spec.PreSkip, 48000, 0, 0, nil)
	s.Page(0x02, 0, Lacing(len(head)), head)
	s.Packet(0, 0, OpusTags(spec.Vendor, spec.Comments, spec.Padding), spec.TagsPageData)

	granule := int64(spec.PreSkip)
	for i := range spec.AudioPages {
		granule += spec.SamplesPerPage
		flags := byte(0)
		if i == spec.AudioPages-1 {
			flags = 0x04
		}
		data := AudioData(i, spec.AudioPageSize)
		s.Page(flags, granule, Lacing(len(data)), data)
	}
	return s.Bytes(), s
}

// WriteFile writes data under a fresh temp directory and returns the path.
func WriteFile(tb testing.TB, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}
