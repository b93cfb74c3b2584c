// Package ogg implements the Ogg page layer: page framing and checksums,
// a buffered page reader and a reader for logical packets spanning pages.
package ogg

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/simonhull/opusmeta/internal/types"
)

// Page layout constants.
const (
	Magic = "OggS"

	// HeaderSize is the fixed part of a page header, before the segment table.
	HeaderSize = 27

	MaxSegments   = 255
	MaxHeaderSize = HeaderSize + MaxSegments // 282
	MaxDataSize   = MaxSegments * 255        // 65025
	MaxPageSize   = MaxHeaderSize + MaxDataSize

	// Field offsets inside the header.
	offsetType     = 5
	offsetGranule  = 6
	offsetSerial   = 14
	offsetSequence = 18
	offsetCRC      = 22
	offsetSegments = 26
)

// Header type flags.
const (
	FlagContinued byte = 0x01
	FlagFirst     byte = 0x02
	FlagLast      byte = 0x04
)

// Header is a decoded page header.
type Header struct {
	Version  byte
	Type     byte
	Granule  int64
	Serial   uint32
	Sequence uint32
	CRC      uint32
	Segments []byte
}

// HeaderLen is the encoded size of the header including the segment table.
func (h *Header) HeaderLen() int {
	return HeaderSize + len(h.Segments)
}

// DataLen is the sum of the lacing values.
func (h *Header) DataLen() int {
	n := 0
	for _, s := range h.Segments {
		n += int(s)
	}
	return n
}

// Len is the encoded size of the whole page.
func (h *Header) Len() int {
	return h.HeaderLen() + h.DataLen()
}

// IsContinued reports whether the page starts with the tail of a packet
// begun on an earlier page.
func (h *Header) IsContinued() bool { return h.Type&FlagContinued != 0 }

// IsFirst reports the beginning-of-stream flag.
func (h *Header) IsFirst() bool { return h.Type&FlagFirst != 0 }

// IsLast reports the end-of-stream flag.
func (h *Header) IsLast() bool { return h.Type&FlagLast != 0 }

// Page is a page header together with its payload. Pages returned by
// Reader own Data.
type Page struct {
	Header

	Data []byte

	// Offset of the page's capture pattern in the file.
	Offset int64
}

// ParseHeader decodes the fixed header fields and segment table from b,
// which must start at a capture pattern. It returns the types sentinel
// errors for framing problems; callers attach the file position.
func ParseHeader(b []byte) (*Header, error) {
	if len(b) < HeaderSize {
		return nil, types.ErrTruncatedHeader
	}
	if string(b[:4]) != Magic {
		return nil, types.ErrInvalidMagic
	}
	if b[4] != 0 {
		return nil, types.ErrUnsupportedVersion
	}

	nseg := int(b[offsetSegments])
	if len(b) < HeaderSize+nseg {
		return nil, types.ErrTruncatedHeader
	}

	return &Header{
		Version:  b[4],
		Type:     b[offsetType],
		Granule:  int64(binary.LittleEndian.Uint64(b[offsetGranule:])),
		Serial:   binary.LittleEndian.Uint32(b[offsetSerial:]),
		Sequence: binary.LittleEndian.Uint32(b[offsetSequence:]),
		CRC:      binary.LittleEndian.Uint32(b[offsetCRC:]),
		Segments: slices.Clone(b[HeaderSize : HeaderSize+nseg]),
	}, nil
}

// checksum computes the CRC of an encoded page as if its CRC field were zero.
func checksum(raw []byte) uint32 {
	var zero [4]byte
	crc := UpdateCRC(0, raw[:offsetCRC])
	crc = UpdateCRC(crc, zero[:])
	return UpdateCRC(crc, raw[offsetCRC+4:])
}

// Encode serializes the page and stores the computed checksum in p.CRC.
func (p *Page) Encode() ([]byte, error) {
	if len(p.Segments) > MaxSegments {
		return nil, fmt.Errorf("page has %d segments, maximum is %d", len(p.Segments), MaxSegments)
	}
	if p.DataLen() != len(p.Data) {
		return nil, fmt.Errorf("segment table describes %d bytes, page holds %d", p.DataLen(), len(p.Data))
	}

	raw := make([]byte, p.Len())
	copy(raw, Magic)
	raw[4] = p.Version
	raw[offsetType] = p.Type
	binary.LittleEndian.PutUint64(raw[offsetGranule:], uint64(p.Granule))
	binary.LittleEndian.PutUint32(raw[offsetSerial:], p.Serial)
	binary.LittleEndian.PutUint32(raw[offsetSequence:], p.Sequence)
	raw[offsetSegments] = byte(len(p.Segments))
	copy(raw[HeaderSize:], p.Segments)
	copy(raw[p.HeaderLen():], p.Data)

	p.CRC = checksum(raw)
	binary.LittleEndian.PutUint32(raw[offsetCRC:], p.CRC)
	return raw, nil
}

// Lacing returns the segment table for n bytes of packet data. When ends
// is true the table terminates the packet, which adds a final value below
// 255 (0 when n is a multiple of 255). When ends is false n must be a
// multiple of 255 so the packet carries on to the next page.
func Lacing(n int, ends bool) []byte {
	full := n / 255
	size := full
	if ends {
		size++
	}
	segs := make([]byte, size)
	for i := range full {
		segs[i] = 255
	}
	if ends {
		segs[full] = byte(n % 255)
	}
	return segs
}

// packetEnd returns the number of data bytes up to and including the end
// of the first packet on a page, and whether that packet ends there.
func packetEnd(segments []byte) (int, bool) {
	n := 0
	for _, s := range segments {
		n += int(s)
		if s < 255 {
			return n, true
		}
	}
	return n, false
}

// Resequence rewrites the sequence number of an encoded page in place and
// recomputes its checksum. The existing checksum is verified first so a
// corrupt page is never silently re-blessed.
func Resequence(raw []byte, seq uint32) error {
	h, err := ParseHeader(raw)
	if err != nil {
		return err
	}
	if len(raw) != h.Len() {
		return types.ErrUnterminatedPage
	}
	if checksum(raw) != h.CRC {
		return types.ErrChecksum
	}

	binary.LittleEndian.PutUint32(raw[offsetSequence:], seq)
	binary.LittleEndian.PutUint32(raw[offsetCRC:], checksum(raw))
	return nil
}
