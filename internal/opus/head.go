// Package opus implements the Opus identification header, the OpusTags
// comment header reader and the in-place comment header writer.
package opus

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/simonhull/opusmeta/internal/ogg"
	"github.com/simonhull/opusmeta/internal/types"
)

const (
	headMagic = "OpusHead"

	// headSize is the size of a family 0 header; other families append
	// stream count, coupled count and one mapping byte per channel.
	headSize = 19

	// SampleRate is the rate every Opus decoder outputs, whatever the
	// input rate recorded in the header.
	SampleRate = 48000
)

// Head is the OpusHead identification header.
type Head struct {
	Version         byte
	Channels        byte
	PreSkip         uint16
	InputSampleRate uint32

	// OutputGain is a Q7.8 fixed point gain in dB.
	OutputGain int16

	MappingFamily byte

	// Present only when MappingFamily != 0.
	StreamCount  byte
	CoupledCount byte
	Mapping      []byte
}

// GainDB returns the output gain in decibels.
func (h *Head) GainDB() float64 {
	return float64(h.OutputGain) / 256
}

// expectedSize returns the packet size the header fields imply.
func expectedSize(channels, family byte) int {
	if family == 0 {
		return headSize
	}
	return headSize + 2 + int(channels)
}

// ParseHead decodes an identification header packet. The packet must be
// exactly the size its channel count and mapping family imply.
func ParseHead(data []byte, path string) (*Head, error) {
	if len(data) < headSize {
		return nil, &types.InvalidDataError{
			Path: path, What: "OpusHead", Expected: headSize, Actual: int64(len(data)),
		}
	}
	if string(data[:8]) != headMagic {
		return nil, &types.UnsupportedFormatError{
			Path:   path,
			Reason: fmt.Sprintf("first packet starts with %q, not %q", data[:8], headMagic),
		}
	}

	h := &Head{
		Version:         data[8],
		Channels:        data[9],
		PreSkip:         binary.LittleEndian.Uint16(data[10:]),
		InputSampleRate: binary.LittleEndian.Uint32(data[12:]),
		OutputGain:      int16(binary.LittleEndian.Uint16(data[16:])),
		MappingFamily:   data[18],
	}

	// The high nibble is the major version; minor versions are compatible.
	if h.Version>>4 != 0 {
		return nil, &types.InvalidDataError{
			Path: path, What: "OpusHead", Reason: fmt.Sprintf("unsupported version %d", h.Version),
		}
	}
	if h.Channels == 0 {
		return nil, &types.InvalidDataError{Path: path, What: "OpusHead", Reason: "channel count is 0"}
	}

	if want := expectedSize(h.Channels, h.MappingFamily); len(data) != want {
		return nil, &types.InvalidDataError{
			Path: path, What: "OpusHead", Expected: int64(want), Actual: int64(len(data)),
		}
	}

	if h.MappingFamily != 0 {
		h.StreamCount = data[19]
		h.CoupledCount = data[20]
		h.Mapping = bytes.Clone(data[21:])
	}
	return h, nil
}

// ParseHeadPage decodes the identification header from the first page of
// a stream. The page must start the stream and hold exactly the one
// complete packet.
func ParseHeadPage(page *ogg.Page, path string) (*Head, error) {
	if !page.IsFirst() || page.IsContinued() {
		return nil, &types.CorruptedFileError{
			Path:     path,
			Offset:   page.Offset,
			Sequence: page.Sequence,
			Reason:   "identification header page must be a fresh beginning-of-stream page",
			Err:      types.ErrContinuation,
		}
	}

	segs := page.Segments
	if len(segs) == 0 || segs[len(segs)-1] == 255 {
		return nil, &types.InvalidDataError{
			Path: path, What: "OpusHead page", Reason: "identification header continues past its page",
		}
	}
	for _, s := range segs[:len(segs)-1] {
		if s < 255 {
			return nil, &types.InvalidDataError{
				Path: path, What: "OpusHead page", Reason: "identification page holds more than one packet",
			}
		}
	}

	return ParseHead(page.Data, path)
}

// Encode serializes the header.
func (h *Head) Encode() ([]byte, error) {
	if h.MappingFamily != 0 && len(h.Mapping) != int(h.Channels) {
		return nil, fmt.Errorf("mapping table has %d entries for %d channels", len(h.Mapping), h.Channels)
	}

	buf := make([]byte, expectedSize(h.Channels, h.MappingFamily))
	copy(buf, headMagic)
	buf[8] = h.Version
	buf[9] = h.Channels
	binary.LittleEndian.PutUint16(buf[10:], h.PreSkip)
	binary.LittleEndian.PutUint32(buf[12:], h.InputSampleRate)
	binary.LittleEndian.PutUint16(buf[16:], uint16(h.OutputGain))
	buf[18] = h.MappingFamily
	if h.MappingFamily != 0 {
		buf[19] = h.StreamCount
		buf[20] = h.CoupledCount
		copy(buf[21:], h.Mapping)
	}
	return buf, nil
}
