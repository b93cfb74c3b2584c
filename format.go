package opusmeta

import (
	"io"

	"github.com/simonhull/opusmeta/internal/binary"
	"github.com/simonhull/opusmeta/internal/types"
)

// Format is the container format detected from a file's leading bytes.
// Only FormatOpus can be opened; the others exist so callers get a precise
// error for files that are not Opus.
type Format int

const (
	FormatUnknown Format = iota
	FormatOpus
	FormatOgg // Ogg with a first stream that is not Opus
	FormatFLAC
	FormatMP3
	FormatM4A
	FormatWAV
)

var formatNames = [...]string{
	FormatUnknown: "Unknown",
	FormatOpus:    "Opus",
	FormatOgg:     "Ogg",
	FormatFLAC:    "FLAC",
	FormatMP3:     "MP3",
	FormatM4A:     "M4A",
	FormatWAV:     "WAV",
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return "Unknown"
	}
	return formatNames[f]
}

// Extensions returns the usual file extensions for the format.
func (f Format) Extensions() []string {
	switch f {
	case FormatOpus:
		return []string{".opus"}
	case FormatOgg:
		return []string{".ogg", ".oga"}
	case FormatFLAC:
		return []string{".flac"}
	case FormatMP3:
		return []string{".mp3"}
	case FormatM4A:
		return []string{".m4a", ".m4b", ".mp4"}
	case FormatWAV:
		return []string{".wav"}
	default:
		return nil
	}
}

// DetectFormat determines the container format from magic bytes.
//
// An Ogg file is FormatOpus only when its first packet starts with
// "OpusHead". Detection does not validate anything beyond the signature.
func DetectFormat(r io.ReaderAt, size int64, path string) (Format, error) {
	if size < 4 {
		return FormatUnknown, &types.UnsupportedFormatError{Path: path, Reason: "file too small"}
	}

	sr := binary.NewSafeReader(r, size, path)
	magic := make([]byte, 4)
	if err := sr.ReadAt(magic, 0, "file magic bytes"); err != nil {
		return FormatUnknown, &types.UnsupportedFormatError{Path: path, Reason: "failed to read file header"}
	}

	switch {
	case string(magic) == "OggS":
		return detectOgg(sr), nil
	case string(magic) == "fLaC":
		return FormatFLAC, nil
	case string(magic[:3]) == "ID3", magic[0] == 0xFF && magic[1]&0xE0 == 0xE0:
		return FormatMP3, nil
	case string(magic) == "RIFF":
		tag := make([]byte, 4)
		if err := sr.ReadAt(tag, 8, "WAVE tag"); err == nil && string(tag) == "WAVE" {
			return FormatWAV, nil
		}
	}

	if typ, err := binary.ReadBE[uint32](sr, 4, "ftyp atom type"); err == nil && typ == 0x66747970 {
		return FormatM4A, nil
	}
	return FormatUnknown, &types.UnsupportedFormatError{Path: path, Reason: "unrecognized file signature"}
}

// detectOgg looks for the OpusHead magic at the start of the first packet.
func detectOgg(sr *binary.SafeReader) Format {
	nseg, err := binary.ReadBE[uint8](sr, 26, "segment count")
	if err != nil {
		return FormatOgg
	}
	codec := make([]byte, 8)
	if err := sr.ReadAt(codec, 27+int64(nseg), "codec magic"); err != nil {
		return FormatOgg
	}
	if string(codec) == "OpusHead" {
		return FormatOpus
	}
	return FormatOgg
}

// requireOpus fails with a descriptive error unless the file is Opus.
func requireOpus(r io.ReaderAt, size int64, path string) error {
	format, err := DetectFormat(r, size, path)
	if err != nil {
		return err
	}
	if format != FormatOpus {
		return &types.UnsupportedFormatError{Path: path, Reason: format.String() + " file is not Ogg Opus"}
	}
	return nil
}
