package opusmeta

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/simonhull/opusmeta/internal/ogg"
	"github.com/simonhull/opusmeta/internal/picture"
	"github.com/simonhull/opusmeta/internal/types"
)

// Picture is an alias to types.Picture.
type Picture = types.Picture

// PictureType is an alias to types.PictureType.
type PictureType = types.PictureType

// Re-export all picture type constants.
const (
	PictureOther             = types.PictureOther
	PictureIcon              = types.PictureIcon
	PictureOtherIcon         = types.PictureOtherIcon
	PictureFrontCover        = types.PictureFrontCover
	PictureBackCover         = types.PictureBackCover
	PictureLeaflet           = types.PictureLeaflet
	PictureMedia             = types.PictureMedia
	PictureLeadArtist        = types.PictureLeadArtist
	PictureArtist            = types.PictureArtist
	PictureConductor         = types.PictureConductor
	PictureBand              = types.PictureBand
	PictureComposer          = types.PictureComposer
	PictureLyricist          = types.PictureLyricist
	PictureRecordingLocation = types.PictureRecordingLocation
	PictureDuringRecording   = types.PictureDuringRecording
	PictureDuringPerformance = types.PictureDuringPerformance
	PictureVideoCapture      = types.PictureVideoCapture
	PictureBrightFish        = types.PictureBrightFish
	PictureIllustration      = types.PictureIllustration
	PictureBandLogotype      = types.PictureBandLogotype
	PicturePublisherLogotype = types.PicturePublisherLogotype
)

// PictureRef describes an embedded picture without holding its data.
//
// The header fields are read by Open. Load decodes the full block from
// the file on first use and caches it.
type PictureRef struct {
	Type        PictureType
	MIMEType    string
	Description string
	Width       uint32
	Height      uint32
	ColorDepth  uint32
	ColorCount  uint32

	// Size of the image data in bytes
	Size int64

	// Err is set when Open could not use the picture: its block failed to
	// decode or it was larger than WithMaxPictureSize. Load returns Err.
	// Save writes such a picture back exactly as it was read.
	Err error

	load func() (*Picture, error)
	raw  func() (string, error)
	pic  *Picture
}

// NewPictureRef wraps a picture that is already in memory, for adding it
// to File.Pictures.
func NewPictureRef(p *Picture) *PictureRef {
	ref := refFromHeader(p, int64(len(p.Data)))
	ref.pic = p
	return ref
}

// NewPictureFromImage wraps encoded image data. The MIME type, dimensions
// and color depth are read from the image header.
func NewPictureFromImage(typ PictureType, description string, data []byte) (*PictureRef, error) {
	p := &Picture{Type: typ, Description: description, Data: data}
	if err := picture.Dimensions(p); err != nil {
		return nil, err
	}
	return NewPictureRef(p), nil
}

func refFromHeader(p *Picture, size int64) *PictureRef {
	return &PictureRef{
		Type:        p.Type,
		MIMEType:    p.MIMEType,
		Description: p.Description,
		Width:       p.Width,
		Height:      p.Height,
		ColorDepth:  p.ColorDepth,
		ColorCount:  p.ColorCount,
		Size:        size,
	}
}

// Loaded reports whether the picture data is in memory.
func (r *PictureRef) Loaded() bool {
	return r.pic != nil
}

// Load returns the full picture, reading it from the file the first time.
func (r *PictureRef) Load() (*Picture, error) {
	if r.pic != nil {
		return r.pic, nil
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if r.load == nil {
		return nil, errors.New("picture has no data source")
	}

	p, err := r.load()
	if err != nil {
		return nil, err
	}
	r.pic = p
	return p, nil
}

// Image decodes the picture data. It returns the image and the format name
// registered by its decoder ("jpeg", "png", "webp", ...).
func (r *PictureRef) Image() (image.Image, string, error) {
	p, err := r.Load()
	if err != nil {
		return nil, "", err
	}
	return picture.DecodeImage(p)
}

// Extension returns a file extension matching the MIME type.
func (r *PictureRef) Extension() string {
	switch r.MIMEType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tiff"
	case "image/webp":
		return ".webp"
	case picture.URLMIMEType:
		return ".url"
	default:
		return ".bin"
	}
}

func (r *PictureRef) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s (unreadable: %v)", r.Type, r.Err)
	}
	dims := ""
	if r.Width > 0 && r.Height > 0 {
		dims = fmt.Sprintf("%dx%d ", r.Width, r.Height)
	}
	kind := strings.ToUpper(strings.TrimPrefix(r.Extension(), "."))
	return fmt.Sprintf("%s (%s%s, %s)", r.Type, dims, kind, humanSize(r.Size))
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%dKB", n>>10)
	default:
		return fmt.Sprintf("%dB", n)
	}
}

// LoadPicture decodes the picture whose base64 comment value starts at
// byteOffset within the data of the page at pageOffset and runs for length
// bytes. The offsets are the ones recorded by Open.
func LoadPicture(path string, pageOffset int64, byteOffset int, length int64) (*Picture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return loadPicture(f, path, pageOffset, byteOffset, length)
}

func loadPicture(src ogg.Source, path string, pageOffset int64, byteOffset int, length int64) (*Picture, error) {
	pkt, err := resumeValue(src, path, pageOffset, byteOffset)
	if err != nil {
		return nil, err
	}
	return picture.DecodeBase64(io.LimitReader(pkt, length), length, path)
}

// loadPictureValue reads the base64 text of a picture comment unchanged.
func loadPictureValue(path string, pageOffset int64, byteOffset int, length int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	pkt, err := resumeValue(f, path, pageOffset, byteOffset)
	if err != nil {
		return "", err
	}
	value, err := pkt.ReadFull(int(length), "picture comment")
	if err != nil {
		return "", err
	}
	return string(value), nil
}

// resumeValue positions a packet reader at a comment value recorded by Open.
func resumeValue(src ogg.Source, path string, pageOffset int64, byteOffset int) (*ogg.PacketReader, error) {
	r, err := ogg.NewReader(src, path)
	if err != nil {
		return nil, err
	}
	if err := r.Seek(pageOffset); err != nil {
		return nil, err
	}
	h, err := r.PeekHeader()
	if errors.Is(err, io.EOF) {
		return nil, &types.OutOfBoundsError{Path: path, What: "picture page", Offset: pageOffset}
	}
	if err != nil {
		return nil, err
	}
	return ogg.ResumePacketReader(r, h.Serial, pageOffset, byteOffset)
}
