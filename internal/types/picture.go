package types

import "fmt"

// Picture is an image embedded through a METADATA_BLOCK_PICTURE comment.
//
// The layout is the FLAC picture block: every field is stored in the
// block, including the dimensions, which may be zero when the writer did
// not know them.
type Picture struct {
	// Type of picture (front cover, back cover, artist photo, etc.)
	Type PictureType

	// MIME type of the image data, or "-->" when Data holds a URL
	MIMEType string

	// Description of the picture (UTF-8, optional)
	Description string

	// Dimensions in pixels
	Width  uint32
	Height uint32

	// Bits per pixel
	ColorDepth uint32

	// Number of palette colors for indexed images, 0 otherwise
	ColorCount uint32

	// Image binary data
	Data []byte
}

// PictureType categorizes the purpose/content of a picture.
//
// The codes are the ID3v2 APIC picture types, shared by FLAC and Opus.
// Values above PicturePublisherLogotype are rejected when decoding.
type PictureType uint32

const (
	PictureOther              PictureType = iota // Other
	PictureIcon                                  // File icon (32x32 PNG)
	PictureOtherIcon                             // Other file icon
	PictureFrontCover                            // Front cover
	PictureBackCover                             // Back cover
	PictureLeaflet                               // Leaflet page
	PictureMedia                                 // Media (CD/vinyl label)
	PictureLeadArtist                            // Lead artist/performer/soloist
	PictureArtist                                // Artist/performer
	PictureConductor                             // Conductor
	PictureBand                                  // Band/orchestra
	PictureComposer                              // Composer
	PictureLyricist                              // Lyricist/text writer
	PictureRecordingLocation                     // Recording location
	PictureDuringRecording                       // During recording
	PictureDuringPerformance                     // During performance
	PictureVideoCapture                          // Movie/video screen capture
	PictureBrightFish                            // A bright colored fish
	PictureIllustration                          // Illustration
	PictureBandLogotype                          // Band/artist logotype
	PicturePublisherLogotype                     // Publisher/studio logotype
)

var pictureTypeNames = [...]string{
	"Other",
	"File icon",
	"Other file icon",
	"Front cover",
	"Back cover",
	"Leaflet page",
	"Media",
	"Lead artist",
	"Artist",
	"Conductor",
	"Band",
	"Composer",
	"Lyricist",
	"Recording location",
	"During recording",
	"During performance",
	"Video capture",
	"A bright colored fish",
	"Illustration",
	"Band logotype",
	"Publisher logotype",
}

// Valid reports whether t is one of the 21 defined picture types.
func (t PictureType) Valid() bool {
	return t <= PicturePublisherLogotype
}

func (t PictureType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("PictureType(%d)", uint32(t))
	}
	return pictureTypeNames[t]
}

// String returns a human-readable description of the picture.
//
// Example output: "Front cover (1200x1200 JPEG, 245KB)"
func (p Picture) String() string {
	dims := ""
	if p.Width > 0 && p.Height > 0 {
		dims = fmt.Sprintf("%dx%d ", p.Width, p.Height)
	}
	return fmt.Sprintf("%s (%s%s, %s)", p.Type, dims, mimeToFormat(p.MIMEType), formatSize(len(p.Data)))
}

// formatSize formats byte size in human-readable form.
func formatSize(bytes int) string {
	const (
		KB = 1024
		MB = 1024 * KB
	)

	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.1fMB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%dKB", bytes/KB)
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}

// mimeToFormat converts MIME type to short format name.
func mimeToFormat(mime string) string {
	switch mime {
	case "image/jpeg", "image/jpg":
		return "JPEG"
	case "image/png":
		return "PNG"
	case "image/gif":
		return "GIF"
	case "image/bmp":
		return "BMP"
	case "image/tiff":
		return "TIFF"
	case "image/webp":
		return "WebP"
	case "-->":
		return "URL"
	default:
		return "Image"
	}
}
