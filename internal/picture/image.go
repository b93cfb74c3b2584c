package picture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/simonhull/opusmeta/internal/types"
)

// URLMIMEType marks a picture whose data is a URL instead of image bytes.
const URLMIMEType = "-->"

// DecodeImage decodes the picture data. It returns the image and the name
// of the format that decoded it.
func DecodeImage(p *types.Picture) (image.Image, string, error) {
	if p.MIMEType == URLMIMEType {
		return nil, "", fmt.Errorf("picture data is a URL, not an image")
	}
	img, format, err := image.Decode(bytes.NewReader(p.Data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s image: %w", p.MIMEType, err)
	}
	return img, format, nil
}

// Dimensions fills Width, Height and ColorDepth from the image data when
// they are zero, and MIMEType when it is empty. Only the image header is
// decoded.
func Dimensions(p *types.Picture) error {
	if p.MIMEType == URLMIMEType {
		return nil
	}
	if p.Width != 0 && p.Height != 0 && p.ColorDepth != 0 && p.MIMEType != "" {
		return nil
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(p.Data))
	if err != nil {
		return fmt.Errorf("read image header: %w", err)
	}
	if p.Width == 0 {
		p.Width = uint32(cfg.Width)
	}
	if p.Height == 0 {
		p.Height = uint32(cfg.Height)
	}
	if p.ColorDepth == 0 {
		p.ColorDepth = colorDepth(cfg.ColorModel)
	}
	if p.MIMEType == "" {
		p.MIMEType = "image/" + format
	}
	if pal, ok := cfg.ColorModel.(color.Palette); ok && p.ColorCount == 0 {
		p.ColorCount = uint32(len(pal))
	}
	return nil
}

// colorDepth returns bits per pixel for the common color models.
func colorDepth(m color.Model) uint32 {
	if _, ok := m.(color.Palette); ok {
		return 8
	}
	switch m {
	case color.GrayModel:
		return 8
	case color.Gray16Model:
		return 16
	case color.YCbCrModel:
		return 24
	case color.RGBA64Model, color.NRGBA64Model:
		return 64
	}
	return 32
}
