// Package picture decodes and encodes the FLAC picture block carried in
// METADATA_BLOCK_PICTURE comments.
//
// Block layout, all integers 32-bit big-endian:
//   - picture type
//   - MIME type length, MIME type
//   - description length, description (UTF-8)
//   - width, height, color depth, indexed color count
//   - data length, image data
package picture

import (
	"encoding/base64"
	gobinary "encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/simonhull/opusmeta/internal/binary"
	"github.com/simonhull/opusmeta/internal/types"
)

// headerSize is the size of a block with empty strings and no data.
const headerSize = 32

// DecodeHeader reads every field before the image data from r, which holds
// at most limit bytes. It returns the picture without Data and the declared
// data length, leaving r positioned at the first data byte.
func DecodeHeader(r io.Reader, limit int64, path string) (*types.Picture, int64, error) {
	d := binary.NewDecoder(r, limit, path)
	p, n := decodeHeader(d, path)
	if err := d.Err(); err != nil {
		return nil, 0, err
	}
	return p, n, nil
}

func decodeHeader(d *binary.Decoder, path string) (*types.Picture, int64) {
	p := &types.Picture{}

	typ := binary.BE[uint32](d, "picture type")
	if d.Err() == nil && !types.PictureType(typ).Valid() {
		d.Fail(&types.InvalidDataError{
			Path: path, What: "picture block", Reason: fmt.Sprintf("unknown picture type %d", typ),
		})
	}
	p.Type = types.PictureType(typ)

	p.MIMEType = d.String(int64(binary.BE[uint32](d, "MIME type length")), "MIME type")
	p.Description = d.String(int64(binary.BE[uint32](d, "description length")), "description")
	p.Width = binary.BE[uint32](d, "width")
	p.Height = binary.BE[uint32](d, "height")
	p.ColorDepth = binary.BE[uint32](d, "color depth")
	p.ColorCount = binary.BE[uint32](d, "color count")
	n := int64(binary.BE[uint32](d, "picture data length"))

	// Reject the data length here so DecodeHeader callers see it too.
	if d.Err() == nil && n > d.Remaining() {
		d.Fail(&types.OutOfBoundsError{
			Path: path, What: "picture data", Offset: d.Consumed(), Length: n, Size: d.Consumed() + d.Remaining(),
		})
	}
	return p, n
}

// Decode reads a whole picture block. r must hold the block and nothing
// else; limit caps the bytes r may supply.
func Decode(r io.Reader, limit int64, path string) (*types.Picture, error) {
	d := binary.NewDecoder(r, limit, path)
	p, n := decodeHeader(d, path)
	p.Data = d.Bytes(n, "picture data")
	if err := d.Err(); err != nil {
		return nil, err
	}

	var extra [1]byte
	k, err := io.ReadFull(r, extra[:])
	if k > 0 {
		return nil, &types.InvalidDataError{
			Path:   path,
			What:   "picture block",
			Reason: fmt.Sprintf("trailing bytes after %d byte block", d.Consumed()),
		}
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &types.InvalidDataError{
			Path:   path,
			What:   "picture block",
			Reason: fmt.Sprintf("after %d byte block: %v", d.Consumed(), err),
		}
	}
	return p, nil
}

// DecodeBase64 decodes the value of a METADATA_BLOCK_PICTURE comment.
func DecodeBase64(value io.Reader, n int64, path string) (*types.Picture, error) {
	return Decode(base64.NewDecoder(base64.StdEncoding, value), int64(base64.StdEncoding.DecodedLen(int(n))), path)
}

// Encode writes p as a picture block.
func Encode(w io.Writer, p *types.Picture) error {
	if !p.Type.Valid() {
		return &types.InvalidDataError{What: "picture block", Reason: fmt.Sprintf("unknown picture type %d", p.Type)}
	}
	if int64(len(p.Data)) > math.MaxUint32 {
		return &types.OutOfBoundsError{What: "picture data", Length: int64(len(p.Data)), Size: math.MaxUint32}
	}

	sw := binary.NewSafeWriter(w)
	if err := binary.Write(sw, uint32(p.Type)); err != nil {
		return err
	}
	if err := binary.WriteCounted(sw, gobinary.BigEndian, "MIME type", p.MIMEType); err != nil {
		return err
	}
	if err := binary.WriteCounted(sw, gobinary.BigEndian, "description", p.Description); err != nil {
		return err
	}
	for _, v := range []uint32{p.Width, p.Height, p.ColorDepth, p.ColorCount} {
		if err := binary.Write(sw, v); err != nil {
			return err
		}
	}
	if err := binary.Write(sw, uint32(len(p.Data))); err != nil {
		return err
	}
	return sw.WriteBytes(p.Data)
}

// EncodedLen returns the size of the block Encode writes for p.
func EncodedLen(p *types.Picture) int64 {
	return headerSize + int64(len(p.MIMEType)) + int64(len(p.Description)) + int64(len(p.Data))
}

// Base64Len returns the length of the base64 text of p's block.
func Base64Len(p *types.Picture) int64 {
	return int64(base64.StdEncoding.EncodedLen(int(EncodedLen(p))))
}

// EncodeBase64 writes the base64 text of p's block.
func EncodeBase64(w io.Writer, p *types.Picture) error {
	enc := base64.NewEncoder(base64.StdEncoding, w)
	if err := Encode(enc, p); err != nil {
		return err
	}
	return enc.Close()
}
