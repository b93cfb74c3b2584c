// Package flacimport reads the tag metadata of FLAC files so it can be
// carried over into an Opus comment header.
package flacimport

import (
	"fmt"
	"io"
	"os"
	"strings"

	flac "github.com/go-flac/go-flac"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"

	"github.com/simonhull/opusmeta/internal/picture"
	"github.com/simonhull/opusmeta/internal/types"
	"github.com/simonhull/opusmeta/internal/vorbis"
)

// Metadata is the tag content of a FLAC file.
type Metadata struct {
	Vendor   string
	Comments types.Comments
	Pictures []*types.Picture

	// Problems with individual comments or pictures. The entries concerned
	// are left out.
	Warnings []types.Warning
}

// Read parses the metadata blocks of the FLAC file at path.
func Read(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return ReadFrom(f, path)
}

// ReadFrom parses the metadata blocks of a FLAC stream.
func ReadFrom(r io.Reader, path string) (*Metadata, error) {
	f, err := flac.ParseBytes(r)
	if err != nil {
		return nil, &types.UnsupportedFormatError{Path: path, Reason: "not a FLAC file: " + err.Error()}
	}

	md := &Metadata{}
	for _, block := range f.Meta {
		switch block.Type {
		case flac.VorbisComment:
			cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
			if err != nil {
				md.warn("comments", fmt.Sprintf("unreadable VORBIS_COMMENT block: %v", err))
				continue
			}
			md.addComments(cmt, path)

		case flac.Picture:
			pic, err := flacpicture.ParseFromMetaDataBlock(*block)
			if err != nil {
				md.warn("pictures", fmt.Sprintf("unreadable PICTURE block: %v", err))
				continue
			}
			p := convertPicture(pic)
			if !p.Type.Valid() {
				md.warn("pictures", fmt.Sprintf("picture type %d out of range", uint32(p.Type)))
				continue
			}
			md.Pictures = append(md.Pictures, p)
		}
	}
	return md, nil
}

func (md *Metadata) warn(stage, msg string) {
	md.Warnings = append(md.Warnings, types.Warning{Stage: stage, Message: msg})
}

// addComments copies the comments of one block. Pictures embedded as
// METADATA_BLOCK_PICTURE comments are decoded alongside the PICTURE blocks.
func (md *Metadata) addComments(cmt *flacvorbis.MetaDataBlockVorbisComment, path string) {
	if md.Vendor == "" {
		md.Vendor = cmt.Vendor
	}

	for _, raw := range cmt.Comments {
		c, err := vorbis.Split(raw)
		if err != nil {
			md.warn("comments", err.Error())
			continue
		}
		if c.Key != vorbis.PictureKey {
			md.Comments = append(md.Comments, c)
			continue
		}

		p, err := picture.DecodeBase64(strings.NewReader(c.Value), int64(len(c.Value)), path)
		if err != nil {
			md.warn("pictures", err.Error())
			continue
		}
		md.Pictures = append(md.Pictures, p)
	}
}

func convertPicture(pic *flacpicture.MetadataBlockPicture) *types.Picture {
	return &types.Picture{
		Type:        types.PictureType(pic.PictureType),
		MIMEType:    pic.MIME,
		Description: pic.Description,
		Width:       pic.Width,
		Height:      pic.Height,
		ColorDepth:  pic.ColorDepth,
		ColorCount:  pic.IndexedColorCount,
		Data:        pic.ImageData,
	}
}
