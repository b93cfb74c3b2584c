package flacimport

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/go-flac/flacvorbis"

	"github.com/simonhull/opusmeta/internal/oggtest"
	"github.com/simonhull/opusmeta/internal/types"
)

// block encodes a metadata block header followed by data.
func block(typ byte, last bool, data []byte) []byte {
	if last {
		typ |= 0x80
	}
	n := len(data)
	return append([]byte{typ, byte(n >> 16), byte(n >> 8), byte(n)}, data...)
}

func flacFile(blocks ...[]byte) []byte {
	buf := bytes.NewBufferString("fLaC")
	for _, b := range blocks {
		buf.Write(b)
	}
	// A stand-in frame so the stream has audio after the metadata.
	buf.Write([]byte{0xFF, 0xF8, 0x00, 0x00})
	return buf.Bytes()
}

func commentBlock(t *testing.T, vendor string, comments ...string) []byte {
	t.Helper()
	cmt := flacvorbis.New()
	cmt.Vendor = vendor
	cmt.Comments = comments
	return cmt.Marshal().Data
}

func TestRead(t *testing.T) {
	cover := oggtest.PictureBlock(3, "image/jpeg", "cover", 600, 600, 24, 0, []byte{0xFF, 0xD8, 0xFF})
	back := oggtest.PictureBlock(4, "image/png", "", 0, 0, 0, 0, []byte{0x89, 'P', 'N', 'G'})

	data := flacFile(
		block(0, false, make([]byte, 34)),
		block(4, false, commentBlock(t, "reference libFLAC 1.4.3",
			"title=Song",
			"ARTIST=Band",
			oggtest.PictureComment(back),
		)),
		block(6, true, cover),
	)
	path := oggtest.WriteFile(t, "test.flac", data)

	md, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if md.Vendor != "reference libFLAC 1.4.3" {
		t.Errorf("Vendor = %q", md.Vendor)
	}
	wantComments := types.Comments{{Key: "TITLE", Value: "Song"}, {Key: "ARTIST", Value: "Band"}}
	if !reflect.DeepEqual(md.Comments, wantComments) {
		t.Errorf("Comments = %v, want %v", md.Comments, wantComments)
	}

	wantPictures := []*types.Picture{
		{Type: types.PictureBackCover, MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
		{
			Type:        types.PictureFrontCover,
			MIMEType:    "image/jpeg",
			Description: "cover",
			Width:       600,
			Height:      600,
			ColorDepth:  24,
			Data:        []byte{0xFF, 0xD8, 0xFF},
		},
	}
	if !reflect.DeepEqual(md.Pictures, wantPictures) {
		t.Errorf("Pictures = %+v, want %+v", md.Pictures, wantPictures)
	}
	if len(md.Warnings) != 0 {
		t.Errorf("Warnings = %v", md.Warnings)
	}
}

func TestRead_Warnings(t *testing.T) {
	data := flacFile(
		block(0, false, make([]byte, 34)),
		block(4, false, commentBlock(t, "v",
			"NOSEPARATOR",
			"METADATA_BLOCK_PICTURE=!!!not base64",
			"GENRE=Rock",
		)),
		block(6, true, oggtest.PictureBlock(99, "image/png", "", 0, 0, 0, 0, nil)),
	)

	md, err := ReadFrom(bytes.NewReader(data), "test.flac")
	if err != nil {
		t.Fatalf("ReadFrom() error = %v", err)
	}
	if want := (types.Comments{{Key: "GENRE", Value: "Rock"}}); !reflect.DeepEqual(md.Comments, want) {
		t.Errorf("Comments = %v, want %v", md.Comments, want)
	}
	if len(md.Pictures) != 0 {
		t.Errorf("Pictures = %d, want 0", len(md.Pictures))
	}
	if len(md.Warnings) != 3 {
		t.Errorf("Warnings = %v, want 3 entries", md.Warnings)
	}
}

func TestRead_NotFLAC(t *testing.T) {
	_, err := ReadFrom(bytes.NewReader([]byte("OggS\x00\x02")), "test.opus")
	var unsupported *types.UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Errorf("ReadFrom() error = %v, want *types.UnsupportedFormatError", err)
	}
}
