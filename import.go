package opusmeta

import (
	"github.com/simonhull/opusmeta/internal/flacimport"
	"github.com/simonhull/opusmeta/internal/picture"
	"github.com/simonhull/opusmeta/internal/vorbis"
)

// ImportFLAC copies the comments and pictures of the FLAC file at src into
// f, replacing what f holds. The vendor string is left alone since it names
// the Opus encoder. Problems with individual FLAC entries are appended to
// f.Warnings.
//
//	file, _ := opusmeta.Open("song.opus")
//	if err := file.ImportFLAC("song.flac"); err != nil {
//		return err
//	}
//	err := file.Save()
func (f *File) ImportFLAC(src string) error {
	md, err := flacimport.Read(src)
	if err != nil {
		return err
	}

	f.Comments = md.Comments
	f.Pictures = f.Pictures[:0]
	for _, p := range md.Pictures {
		if p.Width == 0 || p.Height == 0 {
			// Best effort; the block is valid without dimensions.
			_ = picture.Dimensions(p) //nolint:errcheck
		}
		f.Pictures = append(f.Pictures, NewPictureRef(p))
	}
	f.Chapters = vorbis.ParseChapters(f.Comments, f.Audio.Duration)
	f.Warnings = append(f.Warnings, md.Warnings...)
	return nil
}
