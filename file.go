package opusmeta

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/simonhull/opusmeta/internal/ogg"
	"github.com/simonhull/opusmeta/internal/opus"
	"github.com/simonhull/opusmeta/internal/picture"
	"github.com/simonhull/opusmeta/internal/types"
	"github.com/simonhull/opusmeta/internal/vorbis"
)

// File is the parsed header state of an Ogg Opus file.
//
// Open reads the identification and comment headers and closes the file
// again; nothing is held open. Pictures are loaded on demand from Path.
//
// Vendor, Comments and Pictures may be edited and written back with Save
// or SaveAs.
type File struct {
	// Path to the file
	Path string

	// File size in bytes when opened
	Size int64

	// Identification header
	Head *Head

	// Serial number of the Opus stream
	Serial uint32

	// Comment header contents, in file order
	Vendor   string
	Comments Comments
	Pictures []*PictureRef

	// Chapters decoded from CHAPTERxxx comments
	Chapters []Chapter

	// Audio technical properties
	Audio AudioInfo

	// Warnings encountered during parsing (non-fatal issues)
	Warnings []Warning

	audioOffset int64
	lastGranule int64 // -1 when not located
}

// Open opens an Opus file and reads its headers.
//
// If a comment or picture is malformed, Open skips it and records a
// warning instead of failing. Check File.Warnings for details.
//
// Example:
//
//	file, err := opusmeta.Open("song.opus")
//	if err != nil {
//		return err
//	}
//	tags := file.Tags()
//	fmt.Printf("%s - %s\n", tags.Artist, tags.Title)
func Open(path string, opts ...Option) (*File, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	file, err := openReader(f, stat.Size(), path, options)
	if err != nil {
		return nil, err
	}

	if options.strictParsing && len(file.Warnings) > 0 {
		return nil, fmt.Errorf("strict parsing failed: %s", file.Warnings[0].Message)
	}
	if options.ignoreWarnings {
		file.Warnings = nil
	}
	return file, nil
}

// openReader parses the headers from src, which must be positioned at the
// start of the file.
func openReader(src ogg.Source, size int64, path string, options *openOptions) (*File, error) {
	if err := requireOpus(src, size, path); err != nil {
		return nil, err
	}

	r, err := ogg.NewReader(src, path)
	if err != nil {
		return nil, err
	}
	tr := opus.NewTagReader(r)

	head, err := tr.ReadHead()
	if err != nil {
		return nil, err
	}
	vendor, err := tr.ReadVendor()
	if err != nil {
		return nil, err
	}

	file := &File{
		Path:        path,
		Size:        size,
		Head:        head,
		Serial:      tr.Serial(),
		Vendor:      vendor,
		Audio:       audioInfo(head),
		lastGranule: -1,
	}

	if err := file.readComments(tr, options); err != nil {
		return nil, err
	}

	file.audioOffset, err = tr.AudioOffset()
	if err != nil {
		var invalid *types.InvalidDataError
		if !errors.As(err, &invalid) {
			return nil, err
		}
		// Readable, but Rewrite will refuse the file.
		file.warn("comments", err.Error(), invalid.Offset)
		file.audioOffset = -1
	}

	if options.duration {
		file.readDuration(r)
	}
	file.Audio.Loudness = vorbis.MapLoudness(file.Comments)
	file.Chapters = vorbis.ParseChapters(file.Comments, file.Audio.Duration)

	options.logger.WithFields(logrus.Fields{
		"path":     path,
		"serial":   fmt.Sprintf("%08x", file.Serial),
		"comments": len(file.Comments),
		"pictures": len(file.Pictures),
		"warnings": len(file.Warnings),
		"duration": file.Audio.Duration,
	}).Debug("opened opus file")
	return file, nil
}

func (f *File) readComments(tr *opus.TagReader, options *openOptions) error {
	if _, err := tr.ReadCommentCount(); err != nil {
		return err
	}

	for {
		if _, err := tr.ReadCommentLength(); errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}

		key, err := tr.ReadKey()
		var keyErr *types.InvalidKeyError
		if errors.As(err, &keyErr) {
			f.warn("comments", fmt.Sprintf("comment %d skipped: %v", tr.Index(), err), 0)
			continue
		}
		if err != nil {
			return err
		}

		if key == vorbis.PictureKey {
			if err := f.readPicture(tr, options); err != nil {
				return err
			}
			continue
		}

		value, err := tr.ReadValue()
		if err != nil {
			return err
		}
		f.Comments = append(f.Comments, Comment{Key: key, Value: value})
	}
}

// readPicture decodes the header of a picture comment and records where
// its value starts so Load can come back for the data. A picture that
// cannot be used is still listed, with Err set, so Save keeps it.
func (f *File) readPicture(tr *opus.TagReader, options *openOptions) error {
	index := tr.Index()
	pageOffset, byteOffset, err := tr.ValuePosition()
	if err != nil {
		return err
	}
	value, n, err := tr.ValueReader()
	if err != nil {
		return err
	}

	dec := base64.NewDecoder(base64.StdEncoding, value)
	p, size, decodeErr := picture.DecodeHeader(dec, int64(base64.StdEncoding.DecodedLen(int(n))), f.Path)
	tooLarge := decodeErr == nil && options.maxPictureSize > 0 && size > options.maxPictureSize
	if decodeErr == nil && !tooLarge && options.preloadPictures {
		// size is only declared; grow with the bytes that arrive.
		var data bytes.Buffer
		data.Grow(int(min(size, 1<<16)))
		if _, err := io.CopyN(&data, dec, size); err != nil {
			decodeErr = fmt.Errorf("picture data: %w", err)
		} else {
			p.Data = data.Bytes()
		}
	}

	// Errors in the packet framing surface again here and are fatal.
	if err := tr.SkipValue(); err != nil {
		return err
	}

	path := f.Path
	var ref *PictureRef
	switch {
	case decodeErr != nil:
		f.warn("pictures", fmt.Sprintf("picture in comment %d: %v", index, decodeErr), pageOffset)
		ref = &PictureRef{Err: decodeErr}
	case tooLarge:
		f.warn("pictures", fmt.Sprintf("picture in comment %d skipped: %d bytes exceeds limit of %d",
			index, size, options.maxPictureSize), pageOffset)
		ref = refFromHeader(p, size)
		ref.Err = fmt.Errorf("%d bytes exceeds limit of %d", size, options.maxPictureSize)
	default:
		ref = refFromHeader(p, size)
		if options.preloadPictures {
			ref.pic = p
		}
		ref.load = func() (*Picture, error) {
			return LoadPicture(path, pageOffset, byteOffset, n)
		}
		f.Pictures = append(f.Pictures, ref)
		return nil
	}

	ref.raw = func() (string, error) {
		return loadPictureValue(path, pageOffset, byteOffset, n)
	}
	f.Pictures = append(f.Pictures, ref)
	return nil
}

// readDuration locates the last page of the stream. Failures only cost
// the duration and bitrate.
func (f *File) readDuration(r *ogg.Reader) {
	last, err := r.SeekLastPage(f.Serial)
	if err != nil {
		f.warn("duration", fmt.Sprintf("locate last page: %v", err), 0)
		return
	}
	f.lastGranule = last.Granule

	samples := last.Granule - int64(f.Head.PreSkip)
	if last.Granule < 0 || samples < 0 {
		f.warn("duration", fmt.Sprintf("last granule position %d is before pre-skip %d",
			last.Granule, f.Head.PreSkip), last.Offset)
		return
	}

	f.Audio.Duration = samplesToDuration(samples)
	if f.audioOffset > 0 && samples > 0 {
		bits := float64(f.Size-f.audioOffset) * 8
		f.Audio.Bitrate = int(bits * SampleRate / float64(samples))
	}
}

func samplesToDuration(samples int64) time.Duration {
	sec := samples / SampleRate
	rem := samples % SampleRate
	return time.Duration(sec)*time.Second + time.Duration(rem)*time.Second/SampleRate
}

func (f *File) warn(stage, msg string, offset int64) {
	f.Warnings = append(f.Warnings, Warning{Stage: stage, Message: msg, Offset: offset})
}

// Tags maps the comments onto common fields. A series position that no
// comment gives is taken from the name of the directory holding the file.
func (f *File) Tags() Tags {
	tags := vorbis.MapTags(f.Comments)
	if tags.Series != "" && tags.SeriesPart == "" {
		tags.SeriesPart = vorbis.SeriesPartFromPath(f.Path)
	}
	return tags
}

// Duration returns the playback length, or 0 when it is unknown.
func (f *File) Duration() time.Duration {
	return f.Audio.Duration
}

// LastGranule returns the granule position of the last page, or -1 when
// Open did not locate it.
func (f *File) LastGranule() int64 {
	return f.lastGranule
}

// AudioOffset returns the file offset of the first audio page as of Open,
// or -1 when the audio shares a page with the comment header.
func (f *File) AudioOffset() int64 {
	return f.audioOffset
}

// TrackGain returns the R128_TRACK_GAIN value in dB.
func (f *File) TrackGain() (float64, bool) {
	l := vorbis.MapLoudness(f.Comments)
	if l == nil {
		return 0, false
	}
	return l.TrackGain, l.HasTrackGain
}

// AlbumGain returns the R128_ALBUM_GAIN value in dB.
func (f *File) AlbumGain() (float64, bool) {
	l := vorbis.MapLoudness(f.Comments)
	if l == nil {
		return 0, false
	}
	return l.AlbumGain, l.HasAlbumGain
}

// SetChapters replaces every CHAPTERxxx comment with the given chapters,
// numbered in slice order, and refreshes f.Chapters.
func (f *File) SetChapters(chapters []Chapter) {
	kept := f.Comments[:0:0]
	for _, c := range f.Comments {
		if !vorbis.IsChapterKey(c.Key) {
			kept = append(kept, c)
		}
	}
	f.Comments = append(kept, vorbis.FormatChapters(chapters)...)
	f.Chapters = vorbis.ParseChapters(f.Comments, f.Audio.Duration)
}

// LastGranule returns the granule position of the last page of the stream
// with the given serial number in the file at path.
func LastGranule(path string, serial uint32) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	r, err := ogg.NewReader(f, path)
	if err != nil {
		return 0, err
	}
	page, err := r.SeekLastPage(serial)
	if err != nil {
		return 0, err
	}
	return page.Granule, nil
}

// OpenContext opens a file, checking ctx before starting.
func OpenContext(ctx context.Context, path string, opts ...Option) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Open(path, opts...)
}

// OpenMany opens multiple files concurrently.
//
// Files are parsed in parallel using up to runtime.NumCPU() goroutines.
// Results are returned in the same order as the input paths. If any file
// fails to open, the first error is returned and no files are.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//
//	files, err := opusmeta.OpenMany(ctx, paths, opusmeta.WithDuration(false))
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, f := range files {
//		fmt.Printf("%s: %s\n", f.Path, f.Tags().Title)
//	}
func OpenMany(ctx context.Context, paths []string, opts ...Option) ([]*File, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	results := make([]*File, len(paths))
	for i, path := range paths {
		g.Go(func() error {
			file, err := OpenContext(ctx, path, opts...)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = file
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
