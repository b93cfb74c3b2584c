package opusmeta_test

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/simonhull/opusmeta"
	"github.com/simonhull/opusmeta/internal/oggtest"
)

func writeOpus(tb testing.TB, spec oggtest.Spec) string {
	tb.Helper()
	data, _ := oggtest.Build(spec)
	return oggtest.WriteFile(tb, "song.opus", data)
}

// pngBytes encodes a small opaque image.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 40), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestOpen(t *testing.T) {
	path := writeOpus(t, oggtest.Spec{
		Serial:  0x1234,
		PreSkip: 312,
		Vendor:  "libopus 1.4",
		Comments: []string{
			"TITLE=Song",
			"artist=Band",
			"TRACKNUMBER=3/12",
			"R128_TRACK_GAIN=-256",
			"CHAPTER001=00:00:00.000",
			"CHAPTER001NAME=Intro",
		},
	})

	file, err := opusmeta.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if file.Vendor != "libopus 1.4" {
		t.Errorf("Vendor = %q", file.Vendor)
	}
	if file.Serial != 0x1234 {
		t.Errorf("Serial = %#x", file.Serial)
	}
	if got := file.Comments.First("ARTIST"); got != "Band" {
		t.Errorf("ARTIST = %q, want lowercase key read back upper-cased", got)
	}
	if len(file.Comments) != 6 {
		t.Errorf("Comments = %d entries, want 6", len(file.Comments))
	}
	if len(file.Warnings) != 0 {
		t.Errorf("Warnings = %v", file.Warnings)
	}

	tags := file.Tags()
	if tags.Title != "Song" || tags.Artist != "Band" {
		t.Errorf("Tags() title/artist = %q/%q", tags.Title, tags.Artist)
	}
	if tags.TrackNumber != 3 || tags.TrackTotal != 12 {
		t.Errorf("Tags() track = %d/%d, want 3/12", tags.TrackNumber, tags.TrackTotal)
	}

	if gain, ok := file.TrackGain(); !ok || gain != -1 {
		t.Errorf("TrackGain() = %v, %v; want -1, true", gain, ok)
	}
	if _, ok := file.AlbumGain(); ok {
		t.Error("AlbumGain() reported a value")
	}

	if file.Audio.Channels != 2 || file.Audio.PreSkip != 312 || file.Audio.InputSampleRate != 48000 {
		t.Errorf("Audio = %+v", file.Audio)
	}
	// Three pages of 960 samples after a 312 sample pre-skip.
	if file.LastGranule() != 312+3*960 {
		t.Errorf("LastGranule() = %d", file.LastGranule())
	}
	if file.Duration() != 60*time.Millisecond {
		t.Errorf("Duration() = %v, want 60ms", file.Duration())
	}
	// Three 228 byte audio pages over 60ms.
	if file.Audio.Bitrate != 91200 {
		t.Errorf("Bitrate = %d, want 91200", file.Audio.Bitrate)
	}

	want := []opusmeta.Chapter{{Index: 1, Title: "Intro", StartTime: 0, EndTime: 60 * time.Millisecond}}
	if !reflect.DeepEqual(file.Chapters, want) {
		t.Errorf("Chapters = %+v, want %+v", file.Chapters, want)
	}
}

func TestOpen_WithoutDuration(t *testing.T) {
	path := writeOpus(t, oggtest.Spec{Serial: 1, Vendor: "test"})

	file, err := opusmeta.Open(path, opusmeta.WithDuration(false))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if file.Duration() != 0 || file.LastGranule() != -1 {
		t.Errorf("Duration() = %v, LastGranule() = %d", file.Duration(), file.LastGranule())
	}
}

func TestOpen_Pictures(t *testing.T) {
	img := pngBytes(t, 3, 2)
	// Large enough to spread the picture comment over several pages.
	big := bytes.Repeat([]byte{0xAB}, 10000)

	path := writeOpus(t, oggtest.Spec{
		Serial: 9,
		Vendor: "test",
		Comments: []string{
			"TITLE=Song",
			oggtest.PictureComment(oggtest.PictureBlock(3, "image/png", "cover", 3, 2, 32, 0, img)),
			oggtest.PictureComment(oggtest.PictureBlock(4, "image/jpeg", "", 0, 0, 0, 0, big)),
		},
	})

	file, err := opusmeta.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(file.Comments) != 1 {
		t.Errorf("Comments = %v, want pictures kept out of the list", file.Comments)
	}
	if len(file.Pictures) != 2 {
		t.Fatalf("Pictures = %d, want 2", len(file.Pictures))
	}

	cover := file.Pictures[0]
	if cover.Type != opusmeta.PictureFrontCover || cover.MIMEType != "image/png" || cover.Description != "cover" {
		t.Errorf("cover = %+v", cover)
	}
	if cover.Size != int64(len(img)) || cover.Loaded() {
		t.Errorf("cover Size = %d, Loaded() = %v", cover.Size, cover.Loaded())
	}
	if cover.Extension() != ".png" {
		t.Errorf("Extension() = %q", cover.Extension())
	}

	m, format, err := cover.Image()
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	if format != "png" || m.Bounds().Dx() != 3 || m.Bounds().Dy() != 2 {
		t.Errorf("Image() = %v %s", m.Bounds(), format)
	}

	back, err := file.Pictures[1].Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if back.Type != opusmeta.PictureBackCover || !bytes.Equal(back.Data, big) {
		t.Errorf("back cover = %v", back)
	}
	if !file.Pictures[1].Loaded() {
		t.Error("Loaded() = false after Load")
	}
}

func TestOpen_PicturePreload(t *testing.T) {
	data := []byte("GIF89a-not-really")
	path := writeOpus(t, oggtest.Spec{
		Serial:   9,
		Vendor:   "test",
		Comments: []string{oggtest.PictureComment(oggtest.PictureBlock(8, "image/gif", "", 0, 0, 0, 0, data))},
	})

	file, err := opusmeta.Open(path, opusmeta.WithPicturePreload())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	// The file can go away once everything is in memory.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	p, err := file.Pictures[0].Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !bytes.Equal(p.Data, data) {
		t.Errorf("Data = %q, want %q", p.Data, data)
	}
}

func TestOpen_Warnings(t *testing.T) {
	tests := []struct {
		name    string
		comment string
		stage   string
	}{
		{"invalid key", "BAD\x01KEY=x", "comments"},
		{"missing separator", "NOSEPARATOR", "comments"},
		{"bad base64", "METADATA_BLOCK_PICTURE=!!!!", "pictures"},
		{"unknown picture type", oggtest.PictureComment(oggtest.PictureBlock(21, "image/png", "", 0, 0, 0, 0, nil)), "pictures"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeOpus(t, oggtest.Spec{
				Serial:   1,
				Vendor:   "test",
				Comments: []string{"TITLE=before", tt.comment, "ARTIST=after"},
			})

			file, err := opusmeta.Open(path)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if got := file.Comments.Strings(); !reflect.DeepEqual(got, []string{"TITLE=before", "ARTIST=after"}) {
				t.Errorf("Comments = %q", got)
			}
			if len(file.Warnings) != 1 || file.Warnings[0].Stage != tt.stage {
				t.Errorf("Warnings = %+v, want one %q warning", file.Warnings, tt.stage)
			}
			if tt.stage == "pictures" && (len(file.Pictures) != 1 || file.Pictures[0].Err == nil) {
				t.Errorf("Pictures = %v, want the broken picture listed with Err", file.Pictures)
			}

			if _, err := opusmeta.Open(path, opusmeta.WithStrictParsing()); err == nil {
				t.Error("Open(WithStrictParsing) succeeded")
			}

			file, err = opusmeta.Open(path, opusmeta.WithIgnoreWarnings())
			if err != nil || len(file.Warnings) != 0 {
				t.Errorf("Open(WithIgnoreWarnings) = %v warnings, error %v", len(file.Warnings), err)
			}
		})
	}
}

func TestOpen_MaxPictureSize(t *testing.T) {
	path := writeOpus(t, oggtest.Spec{
		Serial: 1,
		Vendor: "test",
		Comments: []string{
			oggtest.PictureComment(oggtest.PictureBlock(3, "image/png", "", 0, 0, 0, 0, make([]byte, 100))),
			oggtest.PictureComment(oggtest.PictureBlock(4, "image/png", "", 0, 0, 0, 0, make([]byte, 10))),
		},
	})

	file, err := opusmeta.Open(path, opusmeta.WithMaxPictureSize(50))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(file.Pictures) != 2 {
		t.Fatalf("Pictures = %v, want both listed", file.Pictures)
	}
	front, back := file.Pictures[0], file.Pictures[1]
	if front.Type != opusmeta.PictureFrontCover || front.Size != 100 || front.Err == nil {
		t.Errorf("front = %+v, want its header and Err set", front)
	}
	if _, err := front.Load(); err == nil {
		t.Error("Load() of a skipped picture succeeded")
	}
	if back.Type != opusmeta.PictureBackCover || back.Err != nil {
		t.Errorf("back = %+v, want a usable picture", back)
	}
	if len(file.Warnings) != 1 || !strings.Contains(file.Warnings[0].Message, "exceeds limit") {
		t.Errorf("Warnings = %+v", file.Warnings)
	}
}

func TestOpen_HugeDeclaredPictureLength(t *testing.T) {
	// A picture header claiming a 2 GiB MIME type inside a comment that
	// claims to be 4 GiB long. The file itself is a few hundred bytes.
	var block bytes.Buffer
	binary.Write(&block, binary.BigEndian, uint32(3))
	binary.Write(&block, binary.BigEndian, uint32(0x7ffffff0))
	block.WriteString("image/jpeg")
	value := "METADATA_BLOCK_PICTURE=" + base64.StdEncoding.EncodeToString(block.Bytes())

	var tags bytes.Buffer
	tags.WriteString("OpusTags")
	binary.Write(&tags, binary.LittleEndian, uint32(0))
	binary.Write(&tags, binary.LittleEndian, uint32(1))
	binary.Write(&tags, binary.LittleEndian, uint32(0xfffffff0))
	tags.WriteString(value)

	s := oggtest.NewStream(1)
	head := oggtest.OpusHead(2, 0, 48000, 0, 0, nil)
	s.Page(0x02, 0, oggtest.Lacing(len(head)), head)
	s.Page(0, 0, oggtest.Lacing(tags.Len()), tags.Bytes())
	audio := oggtest.AudioData(0, 50)
	s.Page(0x04, 960, oggtest.Lacing(len(audio)), audio)
	path := oggtest.WriteFile(t, "huge.opus", s.Bytes())

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := opusmeta.Open(path, opusmeta.WithPicturePreload())
	runtime.ReadMemStats(&after)

	if err == nil {
		t.Error("Open() succeeded on a truncated comment")
	}
	if n := after.TotalAlloc - before.TotalAlloc; n > 64<<20 {
		t.Errorf("Open() allocated %d MiB for a %d byte file", n>>20, len(s.Bytes()))
	}
}

func TestOpen_Errors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		_, err := opusmeta.Open("/nonexistent/path.opus")
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Open() error = %v, want os.ErrNotExist", err)
		}
	})

	t.Run("not opus", func(t *testing.T) {
		path := oggtest.WriteFile(t, "song.flac", []byte("fLaC\x00\x00\x00\x22"))
		_, err := opusmeta.Open(path)
		var unsupported *opusmeta.UnsupportedFormatError
		if !errors.As(err, &unsupported) {
			t.Errorf("Open() error = %v, want *UnsupportedFormatError", err)
		}
	})

	t.Run("corrupt comment page", func(t *testing.T) {
		data, s := oggtest.Build(oggtest.Spec{Serial: 1, Vendor: "test", Comments: []string{"TITLE=x"}})
		data[s.Offsets[1]+30] ^= 0xFF
		path := oggtest.WriteFile(t, "song.opus", data)

		_, err := opusmeta.Open(path)
		if !errors.Is(err, opusmeta.ErrChecksum) {
			t.Errorf("Open() error = %v, want ErrChecksum", err)
		}
	})
}

func TestLastGranule(t *testing.T) {
	path := writeOpus(t, oggtest.Spec{Serial: 77, PreSkip: 100, Vendor: "test", AudioPages: 5})

	got, err := opusmeta.LastGranule(path, 77)
	if err != nil {
		t.Fatalf("LastGranule() error = %v", err)
	}
	if got != 100+5*960 {
		t.Errorf("LastGranule() = %d, want %d", got, 100+5*960)
	}

	if _, err := opusmeta.LastGranule(path, 78); !errors.Is(err, opusmeta.ErrSerialMismatch) {
		t.Errorf("LastGranule(other serial) error = %v, want ErrSerialMismatch", err)
	}
}

func TestLoadPicture(t *testing.T) {
	block := oggtest.PictureBlock(3, "image/jpeg", "front", 10, 10, 24, 0, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	value := base64.StdEncoding.EncodeToString(block)

	data, s := oggtest.Build(oggtest.Spec{
		Serial:   1,
		Vendor:   "test",
		Comments: []string{"METADATA_BLOCK_PICTURE=" + value},
	})
	path := oggtest.WriteFile(t, "song.opus", data)

	// "OpusTags", vendor length and "test", comment count, comment length,
	// then the key and '='.
	byteOffset := 8 + 4 + 4 + 4 + 4 + len("METADATA_BLOCK_PICTURE=")

	p, err := opusmeta.LoadPicture(path, s.Offsets[1], byteOffset, int64(len(value)))
	if err != nil {
		t.Fatalf("LoadPicture() error = %v", err)
	}
	if p.Description != "front" || p.Width != 10 || !bytes.Equal(p.Data, []byte{0xFF, 0xD8, 0xFF, 0xE0}) {
		t.Errorf("LoadPicture() = %+v", p)
	}

	if _, err := opusmeta.LoadPicture(path, int64(len(data)), 0, 10); err == nil {
		t.Error("LoadPicture() past end of file succeeded")
	}
}

func TestFile_SetChapters(t *testing.T) {
	path := writeOpus(t, oggtest.Spec{
		Serial:   1,
		Vendor:   "test",
		Comments: []string{"CHAPTER001=00:00:00.000", "TITLE=Book", "CHAPTER001NAME=Old"},
	})
	file, err := opusmeta.Open(path)
	if err != nil {
		t.Fatal(err)
	}

	file.SetChapters([]opusmeta.Chapter{
		{Title: "One", StartTime: 0},
		{Title: "Two", StartTime: 30 * time.Millisecond},
	})

	want := []string{
		"TITLE=Book",
		"CHAPTER001=00:00:00.000",
		"CHAPTER001NAME=One",
		"CHAPTER002=00:00:00.030",
		"CHAPTER002NAME=Two",
	}
	if got := file.Comments.Strings(); !reflect.DeepEqual(got, want) {
		t.Errorf("Comments = %q, want %q", got, want)
	}
	if len(file.Chapters) != 2 || file.Chapters[0].EndTime != 30*time.Millisecond {
		t.Errorf("Chapters = %+v", file.Chapters)
	}
}

func TestPictureRef_String(t *testing.T) {
	ref := opusmeta.NewPictureRef(&opusmeta.Picture{
		Type:     opusmeta.PictureFrontCover,
		MIMEType: "image/jpeg",
		Width:    1200,
		Height:   1200,
		Data:     make([]byte, 245*1024),
	})
	if got, want := ref.String(), "Front cover (1200x1200 JPG, 245KB)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestNewPictureFromImage(t *testing.T) {
	ref, err := opusmeta.NewPictureFromImage(opusmeta.PictureBackCover, "back", pngBytes(t, 7, 3))
	if err != nil {
		t.Fatalf("NewPictureFromImage() error = %v", err)
	}
	if ref.MIMEType != "image/png" || ref.Width != 7 || ref.Height != 3 || !ref.Loaded() {
		t.Errorf("NewPictureFromImage() = %+v", ref)
	}

	if _, err := opusmeta.NewPictureFromImage(opusmeta.PictureBackCover, "", []byte("not an image")); err == nil {
		t.Error("NewPictureFromImage() accepted garbage")
	}
}
