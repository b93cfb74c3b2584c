package opusmeta

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/simonhull/opusmeta/internal/opus"
	"github.com/simonhull/opusmeta/internal/vorbis"
)

// Rewrite replaces the comment header of the Opus file at path in place.
//
// The audio pages are moved as needed and renumbered but never decoded.
// Rewrite edits the file directly; a failure part way through can leave it
// damaged. Use File.Save for an atomic update.
func Rewrite(path, vendor string, comments []Comment, pictures []*Picture, opts ...SaveOption) error {
	options := defaultSaveOptions()
	for _, opt := range opts {
		opt(options)
	}

	h := &opus.CommentHeader{Vendor: vendor, Comments: comments, Pictures: pictures}
	res, err := opus.WriteTags(path, h, options.writerOptions())
	if err != nil {
		return err
	}
	logResult(options.logger, path, res)
	return nil
}

func (o *saveOptions) writerOptions() opus.Options {
	return opus.Options{Padding: o.padding, NoPadding: o.noPadding, Logger: o.logger}
}

func logResult(log logrus.FieldLogger, path string, res *opus.Result) {
	log.WithFields(logrus.Fields{
		"path":       path,
		"old_len":    res.OldLen,
		"new_len":    res.NewLen,
		"padding":    res.Padding,
		"renumbered": res.Renumbered,
	}).Debug("comment header written")
}

// Save writes the vendor, comments and pictures back to the original file.
//
// This is an atomic operation: the file is copied to a temporary file, the
// copy is rewritten and then renamed over the original. If any step fails,
// the original file remains unchanged.
//
//	err := file.Save(
//	    opusmeta.WithBackup(".bak"),
//	    opusmeta.WithValidation(),
//	)
func (f *File) Save(opts ...SaveOption) error {
	return f.SaveAs(f.Path, opts...)
}

// SaveAs writes the file with the current header state to outputPath.
//
// Pictures that were never loaded are read from the source file first.
// Like Save, it works on a temporary file in the output directory unless
// WithInPlace is given.
func (f *File) SaveAs(outputPath string, opts ...SaveOption) error { //nolint:gocyclo // Atomic file operations require sequential steps
	options := defaultSaveOptions()
	for _, opt := range opts {
		opt(options)
	}

	h, err := f.commentHeader()
	if err != nil {
		return err
	}

	var origInfo os.FileInfo
	if options.preserveModTime {
		if info, err := os.Stat(f.Path); err == nil {
			origInfo = info
		}
	}

	if options.inPlace {
		if err := f.saveInPlace(outputPath, h, options); err != nil {
			return err
		}
	} else if err := f.saveAtomic(outputPath, h, options); err != nil {
		return err
	}

	if origInfo != nil {
		_ = os.Chtimes(outputPath, origInfo.ModTime(), origInfo.ModTime()) //nolint:errcheck // Non-fatal: file was written successfully
	}

	if options.validate {
		if err := validateWrittenFile(outputPath, h); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}
	return nil
}

// commentHeader gathers the state to write, loading lazy pictures.
// Pictures Open could not use are copied as their original text.
func (f *File) commentHeader() (*opus.CommentHeader, error) {
	h := &opus.CommentHeader{
		Vendor:   f.Vendor,
		Comments: f.Comments,
		Pictures: make([]*Picture, 0, len(f.Pictures)),
	}
	for i, ref := range f.Pictures {
		if ref.Err != nil && ref.raw != nil {
			v, err := ref.raw()
			if err != nil {
				return nil, fmt.Errorf("read picture %d: %w", i, err)
			}
			h.RawPictures = append(h.RawPictures, v)
			continue
		}
		p, err := ref.Load()
		if err != nil {
			return nil, fmt.Errorf("load picture %d: %w", i, err)
		}
		h.Pictures = append(h.Pictures, p)
	}
	return h, nil
}

func (f *File) saveAtomic(outputPath string, h *opus.CommentHeader, options *saveOptions) error {
	src, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	tempFile, err := os.CreateTemp(filepath.Dir(outputPath), ".opusmeta-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			_ = tempFile.Close()    //nolint:errcheck // Best effort cleanup
			_ = os.Remove(tempPath) //nolint:errcheck // Best effort cleanup
		}
	}()

	// CreateTemp uses 0600; keep the source's permissions.
	if info, err := src.Stat(); err == nil {
		_ = tempFile.Chmod(info.Mode().Perm()) //nolint:errcheck // Non-fatal
	}
	if _, err := io.Copy(tempFile, src); err != nil {
		return fmt.Errorf("copy to temp file: %w", err)
	}

	res, err := opus.Rewrite(tempFile, tempPath, h, options.writerOptions())
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	logResult(options.logger, outputPath, res)

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if options.backupSuffix != "" {
		if _, err := os.Stat(outputPath); err == nil {
			if err := os.Rename(outputPath, outputPath+options.backupSuffix); err != nil {
				return fmt.Errorf("create backup: %w", err)
			}
		}
	}

	if err := os.Rename(tempPath, outputPath); err != nil {
		return fmt.Errorf("rename temp to output: %w", err)
	}
	success = true
	return nil
}

func (f *File) saveInPlace(outputPath string, h *opus.CommentHeader, options *saveOptions) error {
	if options.backupSuffix != "" {
		if err := copyFile(f.Path, outputPath+options.backupSuffix); err != nil {
			return fmt.Errorf("create backup: %w", err)
		}
	}
	if filepath.Clean(outputPath) != filepath.Clean(f.Path) {
		if err := copyFile(f.Path, outputPath); err != nil {
			return fmt.Errorf("copy to output: %w", err)
		}
	}

	res, err := opus.WriteTags(outputPath, h, options.writerOptions())
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	logResult(options.logger, outputPath, res)
	return nil
}

func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(to)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// validateWrittenFile re-opens the file and compares the header with what
// was written.
func validateWrittenFile(path string, h *opus.CommentHeader) error {
	written, err := Open(path, WithDuration(false))
	if err != nil {
		return fmt.Errorf("re-open: %w", err)
	}

	if written.Vendor != h.Vendor {
		return fmt.Errorf("vendor mismatch: got %q, want %q", written.Vendor, h.Vendor)
	}
	want := make(Comments, len(h.Comments))
	for i, c := range h.Comments {
		key, err := vorbis.CanonicalKey(c.Key)
		if err != nil {
			return err
		}
		want[i] = Comment{Key: key, Value: c.Value}
	}
	if !slices.Equal(written.Comments, want) {
		return fmt.Errorf("comments mismatch: got %d, want %d", len(written.Comments), len(want))
	}
	if want := len(h.RawPictures) + len(h.Pictures); len(written.Pictures) != want {
		return fmt.Errorf("picture count mismatch: got %d, want %d", len(written.Pictures), want)
	}
	return nil
}
