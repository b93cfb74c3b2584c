package opusmeta

import "github.com/sirupsen/logrus"

// SaveOption configures behavior when writing comment headers.
//
// Example:
//
//	err := file.Save(
//	    opusmeta.WithBackup(".bak"),
//	    opusmeta.WithValidation(),
//	)
type SaveOption func(*saveOptions)

// saveOptions holds configuration for saving files.
type saveOptions struct {
	backupSuffix    string // Suffix for backup file (e.g., ".bak")
	validate        bool   // Re-read after write to verify
	preserveModTime bool   // Keep original modification time
	inPlace         bool   // Edit the target directly instead of a temp copy

	padding   int  // Fixed padding (0 = automatic)
	noPadding bool // Drop regenerable padding

	logger logrus.FieldLogger
}

// defaultSaveOptions returns the default configuration for saving.
func defaultSaveOptions() *saveOptions {
	return &saveOptions{
		logger: logrus.StandardLogger(),
	}
}

// WithBackup keeps the previous file under the original name plus suffix.
//
// WithBackup(".bak") leaves "song.opus.bak" next to the rewritten
// "song.opus". An existing backup is overwritten.
func WithBackup(suffix string) SaveOption {
	return func(o *saveOptions) {
		o.backupSuffix = suffix
	}
}

// WithValidation re-opens the file after writing and compares the vendor,
// comments and picture count with what was written.
func WithValidation() SaveOption {
	return func(o *saveOptions) {
		o.validate = true
	}
}

// WithPreserveModTime keeps the original file modification time.
func WithPreserveModTime() SaveOption {
	return func(o *saveOptions) {
		o.preserveModTime = true
	}
}

// WithInPlace makes Save and SaveAs edit the target file directly instead
// of rewriting a temporary copy. It avoids copying the audio but a failure
// part way through can leave the file damaged.
func WithInPlace() SaveOption {
	return func(o *saveOptions) {
		o.inPlace = true
	}
}

// WithPadding reserves exactly n zero bytes after the comments so later
// edits can grow the header without moving audio.
//
// Padding whose first byte has the low bit set is application data and is
// always kept as it is.
func WithPadding(n int) SaveOption {
	return func(o *saveOptions) {
		o.padding = n
		o.noPadding = false
	}
}

// WithoutPadding drops regenerable padding, producing the smallest header.
func WithoutPadding() SaveOption {
	return func(o *saveOptions) {
		o.noPadding = true
		o.padding = 0
	}
}

// WithSaveLogger sets the logger used for debug output while writing.
func WithSaveLogger(l logrus.FieldLogger) SaveOption {
	return func(o *saveOptions) {
		if l != nil {
			o.logger = l
		}
	}
}
