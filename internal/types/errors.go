package types

import (
	"errors"
	"fmt"
)

// Framing failures. CorruptedFileError wraps one of these so callers can
// match with errors.Is without parsing messages.
var (
	ErrInvalidMagic       = errors.New("missing OggS capture pattern")
	ErrUnsupportedVersion = errors.New("unsupported stream structure version")
	ErrTruncatedHeader    = errors.New("truncated page header")
	ErrUnterminatedPage   = errors.New("unterminated page")
	ErrChecksum           = errors.New("page checksum mismatch")
	ErrSerialMismatch     = errors.New("page belongs to another logical stream")
	ErrContinuation       = errors.New("unexpected packet continuation state")
)

// OutOfBoundsError is returned when a declared length runs past the data
// that is actually available.
type OutOfBoundsError struct {
	Path   string
	What   string
	Offset int64
	Length int64
	Size   int64
}

func (e *OutOfBoundsError) Error() string {
	if e.Offset >= e.Size {
		return fmt.Sprintf("%s: offset %d out of bounds (size: %d) while reading %s",
			e.Path, e.Offset, e.Size, e.What)
	}
	return fmt.Sprintf("%s: not enough bytes: read of %d bytes at offset %d would exceed size %d while reading %s",
		e.Path, e.Length, e.Offset, e.Size, e.What)
}

// UnsupportedFormatError is returned when the first logical stream is not Opus.
type UnsupportedFormatError struct {
	Path   string
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s: unsupported format: %s", e.Path, e.Reason)
}

// CorruptedFileError is returned when the Ogg framing is invalid.
type CorruptedFileError struct {
	Path     string
	Reason   string
	Offset   int64
	Sequence uint32
	Err      error
}

func (e *CorruptedFileError) Error() string {
	reason := e.Reason
	if reason == "" && e.Err != nil {
		reason = e.Err.Error()
	}
	return fmt.Sprintf("%s: corrupted file at offset %d: %s", e.Path, e.Offset, reason)
}

func (e *CorruptedFileError) Unwrap() error {
	return e.Err
}

// InvalidDataError is returned when a header decodes cleanly at the byte
// level but its contents violate the format.
type InvalidDataError struct {
	Path     string
	What     string
	Offset   int64
	Expected int64
	Actual   int64
	Reason   string
}

func (e *InvalidDataError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: invalid %s: %s", e.Path, e.What, e.Reason)
	}
	return fmt.Sprintf("%s: invalid %s: expected %d bytes, got %d", e.Path, e.What, e.Expected, e.Actual)
}

// InvalidKeyError reports a comment whose field name is malformed.
type InvalidKeyError struct {
	Key    string
	Reason string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid comment key %q: %s", e.Key, e.Reason)
}

// StateError is returned when a comment reader operation is called after
// the reader has already moved past the state it belongs to.
type StateError struct {
	Op      string
	Current string
	Want    string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: reader is at %s, past %s", e.Op, e.Current, e.Want)
}

// Warning represents a non-fatal issue encountered during parsing.
//
// Warnings are collected in File.Warnings. They cover things like an
// embedded picture that cannot be decoded or a malformed comment that was
// skipped.
type Warning struct {
	// Stage where the warning occurred
	Stage string // "head", "comments", "pictures", "chapters", "duration"

	// Warning message
	Message string

	// File offset where the issue occurred (0 if not applicable)
	Offset int64
}

// String returns a human-readable warning message.
func (w Warning) String() string {
	if w.Offset > 0 {
		return fmt.Sprintf("%s (at offset %d): %s", w.Stage, w.Offset, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Stage, w.Message)
}
