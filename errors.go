package opusmeta

import (
	"github.com/simonhull/opusmeta/internal/types"
)

// OutOfBoundsError is an alias to types.OutOfBoundsError.
type OutOfBoundsError = types.OutOfBoundsError

// UnsupportedFormatError is an alias to types.UnsupportedFormatError.
type UnsupportedFormatError = types.UnsupportedFormatError

// CorruptedFileError is an alias to types.CorruptedFileError.
type CorruptedFileError = types.CorruptedFileError

// InvalidDataError is an alias to types.InvalidDataError.
type InvalidDataError = types.InvalidDataError

// InvalidKeyError is an alias to types.InvalidKeyError.
type InvalidKeyError = types.InvalidKeyError

// StateError is an alias to types.StateError.
type StateError = types.StateError

// Warning is an alias to types.Warning.
type Warning = types.Warning

// Framing errors wrapped by CorruptedFileError.
var (
	ErrInvalidMagic       = types.ErrInvalidMagic
	ErrUnsupportedVersion = types.ErrUnsupportedVersion
	ErrTruncatedHeader    = types.ErrTruncatedHeader
	ErrUnterminatedPage   = types.ErrUnterminatedPage
	ErrChecksum           = types.ErrChecksum
	ErrSerialMismatch     = types.ErrSerialMismatch
	ErrContinuation       = types.ErrContinuation
)
