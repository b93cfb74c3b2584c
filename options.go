package opusmeta

import "github.com/sirupsen/logrus"

// Option configures behavior when opening Opus files.
//
// Example:
//
//	file, err := opusmeta.Open("song.opus",
//	    opusmeta.WithStrictParsing(),
//	    opusmeta.WithPicturePreload(),
//	)
type Option func(*openOptions)

// openOptions holds configuration for opening files.
type openOptions struct {
	strictParsing   bool  // Fail on any warning
	preloadPictures bool  // Decode picture data during Open
	ignoreWarnings  bool  // Suppress all warnings
	maxPictureSize  int64 // Largest picture data accepted (0 = no limit)
	duration        bool  // Locate the last page for duration and bitrate
	logger          logrus.FieldLogger
}

// defaultOptions returns the default configuration.
func defaultOptions() *openOptions {
	return &openOptions{
		duration: true,
		logger:   logrus.StandardLogger(),
	}
}

// WithStrictParsing treats any warning as a fatal error.
//
// By default a malformed comment key or an undecodable picture is skipped
// and reported in File.Warnings.
func WithStrictParsing() Option {
	return func(o *openOptions) {
		o.strictParsing = true
	}
}

// WithPicturePreload decodes picture data during Open.
//
// By default Open reads only the picture headers and PictureRef.Load
// fetches the data later. Preloading fails fast on corrupt pictures and
// makes the File independent of the file on disk.
func WithPicturePreload() Option {
	return func(o *openOptions) {
		o.preloadPictures = true
	}
}

// WithIgnoreWarnings suppresses all warnings.
func WithIgnoreWarnings() Option {
	return func(o *openOptions) {
		o.ignoreWarnings = true
	}
}

// WithMaxPictureSize skips pictures whose data is larger than n bytes,
// with a warning.
//
// Example:
//
//	// Ignore anything above 10MB
//	file, err := opusmeta.Open("song.opus",
//	    opusmeta.WithMaxPictureSize(10*1024*1024),
//	)
func WithMaxPictureSize(n int64) Option {
	return func(o *openOptions) {
		o.maxPictureSize = n
	}
}

// WithDuration controls whether Open locates the last page of the stream
// to compute duration and bitrate. It is enabled by default.
func WithDuration(enabled bool) Option {
	return func(o *openOptions) {
		o.duration = enabled
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *openOptions) {
		if l != nil {
			o.logger = l
		}
	}
}
