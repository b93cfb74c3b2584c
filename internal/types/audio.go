package types

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// AudioInfo describes the audio stream of an Opus file.
//
// Everything except Duration and Bitrate comes from the identification
// header; those two need the granule position of the last page.
type AudioInfo struct {
	Loudness *Loudness

	Duration        time.Duration
	Channels        int
	InputSampleRate int // informational, playback is always 48 kHz
	PreSkip         int
	Bitrate         int // average over the whole file, bits per second

	// OutputGain is the header gain in dB, applied by every decoder.
	OutputGain float64

	MappingFamily int
}

// Loudness holds the R128 gains stored in the comment header. The values
// are in dB and apply on top of the output gain.
type Loudness struct {
	TrackGain    float64
	AlbumGain    float64
	HasTrackGain bool
	HasAlbumGain bool
}

// String returns a short description such as "Opus stereo 96kbps".
func (a AudioInfo) String() string {
	parts := []string{"Opus"}
	if ch := channelDescription(a.Channels); ch != "" {
		parts = append(parts, ch)
	}
	if a.Bitrate > 0 {
		parts = append(parts, fmt.Sprintf("%dkbps", a.Bitrate/1000))
	}
	if a.Duration > 0 {
		parts = append(parts, a.Duration.Round(time.Second).String())
	}
	return strings.Join(parts, " ")
}

func channelDescription(channels int) string {
	switch channels {
	case 0:
		return ""
	case 1:
		return "mono"
	case 2:
		return "stereo"
	case 4:
		return "quad"
	case 6:
		return "5.1"
	case 8:
		return "7.1"
	default:
		return fmt.Sprintf("%dch", channels)
	}
}

// ApplyGain scales an amplitude by the output gain plus the requested R128
// gain. mode is "track" or "album"; anything else applies only the output
// gain. A missing R128 value counts as 0 dB.
//
// Example:
//
//	adjusted := audio.ApplyGain(0.8, "album")
func (a AudioInfo) ApplyGain(amplitude float64, mode string) float64 {
	db := a.OutputGain
	if a.Loudness != nil {
		switch mode {
		case "track":
			if a.Loudness.HasTrackGain {
				db += a.Loudness.TrackGain
			}
		case "album":
			if a.Loudness.HasAlbumGain {
				db += a.Loudness.AlbumGain
			}
		}
	}
	return amplitude * math.Pow(10, db/20)
}
