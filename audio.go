package opusmeta

import (
	"github.com/simonhull/opusmeta/internal/opus"
	"github.com/simonhull/opusmeta/internal/types"
)

// AudioInfo is an alias to types.AudioInfo.
type AudioInfo = types.AudioInfo

// Loudness is an alias to types.Loudness.
type Loudness = types.Loudness

// Head is the OpusHead identification header.
type Head = opus.Head

// SampleRate is the output rate of every Opus decoder. Granule positions
// count samples at this rate.
const SampleRate = opus.SampleRate

func audioInfo(h *Head) AudioInfo {
	return AudioInfo{
		Channels:        int(h.Channels),
		InputSampleRate: int(h.InputSampleRate),
		PreSkip:         int(h.PreSkip),
		OutputGain:      h.GainDB(),
		MappingFamily:   int(h.MappingFamily),
	}
}
