package vorbis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Loudness tags defined for Opus. Values are signed Q7.8 integers in dB
// relative to the output gain in the identification header.
const (
	TrackGainKey = "R128_TRACK_GAIN"
	AlbumGainKey = "R128_ALBUM_GAIN"
)

// ParseR128 decodes a Q7.8 gain value into dB.
func ParseR128(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty gain value")
	}
	// Leading '+' is accepted; ParseInt handles it.
	q, err := strconv.ParseInt(value, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("parse gain %q: %w", value, err)
	}
	return float64(q) / 256, nil
}

// FormatR128 encodes a gain in dB as a Q7.8 integer string, clamped to
// the int16 range.
func FormatR128(db float64) string {
	q := math.Round(db * 256)
	q = max(math.MinInt16, min(math.MaxInt16, q))
	return strconv.Itoa(int(q))
}
