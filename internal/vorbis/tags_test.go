package vorbis

import (
	"slices"
	"testing"

	"github.com/simonhull/opusmeta/internal/types"
)

func TestMapTags(t *testing.T) {
	comments := types.Comments{
		{Key: "TITLE", Value: "Test Song"},
		{Key: "TITLE", Value: "Second Title"},
		{Key: "ARTIST", Value: "A"},
		{Key: "ARTIST", Value: "B"},
		{Key: "DATE", Value: "2024-05-15"},
		{Key: "TRACKNUMBER", Value: "5/12"},
		{Key: "DISCNUMBER", Value: "2"},
		{Key: "DISCTOTAL", Value: "3"},
		{Key: "GENRE", Value: "Rock"},
		{Key: "NARRATOR", Value: "Stephen Fry"},
		{Key: "AUDIBLE_ASIN", Value: "B00AUDIBLE"},
		{Key: "LANG", Value: "en"},
		{Key: "ORGANIZATION", Value: "Label Records"},
		{Key: "CUSTOM", Value: "ignored"},
	}

	tags := MapTags(comments)

	checks := []struct {
		name string
		ok   bool
	}{
		{"title keeps first", tags.Title == "Test Song"},
		{"artist", tags.Artist == "A"},
		{"artists", slices.Equal(tags.Artists, []string{"A", "B"})},
		{"date", tags.Date == "2024-05-15" && tags.Year == 2024},
		{"track", tags.TrackNumber == 5 && tags.TrackTotal == 12},
		{"disc", tags.DiscNumber == 2 && tags.DiscTotal == 3},
		{"genre", slices.Equal(tags.Genres, []string{"Rock"})},
		{"narrator", tags.Narrator == "Stephen Fry"},
		{"asin", tags.ASIN == "B00AUDIBLE"},
		{"language", tags.Language == "en"},
		{"publisher", tags.Publisher == "Label Records"},
	}
	for _, c := range checks {
		if !c.ok {
			t.Errorf("%s: unexpected value in %+v", c.name, tags)
		}
	}
}

func TestMapLoudness(t *testing.T) {
	if MapLoudness(types.Comments{{Key: "TITLE", Value: "x"}}) != nil {
		t.Error("MapLoudness() without gain tags should be nil")
	}

	l := MapLoudness(types.Comments{
		{Key: "R128_TRACK_GAIN", Value: "-1280"},
		{Key: "R128_ALBUM_GAIN", Value: "bogus"},
	})
	if l == nil {
		t.Fatal("MapLoudness() = nil")
	}
	if !l.HasTrackGain || l.TrackGain != -5 {
		t.Errorf("track gain = %v (%v), want -5", l.TrackGain, l.HasTrackGain)
	}
	if l.HasAlbumGain {
		t.Error("malformed album gain should be treated as absent")
	}
}
