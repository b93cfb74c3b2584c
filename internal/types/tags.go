package types

import (
	"reflect"
	"slices"
)

// Tags is a read-only view of the well-known fields of a comment list.
//
// The comment list stays the source of truth: Tags is derived from it on
// demand and edits go through Comments. Keys that have no field here are
// still reachable with Comments.Get.
type Tags struct {
	Title       string
	Subtitle    string
	Artist      string
	AlbumArtist string
	Album       string
	Date        string
	Comment     string
	Lyrics      string
	Description string
	Copyright   string
	Label       string
	ISRC        string

	// Audiobook fields
	Narrator   string
	Publisher  string
	Series     string
	SeriesPart string
	ISBN       string
	ASIN       string
	Language   string

	MusicBrainzTrackID  string
	MusicBrainzAlbumID  string
	MusicBrainzArtistID string

	Artists    []string
	Genres     []string
	Composers  []string
	Performers []string

	Year        int
	TrackNumber int
	TrackTotal  int
	DiscNumber  int
	DiscTotal   int
}

// IsEmpty reports whether no mapped field is set.
func (t *Tags) IsEmpty() bool {
	return t.Equal(&Tags{})
}

// Clone returns a deep copy of t.
func (t *Tags) Clone() *Tags {
	if t == nil {
		return nil
	}
	c := *t
	c.Artists = slices.Clone(t.Artists)
	c.Genres = slices.Clone(t.Genres)
	c.Composers = slices.Clone(t.Composers)
	c.Performers = slices.Clone(t.Performers)
	return &c
}

// Equal reports whether both views hold the same values. Nil and empty
// slices compare equal.
func (t *Tags) Equal(other *Tags) bool {
	if t == nil || other == nil {
		return t == other
	}
	a, b := *t, *other
	if !slices.Equal(a.Artists, b.Artists) || !slices.Equal(a.Genres, b.Genres) ||
		!slices.Equal(a.Composers, b.Composers) || !slices.Equal(a.Performers, b.Performers) {
		return false
	}
	a.Artists, a.Genres, a.Composers, a.Performers = nil, nil, nil, nil
	b.Artists, b.Genres, b.Composers, b.Performers = nil, nil, nil, nil
	return reflect.DeepEqual(a, b)
}
