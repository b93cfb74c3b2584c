package vorbis

import (
	"strconv"
	"strings"

	"github.com/simonhull/opusmeta/internal/types"
)

// MapTags builds the well-known field view of a comment list. Unknown keys
// are ignored; single-valued fields keep the first occurrence. A series
// without SERIESPART gets its position from the title, album or track
// number when one of them names it.
func MapTags(comments types.Comments) types.Tags {
	var tags types.Tags
	first := func(dst *string, value string) {
		if *dst == "" {
			*dst = value
		}
	}

	for key, value := range comments.All() {
		switch strings.ToUpper(key) {
		case "TITLE":
			first(&tags.Title, value)
		case "SUBTITLE":
			first(&tags.Subtitle, value)
		case "ARTIST":
			first(&tags.Artist, value)
			tags.Artists = append(tags.Artists, value)
		case "ALBUM":
			first(&tags.Album, value)
		case "ALBUMARTIST":
			first(&tags.AlbumArtist, value)
		case "DATE":
			first(&tags.Date, value)
			if tags.Year == 0 && len(value) >= 4 {
				if year, err := strconv.Atoi(value[:4]); err == nil && year > 0 {
					tags.Year = year
				}
			}
		case "TRACKNUMBER":
			tags.TrackNumber, tags.TrackTotal = parsePosition(value, tags.TrackTotal)
		case "TRACKTOTAL", "TOTALTRACKS":
			tags.TrackTotal = atoi(value)
		case "DISCNUMBER":
			tags.DiscNumber, tags.DiscTotal = parsePosition(value, tags.DiscTotal)
		case "DISCTOTAL", "TOTALDISCS":
			tags.DiscTotal = atoi(value)
		case "GENRE":
			tags.Genres = append(tags.Genres, value)
		case "COMPOSER":
			tags.Composers = append(tags.Composers, value)
		case "PERFORMER":
			tags.Performers = append(tags.Performers, value)
		case "COMMENT":
			first(&tags.Comment, value)
		case "LYRICS":
			first(&tags.Lyrics, value)
		case "DESCRIPTION":
			first(&tags.Description, value)
		case "COPYRIGHT":
			first(&tags.Copyright, value)
		case "LABEL":
			first(&tags.Label, value)
		case "ISRC":
			first(&tags.ISRC, value)
		case "NARRATOR":
			first(&tags.Narrator, value)
		case "PUBLISHER", "ORGANIZATION":
			first(&tags.Publisher, value)
		case "SERIES":
			first(&tags.Series, value)
		case "SERIESPART":
			first(&tags.SeriesPart, value)
		case "ISBN":
			first(&tags.ISBN, value)
		case "ASIN", "AUDIBLE_ASIN":
			first(&tags.ASIN, value)
		case "LANGUAGE", "LANG":
			first(&tags.Language, value)
		case "MUSICBRAINZ_TRACKID":
			first(&tags.MusicBrainzTrackID, value)
		case "MUSICBRAINZ_ALBUMID":
			first(&tags.MusicBrainzAlbumID, value)
		case "MUSICBRAINZ_ARTISTID":
			first(&tags.MusicBrainzArtistID, value)
		}
	}
	inferSeriesPart(&tags)
	return tags
}

// MapLoudness reads the R128 gain comments. It returns nil when neither is
// present; malformed values are treated as absent.
func MapLoudness(comments types.Comments) *types.Loudness {
	var l types.Loudness
	if v := comments.First(TrackGainKey); v != "" {
		if db, err := ParseR128(v); err == nil {
			l.TrackGain, l.HasTrackGain = db, true
		}
	}
	if v := comments.First(AlbumGainKey); v != "" {
		if db, err := ParseR128(v); err == nil {
			l.AlbumGain, l.HasAlbumGain = db, true
		}
	}
	if !l.HasTrackGain && !l.HasAlbumGain {
		return nil
	}
	return &l
}

// parsePosition accepts "5" and "5/12". A total found here only fills an
// unset total.
func parsePosition(value string, total int) (int, int) {
	num, of, found := strings.Cut(value, "/")
	if found && total == 0 {
		total = atoi(of)
	}
	return atoi(num), total
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
