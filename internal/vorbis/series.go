package vorbis

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/simonhull/opusmeta/internal/types"
)

// seriesPatterns find a series position in a title, album or directory
// name, in priority order. Each captures the number.
var seriesPatterns = func() []*regexp.Regexp {
	const num = `(\d+(?:\.\d+)?)`
	exprs := []string{
		`(?i)book\s+` + num,           // "Book 2", "Book 0.5"
		`(?i)part\s+` + num,           // "Part 2"
		`(?i)vol(?:ume)?\.?\s+` + num, // "Vol. 2", "Volume 2"
		`#` + num,                     // "#2"
		`^` + num + `\s*[-–—:]`,       // "2 - Title", "3: Title"
		`\(` + num + `\)`,             // "Title (4)"
		`^` + num + `$`,               // "3"
	}
	res := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		res[i] = regexp.MustCompile(e)
	}
	return res
}()

// SeriesPartFromText returns the series position named in text, or "".
// Leading zeros are dropped: "Book 01.5" gives "1.5".
func SeriesPartFromText(text string) string {
	for _, re := range seriesPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return normalizeSeriesPart(m[1])
		}
	}
	return ""
}

// SeriesPartFromPath looks for a series position in the name of the
// directory holding path: "Series/2 - North or Be Eaten/book.opus" gives "2".
func SeriesPartFromPath(path string) string {
	if path == "" {
		return ""
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == string(filepath.Separator) {
		return ""
	}
	return SeriesPartFromText(filepath.Base(dir))
}

func normalizeSeriesPart(part string) string {
	if strings.Contains(part, ".") {
		if f, err := strconv.ParseFloat(part, 64); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return part
	}
	if n, err := strconv.Atoi(part); err == nil {
		return strconv.Itoa(n)
	}
	return part
}

// trackIsSeriesPosition guesses whether TRACKNUMBER counts books in a
// series rather than files of one book. 1/1 says nothing; small totals
// are series, large ones are chapter files.
func trackIsSeriesPosition(track, total int) bool {
	switch {
	case track <= 0 || total <= 0 || track > total:
		return false
	case track == 1 && total == 1:
		return false
	case total <= 10:
		return true
	case total <= 30:
		return track == 1 || float64(track)/float64(total) > 0.33
	default:
		return false
	}
}

// inferSeriesPart fills SeriesPart for files that name a series without
// SERIESPART, trying the title, then the album, then the track position.
func inferSeriesPart(tags *types.Tags) {
	if tags.Series == "" || tags.SeriesPart != "" {
		return
	}
	for _, text := range []string{tags.Title, tags.Album} {
		if part := SeriesPartFromText(text); part != "" {
			tags.SeriesPart = part
			return
		}
	}
	if trackIsSeriesPosition(tags.TrackNumber, tags.TrackTotal) {
		tags.SeriesPart = strconv.Itoa(tags.TrackNumber)
	}
}
