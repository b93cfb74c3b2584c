package vorbis

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/simonhull/opusmeta/internal/types"
)

// ParseChapters extracts chapters from CHAPTER comments:
//
//	CHAPTER001=00:00:00.000
//	CHAPTER001NAME=Introduction
//	CHAPTER002=00:05:23.500
//	CHAPTER002NAME=Chapter 1: The Beginning
//
// Chapters are ordered by number. Each chapter ends where the next one
// starts; the last one ends at fileDuration (0 when unknown).
func ParseChapters(comments types.Comments, fileDuration time.Duration) []types.Chapter {
	type chapterData struct {
		number    int
		timestamp string
		title     string
	}

	byNumber := make(map[int]*chapterData)
	entry := func(num int) *chapterData {
		if byNumber[num] == nil {
			byNumber[num] = &chapterData{number: num}
		}
		return byNumber[num]
	}

	for key, value := range comments.All() {
		key = strings.ToUpper(strings.TrimSpace(key))
		rest, ok := strings.CutPrefix(key, "CHAPTER")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		if numStr, isName := strings.CutSuffix(rest, "NAME"); isName {
			num, err := strconv.Atoi(numStr)
			if err != nil {
				continue
			}
			entry(num).title = value
			continue
		}

		num, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		entry(num).timestamp = value
	}

	type timed struct {
		chapterData
		start time.Duration
	}
	var list []timed
	for _, chap := range byNumber {
		start, err := parseChapterTimestamp(chap.timestamp)
		if err != nil {
			continue
		}
		list = append(list, timed{*chap, start})
	}
	if len(list) == 0 {
		return nil
	}

	slices.SortFunc(list, func(a, b timed) int {
		return cmp.Compare(a.number, b.number)
	})

	chapters := make([]types.Chapter, len(list))
	for i, chap := range list {
		var end time.Duration
		if i < len(list)-1 {
			end = list[i+1].start
		} else if fileDuration > 0 {
			end = fileDuration
		}

		title := chap.title
		if title == "" {
			title = fmt.Sprintf("Chapter %d", chap.number)
		}

		chapters[i] = types.Chapter{
			Index:     i + 1,
			Title:     title,
			StartTime: chap.start,
			EndTime:   end,
		}
	}
	return chapters
}

// FormatChapters renders chapters as CHAPTERxxx / CHAPTERxxxNAME comments,
// numbered from 001 in slice order.
func FormatChapters(chapters []types.Chapter) types.Comments {
	out := make(types.Comments, 0, 2*len(chapters))
	for i, chap := range chapters {
		key := fmt.Sprintf("CHAPTER%03d", i+1)
		out = append(out,
			types.Comment{Key: key, Value: formatChapterTimestamp(chap.StartTime)},
			types.Comment{Key: key + "NAME", Value: chap.Title},
		)
	}
	return out
}

// IsChapterKey reports whether key belongs to the chapter convention.
func IsChapterKey(key string) bool {
	rest, ok := strings.CutPrefix(strings.ToUpper(key), "CHAPTER")
	if !ok {
		return false
	}
	rest = strings.TrimSuffix(rest, "NAME")
	_, err := strconv.Atoi(rest)
	return err == nil
}

// parseChapterTimestamp parses chapter timestamps in various formats:
//   - HH:MM:SS.mmm (hours:minutes:seconds.milliseconds)
//   - MM:SS.mmm (minutes:seconds.milliseconds)
//   - SS.mmm (seconds.milliseconds)
func parseChapterTimestamp(ts string) (time.Duration, error) {
	parts := strings.Split(ts, ":")

	var hours, minutes int
	var seconds float64
	var err error

	switch len(parts) {
	case 3:
		hours, err = strconv.Atoi(parts[0])
		if err != nil {
			return 0, fmt.Errorf("invalid hours in timestamp: %s", ts)
		}
		minutes, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, fmt.Errorf("invalid minutes in timestamp: %s", ts)
		}
		seconds, err = strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid seconds in timestamp: %s", ts)
		}

	case 2:
		minutes, err = strconv.Atoi(parts[0])
		if err != nil {
			return 0, fmt.Errorf("invalid minutes in timestamp: %s", ts)
		}
		seconds, err = strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid seconds in timestamp: %s", ts)
		}

	case 1:
		seconds, err = strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid seconds in timestamp: %s", ts)
		}

	default:
		return 0, fmt.Errorf("invalid timestamp format: %s", ts)
	}

	if hours < 0 || minutes < 0 || minutes >= 60 || seconds < 0 || seconds >= 60 {
		return 0, fmt.Errorf("timestamp values out of range: %s", ts)
	}

	totalSeconds := float64(hours*3600+minutes*60) + seconds
	return time.Duration(math.Round(totalSeconds * float64(time.Second))), nil
}

func formatChapterTimestamp(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}
