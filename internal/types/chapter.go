package types

import "time"

// Chapter is a chapter marker decoded from CHAPTERxxx comments.
//
// Access chapters via file.Chapters:
//
//	file, _ := opusmeta.Open("audiobook.opus")
//	for _, chapter := range file.Chapters {
//	    fmt.Printf("[%d] %s: %s - %s\n",
//	        chapter.Index,
//	        chapter.Title,
//	        chapter.StartTime,
//	        chapter.EndTime)
//	}
type Chapter struct {
	Index     int           `json:"index"`
	Title     string        `json:"title"`
	StartTime time.Duration `json:"start_time"`
	EndTime   time.Duration `json:"end_time"`
}
