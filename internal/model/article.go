package model

import "time"

// Coordinates is a latitude/longitude pair attached to an article.
// It has no identity of its own.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Article is a Wikipedia article cached locally. PageID comes from
// Wikipedia and never changes; every other field is last-write-wins.
type Article struct {
	PageID          int          `json:"pageid"`
	Title           string       `json:"title"`
	Extract         string       `json:"extract,omitempty"`
	Thumbnail       string       `json:"thumbnail,omitempty"`
	FullURL         string       `json:"full_url"`
	LastAccessed    time.Time    `json:"last_accessed"`
	Favorite        bool         `json:"favorite"`
	AISummary       string       `json:"ai_summary,omitempty"`
	RelatedKeywords []string     `json:"related_keywords,omitempty"`
	Coords          *Coordinates `json:"coords,omitempty"`
}
