package models

import "time"

// Manga is a catalog entry as served by the upstream API. Detail responses
// carry Chapters; list responses usually only carry LastChapter.
type Manga struct {
	ID          string    `json:"_id,omitempty"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Type        string    `json:"type,omitempty"`
	Status      string    `json:"status,omitempty"`
	CoverImage  string    `json:"coverImage,omitempty"`
	Rating      float64   `json:"rating,omitempty"`
	Views       int64     `json:"views,omitempty"`
	Author      string    `json:"author,omitempty"`
	Synopsis    string    `json:"synopsis,omitempty"`
	Genres      []string  `json:"genres,omitempty"`
	Chapters    []Chapter `json:"chapters,omitempty"`
	LastChapter string    `json:"last_chapter,omitempty"`
	LastUpdated string    `json:"lastUpdated,omitempty"`
}

type Chapter struct {
	ID        string `json:"_id,omitempty"`
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// ChapterContent is the readable body of a chapter.
type ChapterContent struct {
	Title     string   `json:"title"`
	Images    []string `json:"images"`
	CreatedAt string   `json:"createdAt,omitempty"`
}

// Navigation holds neighbouring chapter slugs; empty means none.
type Navigation struct {
	Prev string `json:"prev,omitempty"`
	Next string `json:"next,omitempty"`
}

type Genre struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalItems  int `json:"totalItems"`
}

// LastUpdatedTime parses LastUpdated, reporting false when absent or malformed.
func (m Manga) LastUpdatedTime() (time.Time, bool) {
	if m.LastUpdated == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, m.LastUpdated); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
