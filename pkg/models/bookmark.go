package models

import "time"

// Bookmark is a saved manga in a user's collection, keyed by (UserID, MangaSlug).
// The descriptive fields are a snapshot taken when the bookmark was added.
type Bookmark struct {
	UserID          string    `json:"userId"`
	MangaSlug       string    `json:"mangaSlug"`
	Title           string    `json:"title"`
	CoverImage      string    `json:"coverImage"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	Rating          float64   `json:"rating"`
	LastChapter     string    `json:"lastChapter"`
	LastChapterSlug string    `json:"lastChapterSlug"`
	CreatedAt       time.Time `json:"createdAt"`
}

// MangaSummary is the snapshot a caller supplies when bookmarking.
type MangaSummary struct {
	Slug            string  `json:"slug"`
	Title           string  `json:"title"`
	CoverImage      string  `json:"coverImage"`
	Type            string  `json:"type"`
	Status          string  `json:"status"`
	Rating          float64 `json:"rating"`
	LastChapter     string  `json:"last_chapter"`
	LastChapterSlug string  `json:"last_chapter_slug"`
}

// SummaryOf builds a bookmark snapshot from a manga, taking the newest chapter
// as the last chapter.
func SummaryOf(m Manga) MangaSummary {
	s := MangaSummary{
		Slug:        m.Slug,
		Title:       m.Title,
		CoverImage:  m.CoverImage,
		Type:        m.Type,
		Status:      m.Status,
		Rating:      m.Rating,
		LastChapter: m.LastChapter,
	}
	if len(m.Chapters) > 0 {
		s.LastChapter = m.Chapters[0].Title
		s.LastChapterSlug = m.Chapters[0].Slug
	}
	return s
}
