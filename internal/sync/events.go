package sync

import "time"

const (
	EventBookmarkAdd    = "bookmark.add"
	EventBookmarkRemove = "bookmark.remove"
)

// BookmarkEvent tells a user's other open sessions that their collection changed.
type BookmarkEvent struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	MangaSlug string    `json:"manga_slug"`
	Saved     bool      `json:"saved"`
	At        time.Time `json:"at"`
}
