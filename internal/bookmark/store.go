// Package bookmark persists each user's saved manga and exposes it over HTTP.
package bookmark

import (
	"context"
	"errors"
	"time"

	"komikverse/pkg/models"
)

// ErrInvalidArgument is returned when a user id or manga slug is missing.
var ErrInvalidArgument = errors.New("bookmark: user id and manga slug are required")

// Store is a per-user bookmark collection keyed by (userID, manga slug).
type Store interface {
	// Exists reports whether the bookmark is present. Empty arguments yield false.
	Exists(ctx context.Context, userID, slug string) (bool, error)
	// Add creates or fully overwrites the bookmark, refreshing its created time.
	Add(ctx context.Context, userID string, m models.MangaSummary) error
	// Remove deletes the bookmark; removing an absent bookmark is not an error.
	Remove(ctx context.Context, userID, slug string) error
	// List returns the user's bookmarks, newest first.
	List(ctx context.Context, userID string) ([]models.Bookmark, error)
	// Toggle flips presence atomically and returns the resulting state.
	Toggle(ctx context.Context, userID string, m models.MangaSummary) (bool, error)
}

func validate(userID, slug string) error {
	if userID == "" || slug == "" {
		return ErrInvalidArgument
	}
	return nil
}

func toBookmark(userID string, m models.MangaSummary, at time.Time) models.Bookmark {
	return models.Bookmark{
		UserID:          userID,
		MangaSlug:       m.Slug,
		Title:           m.Title,
		CoverImage:      m.CoverImage,
		Type:            m.Type,
		Status:          m.Status,
		Rating:          m.Rating,
		LastChapter:     m.LastChapter,
		LastChapterSlug: m.LastChapterSlug,
		CreatedAt:       at.UTC(),
	}
}
