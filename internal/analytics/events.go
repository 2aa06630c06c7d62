// Package analytics records reader behaviour events (page views, reads,
// searches, bookmarks, sign-ins) and ships them to a configurable sink.
package analytics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"komikverse/internal/logging"
	"komikverse/pkg/models"
)

const (
	EventPageView           = "page_view"
	EventViewItem           = "view_item"
	EventReadChapter        = "read_chapter"
	EventReadComplete       = "read_complete"
	EventSearch             = "search"
	EventSelectSearchResult = "select_search_result"
	EventAddToWishlist      = "add_to_wishlist"
	EventRemoveFromWishlist = "remove_from_wishlist"
	EventLogin              = "login"
	EventSignUp             = "sign_up"
	EventSelectGenre        = "select_genre"
	EventApplyFilter        = "apply_filter"
	EventShare              = "share"
)

type Params map[string]any

type Event struct {
	Name   string    `json:"name"`
	UserID string    `json:"user_id,omitempty"`
	Params Params    `json:"params"`
	At     time.Time `json:"at"`
}

// Sink delivers events somewhere durable.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// Tracker stamps and forwards events. Sink failures are logged and dropped.
// A nil *Tracker is valid and discards everything.
type Tracker struct {
	Sink   Sink
	Logger *zap.Logger
	Now    func() time.Time
}

func NewTracker(sink Sink, logger *zap.Logger) *Tracker {
	return &Tracker{Sink: sink, Logger: logging.OrNop(logger), Now: time.Now}
}

func (t *Tracker) Track(ctx context.Context, userID, name string, params Params) {
	if t == nil || t.Sink == nil {
		return
	}
	if params == nil {
		params = Params{}
	}
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	ev := Event{Name: name, UserID: userID, Params: params, At: now().UTC()}
	if err := t.Sink.Send(ctx, ev); err != nil {
		logging.OrNop(t.Logger).Warn("analytics send failed", zap.String("event", name), zap.Error(err))
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func (t *Tracker) PageView(ctx context.Context, userID, title, location string) {
	t.Track(ctx, userID, EventPageView, Params{"page_title": title, "page_location": location})
}

func (t *Tracker) MangaView(ctx context.Context, userID string, m models.Manga) {
	t.Track(ctx, userID, EventViewItem, Params{
		"item_id":       m.Slug,
		"item_name":     m.Title,
		"item_category": orUnknown(m.Type),
		"item_variant":  orUnknown(m.Status),
		"value":         m.Rating,
	})
}

func (t *Tracker) ReadChapter(ctx context.Context, userID string, m models.Manga, chapterSlug string) {
	t.Track(ctx, userID, EventReadChapter, Params{
		"manga_slug":   m.Slug,
		"manga_title":  m.Title,
		"chapter_slug": chapterSlug,
		"manga_type":   orUnknown(m.Type),
	})
}

func (t *Tracker) ReadComplete(ctx context.Context, userID string, m models.Manga, chapterSlug string) {
	t.Track(ctx, userID, EventReadComplete, Params{
		"manga_slug":   m.Slug,
		"manga_title":  m.Title,
		"chapter_slug": chapterSlug,
	})
}

func (t *Tracker) Search(ctx context.Context, userID, term string, resultCount int) {
	t.Track(ctx, userID, EventSearch, Params{"search_term": term, "result_count": resultCount})
}

func (t *Tracker) SearchClick(ctx context.Context, userID, term, slug string) {
	t.Track(ctx, userID, EventSelectSearchResult, Params{"search_term": term, "item_id": slug})
}

func (t *Tracker) BookmarkAdd(ctx context.Context, userID, slug, title string) {
	t.Track(ctx, userID, EventAddToWishlist, Params{"item_id": slug, "item_name": title})
}

func (t *Tracker) BookmarkRemove(ctx context.Context, userID, slug string) {
	t.Track(ctx, userID, EventRemoveFromWishlist, Params{"item_id": slug})
}

// Login records a sign-in; method is "email" or "google".
func (t *Tracker) Login(ctx context.Context, userID, method string) {
	t.Track(ctx, userID, EventLogin, Params{"method": method})
}

func (t *Tracker) SignUp(ctx context.Context, userID, method string) {
	t.Track(ctx, userID, EventSignUp, Params{"method": method})
}

func (t *Tracker) GenreClick(ctx context.Context, userID, genre string) {
	t.Track(ctx, userID, EventSelectGenre, Params{"genre_name": genre})
}

// Filter records a browse filter change; filterType is type, status or order.
func (t *Tracker) Filter(ctx context.Context, userID, filterType, value string) {
	t.Track(ctx, userID, EventApplyFilter, Params{"filter_type": filterType, "filter_value": value})
}

func (t *Tracker) Share(ctx context.Context, userID, slug, method string) {
	t.Track(ctx, userID, EventShare, Params{"item_id": slug, "method": method})
}
