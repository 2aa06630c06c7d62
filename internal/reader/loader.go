package reader

import (
	"context"
	"errors"
	stdsync "sync"

	"go.uber.org/zap"

	"komikverse/internal/logging"
	"komikverse/internal/upstream"
	"komikverse/pkg/models"
)

// ErrStale is returned when a newer navigation started while a fetch was in flight.
var ErrStale = errors.New("reader: superseded by newer navigation")

// ErrNotFound means the upstream answered but the chapter payload was empty.
var ErrNotFound = errors.New("reader: chapter not found")

// Source is the slice of the data-access layer the reader needs.
type Source interface {
	Chapter(ctx context.Context, slug, chapterSlug string) upstream.Result[upstream.ChapterPage]
	MangaDetail(ctx context.Context, slug string) upstream.Result[upstream.MangaDetail]
}

// Content is one loaded chapter, tagged with the navigation that requested it.
type Content struct {
	Generation  uint64
	Slug        string
	ChapterSlug string
	Manga       models.Manga
	Chapter     models.ChapterContent
	Navigation  models.Navigation
	Chapters    []models.Chapter

	// NeedsChapterList is set when the chapter payload carried no chapter list.
	NeedsChapterList bool
}

// Loader fetches chapters and discards results that finished after a newer Load began.
type Loader struct {
	Source Source
	Logger *zap.Logger

	mu  stdsync.Mutex
	gen uint64
}

func NewLoader(src Source, logger *zap.Logger) *Loader {
	return &Loader{Source: src, Logger: logging.OrNop(logger)}
}

func (l *Loader) begin() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	return l.gen
}

// Current is the generation of the newest navigation.
func (l *Loader) Current() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

func (l *Loader) isCurrent(gen uint64) bool {
	return l.Current() == gen
}

// Load starts a new navigation and fetches its chapter.
func (l *Loader) Load(ctx context.Context, slug, chapterSlug string) (*Content, error) {
	c, _, err := l.load(ctx, slug, chapterSlug)
	return c, err
}

func (l *Loader) load(ctx context.Context, slug, chapterSlug string) (*Content, uint64, error) {
	gen := l.begin()
	res := l.Source.Chapter(ctx, slug, chapterSlug)
	if !l.isCurrent(gen) {
		return nil, gen, ErrStale
	}
	if !res.OK {
		return nil, gen, errors.New(res.Err)
	}
	if res.Data.Chapter == nil || res.Data.Manga == nil {
		return nil, gen, ErrNotFound
	}

	c := &Content{
		Generation:  gen,
		Slug:        slug,
		ChapterSlug: chapterSlug,
		Manga:       *res.Data.Manga,
		Chapter:     *res.Data.Chapter,
		Navigation:  res.Data.Navigation,
		Chapters:    res.Data.Manga.Chapters,
	}
	c.NeedsChapterList = len(c.Chapters) == 0
	return c, gen, nil
}

// ChapterList fetches the chapter list from the parent manga for c.
// Failures are logged and yield an empty list; only ErrStale is returned.
func (l *Loader) ChapterList(ctx context.Context, c *Content) ([]models.Chapter, error) {
	res := l.Source.MangaDetail(ctx, c.Slug)
	if !l.isCurrent(c.Generation) {
		return nil, ErrStale
	}
	if !res.OK || res.Data.Info == nil {
		l.Logger.Warn("load chapter list failed", zap.String("slug", c.Slug), zap.String("error", res.Err))
		return []models.Chapter{}, nil
	}
	if res.Data.Info.Chapters == nil {
		return []models.Chapter{}, nil
	}
	return res.Data.Info.Chapters, nil
}
