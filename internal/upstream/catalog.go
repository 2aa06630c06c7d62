package upstream

import (
	"context"
	"net/url"
	"strconv"

	"komikverse/pkg/models"
)

// HomeFeed is the landing page payload.
type HomeFeed struct {
	Recents  []models.Manga `json:"recents"`
	Trending []models.Manga `json:"trending"`
	Manhwas  []models.Manga `json:"manhwas"`
	Mangas   []models.Manga `json:"mangas"`
	Manhuas  []models.Manga `json:"manhuas"`
}

// MangaDetail is one manga with its chapter list and recommendations.
type MangaDetail struct {
	Info            *models.Manga  `json:"info"`
	Recommendations []models.Manga `json:"recommendations"`
}

// ChapterPage is one readable chapter plus its parent manga and neighbours.
type ChapterPage struct {
	Chapter    *models.ChapterContent `json:"chapter"`
	Manga      *models.Manga          `json:"manga"`
	Navigation models.Navigation      `json:"navigation"`
}

// ListParams filters and pages the catalog listing. Empty fields are omitted.
type ListParams struct {
	Page   int
	Q      string
	Status string
	Type   string
	Genre  string
	Order  string
	Limit  int
}

func (p ListParams) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	set("q", p.Q)
	set("status", p.Status)
	set("type", p.Type)
	set("genre", p.Genre)
	set("order", p.Order)
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	return v
}

func (c *Client) Home(ctx context.Context) Result[HomeFeed] {
	return fetch[HomeFeed](ctx, c, "home", "/home")
}

func (c *Client) MangaList(ctx context.Context, p ListParams) Result[[]models.Manga] {
	endpoint := "/manga"
	if qs := p.Values().Encode(); qs != "" {
		endpoint += "?" + qs
	}
	return fetch[[]models.Manga](ctx, c, "manga_list", endpoint)
}

func (c *Client) MangaDetail(ctx context.Context, slug string) Result[MangaDetail] {
	return fetch[MangaDetail](ctx, c, "manga_detail", "/manga/"+url.PathEscape(slug))
}

func (c *Client) Chapter(ctx context.Context, slug, chapterSlug string) Result[ChapterPage] {
	return fetch[ChapterPage](ctx, c, "chapter", "/read/"+url.PathEscape(slug)+"/"+url.PathEscape(chapterSlug))
}

func (c *Client) Genres(ctx context.Context) Result[[]models.Genre] {
	return fetch[[]models.Genre](ctx, c, "genres", "/genres")
}

// AllMangaSlugs lists up to 1000 manga for the sitemap. Failures yield an
// empty, non-nil slice.
func (c *Client) AllMangaSlugs(ctx context.Context) []models.Manga {
	res := fetch[[]models.Manga](ctx, c, "manga_list", "/manga?limit=1000")
	if !res.OK || res.Data == nil {
		return []models.Manga{}
	}
	return res.Data
}
