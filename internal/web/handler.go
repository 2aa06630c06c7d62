// Package web renders the komikverse pages, sitemap.xml and robots.txt.
package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"komikverse/internal/analytics"
	"komikverse/internal/config"
	"komikverse/internal/logging"
	"komikverse/internal/reader"
	"komikverse/internal/upstream"
	"komikverse/pkg/models"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Catalog is the read side of the upstream API used by the pages.
type Catalog interface {
	reader.Source
	Home(ctx context.Context) upstream.Result[upstream.HomeFeed]
	MangaList(ctx context.Context, p upstream.ListParams) upstream.Result[[]models.Manga]
	Genres(ctx context.Context) upstream.Result[[]models.Genre]
	AllMangaSlugs(ctx context.Context) []models.Manga
}

// cache lifetimes per page, in seconds
const (
	homeMaxAge    = 300
	browseMaxAge  = 120
	detailMaxAge  = 300
	readerMaxAge  = 3600
	genresMaxAge  = 600
	sitemapMaxAge = 86400
)

var pageFiles = []string{"home", "browse", "detail", "reader", "genres", "bookmarks", "login", "notfound"}

type Handler struct {
	Catalog Catalog
	Site    config.SiteConfig
	Tracker *analytics.Tracker
	Logger  *zap.Logger

	pages map[string]*template.Template
}

func NewHandler(catalog Catalog, site config.SiteConfig, tracker *analytics.Tracker, logger *zap.Logger) (*Handler, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	site.URL = strings.TrimRight(site.URL, "/")
	return &Handler{Catalog: catalog, Site: site, Tracker: tracker, Logger: logging.OrNop(logger), pages: pages}, nil
}

func parsePages() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"formatNum":     FormatNum,
		"formatDate":    FormatDate,
		"genreEmoji":    GenreEmoji,
		"chapterNumber": reader.ChapterNumber,
		"lower":         strings.ToLower,
		"upper":         strings.ToUpper,
		"pathEscape":    url.PathEscape,
		"json": func(v any) (string, error) {
			b, err := json.Marshal(v)
			return string(b), err
		},
		"add":  func(a, b int) int { return a + b },
		"dict": dict,
	}
	base, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/partials.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	pages := make(map[string]*template.Template, len(pageFiles))
	for _, name := range pageFiles {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// dict builds a map from alternating keys and values for partial templates.
func dict(kv ...any) (map[string]any, error) {
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", kv[i])
		}
		m[k] = kv[i+1]
	}
	return m, nil
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	static, _ := fs.Sub(staticFS, "static")
	r.StaticFS("/static", http.FS(static))

	r.GET("/", h.home)
	r.GET("/manga", h.browse)
	r.GET("/manga/:slug", h.detail)
	r.GET("/read/:slug/:chapter", h.read)
	r.GET("/genres", h.genres)
	r.GET("/bookmarks", h.bookmarks)
	r.GET("/login", h.login)
	r.GET("/sitemap.xml", h.sitemap)
	r.GET("/robots.txt", h.robots)
	r.NoRoute(h.notFound)
}

type meta struct {
	Title       string
	Description string
	Canonical   string
	Image       string
	NoIndex     bool
	JSONLD      []jsonLD
}

type view struct {
	Site config.SiteConfig
	Meta meta
	Nav  string
	Data any
}

func (h *Handler) titled(title string) string {
	if title == "" {
		return h.Site.Name + " - Baca Komik, Manga, Manhwa & Manhua Bahasa Indonesia"
	}
	return title + " | " + h.Site.Name
}

func (h *Handler) render(c *gin.Context, status int, page string, maxAge int, v view) {
	v.Site = h.Site
	v.Meta.Title = h.titled(v.Meta.Title)
	if v.Meta.Description == "" {
		v.Meta.Description = siteDescription
	}
	v.Meta.JSONLD = append([]jsonLD{websiteLD(h.Site.URL, h.Site.Name)}, v.Meta.JSONLD...)

	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, "layout", v); err != nil {
		h.Logger.Error("render page failed", zap.String("page", page), zap.Error(err))
		c.String(http.StatusInternalServerError, "render failed")
		return
	}
	if maxAge > 0 && status == http.StatusOK {
		c.Header("Cache-Control", "public, max-age="+strconv.Itoa(maxAge)+", stale-while-revalidate="+strconv.Itoa(maxAge*5))
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

type quickFilter struct {
	Label string
	Href  string
}

var quickFilters = []quickFilter{
	{"Terbaru", "/manga?order=latest"},
	{"Populer", "/manga?order=popular"},
	{"Manga", "/manga?type=manga"},
	{"Manhwa", "/manga?type=manhwa"},
	{"Manhua", "/manga?type=manhua"},
}

type homeData struct {
	Feed         upstream.HomeFeed
	QuickFilters []quickFilter
	Err          string
}

func (h *Handler) home(c *gin.Context) {
	res := h.Catalog.Home(c.Request.Context())
	h.Tracker.PageView(c.Request.Context(), "", "home", c.Request.URL.Path)
	h.render(c, http.StatusOK, "home", homeMaxAge, view{
		Meta: meta{Canonical: h.Site.URL},
		Nav:  "home",
		Data: homeData{Feed: res.Data, QuickFilters: quickFilters, Err: res.Err},
	})
}

type browseData struct {
	Query      BrowseQuery
	Mangas     []models.Manga
	Pagination models.Pagination
	Genres     []models.Genre
	PrevHref   string
	NextHref   string
	Types      []string
	Statuses   []string
	Orders     []option
	Err        string
}

func (h *Handler) browse(c *gin.Context) {
	ctx := c.Request.Context()
	q := ParseBrowseQuery(c.Request.URL.Query())

	var (
		list   upstream.Result[[]models.Manga]
		genres upstream.Result[[]models.Genre]
	)
	var g errgroup.Group
	g.Go(func() error { list = h.Catalog.MangaList(ctx, q.Params()); return nil })
	g.Go(func() error { genres = h.Catalog.Genres(ctx); return nil })
	_ = g.Wait()

	d := browseData{
		Query:    q,
		Mangas:   list.Data,
		Genres:   genres.Data,
		Types:    browseTypes,
		Statuses: browseStatuses,
		Orders:   browseOrders,
		Err:      list.Err,
	}
	if list.Pagination != nil {
		d.Pagination = *list.Pagination
	}
	if p := d.Pagination; p.TotalPages > 1 {
		if p.CurrentPage > 1 {
			d.PrevHref = q.Href(BrowseQuery{Page: p.CurrentPage - 1})
		}
		if p.CurrentPage < p.TotalPages {
			d.NextHref = q.Href(BrowseQuery{Page: p.CurrentPage + 1})
		}
	}

	if q.Q != "" {
		h.Tracker.Search(ctx, "", q.Q, d.Pagination.TotalItems)
	}
	for _, f := range [][2]string{{"type", q.Type}, {"status", q.Status}, {"genre", q.Genre}} {
		if f[1] != "all" {
			h.Tracker.Filter(ctx, "", f[0], f[1])
		}
	}
	if q.Order != "latest" {
		h.Tracker.Filter(ctx, "", "order", q.Order)
	}

	title := q.Title()
	h.render(c, http.StatusOK, "browse", browseMaxAge, view{
		Meta: meta{
			Title:       title,
			Description: title + " - Temukan ribuan judul manga di " + h.Site.Name + ".",
			Canonical:   h.Site.URL + "/manga",
		},
		Nav:  "browse",
		Data: d,
	})
}

type detailData struct {
	Manga           models.Manga
	Chapters        []models.Chapter
	First           *models.Chapter
	Latest          *models.Chapter
	Recommendations []models.Manga
	Summary         models.MangaSummary
}

func (h *Handler) detail(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")
	res := h.Catalog.MangaDetail(ctx, slug)
	if !res.OK || res.Data.Info == nil {
		h.notFound(c)
		return
	}
	m := *res.Data.Info
	if m.Slug == "" {
		m.Slug = slug
	}
	d := detailData{Manga: m, Chapters: m.Chapters, Recommendations: res.Data.Recommendations, Summary: models.SummaryOf(m)}
	if n := len(m.Chapters); n > 0 {
		d.First = &m.Chapters[n-1]
		d.Latest = &m.Chapters[0]
	}

	h.Tracker.MangaView(ctx, "", m)
	h.render(c, http.StatusOK, "detail", detailMaxAge, view{
		Meta: meta{
			Title:       m.Title,
			Description: detailDescription(m),
			Canonical:   h.Site.URL + "/manga/" + slug,
			Image:       m.CoverImage,
			JSONLD:      []jsonLD{bookLD(m)},
		},
		Nav:  "browse",
		Data: d,
	})
}

type readerData struct {
	Content   *reader.Content
	Chapters  []models.Chapter
	Width     int
	Fit       bool
	SizeLabel string
	PrevHref  string
	NextHref  string
	MangaHref string
}

func (h *Handler) read(c *gin.Context) {
	ctx := c.Request.Context()
	slug, chapterSlug := c.Param("slug"), c.Param("chapter")

	loader := reader.NewLoader(h.Catalog, h.Logger)
	content, err := loader.Load(ctx, slug, chapterSlug)
	if err != nil {
		h.Logger.Debug("chapter unavailable", zap.String("slug", slug), zap.String("chapter", chapterSlug), zap.Error(err))
		h.notFound(c)
		return
	}
	chapters := content.Chapters
	if content.NeedsChapterList {
		chapters, _ = loader.ChapterList(ctx, content)
	}

	state := reader.State{Width: reader.DefaultWidth, FitToWidth: c.Query("fit") == "1"}
	if w, err := strconv.Atoi(c.Query("width")); err == nil {
		state.Width = min(max(w, reader.MinWidth), reader.MaxWidth)
	}

	base := "/read/" + url.PathEscape(slug) + "/"
	d := readerData{
		Content:   content,
		Chapters:  chapters,
		Width:     state.Width,
		Fit:       state.FitToWidth,
		SizeLabel: state.SizeLabel(),
		MangaHref: "/manga/" + url.PathEscape(slug),
	}
	if p := content.Navigation.Prev; p != "" {
		d.PrevHref = base + url.PathEscape(p)
	}
	if n := content.Navigation.Next; n != "" {
		d.NextHref = base + url.PathEscape(n)
	}

	h.Tracker.ReadChapter(ctx, "", content.Manga, chapterSlug)

	canonical := h.Site.URL + "/read/" + slug + "/" + chapterSlug
	title := content.Manga.Title + " " + content.Chapter.Title
	h.render(c, http.StatusOK, "reader", readerMaxAge, view{
		Meta: meta{
			Title:       title,
			Description: "Baca " + title + " bahasa Indonesia secara gratis dan lengkap di " + h.Site.Name + ". Baca online tanpa download!",
			Canonical:   canonical,
			Image:       content.Manga.CoverImage,
			JSONLD: []jsonLD{
				breadcrumbLD(h.Site.URL, content),
				articleLD(h.Site.URL, h.Site.Name, content, canonical),
			},
		},
		Nav:  "reader",
		Data: d,
	})
}

type genresData struct {
	Genres []models.Genre
	Err    string
}

func (h *Handler) genres(c *gin.Context) {
	res := h.Catalog.Genres(c.Request.Context())
	h.render(c, http.StatusOK, "genres", genresMaxAge, view{
		Meta: meta{
			Title:       "Daftar Genre Komik",
			Description: "Jelajahi komik berdasarkan genre. Action, Romance, Fantasy, Horror, dan ratusan genre lainnya tersedia di " + h.Site.Name + ".",
			Canonical:   h.Site.URL + "/genres",
		},
		Nav:  "genres",
		Data: genresData{Genres: res.Data, Err: res.Err},
	})
}

func (h *Handler) bookmarks(c *gin.Context) {
	h.render(c, http.StatusOK, "bookmarks", 0, view{
		Meta: meta{Title: "Bookmark Saya", Description: "Daftar komik favorit yang disimpan.", NoIndex: true},
		Nav:  "bookmarks",
	})
}

func (h *Handler) login(c *gin.Context) {
	h.render(c, http.StatusOK, "login", 0, view{
		Meta: meta{Title: "Masuk", NoIndex: true},
		Nav:  "login",
	})
}

func (h *Handler) notFound(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	h.render(c, http.StatusNotFound, "notfound", 0, view{
		Meta: meta{Title: "Halaman Tidak Ditemukan", NoIndex: true},
	})
}

func (h *Handler) sitemap(c *gin.Context) {
	mangas := h.Catalog.AllMangaSlugs(c.Request.Context())
	body, err := MarshalSitemap(SitemapEntries(h.Site.URL, h.Site.DeployTime(), mangas))
	if err != nil {
		h.Logger.Error("sitemap marshal failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "sitemap failed")
		return
	}
	c.Header("Cache-Control", "public, max-age="+strconv.Itoa(sitemapMaxAge))
	c.Data(http.StatusOK, "application/xml; charset=utf-8", body)
}

func (h *Handler) robots(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(Robots(h.Site.URL)))
}
