package reader

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"komikverse/internal/analytics"
	"komikverse/internal/upstream"
	"komikverse/pkg/models"
)

type fakeViewport struct {
	mu     stdsync.Mutex
	y      int
	inner  int
	height int
}

func (v *fakeViewport) ScrollY() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.y
}

func (v *fakeViewport) ScrollBy(dy int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.y = min(max(v.y+dy, 0), max(v.height-v.inner, 0))
}

func (v *fakeViewport) InnerHeight() int    { return v.inner }
func (v *fakeViewport) DocumentHeight() int { return v.height }

func (v *fakeViewport) scrollTo(y int) {
	v.mu.Lock()
	v.y = y
	v.mu.Unlock()
}

type fakeSource struct {
	mu       stdsync.Mutex
	chapters map[string]upstream.Result[upstream.ChapterPage]
	detail   upstream.Result[upstream.MangaDetail]
	gates    map[string]chan struct{}
	detailN  int
}

func (s *fakeSource) Chapter(ctx context.Context, slug, chapterSlug string) upstream.Result[upstream.ChapterPage] {
	s.mu.Lock()
	gate := s.gates[chapterSlug]
	res := s.chapters[chapterSlug]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return res
}

func (s *fakeSource) MangaDetail(ctx context.Context, slug string) upstream.Result[upstream.MangaDetail] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detailN++
	return s.detail
}

func page(chapterSlug string, withList bool) upstream.Result[upstream.ChapterPage] {
	m := &models.Manga{Slug: "solo", Title: "Solo Leveling", Type: "manhwa"}
	if withList {
		m.Chapters = []models.Chapter{{Slug: "ch-2", Title: "Chapter 2"}, {Slug: "ch-1", Title: "Chapter 1"}}
	}
	return upstream.Result[upstream.ChapterPage]{
		OK: true,
		Data: upstream.ChapterPage{
			Chapter:    &models.ChapterContent{Title: "Chapter " + chapterSlug, Images: []string{"a.jpg", "b.jpg"}},
			Manga:      m,
			Navigation: models.Navigation{Next: "ch-2"},
		},
	}
}

func newTestController(src Source, vp Viewport) (*Controller, *analytics.MemorySink) {
	sink := &analytics.MemorySink{}
	c := NewController(NewLoader(src, nil), vp, analytics.NewTracker(sink, nil))
	return c, sink
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	c, _ := newTestController(&fakeSource{}, &fakeViewport{})
	s := c.State()
	assert.Equal(t, Loading, s.Content)
	assert.True(t, s.UIVisible)
	assert.Equal(t, PanelNone, s.Panel)
	assert.False(t, s.AutoScroll)
	assert.Equal(t, 2, s.Speed)
	assert.Equal(t, 800, s.Width)
	assert.Equal(t, "80%", s.SizeLabel())
}

func TestNavigateReadyWithEmbeddedList(t *testing.T) {
	t.Parallel()
	src := &fakeSource{chapters: map[string]upstream.Result[upstream.ChapterPage]{"ch-1": page("ch-1", true)}}
	c, sink := newTestController(src, &fakeViewport{})

	require.NoError(t, c.Navigate(context.Background(), "solo", "ch-1"))
	s := c.State()
	require.Equal(t, Ready, s.Content)
	require.Len(t, s.Chapters, 2)
	require.Zero(t, src.detailN, "no secondary fetch when the list is embedded")
	require.Equal(t, []string{analytics.EventReadChapter}, sink.Names())
	require.Equal(t, "ch-1", sink.Events()[0].Params["chapter_slug"])
}

func TestNavigateFetchesMissingList(t *testing.T) {
	t.Parallel()
	src := &fakeSource{
		chapters: map[string]upstream.Result[upstream.ChapterPage]{"ch-1": page("ch-1", false)},
		detail: upstream.Result[upstream.MangaDetail]{OK: true, Data: upstream.MangaDetail{
			Info: &models.Manga{Chapters: []models.Chapter{{Slug: "ch-1", Title: "Chapter 1"}}},
		}},
	}
	c, _ := newTestController(src, &fakeViewport{})

	require.NoError(t, c.Navigate(context.Background(), "solo", "ch-1"))
	require.Equal(t, 1, src.detailN)
	require.Len(t, c.State().Chapters, 1)
}

func TestSecondaryFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	src := &fakeSource{
		chapters: map[string]upstream.Result[upstream.ChapterPage]{"ch-1": page("ch-1", false)},
		detail:   upstream.Result[upstream.MangaDetail]{Err: "HTTP 500"},
	}
	c, _ := newTestController(src, &fakeViewport{})

	require.NoError(t, c.Navigate(context.Background(), "solo", "ch-1"))
	s := c.State()
	require.Equal(t, Ready, s.Content)
	require.Empty(t, s.Chapters)
	require.Empty(t, s.Err)
}

func TestNavigateError(t *testing.T) {
	t.Parallel()
	src := &fakeSource{chapters: map[string]upstream.Result[upstream.ChapterPage]{
		"gone": {Err: "HTTP 404"},
		"null": {OK: true},
	}}
	c, sink := newTestController(src, &fakeViewport{})

	err := c.Navigate(context.Background(), "solo", "gone")
	require.EqualError(t, err, "HTTP 404")
	require.Equal(t, Failed, c.State().Content)
	require.Equal(t, "HTTP 404", c.State().Err)

	require.ErrorIs(t, c.Navigate(context.Background(), "solo", "null"), ErrNotFound)
	require.Empty(t, sink.Names())
}

func TestStaleNavigationIsDiscarded(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	src := &fakeSource{
		chapters: map[string]upstream.Result[upstream.ChapterPage]{
			"slow": page("slow", true),
			"fast": page("fast", true),
		},
		gates: map[string]chan struct{}{"slow": gate},
	}
	c, _ := newTestController(src, &fakeViewport{})

	slowDone := make(chan error, 1)
	go func() { slowDone <- c.Navigate(context.Background(), "solo", "slow") }()
	require.Eventually(t, func() bool { return c.Loader.Current() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, c.Navigate(context.Background(), "solo", "fast"))
	close(gate)
	require.ErrorIs(t, <-slowDone, ErrStale)

	s := c.State()
	require.Equal(t, Ready, s.Content)
	require.Equal(t, "fast", s.Data.ChapterSlug)
}

func TestOnScrollVisibilityAndProgress(t *testing.T) {
	t.Parallel()
	vp := &fakeViewport{inner: 100, height: 1100}
	c, _ := newTestController(&fakeSource{}, vp)

	vp.scrollTo(5)
	c.OnScroll()
	require.True(t, c.State().UIVisible, "within threshold")

	vp.scrollTo(50)
	c.OnScroll()
	s := c.State()
	require.False(t, s.UIVisible)
	require.Equal(t, 5, s.Progress)

	vp.scrollTo(30)
	c.OnScroll()
	require.True(t, c.State().UIVisible)

	c.TogglePanel(PanelSettings)
	vp.scrollTo(500)
	c.OnScroll()
	s = c.State()
	require.True(t, s.UIVisible, "panel keeps the UI up")
	require.Equal(t, 50, s.Progress)
}

func TestProgressZeroWhenNothingToScroll(t *testing.T) {
	t.Parallel()
	vp := &fakeViewport{inner: 800, height: 600}
	c, _ := newTestController(&fakeSource{}, vp)
	c.OnScroll()
	require.Zero(t, c.State().Progress)
}

func TestReadCompleteFiresOnce(t *testing.T) {
	t.Parallel()
	src := &fakeSource{chapters: map[string]upstream.Result[upstream.ChapterPage]{"ch-1": page("ch-1", true)}}
	vp := &fakeViewport{inner: 100, height: 1100}
	c, sink := newTestController(src, vp)
	require.NoError(t, c.Navigate(context.Background(), "solo", "ch-1"))

	vp.scrollTo(900)
	c.OnScroll()
	vp.scrollTo(950)
	c.OnScroll()
	vp.scrollTo(1000)
	c.OnScroll()

	require.Equal(t, []string{analytics.EventReadChapter, analytics.EventReadComplete}, sink.Names())
}

func TestPanelsAndContentClick(t *testing.T) {
	t.Parallel()
	c, _ := newTestController(&fakeSource{}, &fakeViewport{inner: 100, height: 1000})

	require.True(t, c.ToggleAutoScroll())
	require.False(t, c.State().UIVisible)

	c.TogglePanel(PanelChapters)
	s := c.State()
	require.Equal(t, PanelChapters, s.Panel)
	require.False(t, s.AutoScroll)
	require.True(t, s.UIVisible)

	c.TogglePanel(PanelSettings)
	require.Equal(t, PanelSettings, c.State().Panel)
	c.TogglePanel(PanelSettings)
	require.Equal(t, PanelNone, c.State().Panel)

	c.TogglePanel(PanelChapters)
	c.ContentClick()
	s = c.State()
	require.Equal(t, PanelNone, s.Panel)
	require.True(t, s.UIVisible)

	c.ContentClick()
	require.False(t, c.State().UIVisible)
	c.ContentClick()
	require.True(t, c.State().UIVisible)
}

func TestAutoScrollAdvancesAndStopsAtBottom(t *testing.T) {
	t.Parallel()
	vp := &fakeViewport{inner: 100, height: 110}
	c, _ := newTestController(&fakeSource{}, vp)
	c.SetSpeed(4)

	require.False(t, c.Tick(), "off does nothing")
	require.Zero(t, vp.ScrollY())

	c.ToggleAutoScroll()
	require.True(t, c.Tick())
	require.Equal(t, 4, vp.ScrollY())
	require.True(t, c.Tick())
	require.Equal(t, 8, vp.ScrollY())
	require.False(t, c.Tick())
	require.Equal(t, 10, vp.ScrollY())
	require.False(t, c.State().AutoScroll)

	require.False(t, c.Tick())
	require.Equal(t, 10, vp.ScrollY())
}

func TestToggleOffShowsUIAndStopsMovement(t *testing.T) {
	t.Parallel()
	vp := &fakeViewport{inner: 100, height: 10000}
	c, _ := newTestController(&fakeSource{}, vp)

	c.ToggleAutoScroll()
	c.Tick()
	require.False(t, c.ToggleAutoScroll())
	require.True(t, c.State().UIVisible)

	y := vp.ScrollY()
	c.Tick()
	require.Equal(t, y, vp.ScrollY())
}

func TestRunStopsWithContextOrBottom(t *testing.T) {
	t.Parallel()
	vp := &fakeViewport{inner: 100, height: 140}
	c, _ := newTestController(&fakeSource{}, vp)
	c.SetSpeed(10)
	c.ToggleAutoScroll()

	done := make(chan struct{})
	go func() {
		c.Run(context.Background(), time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop at the bottom")
	}
	require.Equal(t, 40, vp.ScrollY())

	long := &fakeViewport{inner: 100, height: 1 << 30}
	c2, _ := newTestController(&fakeSource{}, long)
	c2.ToggleAutoScroll()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		c2.Run(ctx, time.Millisecond)
		close(stopped)
	}()
	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("run ignored cancellation")
	}
}

func TestSettingsClamp(t *testing.T) {
	t.Parallel()
	c, _ := newTestController(&fakeSource{}, &fakeViewport{})

	c.SetSpeed(0)
	c.SetWidth(5000)
	s := c.State()
	require.Equal(t, MinSpeed, s.Speed)
	require.Equal(t, MaxWidth, s.Width)

	c.SetSpeed(99)
	c.SetWidth(10)
	s = c.State()
	require.Equal(t, MaxSpeed, s.Speed)
	require.Equal(t, MinWidth, s.Width)

	c.ToggleFitToWidth()
	require.Equal(t, "FIT", c.State().SizeLabel())
}

func TestChapterNumber(t *testing.T) {
	t.Parallel()
	require.Equal(t, "106", ChapterNumber("Chapter 106"))
	require.Equal(t, "12.5", ChapterNumber("chapter12.5"))
	require.Equal(t, "Prologue", ChapterNumber("Prologue"))
}

func TestLoaderErrors(t *testing.T) {
	t.Parallel()
	l := NewLoader(&fakeSource{chapters: map[string]upstream.Result[upstream.ChapterPage]{}}, nil)
	_, err := l.Load(context.Background(), "x", "missing")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrStale))
}
