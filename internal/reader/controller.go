// Package reader drives the chapter reader: content loading, UI visibility,
// panels, auto-scroll and reading progress.
package reader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	stdsync "sync"
	"time"

	"komikverse/internal/analytics"
	"komikverse/pkg/models"
)

type ContentState int

const (
	Loading ContentState = iota
	Ready
	Failed
)

func (s ContentState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "error"
	}
}

type Panel int

const (
	PanelNone Panel = iota
	PanelSettings
	PanelChapters
)

const (
	MinSpeed     = 1
	MaxSpeed     = 10
	DefaultSpeed = 2

	MinWidth     = 300
	MaxWidth     = 1200
	DefaultWidth = 800

	// TickInterval is the auto-scroll step period.
	TickInterval = 16 * time.Millisecond

	scrollThreshold = 10
	completePercent = 90
)

// Viewport is the scrollable surface the reader renders into.
type Viewport interface {
	ScrollY() int
	ScrollBy(dy int)
	InnerHeight() int
	DocumentHeight() int
}

// State is a point-in-time copy of the controller for rendering.
type State struct {
	Content    ContentState
	Err        string
	Data       *Content
	Chapters   []models.Chapter
	UIVisible  bool
	Panel      Panel
	AutoScroll bool
	Speed      int
	Width      int
	FitToWidth bool
	Progress   int
}

// Controller owns the reader's flags. All methods are safe for concurrent use.
type Controller struct {
	Loader  *Loader
	Tracker *analytics.Tracker
	UserID  string

	mu         stdsync.Mutex
	vp         Viewport
	content    ContentState
	err        string
	data       *Content
	chapters   []models.Chapter
	uiVisible  bool
	panel      Panel
	autoScroll bool
	speed      int
	width      int
	fit        bool
	progress   int
	lastY      int
	completed  bool
}

func NewController(loader *Loader, vp Viewport, tracker *analytics.Tracker) *Controller {
	return &Controller{
		Loader:    loader,
		Tracker:   tracker,
		vp:        vp,
		content:   Loading,
		uiVisible: true,
		speed:     DefaultSpeed,
		width:     DefaultWidth,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Content:    c.content,
		Err:        c.err,
		Data:       c.data,
		Chapters:   append([]models.Chapter(nil), c.chapters...),
		UIVisible:  c.uiVisible,
		Panel:      c.panel,
		AutoScroll: c.autoScroll,
		Speed:      c.speed,
		Width:      c.width,
		FitToWidth: c.fit,
		Progress:   c.progress,
	}
}

// Navigate loads (slug, chapterSlug). Results of an older navigation that
// resolve late are dropped and reported as ErrStale. The chapter list, when
// missing from the payload, is filled in after the content is already Ready.
func (c *Controller) Navigate(ctx context.Context, slug, chapterSlug string) error {
	c.mu.Lock()
	c.content, c.err = Loading, ""
	c.mu.Unlock()

	data, gen, err := c.Loader.load(ctx, slug, chapterSlug)
	if errors.Is(err, ErrStale) {
		return err
	}

	c.mu.Lock()
	if !c.Loader.isCurrent(gen) {
		c.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		c.content, c.err = Failed, err.Error()
		c.mu.Unlock()
		return err
	}
	c.data = data
	c.chapters = data.Chapters
	c.content = Ready
	c.progress, c.lastY, c.completed = 0, 0, false
	c.mu.Unlock()

	c.Tracker.ReadChapter(ctx, c.UserID, data.Manga, chapterSlug)

	if !data.NeedsChapterList {
		return nil
	}
	list, err := c.Loader.ChapterList(ctx, data)
	if err != nil {
		return nil
	}
	c.mu.Lock()
	if c.data == data {
		c.chapters = list
	}
	c.mu.Unlock()
	return nil
}

// OnScroll recomputes progress and, unless auto-scrolling, shows the UI on
// upward scroll and hides it on downward scroll when no panel is open.
func (c *Controller) OnScroll() {
	c.mu.Lock()
	complete := c.onScrollLocked()
	data := c.data
	c.mu.Unlock()
	if complete {
		c.Tracker.ReadComplete(context.Background(), c.UserID, data.Manga, data.ChapterSlug)
	}
}

func (c *Controller) onScrollLocked() (justCompleted bool) {
	y := c.vp.ScrollY()
	span := c.vp.DocumentHeight() - c.vp.InnerHeight()
	if span > 0 {
		c.progress = int(math.Round(float64(y) / float64(span) * 100))
	} else {
		c.progress = 0
	}

	if !c.autoScroll {
		if y < c.lastY-scrollThreshold {
			c.uiVisible = true
		} else if y > c.lastY+scrollThreshold && c.panel == PanelNone {
			c.uiVisible = false
		}
	}
	c.lastY = y

	if c.progress > completePercent && !c.completed && c.content == Ready && c.data != nil {
		c.completed = true
		return true
	}
	return false
}

// TogglePanel closes p if it is open, otherwise opens it, stops auto-scroll
// and shows the UI.
func (c *Controller) TogglePanel(p Panel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.panel == p {
		c.panel = PanelNone
		return
	}
	c.panel = p
	c.autoScroll = false
	c.uiVisible = true
}

// ContentClick closes an open panel, otherwise flips UI visibility.
func (c *Controller) ContentClick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.panel != PanelNone {
		c.panel = PanelNone
		return
	}
	c.uiVisible = !c.uiVisible
}

// ToggleAutoScroll flips auto-scroll and reports the new value.
func (c *Controller) ToggleAutoScroll() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoScroll = !c.autoScroll
	c.uiVisible = !c.autoScroll
	return c.autoScroll
}

// Tick advances one auto-scroll step. It reports whether auto-scroll is
// still on afterwards.
func (c *Controller) Tick() bool {
	c.mu.Lock()
	if !c.autoScroll {
		c.mu.Unlock()
		return false
	}
	c.vp.ScrollBy(c.speed)
	if c.vp.InnerHeight()+c.vp.ScrollY() >= c.vp.DocumentHeight() {
		c.autoScroll = false
	}
	complete := c.onScrollLocked()
	on, data := c.autoScroll, c.data
	c.mu.Unlock()

	if complete {
		c.Tracker.ReadComplete(context.Background(), c.UserID, data.Manga, data.ChapterSlug)
	}
	return on
}

// Run ticks every interval until auto-scroll turns off or ctx is done.
func (c *Controller) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = TickInterval
	}
	if !c.State().AutoScroll {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !c.Tick() {
				return
			}
		}
	}
}

func (c *Controller) SetSpeed(v int) {
	c.mu.Lock()
	c.speed = clamp(v, MinSpeed, MaxSpeed)
	c.mu.Unlock()
}

func (c *Controller) SetWidth(v int) {
	c.mu.Lock()
	c.width = clamp(v, MinWidth, MaxWidth)
	c.mu.Unlock()
}

func (c *Controller) ToggleFitToWidth() {
	c.mu.Lock()
	c.fit = !c.fit
	c.mu.Unlock()
}

// SizeLabel is the image size shown in the settings panel.
func (s State) SizeLabel() string {
	if s.FitToWidth {
		return "FIT"
	}
	return fmt.Sprintf("%d%%", int(math.Round(float64(s.Width)/10)))
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

var chapterPrefix = regexp.MustCompile(`(?i)chapter\s*`)

// ChapterNumber turns "Chapter 106" into "106" for the chapter grid.
func ChapterNumber(title string) string {
	if loc := chapterPrefix.FindStringIndex(title); loc != nil {
		title = title[:loc[0]] + title[loc[1]:]
	}
	return strings.TrimSpace(title)
}
