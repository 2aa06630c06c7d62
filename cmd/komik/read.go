package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"komikverse/internal/reader"
	"komikverse/pkg/models"
)

// lineViewport lays chapter images out as fixed-height blocks of text lines.
type lineViewport struct {
	mu       sync.Mutex
	y        int
	rows     int
	pageRows int
	pages    int
}

func (v *lineViewport) ScrollY() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.y
}

func (v *lineViewport) ScrollBy(dy int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.y = min(max(v.y+dy, 0), max(v.pages*v.pageRows-v.rows, 0))
}

func (v *lineViewport) InnerHeight() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rows
}

func (v *lineViewport) DocumentHeight() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pages * v.pageRows
}

func (v *lineViewport) reset(pages int) {
	v.mu.Lock()
	v.y, v.pages = 0, pages
	v.mu.Unlock()
}

// visible returns the 0-based indexes of pages intersecting the viewport.
func (v *lineViewport) visible() []int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pageRows <= 0 {
		return nil
	}
	var out []int
	for i := v.y / v.pageRows; i < v.pages && i*v.pageRows < v.y+v.rows; i++ {
		out = append(out, i)
	}
	return out
}

type readSession struct {
	ctl  *reader.Controller
	vp   *lineViewport
	out  io.Writer
	tick time.Duration

	slug   string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newReadCmd() *cobra.Command {
	var rows, pageRows int
	var tick time.Duration
	cmd := &cobra.Command{
		Use:   "read <slug> [chapter]",
		Short: "Read a chapter interactively. Defaults to the first chapter.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			slug := args[0]
			chapter := ""
			if len(args) == 2 {
				chapter = args[1]
			} else {
				d, err := fetchManga(cmd, slug)
				if err != nil {
					return err
				}
				if n := len(d.Info.Chapters); n > 0 {
					chapter = d.Info.Chapters[n-1].Slug
				}
				if chapter == "" {
					return errors.New("manga " + slug + " has no chapters")
				}
			}

			vp := &lineViewport{rows: rows, pageRows: pageRows}
			ctl := reader.NewController(reader.NewLoader(a.Catalog, a.Logger), vp, a.Tracker)
			ctl.UserID = userID(a)
			rs := &readSession{ctl: ctl, vp: vp, out: os.Stdout, tick: tick, slug: slug}
			defer rs.stopAuto()

			if err := rs.open(cmd.Context(), chapter); err != nil {
				return err
			}
			return rs.loop(cmd, bufio.NewScanner(os.Stdin))
		},
	}
	cmd.Flags().IntVar(&rows, "rows", 24, "terminal rows shown at once")
	cmd.Flags().IntVar(&pageRows, "page-rows", 40, "rows one page image occupies")
	cmd.Flags().DurationVar(&tick, "tick", 200*time.Millisecond, "auto-scroll step interval")
	return cmd
}

func (rs *readSession) open(ctx context.Context, chapter string) error {
	rs.stopAuto()
	err := rs.ctl.Navigate(ctx, rs.slug, chapter)
	if errors.Is(err, reader.ErrStale) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s/%s: %w", rs.slug, chapter, err)
	}
	st := rs.ctl.State()
	rs.vp.reset(len(st.Data.Chapter.Images))
	rs.render()
	return nil
}

func (rs *readSession) startAuto(ctx context.Context) {
	ctx, rs.cancel = context.WithCancel(ctx)
	rs.wg.Add(1)
	go func() {
		defer rs.wg.Done()
		rs.ctl.Run(ctx, rs.tick)
		if ctx.Err() == nil {
			fmt.Fprintln(rs.out, "\n[auto-scroll stopped at the end of the chapter]")
			rs.render()
		}
	}()
}

func (rs *readSession) stopAuto() {
	if rs.cancel != nil {
		rs.cancel()
		rs.cancel = nil
	}
	rs.wg.Wait()
	if rs.ctl.State().AutoScroll {
		rs.ctl.ToggleAutoScroll()
	}
}

func (rs *readSession) render() {
	st := rs.ctl.State()
	if st.Data == nil {
		return
	}
	if st.UIVisible {
		fmt.Fprintf(rs.out, "\n%s · %s   %d%%   size %s  speed %d\n",
			st.Data.Manga.Title, st.Data.Chapter.Title, st.Progress, st.SizeLabel(), st.Speed)
	}
	for _, i := range rs.vp.visible() {
		fmt.Fprintf(rs.out, "  [%d/%d] %s\n", i+1, len(st.Data.Chapter.Images), st.Data.Chapter.Images[i])
	}
	switch st.Panel {
	case reader.PanelChapters:
		rs.renderChapters(st)
	case reader.PanelSettings:
		fmt.Fprintf(rs.out, "settings: width %d (%s), fit %v, auto-scroll speed %d\n", st.Width, st.SizeLabel(), st.FitToWidth, st.Speed)
	}
}

func (rs *readSession) renderChapters(st reader.State) {
	fmt.Fprintf(rs.out, "Chapters (%d)\n", len(st.Chapters))
	var b strings.Builder
	for i, ch := range st.Chapters {
		mark := " "
		if ch.Slug == st.Data.ChapterSlug {
			mark = "*"
		}
		fmt.Fprintf(&b, "%s%-6s", mark, reader.ChapterNumber(ch.Title))
		if (i+1)%10 == 0 {
			b.WriteString("\n")
		}
	}
	fmt.Fprintln(rs.out, b.String())
}

const readHelp = `commands:
  j / enter   scroll down      k   scroll up
  n / p       next / previous chapter
  g <slug>    jump to chapter  c   chapter list
  a           auto-scroll      s <1-10>  speed
  w <300-1200> image width     f   fit to width
  o           settings         u   toggle header
  b           bookmark         q   quit`

func (rs *readSession) loop(cmd *cobra.Command, in *bufio.Scanner) error {
	ctx := cmd.Context()
	fmt.Fprintln(rs.out, readHelp)
	for {
		fmt.Fprint(rs.out, "> ")
		if !in.Scan() {
			return in.Err()
		}
		fields := strings.Fields(in.Text())
		verb, arg := "j", ""
		if len(fields) > 0 {
			verb = fields[0]
		}
		if len(fields) > 1 {
			arg = fields[1]
		}

		st := rs.ctl.State()
		if st.Data == nil && (verb == "n" || verb == "p" || verb == "b") {
			fmt.Fprintln(rs.out, "no chapter loaded; use g <chapter-slug>")
			continue
		}
		switch verb {
		case "q", "quit":
			return nil
		case "j", "k":
			step := max(rs.vp.InnerHeight()/2, 1)
			if verb == "k" {
				step = -step
			}
			rs.vp.ScrollBy(step)
			rs.ctl.OnScroll()
			rs.render()
		case "n", "p":
			next := st.Data.Navigation.Next
			if verb == "p" {
				next = st.Data.Navigation.Prev
			}
			if next == "" {
				fmt.Fprintln(rs.out, "no more chapters this way")
				continue
			}
			if err := rs.open(ctx, next); err != nil {
				fmt.Fprintln(rs.out, "error:", err)
			}
		case "g":
			if arg == "" {
				fmt.Fprintln(rs.out, "usage: g <chapter-slug>")
				continue
			}
			if err := rs.open(ctx, arg); err != nil {
				fmt.Fprintln(rs.out, "error:", err)
			}
		case "c":
			rs.ctl.TogglePanel(reader.PanelChapters)
			rs.render()
		case "o":
			rs.ctl.TogglePanel(reader.PanelSettings)
			rs.render()
		case "u":
			rs.ctl.ContentClick()
			rs.render()
		case "a":
			if st.AutoScroll {
				rs.stopAuto()
				fmt.Fprintln(rs.out, "auto-scroll off")
				continue
			}
			rs.stopAuto()
			if rs.ctl.ToggleAutoScroll() {
				rs.startAuto(ctx)
				fmt.Fprintln(rs.out, "auto-scroll on; press a to stop")
			}
		case "s", "w":
			v, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Fprintf(rs.out, "usage: %s <number>\n", verb)
				continue
			}
			if verb == "s" {
				rs.ctl.SetSpeed(v)
			} else {
				rs.ctl.SetWidth(v)
			}
			rs.render()
		case "f":
			rs.ctl.ToggleFitToWidth()
			rs.render()
		case "b":
			if err := rs.toggleBookmark(cmd, st.Data.Manga); err != nil {
				fmt.Fprintln(rs.out, "error:", describe(err))
			}
		default:
			fmt.Fprintln(rs.out, readHelp)
		}
	}
}

func (rs *readSession) toggleBookmark(cmd *cobra.Command, m models.Manga) error {
	a := appFrom(cmd)
	if m.Slug == "" {
		m.Slug = rs.slug
	}
	saved, err := a.API.ToggleBookmark(cmd.Context(), a.Session.Token(), models.SummaryOf(m))
	if err != nil {
		return err
	}
	if saved {
		fmt.Fprintln(rs.out, "🔖 saved")
	} else {
		fmt.Fprintln(rs.out, "🗑  removed")
	}
	return nil
}
