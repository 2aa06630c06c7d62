package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"komikverse/internal/upstream"
	"komikverse/pkg/models"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func resultErr(op, msg string) error {
	return fmt.Errorf("%s: %s", op, msg)
}

func newMangaCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "manga", Short: "Browse the catalog."}
	cmd.AddCommand(newMangaListCmd(), newMangaShowCmd(), newGenresCmd())
	return cmd
}

func newMangaListCmd() *cobra.Command {
	var p upstream.ListParams
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List or search manga.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			res := a.Catalog.MangaList(cmd.Context(), p)
			if !res.OK {
				return resultErr("list manga", res.Err)
			}
			if p.Q != "" {
				a.Tracker.Search(cmd.Context(), userID(a), p.Q, len(res.Data))
			}
			if asJSON {
				return printJSON(res.Data)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SLUG\tTITLE\tTYPE\tRATING\tLAST")
			for _, m := range res.Data {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%s\n", m.Slug, m.Title, m.Type, m.Rating, m.LastChapter)
			}
			if pg := res.Pagination; pg != nil {
				fmt.Fprintf(w, "\npage %d of %d (%d titles)\n", pg.CurrentPage, pg.TotalPages, pg.TotalItems)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&p.Page, "page", 1, "page number")
	cmd.Flags().StringVarP(&p.Q, "query", "q", "", "search term")
	cmd.Flags().StringVar(&p.Status, "status", "", "ongoing or completed")
	cmd.Flags().StringVar(&p.Type, "type", "", "manga, manhwa or manhua")
	cmd.Flags().StringVar(&p.Genre, "genre", "", "genre name")
	cmd.Flags().StringVar(&p.Order, "order", "", "latest, popular, az or za")
	cmd.Flags().IntVar(&p.Limit, "limit", 24, "page size")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func fetchManga(cmd *cobra.Command, slug string) (upstream.MangaDetail, error) {
	res := appFrom(cmd).Catalog.MangaDetail(cmd.Context(), slug)
	if !res.OK {
		return upstream.MangaDetail{}, resultErr("manga "+slug, res.Err)
	}
	if res.Data.Info == nil {
		return upstream.MangaDetail{}, errors.New("manga " + slug + ": not found")
	}
	if res.Data.Info.Slug == "" {
		res.Data.Info.Slug = slug
	}
	return res.Data, nil
}

func newMangaShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <slug>",
		Short: "Show a manga and its chapters.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			d, err := fetchManga(cmd, args[0])
			if err != nil {
				return err
			}
			m := *d.Info
			a.Tracker.MangaView(cmd.Context(), userID(a), m)
			if asJSON {
				return printJSON(d)
			}
			printManga(m)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printManga(m models.Manga) {
	fmt.Printf("%s\n%s\n", m.Title, strings.Repeat("=", len([]rune(m.Title))))
	fmt.Printf("type: %s  status: %s  rating: %.1f  views: %d\n", m.Type, m.Status, m.Rating, m.Views)
	if m.Author != "" {
		fmt.Printf("author: %s\n", m.Author)
	}
	if len(m.Genres) > 0 {
		fmt.Printf("genres: %s\n", strings.Join(m.Genres, ", "))
	}
	if m.Synopsis != "" {
		fmt.Printf("\n%s\n", m.Synopsis)
	}
	fmt.Printf("\n%d chapters\n", len(m.Chapters))
	for _, ch := range m.Chapters {
		fmt.Printf("  %-24s %s\n", ch.Slug, ch.Title)
	}
}

func newGenresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "List genres.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res := appFrom(cmd).Catalog.Genres(cmd.Context())
			if !res.OK {
				return resultErr("genres", res.Err)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, g := range res.Data {
				fmt.Fprintf(w, "%s\t%d\n", g.Name, g.Count)
			}
			return w.Flush()
		},
	}
}

func userID(a *app) string {
	if u := a.Session.User(); u != nil {
		return u.UID
	}
	return ""
}
