package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"komikverse/pkg/models"
)

func newBookmarksCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "bookmarks", Aliases: []string{"bm"}, Short: "Manage your saved manga."}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List bookmarks, newest first.",
			RunE: func(cmd *cobra.Command, _ []string) error {
				a := appFrom(cmd)
				items, err := a.API.ListBookmarks(cmd.Context(), a.Session.Token())
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Println("Belum ada bookmark.")
					return nil
				}
				for _, b := range items {
					fmt.Printf("%-32s %-40s %s\n", b.MangaSlug, b.Title, b.LastChapter)
				}
				return nil
			},
		},
		newBookmarkMutateCmd("add", "Bookmark a manga.", false),
		newBookmarkMutateCmd("toggle", "Bookmark a manga, or remove it when already saved.", true),
		&cobra.Command{
			Use:   "remove <slug>",
			Short: "Remove a bookmark.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a := appFrom(cmd)
				if err := a.API.RemoveBookmark(cmd.Context(), a.Session.Token(), args[0]); err != nil {
					return err
				}
				fmt.Println("🗑  removed", args[0])
				return nil
			},
		},
		newBookmarkExportCmd(),
	)
	return cmd
}

func newBookmarkMutateCmd(use, short string, toggle bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <slug>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			token := a.Session.Token()
			if token == "" {
				return errNotLoggedIn
			}
			d, err := fetchManga(cmd, args[0])
			if err != nil {
				return err
			}
			summary := models.SummaryOf(*d.Info)
			saved := true
			if toggle {
				saved, err = a.API.ToggleBookmark(cmd.Context(), token, summary)
			} else {
				err = a.API.AddBookmark(cmd.Context(), token, summary)
			}
			if err != nil {
				return err
			}
			if saved {
				fmt.Println("🔖 saved", summary.Title)
			} else {
				fmt.Println("🗑  removed", summary.Title)
			}
			return nil
		},
	}
}

var csvHeader = []string{"slug", "title", "type", "status", "rating", "last_chapter", "last_chapter_slug", "cover_image", "saved_at"}

func writeBookmarksCSV(w io.Writer, items []models.Bookmark) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range items {
		row := []string{
			b.MangaSlug,
			b.Title,
			b.Type,
			b.Status,
			strconv.FormatFloat(b.Rating, 'f', 1, 64),
			b.LastChapter,
			b.LastChapterSlug,
			b.CoverImage,
			b.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func newBookmarkExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export bookmarks as CSV.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			items, err := a.API.ListBookmarks(cmd.Context(), a.Session.Token())
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				return writeBookmarksCSV(os.Stdout, items)
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := writeBookmarksCSV(f, items); err != nil {
				_ = f.Close()
				return fmt.Errorf("write csv: %w", err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✅ exported %d bookmarks to %s\n", len(items), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output path, - for stdout")
	return cmd
}
