// Command komik is the terminal client for a komikverse server: sign in,
// browse the catalog, manage bookmarks and read chapters.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"komikverse/internal/analytics"
	"komikverse/internal/logging"
	"komikverse/internal/session"
	"komikverse/internal/upstream"
)

const defaultBaseURL = "http://localhost:8080"

type appKeyType string

const appKey appKeyType = "app"

// app holds the clients every subcommand shares.
type app struct {
	Logger  *zap.Logger
	Session *session.Context
	Catalog *upstream.Client
	Tracker *analytics.Tracker
	API     *apiClient
}

func (a *app) Close() {
	a.Session.Teardown()
	_ = a.Logger.Sync()
}

type globalFlags struct {
	baseURL   string
	tokenPath string
	verbose   bool
	timeout   time.Duration
}

func newApp(ctx context.Context, g globalFlags) (*app, error) {
	logger, err := logging.New(g.verbose)
	if err != nil {
		return nil, err
	}
	if !g.verbose {
		logger = logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))
	}

	sess := session.New(g.baseURL, session.FileTokenStore{Path: g.tokenPath}, logger)
	if err := sess.Init(ctx); err != nil {
		logger.Debug("session init", zap.Error(err))
	}
	return &app{
		Logger:  logger,
		Session: sess,
		Catalog: upstream.NewViaProxy(g.baseURL, g.timeout, logger),
		Tracker: analytics.NewTracker(analytics.LogSink{Logger: logger}, logger),
		API:     newAPIClient(g.baseURL, g.timeout),
	}, nil
}

func appFrom(cmd *cobra.Command) *app {
	a, _ := cmd.Context().Value(appKey).(*app)
	return a
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	cmd := &cobra.Command{
		Use:           "komik",
		Short:         "Read and bookmark manga from a komikverse server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return fmt.Errorf("init: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a := appFrom(cmd); a != nil {
				a.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&g.baseURL, "api", envOr("KOMIK_API", defaultBaseURL), "komikverse server origin")
	cmd.PersistentFlags().StringVar(&g.tokenPath, "token", session.DefaultTokenPath(), "token file path")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().DurationVar(&g.timeout, "timeout", upstream.DefaultTimeout, "request timeout")

	cmd.AddCommand(newAuthCmd(), newMangaCmd(), newBookmarksCmd(), newReadCmd())
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}
