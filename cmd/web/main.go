package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"komikverse/internal/analytics"
	"komikverse/internal/auth"
	"komikverse/internal/bookmark"
	"komikverse/internal/config"
	"komikverse/internal/logging"
	"komikverse/internal/metrics"
	"komikverse/internal/proxy"
	synchub "komikverse/internal/sync"
	"komikverse/internal/upstream"
	"komikverse/internal/web"
	"komikverse/pkg/database"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, toml or json)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newSink(ctx context.Context, cfg config.AnalyticsConfig, logger *zap.Logger) (analytics.Sink, io.Closer, error) {
	switch cfg.Sink {
	case "pubsub":
		sink, err := analytics.NewPubSubSink(ctx, cfg.ProjectID, cfg.Topic, logger)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink, nil
	case "none":
		return analytics.NopSink{}, nil, nil
	default:
		return analytics.LogSink{Logger: logger}, nil, nil
	}
}

func newBookmarkStore(ctx context.Context, cfg config.BookmarksConfig, sqlite *sql.DB) (bookmark.Store, func(), error) {
	if cfg.Driver != "postgres" {
		return bookmark.NewSQLiteStore(sqlite), func() {}, nil
	}
	store, pool, err := bookmark.NewPostgresStore(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := database.MigratePostgres(ctx, pool); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, store.Close, nil
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	db, err := database.OpenMigrated(database.Config{Path: cfg.DB.Path})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	sink, sinkCloser, err := newSink(ctx, cfg.Analytics, logger)
	if err != nil {
		return fmt.Errorf("analytics sink: %w", err)
	}
	if sinkCloser != nil {
		defer sinkCloser.Close()
	}
	tracker := analytics.NewTracker(sink, logger)

	store, closeStore, err := newBookmarkStore(ctx, cfg.Bookmarks, db)
	if err != nil {
		return fmt.Errorf("bookmark store: %w", err)
	}
	defer closeStore()

	metrics.Init()
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logging.RequestID(), logging.Middleware(logger), metrics.Middleware())
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	hub := synchub.NewHub(logger)

	tokens := auth.TokenService{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.JWTIssuer,
		Duration: cfg.Auth.JWTTTL,
	}
	authHandler := auth.NewHandler(auth.NewRepo(db), tokens, tracker, logger)
	authHandler.SiteURL = cfg.Site.URL
	if cfg.Auth.GoogleEnabled() {
		authHandler.Google = auth.NewGoogleProvider(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, cfg.Auth.GoogleRedirectURL)
	}
	verifier := authHandler.Verifier()

	api := router.Group("/api")
	proxy.NewForwarder(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, logger).RegisterRoutes(api.Group("/proxy"))
	authHandler.RegisterRoutes(api.Group("/auth"))
	bookmark.NewHandler(store, hub, tracker, logger).RegisterRoutes(api.Group("/bookmarks", auth.Middleware(verifier)))

	router.GET("/ws", synchub.WSHandler(hub, verifier.Authenticate))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not_ready",
				"db_error":   err.Error(),
				"ws_clients": stats.WSClients,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":     "ready",
			"db":         "ok",
			"ws_clients": stats.WSClients,
			"ws_users":   stats.Users,
		})
	})

	catalog := upstream.New(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, logger)
	pages, err := web.NewHandler(catalog, cfg.Site, tracker, logger)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	pages.RegisterRoutes(router)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var grpcSrv *grpc.Server
	var grpcLis net.Listener
	if cfg.Server.GRPCAddr != "" {
		grpcLis, err = net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcSrv = grpc.NewServer()
		healthSrv := health.NewServer()
		healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	}

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	if grpcSrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("grpc health server listening", zap.String("addr", cfg.Server.GRPCAddr))
			if err := grpcSrv.Serve(grpcLis); err != nil {
				errCh <- err
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr), zap.String("upstream", cfg.Upstream.BaseURL))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case runErr = <-errCh:
		logger.Error("server error", zap.Error(runErr))
	}

	logger.Info("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}

	wg.Wait()
	logger.Info("servers stopped")
	return runErr
}
