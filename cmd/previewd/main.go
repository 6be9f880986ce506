package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/stampworks/previewd/internal/config"
	"github.com/stampworks/previewd/internal/server"
	"github.com/stampworks/previewd/pkg/browser"
	"github.com/stampworks/previewd/pkg/cache"
	"github.com/stampworks/previewd/pkg/classify"
	"github.com/stampworks/previewd/pkg/objstore"
	"github.com/stampworks/previewd/pkg/preview"
	"github.com/stampworks/previewd/pkg/stamp"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130) // Standard shell convention for SIGINT
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		configPath string
		verbose    bool
	)

	root := &cobra.Command{
		Use:           "previewd",
		Short:         "Social preview rendering service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the preview HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, verbose)
		},
	}
	root.AddCommand(serve)

	return root.ExecuteContext(ctx)
}

func runServe(ctx context.Context, configPath string, verbose bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel, verbose)

	c, err := newCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer c.Close()

	storage, err := newStorage(cfg.Storage, c)
	if err != nil {
		return err
	}

	resolver, err := newResolver(ctx, cfg.Resolver)
	if err != nil {
		return err
	}

	renderer := &preview.Renderer{
		Resolver:    resolver,
		Fetcher:     stamp.NewFetcher(),
		Browser:     browser.New(cfg.Renderer.Endpoint, cfg.Renderer.Token, logger),
		Classifier:  &classify.Classifier{ContentHosts: cfg.Content.Hosts},
		ContentBase: cfg.Content.BaseURL,
		Logger:      logger,
	}

	svc := preview.NewService(renderer, storage, logger)
	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: server.New(svc, cfg.Content.FallbackURL, logger).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen,
			"cache", cfg.Cache.Backend, "storage", cfg.Storage.Mode)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func newLogger(level string, verbose bool) *log.Logger {
	lvl := log.InfoLevel
	if parsed, err := log.ParseLevel(level); err == nil {
		lvl = parsed
	}
	if verbose {
		lvl = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           lvl,
	})
}

func newCache(ctx context.Context, cfg config.Cache) (cache.Cache, error) {
	switch cfg.Backend {
	case "redis":
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case "file":
		return cache.NewFileCache(cfg.Dir)
	case "memory":
		return cache.NewMemoryCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

func newStorage(cfg config.Storage, c cache.Cache) (preview.Storage, error) {
	switch cfg.Mode {
	case "inline":
		return preview.NewInlineStorage(c), nil
	case "object":
		store, err := objstore.NewFileStore(cfg.ObjectDir, cfg.PublicBase)
		if err != nil {
			return nil, err
		}
		return preview.NewObjectStorage(c, store), nil
	default:
		return nil, fmt.Errorf("unknown storage mode %q", cfg.Mode)
	}
}

func newResolver(ctx context.Context, cfg config.Resolver) (stamp.Resolver, error) {
	switch cfg.Kind {
	case "http":
		return stamp.NewHTTPResolver(cfg.Endpoint), nil
	case "mongo":
		return stamp.NewMongoResolver(ctx, stamp.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		})
	default:
		return nil, fmt.Errorf("unknown resolver kind %q", cfg.Kind)
	}
}
