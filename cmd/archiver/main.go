package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/news-archiver/internal/app"
	"github.com/samvad-hq/news-archiver/internal/config"
	"github.com/samvad-hq/news-archiver/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "archiver start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("archiver starting", "config", map[string]any{
		"app_name":      cfg.AppName,
		"env":           cfg.Env,
		"news_endpoint": cfg.NewsEndpoint,
		"page_limit":    cfg.PageLimit,
		"time_zone":     cfg.TimeZone,
		"sinks_file":    cfg.SinksFile,
		"databases":     cfg.Databases,
		"storage_type":  cfg.StorageType,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	archiver, err := app.NewArchiver(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize archiver", "error", err)
		return err
	}

	// A run that stops on a fetch error still exits 0; the outcome is logged.
	if _, err := archiver.Run(ctx); err != nil {
		return fmt.Errorf("archiver run: %w", err)
	}
	return nil
}
