package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/bomtool/internal/bom"
	"github.com/JonMunkholm/bomtool/internal/config"
	"github.com/JonMunkholm/bomtool/internal/core"
	"github.com/JonMunkholm/bomtool/internal/logging"
	"github.com/JonMunkholm/bomtool/internal/source"
	"github.com/JonMunkholm/bomtool/internal/store"
	"github.com/JonMunkholm/bomtool/internal/web"
)

func main() {
	// Process environment wins over .env.
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"history", cfg.Database.Enabled(),
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"sheet_workers", cfg.Upload.SheetWorkers,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"formats", source.Extensions(),
	)

	opts := bom.Options{}
	if cfg.Extract.RulesFile != "" {
		keywords, inferer, err := bom.LoadRules(cfg.Extract.RulesFile)
		if err != nil {
			slog.Error("failed to load extraction rules", "file", cfg.Extract.RulesFile, "error", err)
			os.Exit(1)
		}
		opts.Keywords = keywords
		opts.Inferer = inferer
		slog.Info("extraction rules loaded", "file", cfg.Extract.RulesFile)
	}

	ctx := context.Background()

	var runs core.RunStore
	if cfg.Database.Enabled() {
		pool, err := connect(ctx, &cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		runStore := store.New(pool)
		if err := runStore.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare database schema", "error", err)
			os.Exit(1)
		}
		runs = runStore
	} else {
		slog.Info("DATABASE_URL not set, run history disabled")
	}

	service := core.NewService(core.Config{
		MaxConcurrent:  cfg.Upload.MaxConcurrent,
		MaxWait:        cfg.Upload.MaxWaitTime,
		SheetWorkers:   cfg.Upload.SheetWorkers,
		ProcessTimeout: cfg.Upload.ProcessTimeout,
		Extract:        opts,
	}, runs)

	server := web.NewServer(service, cfg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartRetention(jobCtx, core.RetentionConfig{
		MaxAge:        time.Duration(cfg.Database.RetentionDays) * 24 * time.Hour,
		CheckInterval: cfg.Database.RetentionInterval,
	})

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for extractions to complete", "active", status.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("extractions did not complete in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-stopped
	slog.Info("server stopped")
}

// connect opens and verifies the run history pool.
func connect(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}
	return pool, nil
}
