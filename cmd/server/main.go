package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/kbconsole/internal/audit"
	"github.com/JonMunkholm/kbconsole/internal/backend"
	"github.com/JonMunkholm/kbconsole/internal/config"
	"github.com/JonMunkholm/kbconsole/internal/console"
	"github.com/JonMunkholm/kbconsole/internal/logging"
	"github.com/JonMunkholm/kbconsole/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	if err := run(cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := backend.New(backend.Options{
		BaseURL:    cfg.Backend.URL,
		Timeout:    cfg.Backend.Timeout,
		DeletePath: cfg.Backend.DeletePath,
	})
	if err != nil {
		return fmt.Errorf("backend client: %w", err)
	}

	var (
		recorder audit.Recorder = audit.LogRecorder{}
		lister   audit.Lister
		store    *audit.Store
	)
	if cfg.Audit.Enabled() {
		pool, err := openAuditPool(ctx, cfg.Audit)
		if err != nil {
			return err
		}
		defer pool.Close()

		store = audit.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		recorder, lister = store, store
	} else {
		slog.Info("audit database not configured, audit events go to the log")
	}

	limiter := console.NewSaveLimiter(cfg.Save.MaxConcurrent, cfg.Save.MaxWaitTime)
	server := web.NewServer(web.Options{
		Config:   cfg,
		Backend:  client,
		Limiter:  limiter,
		Audit:    recorder,
		AuditLog: lister,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	g.Go(func() error {
		server.RunMaintenance(gctx, cfg.Session.SweepInterval)
		return nil
	})

	if store != nil {
		g.Go(func() error {
			store.StartRetention(gctx, cfg.Audit.Retention(), cfg.Audit.CheckInterval)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if active := limiter.Active(); active > 0 {
			slog.Info("waiting for saves to complete", "active", active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("saves did not complete in time", "error", err)
			}
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// openAuditPool connects to the audit database and verifies the connection.
func openAuditPool(ctx context.Context, cfg config.AuditConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse audit database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect audit database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}

	if u, err := url.Parse(cfg.DatabaseURL); err == nil {
		slog.Info("connected to audit database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to audit database")
	}
	return pool, nil
}
