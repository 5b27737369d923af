package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/JonMunkholm/xlcalc/internal/config"
	"github.com/JonMunkholm/xlcalc/internal/core"
	"github.com/JonMunkholm/xlcalc/internal/engine"
	"github.com/JonMunkholm/xlcalc/internal/logging"
	"github.com/JonMunkholm/xlcalc/internal/store/memory"
	"github.com/JonMunkholm/xlcalc/internal/store/postgres"
	"github.com/JonMunkholm/xlcalc/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// stores is the pair of persistence interfaces the service needs.
type stores struct {
	models  core.ModelStore
	history core.HistoryStore
	close   func()
}

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

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"cache_max_models", cfg.Cache.MaxModels,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer st.close()

	service, err := core.NewService(st.models, st.history, engine.NewExcel(), core.Options{
		CacheSize:          cfg.Cache.MaxModels,
		MaxConcurrentLoads: cfg.Upload.MaxConcurrent,
		MaxLoadWait:        cfg.Upload.MaxWaitTime,
		FilesRoot:          cfg.Upload.Root,
	})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, cfg)

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go service.StartHistoryPruner(sigCtx, core.RetentionConfig{
		MaxAge:        time.Duration(cfg.History.RetentionDays) * 24 * time.Hour,
		CheckInterval: cfg.History.PruneInterval,
	})

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := serve(sigCtx, server, service, cfg.Server.ShutdownTimeout); err != nil {
		slog.Error("server stopped", "error", err)
		stop()
		st.close()
		os.Exit(1)
	}
	slog.Info("server stopped")
}

type httpServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

type loadTracker interface {
	ActiveLoads() int
	WaitForLoads(ctx context.Context) error
}

// serve runs srv until ctx is cancelled, then shuts it down and waits for
// in-flight workbook loads. It returns only once both are done, so the
// caller may close the stores afterwards.
func serve(ctx context.Context, srv httpServer, loads loadTracker, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error during shutdown", "error", err)
	}

	if active := loads.ActiveLoads(); active > 0 {
		slog.Info("waiting for workbook loads to complete", "active", active)
		if err := loads.WaitForLoads(shutdownCtx); err != nil {
			slog.Warn("workbook loads did not complete in time", "error", err)
		}
	}
	return nil
}

// openStores connects the configured store. The memory driver keeps
// everything in process and loses it on exit.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Database.Driver == "memory" {
		mem := memory.New()
		slog.Warn("using in-memory store, uploads are lost on restart")
		return &stores{models: mem, history: mem, close: func() {}}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	pg := postgres.New(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &stores{models: pg, history: pg, close: pool.Close}, nil
}
