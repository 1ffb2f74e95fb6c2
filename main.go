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

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/EmpoweredVote/watchlist-backend/internal/auth"
	"github.com/EmpoweredVote/watchlist-backend/internal/config"
	"github.com/EmpoweredVote/watchlist-backend/internal/db"
	"github.com/EmpoweredVote/watchlist-backend/internal/logging"
	"github.com/EmpoweredVote/watchlist-backend/internal/metrics"
	"github.com/EmpoweredVote/watchlist-backend/internal/ratelimit"
	"github.com/EmpoweredVote/watchlist-backend/internal/server"
	"github.com/EmpoweredVote/watchlist-backend/internal/watchlist"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := server.Deps{Config: cfg, Log: log}
	if cfg.MetricsEnabled {
		deps.Metrics = metrics.New()
	}

	closeStores, err := openStores(ctx, cfg, log, &deps)
	if err != nil {
		return err
	}
	defer closeStores()

	closeLimiters, err := openLimiters(ctx, cfg, &deps)
	if err != nil {
		return err
	}
	defer closeLimiters()

	srv := server.New(deps)
	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           srv.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logging.Std(log),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("storage", cfg.Storage),
			zap.String("rate_limit", cfg.RateLimitBackend),
			zap.Bool("trust_proxy", cfg.TrustProxy))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// openStores fills the user and watchlist stores in deps and returns a
// function that releases them.
func openStores(ctx context.Context, cfg config.Config, log *zap.Logger, deps *server.Deps) (func(), error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("using in-memory storage; data is lost on restart")
		deps.Users = auth.NewMemoryUserStore()
		deps.Items = watchlist.NewMemoryStore(cfg.UniqueSymbol)
		return func() {}, nil
	}

	conn, err := db.Connect(ctx, cfg.DatabaseURL, log, !cfg.IsProduction())
	if err != nil {
		return nil, err
	}
	if err := migrate(conn, cfg); err != nil {
		_ = db.Close(conn)
		return nil, err
	}

	deps.Users = auth.NewGormUserStore(conn)
	deps.Items = watchlist.NewGormStore(conn)
	return func() {
		if err := db.Close(conn); err != nil {
			log.Warn("closing database", zap.Error(err))
		}
	}, nil
}

func migrate(conn *gorm.DB, cfg config.Config) error {
	if err := auth.Init(conn); err != nil {
		return fmt.Errorf("migrate auth: %w", err)
	}
	if err := watchlist.Init(conn, watchlist.Policy{UniqueSymbol: cfg.UniqueSymbol}); err != nil {
		return fmt.Errorf("migrate watchlist: %w", err)
	}
	return nil
}

// openLimiters picks the limiter backend for both the general and the
// login/register limits.
func openLimiters(ctx context.Context, cfg config.Config, deps *server.Deps) (func(), error) {
	general, login := cfg.GeneralLimit, cfg.AuthLimit

	switch cfg.RateLimitBackend {
	case config.RateLimitRedis:
		client, err := ratelimit.ParseRedisURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		deps.GeneralLimit = ratelimit.NewRedis(client, "ratelimit:general:", general.Max, general.Window)
		deps.AuthLimit = ratelimit.NewRedis(client, "ratelimit:auth:", login.Max, login.Window)
		return func() { _ = client.Close() }, nil
	case config.RateLimitToken:
		g := ratelimit.NewTokenBucket(general.Max, general.Window)
		a := ratelimit.NewTokenBucket(login.Max, login.Window)
		g.StartCleanup(ctx, sweepInterval)
		a.StartCleanup(ctx, sweepInterval)
		deps.GeneralLimit, deps.AuthLimit = g, a
	default:
		g := ratelimit.NewFixedWindow(general.Max, general.Window)
		a := ratelimit.NewFixedWindow(login.Max, login.Window)
		g.StartCleanup(ctx, sweepInterval)
		a.StartCleanup(ctx, sweepInterval)
		deps.GeneralLimit, deps.AuthLimit = g, a
	}
	return func() {}, nil
}
