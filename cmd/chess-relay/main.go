package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/park285/chess-arena/internal/config"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/internal/relay"
	"github.com/park285/chess-arena/internal/relayhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()
	if err := obslog.InitFromEnv(obslog.Defaults{App: "chess-relay", Console: true}); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	cfg, err := config.LoadRelay()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hubCfg := relay.Config{
		GracePeriod:   cfg.GracePeriod,
		SweepInterval: cfg.SweepInterval,
		RoomTTL:       cfg.RoomTTL,
	}

	// Redis move journal
	var (
		rdb     *redis.Client
		journal *relay.RedisJournal
	)
	if cfg.RedisURL != "" {
		rdb, err = relay.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis_init_error", zap.Error(err))
		}
		journal = relay.NewRedisJournal(rdb, cfg.JournalTTL)
		hubCfg.Journal = journal
		logger.Info("relay_journal_enabled", zap.Duration("ttl", cfg.JournalTTL))
	}

	// Postgres room archive
	var archive *relay.PostgresArchive
	if cfg.DatabaseURL != "" {
		archive, err = relay.OpenPostgresArchive(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("archive_init_error", zap.Error(err))
		}
		hubCfg.Archive = archive
		logger.Info("relay_archive_enabled")
	}

	hub := relay.NewHub(context.Background(), hubCfg)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           relayhttp.SetupRoutes(hub, relayhttp.Info{Version: cfg.Version, StartedAt: time.Now()}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("relay_listening",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version),
			zap.Duration("grace", cfg.GracePeriod),
			zap.Duration("room_ttl", cfg.RoomTTL),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("relay_shutdown")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("relay_listen_error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("relay_shutdown_error", zap.Error(err))
	}
	hub.Close()
	if journal != nil {
		_ = journal.Close()
		if err := rdb.Close(); err != nil {
			logger.Warn("relay_redis_close", zap.Error(err))
		}
	}
	if archive != nil {
		if err := archive.Close(); err != nil {
			logger.Warn("relay_archive_close", zap.Error(err))
		}
	}
}
