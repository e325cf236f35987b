package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/shop-auth/internal/cache"
	"github.com/pribylovaa/shop-auth/internal/config"
	httpapi "github.com/pribylovaa/shop-auth/internal/http"
	"github.com/pribylovaa/shop-auth/internal/http/handlers"
	"github.com/pribylovaa/shop-auth/internal/http/middleware"
	"github.com/pribylovaa/shop-auth/internal/pkg/log"
	"github.com/pribylovaa/shop-auth/internal/service"
	"github.com/pribylovaa/shop-auth/internal/storage"
	"github.com/pribylovaa/shop-auth/internal/storage/minio"
	"github.com/pribylovaa/shop-auth/internal/storage/postgres"
	"github.com/pribylovaa/shop-auth/internal/storage/s3"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	logger := log.New(cfg.Env, os.Stdout)
	slog.SetDefault(logger)
	logger.Info("starting application", "env", cfg.Env)

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	if err := run(rootCtx, cfg, logger); err != nil {
		logger.Error("service_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}

	logger.Info("service_stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Подключение к БД c таймаутом.
	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	str, err := postgres.New(dbCtx, cfg.DB.DatabaseURL)
	dbCancel()
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	defer str.Close()
	logger.Info("postgres_connected")

	if cfg.DB.Migrate {
		if err := str.Migrate(ctx); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
		logger.Info("postgres_migrated")
	}

	media, err := newMedia(ctx, cfg.Media)
	if err != nil {
		return fmt.Errorf("media store: %w", err)
	}
	logger.Info("media_store_ready", slog.String("driver", cfg.Media.Driver), slog.String("bucket", cfg.Media.Bucket))

	srvc := service.New(str, media, cfg.Auth, cfg.Media)

	if cfg.Redis.RedisURL != "" {
		pc, err := cache.NewRedisCache(ctx, cfg.Redis.RedisURL, cfg.Redis.Prefix)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer func() { _ = pc.Close() }()

		srvc.SetPrincipalCache(pc, cfg.Redis.TTL)
		logger.Info("principal_cache_enabled", slog.Duration("ttl", cfg.Redis.TTL))
	}
	logger.Info("service_initialized")

	var ready atomic.Bool

	router := httpapi.NewRouter(srvc,
		handlers.New(srvc, cfg.Cookie, cfg.Media.MaxSizeBytes),
		httpapi.Options{Logger: logger, Timeout: cfg.Timeouts.Service},
	)

	apiSrv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	opsSrv := &http.Server{
		Addr:              cfg.Ops.Addr(),
		Handler:           opsMux(str, &ready),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErrCh := make(chan error, 2)
	for name, srv := range map[string]*http.Server{"api": apiSrv, "ops": opsSrv} {
		go func() {
			logger.Info("http_listen_start", slog.String("server", name), slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErrCh <- fmt.Errorf("%s server: %w", name, err)
			}
		}()
	}

	ready.Store(true)

	// Ожидание сигнала завершения или фатальной ошибки сервера.
	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
	}

	ready.Store(false)

	// Graceful stop с таймаутом.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api_force_stop", slog.String("err", err.Error()))
		_ = apiSrv.Close()
	}
	_ = opsSrv.Shutdown(shutdownCtx)

	return serveErr
}

// newMedia выбирает реализацию хранилища медиа по драйверу из конфига.
func newMedia(ctx context.Context, cfg config.MediaConfig) (storage.Media, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch cfg.Driver {
	case config.MediaDriverS3:
		return s3.New(ctx, cfg)
	default:
		return minio.New(ctx, cfg)
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// opsMux — служебные эндпойнты: livez, healthz (с пингом БД) и metrics.
// Паники гасятся, каждому ответу выдаётся X-Request-Id.
func opsMux(db pinger, ready *atomic.Bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !ready.Load() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", promhttp.Handler())
	return middleware.Chain(mux, middleware.RequestID(), middleware.Recover())
}
