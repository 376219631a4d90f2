package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/receiving/internal/app"
	"github.com/odyssey-erp/receiving/internal/observability"
	"github.com/odyssey-erp/receiving/internal/platform/cache"
	"github.com/odyssey-erp/receiving/internal/platform/db"
	"github.com/odyssey-erp/receiving/internal/receiving"
	"github.com/odyssey-erp/receiving/internal/receiving/backend"
	"github.com/odyssey-erp/receiving/internal/receiving/pocache"
	"github.com/odyssey-erp/receiving/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	checks := map[string]app.Pinger{}

	var auditPort receiving.AuditPort
	if cfg.PGDSN != "" && !app.InTestMode() {
		var pool *pgxpool.Pool
		pool, err = db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		auditPort = shared.NewAuditLogger(pool)
		checks["postgres"] = pool
	} else {
		logger.Info("audit persistence disabled")
	}

	var redisClient *redis.Client
	if !app.InTestMode() {
		redisClient, err = cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, purchase order cache disabled", slog.Any("error", err))
			redisClient = nil
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
			checks["redis"] = app.PingFunc(func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			})
		}
	}

	metrics := observability.NewMetrics()
	backendClient := backend.New(cfg.BackendURL, cfg.BackendToken, cfg.BackendTimeout)
	checks["backend"] = backendClient
	api := pocache.New(backendClient, redisClient, cfg.POCacheTTL, logger)

	controllerCfg := receiving.ControllerConfig{MaxUploadBytes: cfg.UploadMaxBytes, ActorID: cfg.AuditActorID}
	registry := receiving.NewRegistry(cfg.SessionIdleTTL, func() *receiving.Controller {
		return receiving.NewController(api, auditPort, metrics, logger, controllerCfg)
	})
	handler := receiving.NewHandler(logger, registry, receiving.HandlerConfig{
		MaxUploadBytes:      cfg.UploadMaxBytes,
		UploadRatePerMinute: cfg.UploadRatePerMinute,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		ReceivingHandler: handler,
		Metrics:          metrics,
		Checks:           checks,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("receiving server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
	}
}
