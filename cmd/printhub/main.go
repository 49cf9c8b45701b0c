// Package main запускает HTTP-сервер сервиса printhub.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/printhub/internal/config"
	"github.com/mmeshcher/printhub/internal/handler"
	"github.com/mmeshcher/printhub/internal/idempotency"
	"github.com/mmeshcher/printhub/internal/metrics"
	"github.com/mmeshcher/printhub/internal/middleware"
	"github.com/mmeshcher/printhub/internal/objectstore"
	"github.com/mmeshcher/printhub/internal/repository"
	"github.com/mmeshcher/printhub/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := openRepository(cfg, sugar)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	m := metrics.New()

	var idem service.Idempotency
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		defer rdb.Close()

		idemCfg := idempotency.DefaultConfig()
		idemCfg.ResultTTL = cfg.IdempotencyTTL
		idem = idempotency.NewStore(rdb, idemCfg, logger)
	} else {
		sugar.Warn("REDIS_ADDRESS is not set, idempotency keys are ignored")
	}

	var store service.ObjectStore
	if cfg.ObjectStorageAddress != "" {
		store = objectstore.NewClient(cfg.ObjectStorageAddress)
	} else {
		sugar.Warn("OBJECT_STORAGE_ADDRESS is not set, photo uploads are disabled")
	}

	svc := service.NewService(repo, store, idem, m, logger, service.Options{
		AdminEmail:             cfg.AdminEmail,
		Rates:                  cfg.Rates(),
		StrictOrderTransitions: cfg.StrictOrderTransitions,
		Allocation:             cfg.Allocation(),
		OrphanSweepInterval:    cfg.OrphanSweepInterval,
	})
	defer svc.Close()

	if cfg.AuthSecret == config.DefaultAuthSecret {
		sugar.Warn("AUTH_SECRET is not set, using the development secret")
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter(handler.RouterOptions{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:            m.Handler(),
	})

	// Контекст запросов отменяется при остановке сервера: так завершаются SSE-потоки.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	server.RegisterOnShutdown(cancelRequests)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Трансляция изменений хранилища подписчикам SSE
	g.Go(func() error {
		return svc.RunChangeFeed(ctx)
	})

	// Повторное удаление файлов, не удалённых при откате
	if store != nil {
		g.Go(func() error {
			return svc.RunOrphanSweeper(ctx)
		})
	}

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting printhub server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

// openRepository выбирает PostgreSQL при заданном DATABASE_URI, иначе хранилище в памяти.
func openRepository(cfg *config.Config, sugar *zap.SugaredLogger) (service.Repository, error) {
	if cfg.DatabaseURI == "" {
		sugar.Warn("DATABASE_URI is not set, using in-memory storage")
		return repository.NewMemoryRepository(), nil
	}
	return repository.NewPostgresRepository(cfg.DatabaseURI)
}
