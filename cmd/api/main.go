package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"cryptorates-service/internal/bootstrap"
	"cryptorates-service/internal/config"
	httpserver "cryptorates-service/internal/infrastructure/http"
	"cryptorates-service/internal/infrastructure/logx"
	"cryptorates-service/internal/infrastructure/metrics"
	"cryptorates-service/internal/infrastructure/pg"
)

func init() { _ = godotenv.Load() }

func main() {
	ctx := context.Background()
	logger := logx.L()
	cfg := config.Load()
	addr := ":" + cfg.Port

	db, dbCleanup, err := bootstrap.BuildDB(ctx, cfg)
	if err != nil {
		logger.Fatal("bootstrap db", zap.Error(err))
	}
	defer dbCleanup()

	cache, cacheCleanup, err := bootstrap.BuildCache(cfg)
	if err != nil {
		logger.Fatal("bootstrap cache", zap.Error(err))
	}
	defer cacheCleanup()

	providers, err := bootstrap.BuildProviders(cfg)
	if err != nil {
		logger.Fatal("bootstrap providers", zap.Error(err))
	}

	svc := bootstrap.BuildRateService(pg.NewRateRepo(db), cache, providers, metrics.NewRateMetrics(), cfg)
	srv := httpserver.NewServer(svc)
	mux := httpserver.NewRouter(srv, db.Ping)

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("server started", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	_ = server.Shutdown(shutdownCtx)
	logger.Info("server stopped")
}
