package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"cryptorates-service/internal/application"
	"cryptorates-service/internal/bootstrap"
	"cryptorates-service/internal/config"
	httpserver "cryptorates-service/internal/infrastructure/http"
	"cryptorates-service/internal/infrastructure/logx"
)

func init() { _ = godotenv.Load() }

func main() {
	log := logx.L()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workers, cleanup, err := bootstrap.InitWorkers(ctx)
	if err != nil {
		log.Fatal("init workers", zap.Error(err))
	}
	defer cleanup()

	// The staleness gauge and worker-side counters live in this process,
	// so it serves its own scrape endpoint.
	metricsAddr := ":" + cfg.MetricsPort
	metricsServer := &http.Server{
		Addr:    metricsAddr,
		Handler: httpserver.NewMetricsRouter(),
	}
	go func() {
		log.Info("metrics server started", zap.String("addr", metricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("metrics listen", zap.Error(err))
		}
	}()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w application.Worker) {
			defer wg.Done()
			w.Start(ctx)
		}(w)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancel()
	wg.Wait()

	shutdownCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	log.Info("workers stopped")
}
