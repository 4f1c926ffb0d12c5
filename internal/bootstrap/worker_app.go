package bootstrap

import (
	"context"
	"fmt"

	"cryptorates-service/internal/application"
	"cryptorates-service/internal/config"
	"cryptorates-service/internal/infrastructure/logx"
	"cryptorates-service/internal/infrastructure/metrics"
	"cryptorates-service/internal/infrastructure/pg"
	"cryptorates-service/internal/infrastructure/worker"
)

// InitWorkers builds the scheduled refresh and staleness-check loops from
// the environment.
func InitWorkers(ctx context.Context) ([]application.Worker, func(), error) {
	cfg := config.Load()
	log := logx.L()

	db, dbCleanup, err := BuildDB(ctx, cfg)
	if err != nil {
		return nil, func() {}, fmt.Errorf("build db: %w", err)
	}
	cache, cacheCleanup, err := BuildCache(cfg)
	if err != nil {
		dbCleanup()
		return nil, func() {}, fmt.Errorf("build cache: %w", err)
	}
	providers, err := BuildProviders(cfg)
	if err != nil {
		cacheCleanup()
		dbCleanup()
		return nil, func() {}, err
	}

	m := metrics.NewRateMetrics()
	svc := BuildRateService(pg.NewRateRepo(db), cache, providers, m, cfg)
	pairs := cfg.Pairs()
	monitor := application.NewStalenessMonitor(pairs, cfg.StalenessThreshold, svc.Tracker(), m, log)

	workers := []application.Worker{
		&worker.Refresher{Svc: svc, Pairs: pairs, Interval: cfg.RefreshInterval, Log: log},
		&worker.StalenessChecker{Monitor: monitor, Interval: cfg.StalenessCheckInterval, Log: log},
	}
	cleanup := func() {
		cacheCleanup()
		dbCleanup()
	}
	return workers, cleanup, nil
}
