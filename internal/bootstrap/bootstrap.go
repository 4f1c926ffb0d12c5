package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cryptorates-service/internal/application"
	"cryptorates-service/internal/config"
	"cryptorates-service/internal/infrastructure/httpx"
	"cryptorates-service/internal/infrastructure/logx"
	"cryptorates-service/internal/infrastructure/metrics"
	"cryptorates-service/internal/infrastructure/pg"
	"cryptorates-service/internal/infrastructure/provider"
	redisstore "cryptorates-service/internal/infrastructure/redis"
)

// BuildDB connects to Postgres and applies migrations.
func BuildDB(ctx context.Context, cfg config.Config) (*pg.DB, func(), error) {
	log := logx.L()
	if cfg.DatabaseURL == "" {
		return nil, func() {}, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, func() {}, err
	}
	if err := pg.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, func() {}, err
	}
	cleanup := func() {
		log.Info("closing pg")
		db.Close()
	}
	return db, cleanup, nil
}

// BuildCache connects the Redis-backed rate cache.
func BuildCache(cfg config.Config) (application.RateCache, func(), error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	cleanup := func() { _ = client.Close() }
	return redisstore.NewRateCache(client), cleanup, nil
}

// BuildProviders assembles the registered rate providers from the PROVIDERS
// env list. Unknown names are skipped with a warning; "fake" yields a fixed
// provider for local runs.
func BuildProviders(cfg config.Config) ([]application.RateProvider, error) {
	log := logx.L()
	client := &httpx.Client{
		HTTP:      &http.Client{Timeout: cfg.ProviderTimeout},
		UserAgent: "cryptorates-service",
	}
	var out []application.RateProvider
	for _, name := range strings.Split(cfg.Providers, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "coinbase":
			out = append(out, provider.NewCoinbase(client))
		case "binance":
			out = append(out, provider.NewBinance(client))
		case "coingecko":
			out = append(out, provider.NewCoinGecko(client))
		case "fake":
			out = append(out, provider.NewFake("Fake", 50000))
		case "":
		default:
			log.Warn("unknown provider", zap.String("name", name))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no rate providers configured (PROVIDERS=%q)", cfg.Providers)
	}
	return out, nil
}

// BuildRateService wires the aggregation service onto its collaborators.
func BuildRateService(repo application.RateRepo, cache application.RateCache, providers []application.RateProvider, m *metrics.RateMetrics, cfg config.Config) *application.RateService {
	return application.NewRateService(repo, cache, providers, application.NewStalenessTracker(),
		application.WithWeights(cfg.WeightTable(), cfg.DefaultWeight),
		application.WithHorizons(cfg.CacheTTL, cfg.ValidFor),
		application.WithMetrics(m),
		application.WithLogger(logx.L()),
	)
}
