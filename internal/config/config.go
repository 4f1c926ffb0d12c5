package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"cryptorates-service/internal/domain"
)

type Config struct {
	// Common
	Env      string
	LogLevel string
	// API
	Port        string
	DatabaseURL string
	// Worker metrics listener
	MetricsPort string
	// Redis (rate cache)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Providers
	Providers       string
	ProviderTimeout time.Duration
	// Aggregation
	MonitoredPairs string
	Weights        string
	DefaultWeight  float64
	CacheTTL       time.Duration
	ValidFor       time.Duration
	// Scheduling
	RefreshInterval        time.Duration
	StalenessCheckInterval time.Duration
	StalenessThreshold     time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiDef(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func floatDef(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func durMS(key string, defMS int) time.Duration {
	return time.Duration(atoiDef(getEnv(key, strconv.Itoa(defMS)), defMS)) * time.Millisecond
}

// Load reads environment variables and applies defaults.
func Load() Config {
	return Config{
		Env:                    getEnv("ENV", "local"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		Port:                   getEnv("PORT", "8080"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		MetricsPort:            getEnv("METRICS_PORT", "9090"),
		RedisAddr:              getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		RedisDB:                atoiDef(getEnv("REDIS_DB", "0"), 0),
		Providers:              getEnv("PROVIDERS", "coinbase,binance,coingecko"),
		ProviderTimeout:        durMS("PROVIDER_TIMEOUT_MS", 4000),
		MonitoredPairs:         getEnv("MONITORED_PAIRS", "BTC-USD,ETH-USD"),
		Weights:                getEnv("PROVIDER_WEIGHTS", "Coinbase:0.4,Binance:0.4,CoinGecko:0.2"),
		DefaultWeight:          floatDef(getEnv("DEFAULT_PROVIDER_WEIGHT", "0.1"), 0.1),
		CacheTTL:               durMS("RATE_CACHE_TTL_MS", 60_000),
		ValidFor:               durMS("RATE_VALID_FOR_MS", 90_000),
		RefreshInterval:        durMS("REFRESH_INTERVAL_MS", 60_000),
		StalenessCheckInterval: durMS("STALENESS_CHECK_INTERVAL_MS", 300_000),
		StalenessThreshold:     durMS("STALENESS_THRESHOLD_MS", 120_000),
	}
}

// Pairs parses MONITORED_PAIRS ("BTC-USD,ETH-USD"), dropping malformed
// entries.
func (c Config) Pairs() []domain.Pair {
	var out []domain.Pair
	for _, raw := range strings.Split(c.MonitoredPairs, ",") {
		if p, ok := domain.ParsePair(strings.TrimSpace(raw)); ok {
			out = append(out, p)
		}
	}
	return out
}

// WeightTable parses PROVIDER_WEIGHTS ("Coinbase:0.4,Binance:0.4").
func (c Config) WeightTable() map[string]float64 {
	out := map[string]float64{}
	for _, entry := range strings.Split(c.Weights, ",") {
		name, val, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok {
			continue
		}
		w, err := strconv.ParseFloat(val, 64)
		if err != nil {
			continue
		}
		out[name] = w
	}
	return out
}
