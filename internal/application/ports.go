package application

import (
	"context"
	"time"

	"cryptorates-service/internal/domain"
)

// RateProvider is one external price source. GetRate returns the current
// rate for the pair key (e.g. "BTC-USD") or fails with a provider-specific
// error. Providers own their timeouts; the aggregator imposes none.
type RateProvider interface {
	Name() string
	GetRate(ctx context.Context, pairKey string) (float64, error)
}

// RateCache is the short-lived TTL cache in front of aggregation.
// Get returns ok=false on a miss.
type RateCache interface {
	Get(ctx context.Context, key string) (float64, bool, error)
	Set(ctx context.Context, key string, rate float64, ttl time.Duration) error
}

// RateRepo persists rate history and serves the fallback and history reads.
type RateRepo interface {
	SaveQuotes(ctx context.Context, rates []domain.Rate) error
	SaveAggregate(ctx context.Context, rate domain.Rate) error
	// FindLatest returns the newest row for pair+source or ErrNotFound.
	FindLatest(ctx context.Context, pair domain.Pair, source domain.RateSource) (domain.Rate, error)
	// FindRange returns rows for pair+source within [from, to], oldest first.
	FindRange(ctx context.Context, pair domain.Pair, source domain.RateSource, from, to time.Time) ([]domain.Rate, error)
}

// Metrics receives aggregation-cycle observations. Implementations must be
// safe for concurrent use.
type Metrics interface {
	AggregationDone(pair string, ok bool, elapsed time.Duration)
	ProviderError(provider string)
	OutlierRejected(provider string)
	FallbackUsed(pair string)
	PairStaleness(pair string, stale bool)
}

// NopMetrics discards all observations; useful for tests.
type NopMetrics struct{}

func (NopMetrics) AggregationDone(string, bool, time.Duration) {}
func (NopMetrics) ProviderError(string)                        {}
func (NopMetrics) OutlierRejected(string)                      {}
func (NopMetrics) FallbackUsed(string)                         {}
func (NopMetrics) PairStaleness(string, bool)                  {}

// Worker is a background loop that runs until the context is canceled.
type Worker interface {
	Start(ctx context.Context)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }
