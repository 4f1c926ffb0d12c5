package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cryptorates-service/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(repo *fakeRepo, cache *fakeCache, providers []RateProvider, opts ...Option) *RateService {
	base := []Option{WithClock(fakeClock{t: testNow})}
	return NewRateService(repo, cache, providers, NewStalenessTracker(), append(base, opts...)...)
}

func Test_FetchAndAggregate_WeightedConsensus(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{}
	cache := newFakeCache()
	providers := []RateProvider{
		&fakeProvider{name: "Coinbase", rate: 50000},
		&fakeProvider{name: "Binance", rate: 50010},
		&fakeProvider{name: "CoinGecko", rate: 49990},
	}
	svc := newTestService(repo, cache, providers)

	rate, err := svc.FetchAndAggregateRate(context.Background(), domain.NewPair("BTC", "USD"))
	require.NoError(t, err)
	require.InDelta(t, 50002, rate, 1e-6)

	// All three raw quotes persisted.
	require.Len(t, repo.quotes, 3)
	for _, q := range repo.quotes {
		require.NotNil(t, q.ValidUntil)
		require.True(t, q.ValidUntil.After(q.CreatedAt))
	}

	require.Len(t, repo.aggregates, 1)
	agg := repo.aggregates[0]
	require.Equal(t, domain.SourceAggregated, agg.Source)
	require.InDelta(t, 49990, *agg.Bid, 1e-9)
	require.InDelta(t, 50010, *agg.Ask, 1e-9)
	require.InDelta(t, 1.0, *agg.ConfidenceScore, 1e-9)
	require.Len(t, agg.ProviderBreakdown, 3)
	require.True(t, agg.ValidUntil.After(agg.CreatedAt))

	// Cache warmed with the aggregate under the pair key.
	got, ok, _ := cache.Get(context.Background(), "rate:BTC-USD")
	require.True(t, ok)
	require.InDelta(t, 50002, got, 1e-6)

	// Staleness clock advanced.
	_, marked := svc.Tracker().LastSuccess("BTC-USD")
	require.True(t, marked)
}

func Test_FetchAndAggregate_OutlierExcluded(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{}
	cache := newFakeCache()
	metrics := newRecordingMetrics()
	providers := []RateProvider{
		&fakeProvider{name: "Coinbase", rate: 100},
		&fakeProvider{name: "Binance", rate: 101},
		&fakeProvider{name: "CoinGecko", rate: 150},
	}
	svc := newTestService(repo, cache, providers, WithMetrics(metrics))

	rate, err := svc.FetchAndAggregateRate(context.Background(), domain.NewPair("BTC", "USD"))
	require.NoError(t, err)
	require.InDelta(t, 100.5, rate, 1e-9)

	require.Equal(t, []string{"CoinGecko"}, metrics.outliers)

	// The outlier is excluded from the math but still persisted and still
	// present in the breakdown.
	require.Len(t, repo.quotes, 3)
	agg := repo.aggregates[0]
	require.InDelta(t, 100, *agg.Bid, 1e-9)
	require.InDelta(t, 101, *agg.Ask, 1e-9)
	require.InDelta(t, 2.0/3.0, *agg.ConfidenceScore, 1e-6)
	require.InDelta(t, 150, agg.ProviderBreakdown["CoinGecko"], 1e-9)
	// Spread of exactly 1% carries no confidence penalty.
	require.InDelta(t, 1.0, *agg.SpreadPercent, 1e-9)
}

func Test_FetchAndAggregate_PartialFailure(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{}
	cache := newFakeCache()
	providers := []RateProvider{
		&fakeProvider{name: "Coinbase", rate: 50000},
		&fakeProvider{name: "Binance", err: errProviderDown},
		&fakeProvider{name: "CoinGecko", err: errProviderDown},
	}
	svc := newTestService(repo, cache, providers)

	rate, err := svc.FetchAndAggregateRate(context.Background(), domain.NewPair("BTC", "USD"))
	require.NoError(t, err)
	require.InDelta(t, 50000, rate, 1e-9)

	agg := repo.aggregates[0]
	// One surviving quote: spread is zero, bid == rate == ask.
	require.InDelta(t, 0, *agg.SpreadPercent, 1e-9)
	require.InDelta(t, 50000, *agg.Bid, 1e-9)
	require.InDelta(t, 50000, *agg.Ask, 1e-9)
	require.InDelta(t, 1.0/3.0, *agg.ConfidenceScore, 1e-6)
}

func Test_GetRate_CacheHit_NoProviderCalls(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{}
	cache := newFakeCache()
	p := &fakeProvider{name: "Coinbase", rate: 50000}
	svc := newTestService(repo, cache, []RateProvider{p})

	require.NoError(t, cache.Set(context.Background(), "rate:BTC-USD", 48123.5, time.Minute))

	rate, err := svc.GetRate(context.Background(), "BTC", "USD")
	require.NoError(t, err)
	require.InDelta(t, 48123.5, rate, 1e-9)
	require.Zero(t, p.callCount())
	require.Empty(t, repo.aggregates)
}

func Test_GetRate_SecondCallServedFromCache(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{}
	cache := newFakeCache()
	p := &fakeProvider{name: "Coinbase", rate: 50000}
	svc := newTestService(repo, cache, []RateProvider{p})

	_, err := svc.GetRate(context.Background(), "BTC", "USD")
	require.NoError(t, err)
	_, err = svc.GetRate(context.Background(), "BTC", "USD")
	require.NoError(t, err)

	require.EqualValues(t, 1, p.callCount())
}

func Test_GetRate_CacheErrorDegradesToMiss(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{}
	cache := newFakeCache()
	cache.getErr = errProviderDown
	p := &fakeProvider{name: "Coinbase", rate: 50000}
	svc := newTestService(repo, cache, []RateProvider{p})

	rate, err := svc.GetRate(context.Background(), "BTC", "USD")
	require.NoError(t, err)
	require.InDelta(t, 50000, rate, 1e-9)
	require.EqualValues(t, 1, p.callCount())
}

func Test_Fallback_UsesLastAggregate(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{}
	cache := newFakeCache()
	metrics := newRecordingMetrics()
	pair := domain.NewPair("BTC", "USD")
	repo.aggregates = append(repo.aggregates, domain.Rate{
		Pair:      pair,
		Rate:      48000,
		Source:    domain.SourceAggregated,
		CreatedAt: testNow.Add(-time.Hour),
	})
	providers := []RateProvider{
		&fakeProvider{name: "Coinbase", err: errProviderDown},
		&fakeProvider{name: "Binance", err: errProviderDown},
		&fakeProvider{name: "CoinGecko", err: errProviderDown},
	}
	svc := newTestService(repo, cache, providers, WithMetrics(metrics))

	rate, err := svc.GetRate(context.Background(), "BTC", "USD")
	require.NoError(t, err)
	require.InDelta(t, 48000, rate, 1e-9)
	require.Equal(t, []string{"BTC-USD"}, metrics.fallbacks)

	// Fallback must not refresh the cache or the staleness clock.
	require.Zero(t, cache.setCall)
	_, marked := svc.Tracker().LastSuccess("BTC-USD")
	require.False(t, marked)
}

func Test_Fallback_WhenFilteringRejectsEveryQuote(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{}
	cache := newFakeCache()
	metrics := newRecordingMetrics()
	pair := domain.NewPair("BTC", "USD")
	repo.aggregates = append(repo.aggregates, domain.Rate{
		Pair:      pair,
		Rate:      48000,
		Source:    domain.SourceAggregated,
		CreatedAt: testNow.Add(-time.Hour),
	})
	// Median of [100, 100, 200, 200] is 150; every quote deviates ~33%,
	// so filtering leaves nothing to aggregate.
	providers := []RateProvider{
		&fakeProvider{name: "Coinbase", rate: 100},
		&fakeProvider{name: "Binance", rate: 100},
		&fakeProvider{name: "CoinGecko", rate: 200},
		&fakeProvider{name: "Kraken", rate: 200},
	}
	svc := newTestService(repo, cache, providers, WithMetrics(metrics))

	rate, err := svc.FetchAndAggregateRate(context.Background(), pair)
	require.NoError(t, err)
	require.InDelta(t, 48000, rate, 1e-9)
	require.Equal(t, []string{"BTC-USD"}, metrics.fallbacks)

	// Raw quotes were already persisted before filtering emptied the cycle.
	require.Len(t, repo.quotes, 4)
	require.Len(t, repo.aggregates, 1)

	// Like a total provider failure: no cache warm, no staleness mark.
	require.Zero(t, cache.setCall)
	_, marked := svc.Tracker().LastSuccess("BTC-USD")
	require.False(t, marked)
}

func Test_Fallback_Exhausted(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{}
	cache := newFakeCache()
	providers := []RateProvider{
		&fakeProvider{name: "Coinbase", err: errProviderDown},
		&fakeProvider{name: "Binance", err: errProviderDown},
	}
	svc := newTestService(repo, cache, providers)

	_, err := svc.GetRate(context.Background(), "BTC", "USD")
	require.ErrorIs(t, err, ErrNoRateAvailable)
}

func Test_ConvertAmount(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{}
	cache := newFakeCache()
	require.NoError(t, cache.Set(context.Background(), "rate:BTC-USD", 50000, time.Minute))
	svc := newTestService(repo, cache, nil)

	out, err := svc.ConvertAmount(context.Background(), 0.5, "BTC", "USD")
	require.NoError(t, err)
	require.InDelta(t, 25000, out, 1e-9)
}

func Test_GetHistoricalRates_DefaultsToAggregated(t *testing.T) {
	t.Parallel()
	repo := &fakeRepo{}
	pair := domain.NewPair("ETH", "USD")
	repo.aggregates = append(repo.aggregates,
		domain.Rate{Pair: pair, Rate: 3000, Source: domain.SourceAggregated, CreatedAt: testNow.Add(-2 * time.Hour)},
		domain.Rate{Pair: pair, Rate: 3100, Source: domain.SourceAggregated, CreatedAt: testNow.Add(-time.Hour)},
	)
	repo.quotes = append(repo.quotes,
		domain.Rate{Pair: pair, Rate: 2990, Source: domain.SourceCoinbase, CreatedAt: testNow.Add(-time.Hour)},
	)
	svc := newTestService(repo, newFakeCache(), nil)

	rows, err := svc.GetHistoricalRates(context.Background(), "ETH", "USD", testNow.Add(-3*time.Hour), testNow, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		require.Equal(t, domain.SourceAggregated, r.Source)
	}

	rows, err = svc.GetHistoricalRates(context.Background(), "ETH", "USD", testNow.Add(-3*time.Hour), testNow, domain.SourceCoinbase)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.InDelta(t, 2990, rows[0].Rate, 1e-9)
}
