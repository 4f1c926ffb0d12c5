package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"cryptorates-service/internal/domain"
)

// RateService aggregates quotes from N independent providers into a single
// trusted rate per pair, with TTL caching and a DB fallback when every
// provider fails.
type RateService struct {
	repo      RateRepo
	cache     RateCache
	providers []RateProvider
	tracker   *StalenessTracker

	weights       map[string]float64
	defaultWeight float64
	cacheTTL      time.Duration
	validFor      time.Duration

	clock   Clock
	metrics Metrics
	log     *zap.Logger
}

type Option func(*RateService)

func WithClock(c Clock) Option        { return func(s *RateService) { s.clock = c } }
func WithMetrics(m Metrics) Option    { return func(s *RateService) { s.metrics = m } }
func WithLogger(l *zap.Logger) Option { return func(s *RateService) { s.log = l } }

// WithWeights replaces the per-provider weight table and the default weight
// applied to providers missing from it.
func WithWeights(weights map[string]float64, def float64) Option {
	return func(s *RateService) { s.weights, s.defaultWeight = weights, def }
}

// WithHorizons sets the cache TTL and the validUntil offset. The TTL is
// expected to be shorter than the offset.
func WithHorizons(cacheTTL, validFor time.Duration) Option {
	return func(s *RateService) { s.cacheTTL, s.validFor = cacheTTL, validFor }
}

func NewRateService(repo RateRepo, cache RateCache, providers []RateProvider, tracker *StalenessTracker, opts ...Option) *RateService {
	s := &RateService{
		repo:      repo,
		cache:     cache,
		providers: providers,
		tracker:   tracker,
		weights: map[string]float64{
			"Coinbase":  0.4,
			"Binance":   0.4,
			"CoinGecko": 0.2,
		},
		defaultWeight: 0.1,
		cacheTTL:      60 * time.Second,
		validFor:      90 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	if s.metrics == nil {
		s.metrics = NopMetrics{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Tracker exposes the staleness tracker shared with the monitor.
func (s *RateService) Tracker() *StalenessTracker { return s.tracker }

func cacheKey(pair domain.Pair) string { return "rate:" + pair.Key() }

// GetRate returns the current consensus rate for the pair, serving from the
// TTL cache when possible. Cache errors degrade to a miss.
func (s *RateService) GetRate(ctx context.Context, crypto, fiat string) (float64, error) {
	pair := domain.NewPair(crypto, fiat)
	rate, ok, err := s.cache.Get(ctx, cacheKey(pair))
	if err != nil {
		s.log.Warn("cache_get_failed", zap.String("pair", pair.Key()), zap.Error(err))
	} else if ok {
		return rate, nil
	}
	return s.FetchAndAggregateRate(ctx, pair)
}

// ConvertAmount converts a crypto amount into fiat at the current rate.
func (s *RateService) ConvertAmount(ctx context.Context, amount float64, crypto, fiat string) (float64, error) {
	rate, err := s.GetRate(ctx, crypto, fiat)
	if err != nil {
		return 0, err
	}
	return amount * rate, nil
}

// GetHistoricalRates returns persisted rows for the pair and source within
// [from, to], oldest first. An empty source defaults to aggregated rows.
func (s *RateService) GetHistoricalRates(ctx context.Context, crypto, fiat string, from, to time.Time, source domain.RateSource) ([]domain.Rate, error) {
	if source == "" {
		source = domain.SourceAggregated
	}
	return s.repo.FindRange(ctx, domain.NewPair(crypto, fiat), source, from, to)
}

type settled struct {
	provider string
	rate     float64
	err      error
}

// FetchAndAggregateRate queries every registered provider concurrently,
// waits for all of them to settle, rejects outliers and persists both the
// raw quotes and the weighted consensus. When every provider fails it falls
// back to the last persisted aggregate.
func (s *RateService) FetchAndAggregateRate(ctx context.Context, pair domain.Pair) (float64, error) {
	started := s.clock.Now()
	key := pair.Key()
	s.log.Debug("fetching_rates", zap.String("pair", key))

	results := make(chan settled, len(s.providers))
	var wg sync.WaitGroup
	for _, p := range s.providers {
		wg.Add(1)
		go func(p RateProvider) {
			defer wg.Done()
			rate, err := p.GetRate(ctx, key)
			results <- settled{provider: p.Name(), rate: rate, err: err}
		}(p)
	}
	wg.Wait()
	close(results)

	var successes []domain.ProviderQuote
	for r := range results {
		if r.err != nil {
			s.metrics.ProviderError(r.provider)
			s.log.Warn("provider_failed",
				zap.String("pair", key),
				zap.String("provider", r.provider),
				zap.Error(r.err),
			)
			continue
		}
		successes = append(successes, domain.ProviderQuote{Provider: r.provider, Rate: r.rate})
	}

	if len(successes) == 0 {
		return s.fallbackRate(ctx, pair)
	}

	now := s.clock.Now()
	if err := s.saveProviderQuotes(ctx, pair, successes, now); err != nil {
		s.metrics.AggregationDone(key, false, s.clock.Now().Sub(started))
		return 0, fmt.Errorf("persist provider quotes: %w", err)
	}

	validRates, rejected := filterOutliers(successes)
	for _, o := range rejected {
		s.metrics.OutlierRejected(o.Quote.Provider)
		s.log.Warn("outlier_rejected",
			zap.String("pair", key),
			zap.String("provider", o.Quote.Provider),
			zap.Float64("rate", o.Quote.Rate),
			zap.Float64("deviation_pct", o.Deviation*100),
		)
	}
	if len(validRates) == 0 {
		// Filtering emptied the cycle; treat like a total provider failure.
		return s.fallbackRate(ctx, pair)
	}

	spread := spreadPercent(validRates)
	aggregated := weightedAverage(validRates, s.weights, s.defaultWeight)
	confidence := confidenceScore(len(validRates), len(s.providers), spread)
	bid, ask := minMaxRates(validRates)

	breakdown := make(map[string]float64, len(successes))
	for _, q := range successes {
		breakdown[q.Provider] = q.Rate
	}

	validUntil := now.Add(s.validFor)
	row := domain.Rate{
		Pair:              pair,
		Rate:              aggregated,
		Bid:               &bid,
		Ask:               &ask,
		SpreadPercent:     &spread,
		Source:            domain.SourceAggregated,
		ConfidenceScore:   &confidence,
		ProviderBreakdown: breakdown,
		ValidUntil:        &validUntil,
		CreatedAt:         now,
	}
	if err := s.repo.SaveAggregate(ctx, row); err != nil {
		s.metrics.AggregationDone(key, false, s.clock.Now().Sub(started))
		return 0, fmt.Errorf("persist aggregate: %w", err)
	}

	if err := s.cache.Set(ctx, cacheKey(pair), aggregated, s.cacheTTL); err != nil {
		s.log.Warn("cache_set_failed", zap.String("pair", key), zap.Error(err))
	}
	s.tracker.MarkSuccess(key, s.clock.Now())
	s.metrics.AggregationDone(key, true, s.clock.Now().Sub(started))

	s.log.Info("rate_aggregated",
		zap.String("pair", key),
		zap.Float64("rate", aggregated),
		zap.Float64("confidence", confidence),
		zap.Float64("spread_pct", spread),
		zap.Int("providers_ok", len(successes)),
		zap.Int("providers_valid", len(validRates)),
	)
	return aggregated, nil
}

func (s *RateService) saveProviderQuotes(ctx context.Context, pair domain.Pair, quotes []domain.ProviderQuote, now time.Time) error {
	validUntil := now.Add(s.validFor)
	rows := make([]domain.Rate, 0, len(quotes))
	for _, q := range quotes {
		rows = append(rows, domain.Rate{
			Pair:       pair,
			Rate:       q.Rate,
			Source:     sourceForProvider(q.Provider),
			ValidUntil: &validUntil,
			CreatedAt:  now,
		})
	}
	return s.repo.SaveQuotes(ctx, rows)
}

// fallbackRate serves the last persisted aggregate when the current cycle
// produced nothing. It deliberately refreshes neither the cache nor the
// staleness timestamp: the data is stale, not newly observed.
func (s *RateService) fallbackRate(ctx context.Context, pair domain.Pair) (float64, error) {
	key := pair.Key()
	s.log.Warn("all_providers_failed", zap.String("pair", key))

	last, err := s.repo.FindLatest(ctx, pair, domain.SourceAggregated)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, fmt.Errorf("pair %s: %w", key, ErrNoRateAvailable)
		}
		return 0, fmt.Errorf("fallback lookup for %s: %w", key, err)
	}
	s.metrics.FallbackUsed(key)
	s.log.Warn("fallback_rate_used",
		zap.String("pair", key),
		zap.Float64("rate", last.Rate),
		zap.Time("observed_at", last.CreatedAt),
	)
	return last.Rate, nil
}

func sourceForProvider(name string) domain.RateSource {
	return domain.RateSource(strings.ToLower(name))
}
