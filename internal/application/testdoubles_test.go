package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"cryptorates-service/internal/domain"
)

var errProviderDown = errors.New("provider down")

type fakeRepo struct {
	mu         sync.Mutex
	quotes     []domain.Rate
	aggregates []domain.Rate
	err        error
}

func (f *fakeRepo) SaveQuotes(_ context.Context, rows []domain.Rate) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes = append(f.quotes, rows...)
	return nil
}

func (f *fakeRepo) SaveAggregate(_ context.Context, row domain.Rate) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aggregates = append(f.aggregates, row)
	return nil
}

func (f *fakeRepo) FindLatest(_ context.Context, pair domain.Pair, source domain.RateSource) (domain.Rate, error) {
	if f.err != nil {
		return domain.Rate{}, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.aggregates) - 1; i >= 0; i-- {
		r := f.aggregates[i]
		if r.Pair == pair && r.Source == source {
			return r, nil
		}
	}
	return domain.Rate{}, ErrNotFound
}

func (f *fakeRepo) FindRange(_ context.Context, pair domain.Pair, source domain.RateSource, from, to time.Time) ([]domain.Rate, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Rate
	for _, r := range append(append([]domain.Rate{}, f.quotes...), f.aggregates...) {
		if r.Pair == pair && r.Source == source && !r.CreatedAt.Before(from) && !r.CreatedAt.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeCache struct {
	mu      sync.Mutex
	store   map[string]float64
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	setCall int
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: map[string]float64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (float64, bool, error) {
	if f.getErr != nil {
		return 0, false, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.store[key]
	return v, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key string, rate float64, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[key] = rate
	f.ttls[key] = ttl
	f.setCall++
	return nil
}

type fakeProvider struct {
	name  string
	rate  float64
	err   error
	calls int64
	mu    sync.Mutex
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) GetRate(context.Context, string) (float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.rate, nil
}

func (f *fakeProvider) callCount() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeClock struct{ t time.Time }

func (f fakeClock) Now() time.Time { return f.t }

type recordingMetrics struct {
	mu        sync.Mutex
	outliers  []string
	fallbacks []string
	stale     map[string]bool
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{stale: map[string]bool{}}
}

func (m *recordingMetrics) AggregationDone(string, bool, time.Duration) {}
func (m *recordingMetrics) ProviderError(string)                        {}

func (m *recordingMetrics) OutlierRejected(p string) {
	m.mu.Lock()
	m.outliers = append(m.outliers, p)
	m.mu.Unlock()
}

func (m *recordingMetrics) FallbackUsed(pair string) {
	m.mu.Lock()
	m.fallbacks = append(m.fallbacks, pair)
	m.mu.Unlock()
}

func (m *recordingMetrics) PairStaleness(pair string, stale bool) {
	m.mu.Lock()
	m.stale[pair] = stale
	m.mu.Unlock()
}
