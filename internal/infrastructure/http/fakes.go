package httpserver

import (
	"context"
	"sync"
	"time"

	"cryptorates-service/internal/application"
	"cryptorates-service/internal/domain"
)

var _ application.RateRepo = (*memRateRepo)(nil)
var _ application.RateCache = (*memRateCache)(nil)

// In-memory collaborators for router tests and local development.

type memRateRepo struct {
	mu   sync.Mutex
	rows []domain.Rate
}

func (m *memRateRepo) SaveQuotes(_ context.Context, rows []domain.Rate) error {
	m.mu.Lock()
	m.rows = append(m.rows, rows...)
	m.mu.Unlock()
	return nil
}

func (m *memRateRepo) SaveAggregate(_ context.Context, row domain.Rate) error {
	m.mu.Lock()
	m.rows = append(m.rows, row)
	m.mu.Unlock()
	return nil
}

func (m *memRateRepo) FindLatest(_ context.Context, pair domain.Pair, source domain.RateSource) (domain.Rate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].Pair == pair && m.rows[i].Source == source {
			return m.rows[i], nil
		}
	}
	return domain.Rate{}, application.ErrNotFound
}

func (m *memRateRepo) FindRange(_ context.Context, pair domain.Pair, source domain.RateSource, from, to time.Time) ([]domain.Rate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Rate
	for _, row := range m.rows {
		if row.Pair == pair && row.Source == source && !row.CreatedAt.Before(from) && !row.CreatedAt.After(to) {
			out = append(out, row)
		}
	}
	return out, nil
}

type memRateCache struct {
	mu    sync.Mutex
	store map[string]float64
}

func (m *memRateCache) Get(_ context.Context, key string) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.store[key]
	return v, ok, nil
}

func (m *memRateCache) Set(_ context.Context, key string, rate float64, _ time.Duration) error {
	m.mu.Lock()
	if m.store == nil {
		m.store = map[string]float64{}
	}
	m.store[key] = rate
	m.mu.Unlock()
	return nil
}

type staticProvider struct {
	name string
	rate float64
	err  error
}

func (p staticProvider) Name() string { return p.name }

func (p staticProvider) GetRate(context.Context, string) (float64, error) {
	if p.err != nil {
		return 0, p.err
	}
	return p.rate, nil
}

// NewInMemoryService wires a real RateService onto in-memory collaborators.
func NewInMemoryService(providers ...application.RateProvider) (*application.RateService, *memRateRepo) {
	repo := &memRateRepo{}
	svc := application.NewRateService(repo, &memRateCache{}, providers, application.NewStalenessTracker())
	return svc, repo
}
