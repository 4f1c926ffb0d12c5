package application

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"cryptorates-service/internal/domain"
)

// StalenessTracker records, per pair key, when the last successful
// aggregation happened. Process-local; any writer wins.
type StalenessTracker struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewStalenessTracker() *StalenessTracker {
	return &StalenessTracker{last: make(map[string]time.Time)}
}

func (t *StalenessTracker) MarkSuccess(key string, at time.Time) {
	t.mu.Lock()
	t.last[key] = at
	t.mu.Unlock()
}

func (t *StalenessTracker) LastSuccess(key string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.last[key]
	return at, ok
}

// StalenessMonitor raises an operational alert when a monitored pair has
// had no successful aggregation within the threshold. It never retries or
// mutates anything; it is purely observability.
type StalenessMonitor struct {
	pairs     []domain.Pair
	threshold time.Duration
	tracker   *StalenessTracker
	clock     Clock
	metrics   Metrics
	log       *zap.Logger
}

func NewStalenessMonitor(pairs []domain.Pair, threshold time.Duration, tracker *StalenessTracker, metrics Metrics, log *zap.Logger) *StalenessMonitor {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StalenessMonitor{
		pairs:     pairs,
		threshold: threshold,
		tracker:   tracker,
		clock:     realClock{},
		metrics:   metrics,
		log:       log,
	}
}

// WithMonitorClock overrides the monitor clock; tests only.
func (m *StalenessMonitor) WithMonitorClock(c Clock) *StalenessMonitor {
	m.clock = c
	return m
}

// Check inspects every monitored pair once. A pair with no recorded
// success ever is reported with a zero last-update time.
func (m *StalenessMonitor) Check() {
	now := m.clock.Now()
	for _, p := range m.pairs {
		key := p.Key()
		last, _ := m.tracker.LastSuccess(key)
		stale := now.Sub(last) > m.threshold
		m.metrics.PairStaleness(key, stale)
		if stale {
			m.log.Error("rate_stale",
				zap.String("pair", key),
				zap.Time("last_update", last),
				zap.Duration("threshold", m.threshold),
			)
		}
	}
}
