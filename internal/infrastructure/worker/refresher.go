package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cryptorates-service/internal/application"
	"cryptorates-service/internal/domain"
)

// rateRefresher is the slice of the rate service the refresher needs.
type rateRefresher interface {
	FetchAndAggregateRate(ctx context.Context, pair domain.Pair) (float64, error)
}

var _ application.Worker = (*Refresher)(nil)

// Refresher proactively re-aggregates every monitored pair on a fixed
// interval, keeping the cache warm and the staleness clock advancing even
// with no caller traffic.
type Refresher struct {
	Svc      rateRefresher
	Pairs    []domain.Pair
	Interval time.Duration
	Log      *zap.Logger
}

func (w *Refresher) Start(ctx context.Context) {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	if w.Interval <= 0 {
		w.Interval = time.Minute
	}

	t := time.NewTicker(w.Interval)
	defer t.Stop()

	log.Info("refresher_started", zap.Duration("interval", w.Interval), zap.Int("pairs", len(w.Pairs)))
	for {
		select {
		case <-ctx.Done():
			log.Info("refresher_stopped")
			return
		case <-t.C:
			w.tick(ctx, log)
		}
	}
}

// tick refreshes pairs sequentially; a failing pair must not abort the rest.
func (w *Refresher) tick(ctx context.Context, log *zap.Logger) {
	for _, p := range w.Pairs {
		if _, err := w.Svc.FetchAndAggregateRate(ctx, p); err != nil {
			log.Warn("refresh_failed", zap.String("pair", p.Key()), zap.Error(err))
			continue
		}
		log.Debug("refresh_done", zap.String("pair", p.Key()))
	}
}
