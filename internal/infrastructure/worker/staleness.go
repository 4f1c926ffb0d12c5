package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cryptorates-service/internal/application"
)

var _ application.Worker = (*StalenessChecker)(nil)

// StalenessChecker periodically runs the staleness monitor over the
// monitored pairs.
type StalenessChecker struct {
	Monitor  *application.StalenessMonitor
	Interval time.Duration
	Log      *zap.Logger
}

func (w *StalenessChecker) Start(ctx context.Context) {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	if w.Interval <= 0 {
		w.Interval = 5 * time.Minute
	}

	t := time.NewTicker(w.Interval)
	defer t.Stop()

	log.Info("staleness_checker_started", zap.Duration("interval", w.Interval))
	for {
		select {
		case <-ctx.Done():
			log.Info("staleness_checker_stopped")
			return
		case <-t.C:
			w.Monitor.Check()
		}
	}
}
