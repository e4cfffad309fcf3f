package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/signage-scheduler/internal/metrics"
)

type nextRunRefresher interface {
	RefreshNextRuns(ctx context.Context) (int, error)
}

// Refresher periodically repairs next_run_at values left in the past by
// windows that closed without an activation.
type Refresher struct {
	uc       nextRunRefresher
	interval time.Duration
	logger   *slog.Logger
}

func NewRefresher(uc nextRunRefresher, interval time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{
		uc:       uc,
		interval: interval,
		logger:   logger.With("component", "refresher"),
	}
}

func (r *Refresher) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("refresher started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher shut down")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	n, err := r.uc.RefreshNextRuns(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "refresh next runs", "error", err)
		return
	}
	if n > 0 {
		metrics.NextRunsRefreshedTotal.Add(float64(n))
		r.logger.InfoContext(ctx, "refreshed stale next runs", "count", n)
	}
}
