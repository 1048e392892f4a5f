package audit

import (
	"context"
	"log/slog"
	"time"
)

// Retention prunes audit events older than a configured age on a fixed
// interval. Sweep failures are logged and retried on the next tick.
type Retention struct {
	store    *Store
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewRetention creates a Retention sweeper. interval defaults to one hour.
func NewRetention(store *Store, maxAge, interval time.Duration, logger *slog.Logger) *Retention {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retention{
		store:    store,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps on the interval until the context is cancelled.
func (r *Retention) Run(ctx context.Context) {
	r.logger.Info("audit retention starting", "maxAge", r.maxAge, "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("audit retention stopped")
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep deletes events that have aged out of the retention window.
func (r *Retention) Sweep() {
	deleted, err := r.store.DeleteOlderThan(time.Now().Add(-r.maxAge))
	if err != nil {
		r.logger.Error("audit retention sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		r.logger.Info("audit retention swept", "deleted", deleted)
	}
}
