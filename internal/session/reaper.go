package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/congo-pay/ussd_gateway/internal/metrics"
)

// Reaper periodically evicts idle sessions from a Store.
type Reaper struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewReaper builds a reaper sweeping store every interval.
func NewReaper(store Store, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Reaper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reaper{store: store, interval: interval, logger: logger, metrics: m}
}

// Run sweeps until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single eviction pass and publishes the session count.
func (r *Reaper) SweepOnce(ctx context.Context) int {
	evicted, err := r.store.Sweep(ctx)
	if err != nil {
		r.logger.Error("session sweep failed", "error", err, "error_class", "infrastructure")
		return 0
	}
	active, err := r.store.Count(ctx)
	if err != nil {
		r.logger.Warn("session count failed", "error", err)
		return evicted
	}
	r.metrics.Sessions(active, evicted)
	if evicted > 0 {
		r.logger.Info("idle sessions evicted", "evicted", evicted, "active", active)
	}
	return evicted
}
