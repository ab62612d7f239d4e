package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/compliance-guard-backend/internal/domain/compliance"
)

const (
	defaultReapInterval   = 5 * time.Minute
	defaultSessionTimeout = 60 * time.Minute
)

// Reaper ends sessions that have gone idle past the timeout. One reaper runs
// per store; it stops when its context is cancelled.
type Reaper struct {
	store    Store
	clock    compliance.Clock
	logger   *zap.Logger
	interval time.Duration
	timeout  time.Duration
}

// ReaperOption configures a Reaper.
type ReaperOption func(*Reaper)

// WithReapInterval overrides how often the reaper scans.
func WithReapInterval(interval time.Duration) ReaperOption {
	return func(r *Reaper) { r.interval = interval }
}

// WithSessionTimeout overrides the idle timeout.
func WithSessionTimeout(timeout time.Duration) ReaperOption {
	return func(r *Reaper) { r.timeout = timeout }
}

// WithReaperClock injects a clock for tests.
func WithReaperClock(clock compliance.Clock) ReaperOption {
	return func(r *Reaper) { r.clock = clock }
}

// NewReaper creates a reaper over the given store.
func NewReaper(store Store, logger *zap.Logger, opts ...ReaperOption) *Reaper {
	r := &Reaper{
		store:    store,
		clock:    compliance.RealClock{},
		logger:   logger.Named("session.reaper"),
		interval: defaultReapInterval,
		timeout:  defaultSessionTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run blocks, scanning on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("session reaper started",
		zap.Duration("interval", r.interval),
		zap.Duration("timeout", r.timeout))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("session reaper stopped")
			return
		case <-ticker.C:
			reaped := r.ReapOnce(ctx)
			if reaped > 0 {
				r.logger.Info("reaped expired sessions", zap.Int("count", reaped))
			}
		}
	}
}

// ReapOnce performs a single scan and returns how many sessions it ended.
// Exported so tests can drive the reaper without a ticker.
func (r *Reaper) ReapOnce(ctx context.Context) int {
	cutoff := r.clock.Now().Add(-r.timeout)

	reaped := 0
	for _, record := range r.store.Active(ctx) {
		if record.LastActivity.After(cutoff) {
			continue
		}
		if r.store.End(ctx, record.SessionID, StatusTimeout) {
			reaped++
			r.logger.Warn("session timed out",
				zap.String("session_id", record.SessionID),
				zap.String("company_id", record.CompanyID),
				zap.Time("last_activity", record.LastActivity))
		}
	}
	return reaped
}
