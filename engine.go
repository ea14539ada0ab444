package authcore

import (
	"context"
	"log/slog"
	"time"

	"github.com/civicpulse/authcore/internal/accounts"
	"github.com/civicpulse/authcore/internal/audit"
	"github.com/civicpulse/authcore/internal/lockout"
	"github.com/civicpulse/authcore/internal/otp"
	"github.com/civicpulse/authcore/internal/rate"
)

// Engine runs every authentication flow. Build it with [New].
type Engine struct {
	config   Config
	codes    *otp.Service
	auth     *lockout.Service
	accounts accounts.Store
	notifier Notifier
	sessions SessionIssuer
	throttle *rate.Limiter
	audit    *audit.Dispatcher
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the effective configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// AuditDropped counts audit events lost to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID]HistogramSnapshot{},
		}
	}
	return e.metrics.Snapshot()
}

// Account loads an account by ID.
func (e *Engine) Account(ctx context.Context, accountID string) (Account, error) {
	if err := e.ready(); err != nil {
		return Account{}, err
	}
	acct, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		return Account{}, mapLockoutError(err)
	}
	return acct, nil
}

func (e *Engine) ready() error {
	if e == nil || e.codes == nil || e.auth == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeSince(id MetricID, start time.Time) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}
