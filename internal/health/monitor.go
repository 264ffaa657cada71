package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pagforte/payment-gateway/internal/capacity"
	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/registry"
	"github.com/pagforte/payment-gateway/pkg/logger"
)

// Thresholds a processor must stay inside to be considered healthy
const (
	// DefaultInterval is how often every processor is evaluated
	DefaultInterval = 60 * time.Second

	// MinSuccessRate is the lowest success rate a healthy processor can report
	MinSuccessRate = 90.0

	// MaxAvgLatencyMs is the highest average latency a healthy processor can report
	MaxAvgLatencyMs = 5000.0

	// MaxCheckAge marks a processor unhealthy when its last evaluation is
	// older than this
	MaxCheckAge = 5 * time.Minute
)

// Monitor periodically evaluates every registered processor against the
// health thresholds and flips its health state in the registry. State
// changes take effect immediately in both directions; there is no
// hysteresis window.
type Monitor struct {
	registry *registry.ProcessorRegistry
	ledger   *capacity.Ledger
	interval time.Duration
	log      *logger.Logger
}

// NewMonitor creates a health monitor. A non-positive interval falls back
// to DefaultInterval.
func NewMonitor(reg *registry.ProcessorRegistry, ledger *capacity.Ledger, interval time.Duration, log *logger.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		registry: reg,
		ledger:   ledger,
		interval: interval,
		log:      log,
	}
}

// Start runs the evaluation loop until the context is cancelled
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.Info("health monitor started", zap.Duration("interval", m.interval))

	for {
		select {
		case <-ctx.Done():
			m.log.Info("health monitor stopped")
			return
		case <-ticker.C:
			m.CheckAll(ctx)
		}
	}
}

// CheckAll evaluates every registered processor once
func (m *Monitor) CheckAll(ctx context.Context) {
	now := time.Now()
	for _, p := range m.registry.List() {
		m.checkOne(ctx, p.Code, now)
	}
}

func (m *Monitor) checkOne(ctx context.Context, code string, now time.Time) {
	stats, err := m.ledger.Stats(code)
	if err != nil {
		// Stats unreadable means we cannot tell either way. Unknown keeps
		// the processor out of routing until a clean read comes back.
		m.log.Warn("health check failed to read stats",
			zap.String("processor", code),
			zap.Error(err),
		)
		_ = m.registry.Update(code, func(p *domain.Processor) {
			p.SetHealthState(domain.HealthStateUnknown)
			p.LastHealthCheckAt = now
		})
		return
	}

	if stats.TotalCount == 0 {
		// No routed traffic yet. Zero stats say nothing about the
		// processor, and marking it down here would exclude it from
		// routing forever (stats only move with routed traffic), so the
		// seeded or previous state stands.
		_ = m.registry.Update(code, func(p *domain.Processor) {
			p.LastHealthCheckAt = now
		})
		return
	}

	updateErr := m.registry.Update(code, func(p *domain.Processor) {
		healthy := stats.SuccessRate >= MinSuccessRate &&
			stats.AvgLatencyMs <= MaxAvgLatencyMs &&
			(p.LastHealthCheckAt.IsZero() || now.Sub(p.LastHealthCheckAt) <= MaxCheckAge)

		next := domain.HealthStateDown
		if healthy {
			next = domain.HealthStateUp
		}

		if p.HealthState != next {
			m.log.Info("processor health changed",
				zap.String("processor", code),
				zap.String("from", string(p.HealthState)),
				zap.String("to", string(next)),
				zap.Float64("success_rate", stats.SuccessRate),
				zap.Float64("avg_latency_ms", stats.AvgLatencyMs),
			)
		}

		p.SetHealthState(next)
		p.LastHealthCheckAt = now
	})
	if updateErr != nil {
		m.log.Warn("health check failed to update processor",
			zap.String("processor", code),
			zap.Error(updateErr),
		)
	}
}
