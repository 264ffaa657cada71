package rebalance

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/registry"
	"github.com/pagforte/payment-gateway/pkg/logger"
)

// DefaultInterval is how often priorities are rebalanced
const DefaultInterval = time.Hour

// Adjustment tiers. Priority moves toward 1 for strong performers and
// toward 100 for degraded ones; the routing score picks the movement up
// on the next selection.
const (
	strongRate      = 98.0
	strongLatencyMs = 1000.0
	strongDelta     = -5

	goodRate      = 95.0
	goodLatencyMs = 2000.0
	goodDelta     = -1

	weakRate      = 90.0
	weakLatencyMs = 3000.0
	weakDelta     = +5
)

// Rebalancer periodically nudges processor priorities based on their
// rolling performance stats
type Rebalancer struct {
	registry *registry.ProcessorRegistry
	interval time.Duration
	log      *logger.Logger
}

// NewRebalancer creates a rebalancer. A non-positive interval falls back
// to DefaultInterval.
func NewRebalancer(reg *registry.ProcessorRegistry, interval time.Duration, log *logger.Logger) *Rebalancer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Rebalancer{
		registry: reg,
		interval: interval,
		log:      log,
	}
}

// Start runs the rebalance loop until the context is cancelled
func (r *Rebalancer) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("rebalancer started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.log.Info("rebalancer stopped")
			return
		case <-ticker.C:
			r.RebalanceAll(ctx)
		}
	}
}

// Delta returns the priority adjustment for the given stats. Strong
// performers move down (toward 1), degraded ones move up (toward 100),
// everything in between holds.
func Delta(stats domain.ProcessorStats) int {
	switch {
	case stats.SuccessRate > strongRate && stats.AvgLatencyMs < strongLatencyMs:
		return strongDelta
	case stats.SuccessRate > goodRate && stats.AvgLatencyMs < goodLatencyMs:
		return goodDelta
	case stats.SuccessRate < weakRate || stats.AvgLatencyMs > weakLatencyMs:
		return weakDelta
	default:
		return 0
	}
}

// RebalanceAll applies one adjustment round to every registered processor
func (r *Rebalancer) RebalanceAll(ctx context.Context) {
	for _, p := range r.registry.List() {
		delta := Delta(p.Stats)
		if delta == 0 {
			continue
		}

		code := p.Code
		if err := r.registry.Update(code, func(p *domain.Processor) {
			before := p.Priority
			p.AdjustPriority(delta)
			if p.Priority != before {
				r.log.Info("processor priority adjusted",
					zap.String("processor", code),
					zap.Int("from", before),
					zap.Int("to", p.Priority),
					zap.Float64("success_rate", p.Stats.SuccessRate),
					zap.Float64("avg_latency_ms", p.Stats.AvgLatencyMs),
				)
			}
		}); err != nil {
			r.log.Warn("failed to rebalance processor", zap.String("processor", code), zap.Error(err))
		}
	}
}
