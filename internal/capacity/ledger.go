package capacity

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/registry"
	"github.com/pagforte/payment-gateway/pkg/logger"
)

// MerchantVolumes is the slice of the merchant store the ledger needs for
// monthly volume accounting
type MerchantVolumes interface {
	AddMonthlyVolume(ctx context.Context, merchantID string, amount int64) error
	ResetMonthlyVolumes(ctx context.Context) error
}

// Ledger tracks per-processor daily volume against the daily ceiling and
// per-merchant volume against the monthly ceiling, and owns the rolling
// performance stats. All processor writes funnel through the registry's
// Update path so concurrent outcomes never interleave into a lost update.
type Ledger struct {
	registry  *registry.ProcessorRegistry
	merchants MerchantVolumes
	log       *logger.Logger
}

// NewLedger creates a capacity ledger over the given registry
func NewLedger(reg *registry.ProcessorRegistry, merchants MerchantVolumes, log *logger.Logger) *Ledger {
	return &Ledger{
		registry:  reg,
		merchants: merchants,
		log:       log,
	}
}

// Reserve reports whether the processor can admit the amount under its
// daily ceiling. It does not increment anything; volume is recorded only
// on confirmed completion via RecordOutcome. Two concurrent reservations
// may therefore overshoot the ceiling by at most one transaction.
func (l *Ledger) Reserve(code string, amount int64) (bool, error) {
	p, err := l.registry.Lookup(code)
	if err != nil {
		return false, err
	}
	return p.HasCapacityFor(amount), nil
}

// ReserveMerchant reports whether the merchant can admit the amount under
// its monthly ceiling
func (l *Ledger) ReserveMerchant(m *domain.Merchant, amount int64) bool {
	return m.HasMonthlyCapacityFor(amount)
}

// RecordOutcome atomically folds one adapter call outcome into the
// processor's counters: transaction count, success count, success rate
// (successes/total x 100), latency as a two-point moving average
// ((old + new) / 2), and daily volume.
func (l *Ledger) RecordOutcome(ctx context.Context, code string, success bool, amount int64, latencyMs int64) error {
	err := l.registry.Update(code, func(p *domain.Processor) {
		p.Stats.TotalCount++
		if success {
			p.Stats.SuccessCount++
		}
		p.Stats.SuccessRate = float64(p.Stats.SuccessCount) / float64(p.Stats.TotalCount) * 100

		if p.Stats.AvgLatencyMs == 0 {
			p.Stats.AvgLatencyMs = float64(latencyMs)
		} else {
			p.Stats.AvgLatencyMs = (p.Stats.AvgLatencyMs + float64(latencyMs)) / 2
		}

		p.VolumeToday += amount
	})
	if err != nil {
		return fmt.Errorf("failed to record outcome for processor %s: %w", code, err)
	}
	return nil
}

// RecordMerchantVolume adds a completed transaction's amount to the
// merchant's monthly counter
func (l *Ledger) RecordMerchantVolume(ctx context.Context, merchantID string, amount int64) error {
	if l.merchants == nil {
		return nil
	}
	return l.merchants.AddMonthlyVolume(ctx, merchantID, amount)
}

// Stats returns a snapshot of the processor's rolling stats
func (l *Ledger) Stats(code string) (domain.ProcessorStats, error) {
	p, err := l.registry.Lookup(code)
	if err != nil {
		return domain.ProcessorStats{}, err
	}
	return p.Stats, nil
}

// ResetDailyVolumes zeroes every processor's volume-processed-today.
// Success and failure counters are deliberately untouched.
func (l *Ledger) ResetDailyVolumes(ctx context.Context) {
	for _, p := range l.registry.List() {
		code := p.Code
		if err := l.registry.Update(code, func(p *domain.Processor) {
			p.VolumeToday = 0
		}); err != nil {
			l.log.Warn("failed to reset daily volume", zap.String("processor", code), zap.Error(err))
		}
	}
	l.log.Info("daily processor volumes reset")
}

// ResetMerchantVolumes zeroes every merchant's monthly volume counter
func (l *Ledger) ResetMerchantVolumes(ctx context.Context) error {
	if l.merchants == nil {
		return nil
	}
	if err := l.merchants.ResetMonthlyVolumes(ctx); err != nil {
		return fmt.Errorf("failed to reset merchant volumes: %w", err)
	}
	l.log.Info("monthly merchant volumes reset")
	return nil
}
