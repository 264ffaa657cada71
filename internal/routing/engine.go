package routing

import (
	"context"

	"go.uber.org/zap"

	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/metrics"
	"github.com/pagforte/payment-gateway/internal/registry"
	"github.com/pagforte/payment-gateway/pkg/logger"
)

// stableSuccessRate is the success-rate bar fallback selection prefers
// when re-routing after a failed attempt
const stableSuccessRate = 95.0

// Engine selects a processor for each payment request by scoring the
// eligible candidates, and re-selects on failure with the failed
// processor excluded.
type Engine struct {
	registry *registry.ProcessorRegistry
	log      *logger.Logger
}

// NewEngine creates a routing engine over the given registry
func NewEngine(reg *registry.ProcessorRegistry, log *logger.Logger) *Engine {
	return &Engine{
		registry: reg,
		log:      log,
	}
}

// candidates returns the processors eligible for the given amount:
// enabled, health neither down nor unknown, and with daily headroom.
// excluded codes are skipped.
func (e *Engine) candidates(amount int64, exclude map[string]bool) []*domain.Processor {
	var out []*domain.Processor
	for _, p := range e.registry.List() {
		if exclude[p.Code] {
			continue
		}
		if !p.IsEligible() {
			continue
		}
		if !p.HasCapacityFor(amount) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func best(candidates []*domain.Processor) *domain.Processor {
	var winner *domain.Processor
	for _, p := range candidates {
		if winner == nil || Better(p, winner) {
			winner = p
		}
	}
	return winner
}

// SelectProcessor picks the best eligible processor for the request.
// Returns ErrNoProcessorAvailable when no candidate passes eligibility;
// that is a hard decline, not retried internally.
func (e *Engine) SelectProcessor(ctx context.Context, merchant *domain.Merchant, amount int64) (*domain.Processor, error) {
	cands := e.candidates(amount, nil)
	if len(cands) == 0 {
		metrics.RecordNoProcessorAvailable(ctx)
		return nil, domain.ErrNoProcessorAvailable
	}

	winner := best(cands)
	score := Score(winner)

	e.log.Info("processor selected",
		zap.String("processor", winner.Code),
		zap.Int("candidates", len(cands)),
		zap.Float64("score", score),
		zap.String("merchant_id", merchant.ID),
		zap.Int64("amount", amount),
	)
	metrics.RecordRoutingDecision(ctx, winner.Code, len(cands), score)

	return winner, nil
}

// SelectFallback repeats selection with the failed processor excluded,
// biased toward stability: candidates with success rate above 95% are
// preferred; if none qualify the normal score-max rule applies. Returns
// nil (with no error) when no eligible candidate remains, in which case
// the caller must surface a hard decline.
func (e *Engine) SelectFallback(ctx context.Context, merchant *domain.Merchant, failedCode string, amount int64) (*domain.Processor, error) {
	cands := e.candidates(amount, map[string]bool{failedCode: true})
	if len(cands) == 0 {
		e.log.Warn("no fallback processor available",
			zap.String("failed_processor", failedCode),
			zap.String("merchant_id", merchant.ID),
		)
		return nil, nil
	}

	var stable []*domain.Processor
	for _, p := range cands {
		if p.Stats.SuccessRate > stableSuccessRate {
			stable = append(stable, p)
		}
	}

	pool := cands
	if len(stable) > 0 {
		pool = stable
	}
	winner := best(pool)

	e.log.Info("fallback processor selected",
		zap.String("processor", winner.Code),
		zap.String("failed_processor", failedCode),
		zap.Int("candidates", len(cands)),
		zap.Float64("score", Score(winner)),
	)
	metrics.RecordFailover(ctx, failedCode, winner.Code)

	return winner, nil
}
