package webhook

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/repository"
	"github.com/pagforte/payment-gateway/pkg/logger"
)

// Sweep defaults
const (
	DefaultPendingInterval = 30 * time.Second
	DefaultFailedInterval  = 60 * time.Second
	DefaultSweepBatchSize  = 100

	// DefaultPurgeRetention is how long delivered notifications are kept
	DefaultPurgeRetention = 30 * 24 * time.Hour
)

// Scheduler sweeps the notification store and feeds due notifications to
// the dispatcher. New pending notifications and failed ones waiting out
// their backoff run on separate cadences.
type Scheduler struct {
	webhooks   repository.WebhookRepository
	dispatcher *Dispatcher
	batchSize  int
	retention  time.Duration
	log        *logger.Logger
}

// NewScheduler creates a webhook scheduler
func NewScheduler(webhooks repository.WebhookRepository, dispatcher *Dispatcher, batchSize int, retention time.Duration, log *logger.Logger) *Scheduler {
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	if retention <= 0 {
		retention = DefaultPurgeRetention
	}
	return &Scheduler{
		webhooks:   webhooks,
		dispatcher: dispatcher,
		batchSize:  batchSize,
		retention:  retention,
		log:        log,
	}
}

// SweepPending dispatches due pending notifications once
func (s *Scheduler) SweepPending(ctx context.Context) {
	due, err := s.webhooks.ListDue(ctx, time.Now().UTC(), s.batchSize)
	if err != nil {
		s.log.Error("pending sweep failed to list notifications", zap.Error(err))
		return
	}
	s.dispatchBatch(ctx, "pending", due)
}

// SweepFailed re-dispatches failed notifications whose backoff elapsed
func (s *Scheduler) SweepFailed(ctx context.Context) {
	due, err := s.webhooks.ListRetryable(ctx, time.Now().UTC(), s.batchSize)
	if err != nil {
		s.log.Error("failed sweep failed to list notifications", zap.Error(err))
		return
	}
	s.dispatchBatch(ctx, "failed", due)
}

// Purge removes delivered notifications older than the retention window
func (s *Scheduler) Purge(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.retention)
	purged, err := s.webhooks.PurgeSucceededBefore(ctx, cutoff)
	if err != nil {
		s.log.Error("notification purge failed", zap.Error(err))
		return
	}
	if purged > 0 {
		s.log.Info("delivered notifications purged",
			zap.Int64("purged", purged),
			zap.Time("cutoff", cutoff),
		)
	}
}

func (s *Scheduler) dispatchBatch(ctx context.Context, sweep string, batch []*domain.WebhookNotification) {
	if len(batch) == 0 {
		return
	}
	s.log.Debug("dispatching notification batch",
		zap.String("sweep", sweep),
		zap.Int("count", len(batch)),
	)
	for _, n := range batch {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.dispatcher.Dispatch(ctx, n); err != nil {
			s.log.Error("notification dispatch failed",
				zap.String("sweep", sweep),
				zap.String("notification_id", n.ID),
				zap.Error(err),
			)
		}
	}
}
