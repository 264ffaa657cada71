package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pagforte/payment-gateway/internal/webhook"
	"github.com/pagforte/payment-gateway/pkg/logger"
)

// DeliveryWorkerConfig contains configuration for the delivery worker
type DeliveryWorkerConfig struct {
	// PendingInterval is the sweep cadence for fresh pending notifications
	PendingInterval time.Duration
	// FailedInterval is the sweep cadence for failed notifications waiting
	// out their backoff
	FailedInterval time.Duration
	// PurgeInterval is how often delivered notifications past retention
	// are removed
	PurgeInterval time.Duration
}

// DefaultDeliveryWorkerConfig returns default configuration
func DefaultDeliveryWorkerConfig() *DeliveryWorkerConfig {
	return &DeliveryWorkerConfig{
		PendingInterval: webhook.DefaultPendingInterval,
		FailedInterval:  webhook.DefaultFailedInterval,
		PurgeInterval:   24 * time.Hour,
	}
}

// DeliveryWorker drives the webhook scheduler sweeps on their cadences
type DeliveryWorker struct {
	scheduler *webhook.Scheduler
	config    *DeliveryWorkerConfig
	log       *logger.Logger
	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
}

// NewDeliveryWorker creates a new delivery worker
func NewDeliveryWorker(scheduler *webhook.Scheduler, config *DeliveryWorkerConfig) *DeliveryWorker {
	if config == nil {
		config = DefaultDeliveryWorkerConfig()
	}
	if config.PendingInterval <= 0 {
		config.PendingInterval = webhook.DefaultPendingInterval
	}
	if config.FailedInterval <= 0 {
		config.FailedInterval = webhook.DefaultFailedInterval
	}
	if config.PurgeInterval <= 0 {
		config.PurgeInterval = 24 * time.Hour
	}

	return &DeliveryWorker{
		scheduler: scheduler,
		config:    config,
		log:       logger.Get(),
		stopCh:    make(chan struct{}),
	}
}

// Start starts the delivery worker loops
func (w *DeliveryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("delivery worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting webhook delivery worker")

	w.wg.Add(3)
	go w.loop(ctx, w.config.PendingInterval, w.scheduler.SweepPending)
	go w.loop(ctx, w.config.FailedInterval, w.scheduler.SweepFailed)
	go w.loop(ctx, w.config.PurgeInterval, w.scheduler.Purge)

	return nil
}

// Stop stops the delivery worker
func (w *DeliveryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Webhook delivery worker stopped")
}

func (w *DeliveryWorker) loop(ctx context.Context, interval time.Duration, sweep func(context.Context)) {
	defer w.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on start
	w.runSweep(ctx, sweep)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.runSweep(ctx, sweep)
		}
	}
}

// runSweep guards a sweep so a panic in one round does not kill the loop
func (w *DeliveryWorker) runSweep(ctx context.Context, sweep func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error(fmt.Sprintf("Delivery sweep panicked: %v", r))
		}
	}()
	sweep(ctx)
}
