package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pagforte/payment-gateway/internal/capacity"
	"github.com/pagforte/payment-gateway/pkg/logger"
)

// ResetWorker zeroes processor daily volumes at midnight UTC and merchant
// monthly volumes on the first day of each month.
type ResetWorker struct {
	ledger  *capacity.Ledger
	log     *logger.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	lastDailyReset   time.Time
	lastMonthlyReset time.Time
}

// NewResetWorker creates a new reset worker
func NewResetWorker(ledger *capacity.Ledger) *ResetWorker {
	return &ResetWorker{
		ledger: ledger,
		log:    logger.Get(),
		stopCh: make(chan struct{}),
	}
}

// Start starts the reset worker
func (w *ResetWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("reset worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting capacity reset worker")

	w.wg.Add(1)
	go w.run(ctx)

	return nil
}

// Stop stops the reset worker
func (w *ResetWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Capacity reset worker stopped")
}

func (w *ResetWorker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		now := time.Now().UTC()
		next := nextMidnight(now)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-w.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			w.resetAt(ctx, time.Now().UTC())
		}
	}
}

// resetAt runs the daily reset, and the monthly one when the day that just
// started is the first of the month
func (w *ResetWorker) resetAt(ctx context.Context, now time.Time) {
	w.ledger.ResetDailyVolumes(ctx)
	w.mu.Lock()
	w.lastDailyReset = now
	w.mu.Unlock()

	if now.Day() == 1 {
		if err := w.ledger.ResetMerchantVolumes(ctx); err != nil {
			w.log.Error(fmt.Sprintf("Failed to reset merchant monthly volumes: %v", err))
		} else {
			w.mu.Lock()
			w.lastMonthlyReset = now
			w.mu.Unlock()
		}
	}
}

// LastResets returns the last daily and monthly reset times
func (w *ResetWorker) LastResets() (daily, monthly time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastDailyReset, w.lastMonthlyReset
}

func nextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}
