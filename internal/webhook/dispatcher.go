package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/metrics"
	"github.com/pagforte/payment-gateway/internal/repository"
	"github.com/pagforte/payment-gateway/pkg/logger"
	"github.com/pagforte/payment-gateway/pkg/redis"
	"github.com/pagforte/payment-gateway/pkg/retry"
)

const (
	// DeliveryTopic is the logical topic exhausted notifications hang off;
	// the DLQ publisher appends its suffix to it
	DeliveryTopic = "webhooks.delivery"

	// maxResponseBodyBytes caps how much of the merchant's response is stored
	maxResponseBodyBytes = 4 * 1024

	// lockGrace pads the dispatch lock TTL past the HTTP timeout
	lockGrace = 10 * time.Second
)

// Dispatcher delivers webhook notifications to merchant endpoints and
// drives the pending -> sending -> success/failed state machine. Delivery
// is at-least-once: the merchant endpoint must deduplicate on the
// notification id.
type Dispatcher struct {
	webhooks  repository.WebhookRepository
	merchants repository.MerchantRepository
	client    *http.Client
	locks     *redis.Client
	dlq       retry.DLQPublisher
	log       *logger.Logger
}

// NewDispatcher creates a webhook dispatcher. locks and dlq may be nil;
// without locks concurrent workers rely on the repository's conditional
// claim alone, and without dlq exhausted notifications are only persisted.
func NewDispatcher(webhooks repository.WebhookRepository, merchants repository.MerchantRepository, locks *redis.Client, dlq retry.DLQPublisher, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		webhooks:  webhooks,
		merchants: merchants,
		client:    &http.Client{},
		locks:     locks,
		dlq:       dlq,
		log:       log,
	}
}

// Dispatch attempts one delivery of the notification. A notification with
// no attempts left is marked exhausted without any network call. Returns
// whether the notification reached its terminal success state.
func (d *Dispatcher) Dispatch(ctx context.Context, n *domain.WebhookNotification) (bool, error) {
	if n.IsTerminal() {
		return n.State == domain.DeliveryStateSuccess, domain.ErrNotificationTerminal
	}

	if !n.HasAttemptsLeft() {
		return false, d.exhaust(ctx, n, 0, "", "max delivery attempts reached")
	}

	timeout := d.merchantTimeout(ctx, n.MerchantID)

	release, acquired := d.acquireLock(ctx, n.ID, timeout+lockGrace)
	if !acquired {
		// Another worker holds this notification
		return false, nil
	}
	defer release()

	claimed, ok, err := d.webhooks.ClaimSending(ctx, n.ID, n.State)
	if err != nil {
		return false, fmt.Errorf("failed to claim notification %s: %w", n.ID, err)
	}
	if !ok {
		return false, nil
	}
	n = claimed

	start := time.Now()
	statusCode, responseBody, callErr := d.deliver(ctx, n, timeout)
	elapsed := time.Since(start)

	if callErr == nil && statusCode >= 200 && statusCode < 300 {
		if err := n.MarkSuccess(statusCode); err != nil {
			return false, err
		}
		if err := d.webhooks.Update(ctx, n); err != nil {
			return false, fmt.Errorf("failed to persist delivered notification %s: %w", n.ID, err)
		}
		d.log.Info("webhook delivered",
			zap.String("notification_id", n.ID),
			zap.String("event", n.Event),
			zap.Int("attempt", n.Attempts),
			zap.Int("status_code", statusCode),
			zap.Duration("elapsed", elapsed),
		)
		metrics.RecordWebhookDelivered(ctx, n.Event, elapsed.Seconds())
		return true, nil
	}

	errMsg := ""
	if callErr != nil {
		errMsg = callErr.Error()
	}

	if !n.HasAttemptsLeft() {
		return false, d.exhaust(ctx, n, statusCode, responseBody, errMsg)
	}

	if err := n.ScheduleRetry(statusCode, responseBody, errMsg); err != nil {
		return false, err
	}
	if err := d.webhooks.Update(ctx, n); err != nil {
		return false, fmt.Errorf("failed to persist retry for notification %s: %w", n.ID, err)
	}
	d.log.Warn("webhook delivery failed, retry scheduled",
		zap.String("notification_id", n.ID),
		zap.String("event", n.Event),
		zap.Int("attempt", n.Attempts),
		zap.Int("status_code", statusCode),
		zap.String("error", errMsg),
		zap.Timep("next_attempt_at", n.NextAttemptAt),
	)
	metrics.RecordWebhookRetried(ctx, n.Event, n.Attempts)
	return false, nil
}

// deliver performs the HTTP POST to the merchant endpoint
func (d *Dispatcher) deliver(ctx context.Context, n *domain.WebhookNotification, timeout time.Duration) (int, string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, n.URL, bytes.NewReader(n.Payload))
	if err != nil {
		return 0, "", fmt.Errorf("failed to build webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Id", n.ID)
	req.Header.Set("X-Webhook-Event", n.Event)
	req.Header.Set("X-Webhook-Attempt", strconv.Itoa(n.Attempts))
	if n.Signature != "" {
		req.Header.Set("X-Webhook-Signature", n.Signature)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	return resp.StatusCode, string(body), nil
}

// exhaust marks the notification terminally failed and hands it to the DLQ
func (d *Dispatcher) exhaust(ctx context.Context, n *domain.WebhookNotification, statusCode int, responseBody, errMsg string) error {
	if err := n.MarkExhausted(statusCode, responseBody, errMsg); err != nil {
		return err
	}
	if err := d.webhooks.Update(ctx, n); err != nil {
		return fmt.Errorf("failed to persist exhausted notification %s: %w", n.ID, err)
	}

	d.log.Error("webhook delivery exhausted",
		zap.String("notification_id", n.ID),
		zap.String("transaction_id", n.TransactionID),
		zap.String("event", n.Event),
		zap.Int("attempts", n.Attempts),
		zap.String("last_error", n.LastError),
	)
	metrics.RecordWebhookExhausted(ctx, n.Event)

	if d.dlq != nil {
		var firstAttempt time.Time
		if n.LastAttemptAt != nil {
			firstAttempt = *n.LastAttemptAt
		}
		msg := &retry.DLQMessage{
			ID:             n.ID,
			OriginalTopic:  DeliveryTopic,
			OriginalKey:    n.TransactionID,
			Payload:        n.Payload,
			Error:          n.LastError,
			ErrorCode:      strconv.Itoa(n.LastStatusCode),
			Attempts:       n.Attempts,
			FirstAttemptAt: firstAttempt,
			LastAttemptAt:  firstAttempt,
			Metadata: map[string]interface{}{
				"merchant_id":    n.MerchantID,
				"transaction_id": n.TransactionID,
				"event":          n.Event,
				"url":            n.URL,
			},
		}
		if err := d.dlq.PublishToDLQ(ctx, msg); err != nil {
			d.log.Error("failed to publish exhausted notification to dlq",
				zap.String("notification_id", n.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// merchantTimeout looks up the merchant's configured callback timeout,
// falling back to the default when the merchant cannot be loaded
func (d *Dispatcher) merchantTimeout(ctx context.Context, merchantID string) time.Duration {
	merchant, err := d.merchants.GetByID(ctx, merchantID)
	if err != nil {
		return domain.DefaultWebhookTimeout
	}
	return merchant.WebhookTimeoutOrDefault()
}

// acquireLock takes a short-lived per-notification dispatch lock so two
// worker processes do not attempt the same notification simultaneously
func (d *Dispatcher) acquireLock(ctx context.Context, id string, ttl time.Duration) (func(), bool) {
	if d.locks == nil {
		return func() {}, true
	}

	key := "webhook:dispatch:" + id
	ok, err := d.locks.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		// Redis being down must not stall deliveries; the repository claim
		// still guarantees single delivery per attempt
		d.log.Warn("dispatch lock unavailable", zap.String("notification_id", id), zap.Error(err))
		return func() {}, true
	}
	if !ok {
		return func() {}, false
	}
	return func() { d.locks.Del(context.WithoutCancel(ctx), key) }, true
}
