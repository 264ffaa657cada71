package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DeliveryState represents the delivery state of a webhook notification
type DeliveryState string

const (
	DeliveryStatePending DeliveryState = "pending"
	DeliveryStateSending DeliveryState = "sending"
	DeliveryStateSuccess DeliveryState = "success"
	DeliveryStateFailed  DeliveryState = "failed"
)

// DefaultMaxDeliveryAttempts is the default attempt ceiling per notification
const DefaultMaxDeliveryAttempts = 5

// WebhookNotification is one signed outbound callback for a transaction
// status event. It is delivered at-least-once with bounded retries.
type WebhookNotification struct {
	ID            string `json:"id"`
	MerchantID    string `json:"merchant_id"`
	TransactionID string `json:"transaction_id"`
	Event         string `json:"event"`
	URL           string `json:"url"`
	Payload       []byte `json:"payload"`
	Signature     string `json:"signature,omitempty"`

	State       DeliveryState `json:"state"`
	Attempts    int           `json:"attempts"`
	MaxAttempts int           `json:"max_attempts"`
	// Exhausted marks a failed notification that will not be retried again
	Exhausted bool `json:"exhausted"`

	NextAttemptAt    *time.Time `json:"next_attempt_at,omitempty"`
	LastStatusCode   int        `json:"last_status_code,omitempty"`
	LastResponseBody string     `json:"last_response_body,omitempty"`
	LastError        string     `json:"last_error,omitempty"`

	CreatedAt     time.Time  `json:"created_at"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	SucceededAt   *time.Time `json:"succeeded_at,omitempty"`
}

// NewWebhookNotification creates a pending notification ready for dispatch
func NewWebhookNotification(merchantID, transactionID, event, url string, payload []byte, signature string) *WebhookNotification {
	return &WebhookNotification{
		ID:            uuid.New().String(),
		MerchantID:    merchantID,
		TransactionID: transactionID,
		Event:         event,
		URL:           url,
		Payload:       payload,
		Signature:     signature,
		State:         DeliveryStatePending,
		MaxAttempts:   DefaultMaxDeliveryAttempts,
		CreatedAt:     time.Now().UTC(),
	}
}

// IsTerminal reports whether no further delivery attempts will occur
func (n *WebhookNotification) IsTerminal() bool {
	return n.State == DeliveryStateSuccess || (n.State == DeliveryStateFailed && n.Exhausted)
}

// HasAttemptsLeft reports whether another delivery attempt is allowed
func (n *WebhookNotification) HasAttemptsLeft() bool {
	return n.Attempts < n.MaxAttempts
}

// IsDue reports whether a pending notification should be dispatched now
func (n *WebhookNotification) IsDue(now time.Time) bool {
	if n.State != DeliveryStatePending {
		return false
	}
	return n.NextAttemptAt == nil || !n.NextAttemptAt.After(now)
}

// IsRetryDue reports whether a failed, non-exhausted notification has
// passed its backoff and should be re-dispatched
func (n *WebhookNotification) IsRetryDue(now time.Time) bool {
	if n.State != DeliveryStateFailed || n.Exhausted || !n.HasAttemptsLeft() {
		return false
	}
	return n.NextAttemptAt == nil || !n.NextAttemptAt.After(now)
}

// MarkSending transitions the notification to sending and counts the attempt
func (n *WebhookNotification) MarkSending() error {
	if n.IsTerminal() {
		return ErrNotificationTerminal
	}
	if n.State != DeliveryStatePending && n.State != DeliveryStateFailed {
		return errors.New("notification must be pending or failed to start sending")
	}
	if !n.HasAttemptsLeft() {
		return errors.New("notification has no attempts left")
	}
	now := time.Now().UTC()
	n.State = DeliveryStateSending
	n.Attempts++
	n.NextAttemptAt = nil
	n.LastAttemptAt = &now
	return nil
}

// MarkSuccess transitions the notification to its terminal success state
func (n *WebhookNotification) MarkSuccess(statusCode int) error {
	if n.State != DeliveryStateSending {
		return errors.New("notification must be sending to succeed")
	}
	now := time.Now().UTC()
	n.State = DeliveryStateSuccess
	n.LastStatusCode = statusCode
	n.SucceededAt = &now
	return nil
}

// RetryDelay returns the exponential backoff before the given attempt
// number is retried: 1, 2, 4, 8, 16 minutes for attempts 1..5.
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(1<<(attempt-1)) * time.Minute
}

// ScheduleRetry records a retryable failure. The notification moves to
// failed with the next attempt scheduled after exponential backoff; the
// failed sweep picks it up once the backoff elapses.
func (n *WebhookNotification) ScheduleRetry(statusCode int, responseBody, errMsg string) error {
	if n.State != DeliveryStateSending {
		return errors.New("notification must be sending to schedule a retry")
	}
	if !n.HasAttemptsLeft() {
		return errors.New("notification has no attempts left, mark it exhausted instead")
	}
	next := time.Now().UTC().Add(RetryDelay(n.Attempts))
	n.State = DeliveryStateFailed
	n.NextAttemptAt = &next
	n.LastStatusCode = statusCode
	n.LastResponseBody = responseBody
	n.LastError = errMsg
	return nil
}

// MarkExhausted records a terminal failure after max attempts
func (n *WebhookNotification) MarkExhausted(statusCode int, responseBody, errMsg string) error {
	if n.State == DeliveryStateSuccess {
		return ErrNotificationTerminal
	}
	n.State = DeliveryStateFailed
	n.Exhausted = true
	n.NextAttemptAt = nil
	if statusCode != 0 {
		n.LastStatusCode = statusCode
	}
	if responseBody != "" {
		n.LastResponseBody = responseBody
	}
	if errMsg != "" {
		n.LastError = errMsg
	}
	return nil
}
