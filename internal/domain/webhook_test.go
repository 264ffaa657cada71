package domain

import (
	"errors"
	"testing"
	"time"
)

func pendingNotification() *WebhookNotification {
	return NewWebhookNotification("mer_1", "tx_1", "transaction.authorized",
		"https://loja.example.com/webhooks", []byte(`{}`), "sig")
}

func TestNewWebhookNotificationDefaults(t *testing.T) {
	n := pendingNotification()
	if n.State != DeliveryStatePending {
		t.Errorf("State = %s, want pending", n.State)
	}
	if n.MaxAttempts != DefaultMaxDeliveryAttempts {
		t.Errorf("MaxAttempts = %d, want %d", n.MaxAttempts, DefaultMaxDeliveryAttempts)
	}
	if n.Attempts != 0 || n.Exhausted {
		t.Error("new notification must start with zero attempts")
	}
}

func TestDeliveryLifecycleSuccess(t *testing.T) {
	n := pendingNotification()

	if err := n.MarkSending(); err != nil {
		t.Fatalf("MarkSending: %v", err)
	}
	if n.State != DeliveryStateSending || n.Attempts != 1 {
		t.Errorf("after MarkSending: %s attempts=%d", n.State, n.Attempts)
	}

	if err := n.MarkSuccess(200); err != nil {
		t.Fatalf("MarkSuccess: %v", err)
	}
	if !n.IsTerminal() || n.SucceededAt == nil {
		t.Error("success must be terminal with timestamp")
	}

	if err := n.MarkSending(); !errors.Is(err, ErrNotificationTerminal) {
		t.Errorf("MarkSending after success = %v, want ErrNotificationTerminal", err)
	}
}

func TestScheduleRetryBacksOff(t *testing.T) {
	n := pendingNotification()
	_ = n.MarkSending()

	before := time.Now().UTC()
	if err := n.ScheduleRetry(502, "bad gateway", "upstream error"); err != nil {
		t.Fatalf("ScheduleRetry: %v", err)
	}
	if n.State != DeliveryStateFailed || n.Exhausted {
		t.Errorf("after retry: %s exhausted=%v", n.State, n.Exhausted)
	}
	if n.NextAttemptAt == nil {
		t.Fatal("expected next attempt time")
	}
	delay := n.NextAttemptAt.Sub(before)
	if delay < 59*time.Second || delay > 61*time.Second {
		t.Errorf("first retry delay = %v, want ~1m", delay)
	}
	if n.IsTerminal() {
		t.Error("retryable failure is not terminal")
	}
	if n.IsRetryDue(time.Now()) {
		t.Error("retry must not be due before the backoff elapses")
	}
	if !n.IsRetryDue(n.NextAttemptAt.Add(time.Second)) {
		t.Error("retry must be due after the backoff elapses")
	}
}

func TestRetryDelayDoubles(t *testing.T) {
	want := map[int]time.Duration{
		1: time.Minute,
		2: 2 * time.Minute,
		3: 4 * time.Minute,
		4: 8 * time.Minute,
		5: 16 * time.Minute,
	}
	for attempt, expected := range want {
		if got := RetryDelay(attempt); got != expected {
			t.Errorf("RetryDelay(%d) = %v, want %v", attempt, got, expected)
		}
	}
}

func TestMarkExhaustedIsTerminal(t *testing.T) {
	n := pendingNotification()
	n.Attempts = n.MaxAttempts
	n.State = DeliveryStateFailed

	if err := n.MarkExhausted(500, "err", "gave up"); err != nil {
		t.Fatalf("MarkExhausted: %v", err)
	}
	if !n.IsTerminal() || !n.Exhausted {
		t.Error("exhausted notification must be terminal")
	}
	if n.IsRetryDue(time.Now().Add(time.Hour)) {
		t.Error("exhausted notification is never due")
	}
}

func TestMarkSendingRespectsAttemptCeiling(t *testing.T) {
	n := pendingNotification()
	n.Attempts = n.MaxAttempts
	if err := n.MarkSending(); err == nil {
		t.Error("MarkSending past the attempt ceiling must fail")
	}
}

func TestIsDue(t *testing.T) {
	n := pendingNotification()
	now := time.Now().UTC()

	if !n.IsDue(now) {
		t.Error("fresh pending notification with no schedule is due")
	}

	future := now.Add(time.Hour)
	n.NextAttemptAt = &future
	if n.IsDue(now) {
		t.Error("notification scheduled in the future is not due")
	}

	n.State = DeliveryStateSending
	n.NextAttemptAt = nil
	if n.IsDue(now) {
		t.Error("sending notification is not due")
	}
}
