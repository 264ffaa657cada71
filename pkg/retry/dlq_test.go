package retry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type capturingPublisher struct {
	topic   string
	key     string
	data    interface{}
	headers map[string]string
	err     error
}

func (p *capturingPublisher) PublishJSON(ctx context.Context, topic string, key string, data interface{}, headers map[string]string) error {
	p.topic = topic
	p.key = key
	p.data = data
	p.headers = headers
	return p.err
}

func TestGetDLQTopicSuffixAndPrefix(t *testing.T) {
	suffix := NewKafkaDLQPublisher(&capturingPublisher{}, nil)
	if got := suffix.GetDLQTopic("webhooks.delivery"); got != "webhooks.delivery.dlq" {
		t.Errorf("expected suffixed topic, got %q", got)
	}

	prefix := NewKafkaDLQPublisher(&capturingPublisher{}, &DLQConfig{
		TopicPrefix: "dlq.",
		UsePrefix:   true,
	})
	if got := prefix.GetDLQTopic("webhooks.delivery"); got != "dlq.webhooks.delivery" {
		t.Errorf("expected prefixed topic, got %q", got)
	}
}

func TestPublishToDLQStampsAndRoutes(t *testing.T) {
	capture := &capturingPublisher{}
	cfg := DefaultDLQConfig()
	cfg.Source = "scheduler-worker"
	pub := NewKafkaDLQPublisher(capture, cfg)

	msg := &DLQMessage{
		ID:            "ntf_1",
		OriginalTopic: "webhooks.delivery",
		OriginalKey:   "mer_1",
		Payload:       json.RawMessage(`{"event":"transaction.failed"}`),
		Headers:       map[string]string{"event": "transaction.failed"},
		Error:         "max attempts reached",
		Attempts:      5,
	}
	if err := pub.PublishToDLQ(context.Background(), msg); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if capture.topic != "webhooks.delivery.dlq" {
		t.Errorf("expected DLQ topic, got %q", capture.topic)
	}
	if capture.key != "mer_1" {
		t.Errorf("expected original key, got %q", capture.key)
	}
	if msg.Source != "scheduler-worker" {
		t.Errorf("expected source stamped on message, got %q", msg.Source)
	}
	if msg.MovedToDLQAt.IsZero() || time.Since(msg.MovedToDLQAt) > time.Minute {
		t.Errorf("expected fresh moved_to_dlq_at, got %v", msg.MovedToDLQAt)
	}
	if capture.headers["error"] != "max attempts reached" {
		t.Errorf("expected error header, got %q", capture.headers["error"])
	}
	if capture.headers["attempts"] != "5" {
		t.Errorf("expected attempts header, got %q", capture.headers["attempts"])
	}
	if capture.headers["original_event"] != "transaction.failed" {
		t.Errorf("expected original header preserved with prefix, got %v", capture.headers)
	}
}

func TestPublishToDLQNilMessage(t *testing.T) {
	pub := NewKafkaDLQPublisher(&capturingPublisher{}, nil)
	if err := pub.PublishToDLQ(context.Background(), nil); err == nil {
		t.Error("expected error for nil message")
	}
}

func TestPublishToDLQPropagatesProducerError(t *testing.T) {
	capture := &capturingPublisher{err: errors.New("broker unreachable")}
	pub := NewKafkaDLQPublisher(capture, nil)

	err := pub.PublishToDLQ(context.Background(), &DLQMessage{
		ID:            "ntf_2",
		OriginalTopic: "webhooks.delivery",
	})
	if err == nil || err.Error() != "broker unreachable" {
		t.Errorf("expected producer error surfaced, got %v", err)
	}
}

func TestNoOpDLQPublisher(t *testing.T) {
	pub := NewNoOpDLQPublisher()

	if err := pub.PublishToDLQ(context.Background(), &DLQMessage{ID: "ntf_3"}); err != nil {
		t.Errorf("no-op publish must never fail: %v", err)
	}
	if got := pub.GetDLQTopic("webhooks.delivery"); got != "webhooks.delivery.dlq" {
		t.Errorf("expected standard suffix from no-op publisher, got %q", got)
	}
}
