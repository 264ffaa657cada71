package repository

import (
	"context"
	"time"

	"github.com/pagforte/payment-gateway/internal/domain"
)

// WebhookRepository defines the interface for webhook notification data access
type WebhookRepository interface {
	// Create creates a new notification record
	Create(ctx context.Context, n *domain.WebhookNotification) error

	// GetByID retrieves a notification by its ID
	GetByID(ctx context.Context, id string) (*domain.WebhookNotification, error)

	// GetByTransactionID retrieves all notifications for a transaction
	GetByTransactionID(ctx context.Context, transactionID string) ([]*domain.WebhookNotification, error)

	// Update updates an existing notification
	Update(ctx context.Context, n *domain.WebhookNotification) error

	// ClaimSending atomically transitions the notification from the given
	// state to sending, counting the attempt. Returns the claimed
	// notification, or claimed=false when another worker got there first
	// or the state no longer matches.
	ClaimSending(ctx context.Context, id string, from domain.DeliveryState) (*domain.WebhookNotification, bool, error)

	// ListDue returns pending notifications whose dispatch time has passed
	ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.WebhookNotification, error)

	// ListRetryable returns failed, non-exhausted notifications whose
	// backoff has elapsed
	ListRetryable(ctx context.Context, now time.Time, limit int) ([]*domain.WebhookNotification, error)

	// PurgeSucceededBefore deletes delivered notifications older than the
	// cutoff and returns how many were removed
	PurgeSucceededBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
