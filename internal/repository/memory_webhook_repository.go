package repository

import (
	"context"
	"sync"
	"time"

	"github.com/pagforte/payment-gateway/internal/domain"
)

// MemoryWebhookRepository implements WebhookRepository using in-memory
// storage. This is useful for testing and development.
type MemoryWebhookRepository struct {
	notifications map[string]*domain.WebhookNotification
	byTransaction map[string][]string // transactionID -> []notificationID
	mu            sync.RWMutex
}

// NewMemoryWebhookRepository creates a new in-memory webhook repository
func NewMemoryWebhookRepository() *MemoryWebhookRepository {
	return &MemoryWebhookRepository{
		notifications: make(map[string]*domain.WebhookNotification),
		byTransaction: make(map[string][]string),
	}
}

// Create creates a new notification record
func (r *MemoryWebhookRepository) Create(ctx context.Context, n *domain.WebhookNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.notifications[n.ID]; exists {
		return domain.ErrNotificationExists
	}

	// Clone to avoid external modifications
	cp := *n
	r.notifications[n.ID] = &cp
	r.byTransaction[n.TransactionID] = append(r.byTransaction[n.TransactionID], n.ID)

	return nil
}

// GetByID retrieves a notification by its ID
func (r *MemoryWebhookRepository) GetByID(ctx context.Context, id string) (*domain.WebhookNotification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, exists := r.notifications[id]
	if !exists {
		return nil, domain.ErrNotificationNotFound
	}

	cp := *n
	return &cp, nil
}

// GetByTransactionID retrieves all notifications for a transaction
func (r *MemoryWebhookRepository) GetByTransactionID(ctx context.Context, transactionID string) ([]*domain.WebhookNotification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, exists := r.byTransaction[transactionID]
	if !exists {
		return []*domain.WebhookNotification{}, nil
	}

	result := make([]*domain.WebhookNotification, 0, len(ids))
	for _, id := range ids {
		if n, ok := r.notifications[id]; ok {
			cp := *n
			result = append(result, &cp)
		}
	}

	return result, nil
}

// Update updates an existing notification
func (r *MemoryWebhookRepository) Update(ctx context.Context, n *domain.WebhookNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.notifications[n.ID]; !exists {
		return domain.ErrNotificationNotFound
	}

	cp := *n
	r.notifications[n.ID] = &cp

	return nil
}

// ClaimSending atomically transitions the notification to sending. The
// state comparison happens under the write lock so two workers sweeping
// the same notification cannot both claim it.
func (r *MemoryWebhookRepository) ClaimSending(ctx context.Context, id string, from domain.DeliveryState) (*domain.WebhookNotification, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, exists := r.notifications[id]
	if !exists {
		return nil, false, domain.ErrNotificationNotFound
	}
	if n.State != from {
		return nil, false, nil
	}
	if err := n.MarkSending(); err != nil {
		return nil, false, nil
	}

	cp := *n
	return &cp, true, nil
}

// ListDue returns pending notifications whose dispatch time has passed
func (r *MemoryWebhookRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.WebhookNotification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.WebhookNotification
	for _, n := range r.notifications {
		if !n.IsDue(now) {
			continue
		}
		cp := *n
		result = append(result, &cp)
		if limit > 0 && len(result) >= limit {
			break
		}
	}

	return result, nil
}

// ListRetryable returns failed, non-exhausted notifications whose backoff
// has elapsed
func (r *MemoryWebhookRepository) ListRetryable(ctx context.Context, now time.Time, limit int) ([]*domain.WebhookNotification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.WebhookNotification
	for _, n := range r.notifications {
		if !n.IsRetryDue(now) {
			continue
		}
		cp := *n
		result = append(result, &cp)
		if limit > 0 && len(result) >= limit {
			break
		}
	}

	return result, nil
}

// PurgeSucceededBefore deletes delivered notifications older than the cutoff
func (r *MemoryWebhookRepository) PurgeSucceededBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var purged int64
	for id, n := range r.notifications {
		if n.State != domain.DeliveryStateSuccess {
			continue
		}
		if n.SucceededAt == nil || !n.SucceededAt.Before(cutoff) {
			continue
		}
		delete(r.notifications, id)
		purged++
	}

	return purged, nil
}

// Clear clears all data (for testing)
func (r *MemoryWebhookRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.notifications = make(map[string]*domain.WebhookNotification)
	r.byTransaction = make(map[string][]string)
}

// Count returns the total number of notifications (for testing)
func (r *MemoryWebhookRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.notifications)
}
