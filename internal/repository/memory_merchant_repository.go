package repository

import (
	"context"
	"sync"
	"time"

	"github.com/pagforte/payment-gateway/internal/domain"
)

// MemoryMerchantRepository implements MerchantRepository using in-memory
// storage. This is useful for testing and development.
type MemoryMerchantRepository struct {
	merchants map[string]*domain.Merchant
	mu        sync.RWMutex
}

// NewMemoryMerchantRepository creates a new in-memory merchant repository
func NewMemoryMerchantRepository() *MemoryMerchantRepository {
	return &MemoryMerchantRepository{
		merchants: make(map[string]*domain.Merchant),
	}
}

// Create creates a new merchant record
func (r *MemoryMerchantRepository) Create(ctx context.Context, m *domain.Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *m
	r.merchants[m.ID] = &cp
	return nil
}

// GetByID retrieves a merchant by its ID
func (r *MemoryMerchantRepository) GetByID(ctx context.Context, id string) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.merchants[id]
	if !exists {
		return nil, domain.ErrMerchantNotFound
	}

	cp := *m
	return &cp, nil
}

// Update updates an existing merchant
func (r *MemoryMerchantRepository) Update(ctx context.Context, m *domain.Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.merchants[m.ID]; !exists {
		return domain.ErrMerchantNotFound
	}

	cp := *m
	r.merchants[m.ID] = &cp
	return nil
}

// AddMonthlyVolume adds to the merchant's monthly volume counter
func (r *MemoryMerchantRepository) AddMonthlyVolume(ctx context.Context, merchantID string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.merchants[merchantID]
	if !exists {
		return domain.ErrMerchantNotFound
	}

	m.VolumeThisMonth += amount
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// ResetMonthlyVolumes zeroes every merchant's monthly volume counter
func (r *MemoryMerchantRepository) ResetMonthlyVolumes(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, m := range r.merchants {
		m.VolumeThisMonth = 0
		m.UpdatedAt = now
	}
	return nil
}

// Clear clears all data (for testing)
func (r *MemoryMerchantRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.merchants = make(map[string]*domain.Merchant)
}
