package repository

import (
	"context"

	"github.com/pagforte/payment-gateway/internal/domain"
)

// MerchantRepository defines the interface for merchant data access
type MerchantRepository interface {
	// Create creates a new merchant record
	Create(ctx context.Context, m *domain.Merchant) error

	// GetByID retrieves a merchant by its ID
	GetByID(ctx context.Context, id string) (*domain.Merchant, error)

	// Update updates an existing merchant
	Update(ctx context.Context, m *domain.Merchant) error

	// AddMonthlyVolume adds a completed transaction's amount to the
	// merchant's monthly volume counter
	AddMonthlyVolume(ctx context.Context, merchantID string, amount int64) error

	// ResetMonthlyVolumes zeroes every merchant's monthly volume counter
	ResetMonthlyVolumes(ctx context.Context) error
}
