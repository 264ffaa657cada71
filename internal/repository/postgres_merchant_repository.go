package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/pkg/database"
)

// PostgresMerchantRepository implements MerchantRepository using PostgreSQL
type PostgresMerchantRepository struct {
	db *database.PostgresDB
}

// NewPostgresMerchantRepository creates a new PostgreSQL merchant repository
func NewPostgresMerchantRepository(db *database.PostgresDB) *PostgresMerchantRepository {
	return &PostgresMerchantRepository{db: db}
}

// merchantColumns defines the columns to select for merchant queries
const merchantColumns = `
	id, name, callback_url, webhook_secret, webhook_timeout_ms,
	monthly_ceiling, volume_this_month, created_at, updated_at
`

// Create creates a new merchant record
func (r *PostgresMerchantRepository) Create(ctx context.Context, m *domain.Merchant) error {
	query := `
		INSERT INTO merchants (
			id, name, callback_url, webhook_secret, webhook_timeout_ms,
			monthly_ceiling, volume_this_month, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Pool().Exec(ctx, query,
		m.ID,
		m.Name,
		nullString(m.CallbackURL),
		nullString(m.WebhookSecret),
		m.WebhookTimeout.Milliseconds(),
		m.MonthlyCeiling,
		m.VolumeThisMonth,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create merchant: %w", err)
	}

	return nil
}

// GetByID retrieves a merchant by its ID
func (r *PostgresMerchantRepository) GetByID(ctx context.Context, id string) (*domain.Merchant, error) {
	query := `SELECT ` + merchantColumns + ` FROM merchants WHERE id = $1`

	var m domain.Merchant
	var callbackURL, webhookSecret *string
	var webhookTimeoutMs int64

	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.Name,
		&callbackURL,
		&webhookSecret,
		&webhookTimeoutMs,
		&m.MonthlyCeiling,
		&m.VolumeThisMonth,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrMerchantNotFound
		}
		return nil, fmt.Errorf("failed to scan merchant: %w", err)
	}

	if callbackURL != nil {
		m.CallbackURL = *callbackURL
	}
	if webhookSecret != nil {
		m.WebhookSecret = *webhookSecret
	}
	m.WebhookTimeout = time.Duration(webhookTimeoutMs) * time.Millisecond

	return &m, nil
}

// Update updates an existing merchant
func (r *PostgresMerchantRepository) Update(ctx context.Context, m *domain.Merchant) error {
	query := `
		UPDATE merchants
		SET name = $2,
		    callback_url = $3,
		    webhook_secret = $4,
		    webhook_timeout_ms = $5,
		    monthly_ceiling = $6,
		    volume_this_month = $7,
		    updated_at = $8
		WHERE id = $1`

	result, err := r.db.Pool().Exec(ctx, query,
		m.ID,
		m.Name,
		nullString(m.CallbackURL),
		nullString(m.WebhookSecret),
		m.WebhookTimeout.Milliseconds(),
		m.MonthlyCeiling,
		m.VolumeThisMonth,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update merchant: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrMerchantNotFound
	}

	return nil
}

// AddMonthlyVolume adds to the merchant's monthly volume counter
func (r *PostgresMerchantRepository) AddMonthlyVolume(ctx context.Context, merchantID string, amount int64) error {
	query := `
		UPDATE merchants
		SET volume_this_month = volume_this_month + $2,
		    updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.Pool().Exec(ctx, query, merchantID, amount)
	if err != nil {
		return fmt.Errorf("failed to add merchant volume: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrMerchantNotFound
	}

	return nil
}

// ResetMonthlyVolumes zeroes every merchant's monthly volume counter
func (r *PostgresMerchantRepository) ResetMonthlyVolumes(ctx context.Context) error {
	query := `UPDATE merchants SET volume_this_month = 0, updated_at = NOW()`

	if _, err := r.db.Pool().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to reset merchant volumes: %w", err)
	}

	return nil
}
