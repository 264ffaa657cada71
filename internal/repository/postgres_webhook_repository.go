package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/pkg/database"
)

// PostgresWebhookRepository implements WebhookRepository using PostgreSQL
type PostgresWebhookRepository struct {
	db *database.PostgresDB
}

// NewPostgresWebhookRepository creates a new PostgreSQL webhook repository
func NewPostgresWebhookRepository(db *database.PostgresDB) *PostgresWebhookRepository {
	return &PostgresWebhookRepository{db: db}
}

// Create creates a new notification record
func (r *PostgresWebhookRepository) Create(ctx context.Context, n *domain.WebhookNotification) error {
	query := `
		INSERT INTO webhook_notifications (
			id, merchant_id, transaction_id, event, url, payload, signature,
			state, attempts, max_attempts, exhausted,
			next_attempt_at, last_status_code, last_response_body, last_error,
			created_at, last_attempt_at, succeeded_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)`

	_, err := r.db.Pool().Exec(ctx, query,
		n.ID,
		n.MerchantID,
		n.TransactionID,
		n.Event,
		n.URL,
		n.Payload,
		nullString(n.Signature),
		string(n.State),
		n.Attempts,
		n.MaxAttempts,
		n.Exhausted,
		n.NextAttemptAt,
		n.LastStatusCode,
		nullString(n.LastResponseBody),
		nullString(n.LastError),
		n.CreatedAt,
		n.LastAttemptAt,
		n.SucceededAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			return domain.ErrNotificationExists
		}
		return fmt.Errorf("failed to create webhook notification: %w", err)
	}

	return nil
}

// webhookColumns defines the columns to select for notification queries
const webhookColumns = `
	id, merchant_id, transaction_id, event, url, payload, signature,
	state, attempts, max_attempts, exhausted,
	next_attempt_at, last_status_code, last_response_body, last_error,
	created_at, last_attempt_at, succeeded_at
`

// GetByID retrieves a notification by its ID
func (r *PostgresWebhookRepository) GetByID(ctx context.Context, id string) (*domain.WebhookNotification, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhook_notifications WHERE id = $1`
	return scanNotification(r.db.Pool().QueryRow(ctx, query, id))
}

// GetByTransactionID retrieves all notifications for a transaction
func (r *PostgresWebhookRepository) GetByTransactionID(ctx context.Context, transactionID string) ([]*domain.WebhookNotification, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhook_notifications WHERE transaction_id = $1 ORDER BY created_at`
	return r.queryNotifications(ctx, query, transactionID)
}

// Update updates an existing notification
func (r *PostgresWebhookRepository) Update(ctx context.Context, n *domain.WebhookNotification) error {
	query := `
		UPDATE webhook_notifications
		SET state = $2,
		    attempts = $3,
		    exhausted = $4,
		    next_attempt_at = $5,
		    last_status_code = $6,
		    last_response_body = $7,
		    last_error = $8,
		    last_attempt_at = $9,
		    succeeded_at = $10
		WHERE id = $1`

	result, err := r.db.Pool().Exec(ctx, query,
		n.ID,
		string(n.State),
		n.Attempts,
		n.Exhausted,
		n.NextAttemptAt,
		n.LastStatusCode,
		nullString(n.LastResponseBody),
		nullString(n.LastError),
		n.LastAttemptAt,
		n.SucceededAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update webhook notification: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}

	return nil
}

// ClaimSending atomically transitions the notification to sending. The
// state comparison is part of the UPDATE predicate so two workers cannot
// both claim the same notification.
func (r *PostgresWebhookRepository) ClaimSending(ctx context.Context, id string, from domain.DeliveryState) (*domain.WebhookNotification, bool, error) {
	query := `
		UPDATE webhook_notifications
		SET state = 'sending',
		    attempts = attempts + 1,
		    next_attempt_at = NULL,
		    last_attempt_at = NOW()
		WHERE id = $1 AND state = $2 AND attempts < max_attempts
		RETURNING ` + webhookColumns

	n, err := scanNotification(r.db.Pool().QueryRow(ctx, query, id, string(from)))
	if err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return n, true, nil
}

// ListDue returns pending notifications whose dispatch time has passed
func (r *PostgresWebhookRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.WebhookNotification, error) {
	query := `SELECT ` + webhookColumns + `
		FROM webhook_notifications
		WHERE state = 'pending' AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
		ORDER BY created_at
		LIMIT $2`
	return r.queryNotifications(ctx, query, now, limit)
}

// ListRetryable returns failed, non-exhausted notifications whose backoff
// has elapsed
func (r *PostgresWebhookRepository) ListRetryable(ctx context.Context, now time.Time, limit int) ([]*domain.WebhookNotification, error) {
	query := `SELECT ` + webhookColumns + `
		FROM webhook_notifications
		WHERE state = 'failed' AND NOT exhausted AND attempts < max_attempts
		  AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
		ORDER BY next_attempt_at
		LIMIT $2`
	return r.queryNotifications(ctx, query, now, limit)
}

// PurgeSucceededBefore deletes delivered notifications older than the cutoff
func (r *PostgresWebhookRepository) PurgeSucceededBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM webhook_notifications WHERE state = 'success' AND succeeded_at < $1`

	result, err := r.db.Pool().Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge webhook notifications: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *PostgresWebhookRepository) queryNotifications(ctx context.Context, query string, args ...any) ([]*domain.WebhookNotification, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*domain.WebhookNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate webhook notifications: %w", err)
	}

	return notifications, nil
}

// scanNotification scans a single notification from a row
func scanNotification(row pgx.Row) (*domain.WebhookNotification, error) {
	var n domain.WebhookNotification
	var state string
	var signature, lastResponseBody, lastError *string

	err := row.Scan(
		&n.ID,
		&n.MerchantID,
		&n.TransactionID,
		&n.Event,
		&n.URL,
		&n.Payload,
		&signature,
		&state,
		&n.Attempts,
		&n.MaxAttempts,
		&n.Exhausted,
		&n.NextAttemptAt,
		&n.LastStatusCode,
		&lastResponseBody,
		&lastError,
		&n.CreatedAt,
		&n.LastAttemptAt,
		&n.SucceededAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to scan webhook notification: %w", err)
	}

	n.State = domain.DeliveryState(state)

	if signature != nil {
		n.Signature = *signature
	}
	if lastResponseBody != nil {
		n.LastResponseBody = *lastResponseBody
	}
	if lastError != nil {
		n.LastError = *lastError
	}

	return &n, nil
}
