package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/metrics"
	"github.com/pagforte/payment-gateway/internal/repository"
	"github.com/pagforte/payment-gateway/pkg/logger"
)

// TransactionSnapshot is the transaction view embedded in webhook payloads.
// Card data stays masked; the payload never carries more than brand and
// last four digits.
type TransactionSnapshot struct {
	ID                 string          `json:"id"`
	Status             string          `json:"status"`
	Amount             int64           `json:"amount"`
	Currency           string          `json:"currency"`
	Installments       int             `json:"installments"`
	ProcessorReference string          `json:"processor_reference,omitempty"`
	AuthorizationCode  string          `json:"authorization_code,omitempty"`
	CardBrand          string          `json:"card_brand,omitempty"`
	CardLastFour       string          `json:"card_last_four,omitempty"`
	Customer           domain.Customer `json:"customer,omitempty"`
	ErrorCode          string          `json:"error_code,omitempty"`
	ErrorMessage       string          `json:"error_message,omitempty"`
}

// Payload is the JSON body delivered to the merchant's callback URL
type Payload struct {
	Event       string              `json:"event"`
	Timestamp   time.Time           `json:"timestamp"`
	Transaction TransactionSnapshot `json:"transaction"`
}

// Sign computes the hex HMAC-SHA256 signature of the payload bytes.
// The signature covers the exact bytes sent on the wire.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether the signature matches the payload.
// Comparison is constant-time.
func VerifySignature(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}

// EventForStatus maps a transaction status to its webhook event name
func EventForStatus(status domain.TransactionStatus) string {
	return "transaction." + string(status)
}

// Composer builds signed webhook notifications for transaction status
// events and enqueues them for delivery
type Composer struct {
	merchants repository.MerchantRepository
	webhooks  repository.WebhookRepository
	log       *logger.Logger
}

// NewComposer creates a webhook composer
func NewComposer(merchants repository.MerchantRepository, webhooks repository.WebhookRepository, log *logger.Logger) *Composer {
	return &Composer{
		merchants: merchants,
		webhooks:  webhooks,
		log:       log,
	}
}

// Compose builds and persists a pending notification for the transaction
// event. A merchant without a callback URL gets no notification; that is
// a normal outcome, not an error, and Compose returns (nil, nil).
// A merchant without a signing secret gets the payload unsigned.
func (c *Composer) Compose(ctx context.Context, tx *domain.Transaction, event string) (*domain.WebhookNotification, error) {
	merchant, err := c.merchants.GetByID(ctx, tx.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load merchant %s: %w", tx.MerchantID, err)
	}

	if merchant.CallbackURL == "" {
		c.log.Debug("merchant has no callback url, skipping notification",
			zap.String("merchant_id", merchant.ID),
			zap.String("transaction_id", tx.ID),
			zap.String("event", event),
		)
		return nil, nil
	}

	payload := Payload{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Transaction: TransactionSnapshot{
			ID:                 tx.ID,
			Status:             string(tx.Status),
			Amount:             tx.Amount,
			Currency:           tx.Currency,
			Installments:       tx.Installments,
			ProcessorReference: tx.ProcessorReference,
			AuthorizationCode:  tx.AuthorizationCode,
			CardBrand:          tx.CardBrand,
			CardLastFour:       tx.CardLastFour,
			Customer:           tx.Customer,
			ErrorCode:          tx.ErrorCode,
			ErrorMessage:       tx.ErrorMessage,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	var signature string
	if merchant.WebhookSecret != "" {
		signature = Sign(body, merchant.WebhookSecret)
	}

	n := domain.NewWebhookNotification(merchant.ID, tx.ID, event, merchant.CallbackURL, body, signature)
	if err := c.webhooks.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to store webhook notification: %w", err)
	}

	c.log.Info("webhook notification composed",
		zap.String("notification_id", n.ID),
		zap.String("transaction_id", tx.ID),
		zap.String("event", event),
	)
	metrics.RecordWebhookComposed(ctx, event)

	return n, nil
}
