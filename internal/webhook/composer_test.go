package webhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/repository"
	"github.com/pagforte/payment-gateway/pkg/logger"
)

func newComposerFixture(t *testing.T, merchant *domain.Merchant) (*Composer, *repository.MemoryWebhookRepository) {
	t.Helper()
	merchants := repository.NewMemoryMerchantRepository()
	require.NoError(t, merchants.Create(context.Background(), merchant))
	webhooks := repository.NewMemoryWebhookRepository()
	return NewComposer(merchants, webhooks, logger.Get()), webhooks
}

func authorizedTransaction(t *testing.T, merchantID string) *domain.Transaction {
	t.Helper()
	tx, err := domain.NewTransaction(merchantID, 12990, "BRL", 3)
	require.NoError(t, err)
	tx.SetCardInfo("visa", "4242")
	require.NoError(t, tx.Authorize("cielo", "ref-123", "auth-456"))
	return tx
}

func TestComposeCreatesSignedPendingNotification(t *testing.T) {
	merchant := &domain.Merchant{
		ID:            "mer_1",
		Name:          "Loja Um",
		CallbackURL:   "https://loja.example.com/webhooks",
		WebhookSecret: "s3cret",
	}
	composer, webhooks := newComposerFixture(t, merchant)
	tx := authorizedTransaction(t, merchant.ID)

	n, err := composer.Compose(context.Background(), tx, EventForStatus(tx.Status))
	require.NoError(t, err)
	require.NotNil(t, n)

	assert.Equal(t, domain.DeliveryStatePending, n.State)
	assert.Equal(t, merchant.CallbackURL, n.URL)
	assert.Equal(t, "transaction.authorized", n.Event)
	assert.Equal(t, 0, n.Attempts)
	assert.Equal(t, domain.DefaultMaxDeliveryAttempts, n.MaxAttempts)

	// Signature must verify against the exact stored payload bytes
	assert.True(t, VerifySignature(n.Payload, merchant.WebhookSecret, n.Signature))

	var payload Payload
	require.NoError(t, json.Unmarshal(n.Payload, &payload))
	assert.Equal(t, "transaction.authorized", payload.Event)
	assert.Equal(t, tx.ID, payload.Transaction.ID)
	assert.Equal(t, int64(12990), payload.Transaction.Amount)
	assert.Equal(t, "BRL", payload.Transaction.Currency)
	assert.Equal(t, "ref-123", payload.Transaction.ProcessorReference)
	assert.Equal(t, "auth-456", payload.Transaction.AuthorizationCode)
	assert.Equal(t, "4242", payload.Transaction.CardLastFour)

	stored, err := webhooks.GetByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.Signature, stored.Signature)
}

func TestComposeSkipsMerchantWithoutCallbackURL(t *testing.T) {
	merchant := &domain.Merchant{ID: "mer_2", Name: "Loja Dois"}
	composer, webhooks := newComposerFixture(t, merchant)
	tx := authorizedTransaction(t, merchant.ID)

	n, err := composer.Compose(context.Background(), tx, EventForStatus(tx.Status))
	require.NoError(t, err)
	assert.Nil(t, n)
	assert.Equal(t, 0, webhooks.Count())
}

func TestComposeWithoutSecretSendsUnsigned(t *testing.T) {
	merchant := &domain.Merchant{
		ID:          "mer_3",
		Name:        "Loja Tres",
		CallbackURL: "https://loja3.example.com/hooks",
	}
	composer, _ := newComposerFixture(t, merchant)
	tx := authorizedTransaction(t, merchant.ID)

	n, err := composer.Compose(context.Background(), tx, EventForStatus(tx.Status))
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Empty(t, n.Signature)
}

func TestComposeUnknownMerchantFails(t *testing.T) {
	composer, _ := newComposerFixture(t, &domain.Merchant{ID: "mer_4"})
	tx := authorizedTransaction(t, "mer_missing")

	_, err := composer.Compose(context.Background(), tx, EventForStatus(tx.Status))
	assert.ErrorIs(t, err, domain.ErrMerchantNotFound)
}

func TestRetryDelayBackoff(t *testing.T) {
	want := []time.Duration{
		1 * time.Minute,
		2 * time.Minute,
		4 * time.Minute,
		8 * time.Minute,
		16 * time.Minute,
	}
	for attempt, expected := range want {
		assert.Equal(t, expected, domain.RetryDelay(attempt+1), "attempt %d", attempt+1)
	}
}
