package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/repository"
	"github.com/pagforte/payment-gateway/pkg/logger"
)

type dispatcherFixture struct {
	dispatcher *Dispatcher
	webhooks   *repository.MemoryWebhookRepository
	merchants  *repository.MemoryMerchantRepository
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	webhooks := repository.NewMemoryWebhookRepository()
	merchants := repository.NewMemoryMerchantRepository()
	require.NoError(t, merchants.Create(context.Background(), &domain.Merchant{
		ID:             "mer_1",
		Name:           "Loja Um",
		WebhookTimeout: 5 * time.Second,
	}))
	return &dispatcherFixture{
		dispatcher: NewDispatcher(webhooks, merchants, nil, nil, logger.Get()),
		webhooks:   webhooks,
		merchants:  merchants,
	}
}

func (f *dispatcherFixture) pendingNotification(t *testing.T, url string) *domain.WebhookNotification {
	t.Helper()
	n := domain.NewWebhookNotification("mer_1", "tx_1", "transaction.authorized", url, []byte(`{"event":"transaction.authorized"}`), "sig")
	require.NoError(t, f.webhooks.Create(context.Background(), n))
	return n
}

func TestDispatchSuccess(t *testing.T) {
	var gotHeaders atomic.Pointer[http.Header]
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Clone()
		gotHeaders.Store(&h)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := newDispatcherFixture(t)
	n := f.pendingNotification(t, server.URL)

	delivered, err := f.dispatcher.Dispatch(context.Background(), n)
	require.NoError(t, err)
	assert.True(t, delivered)

	stored, err := f.webhooks.GetByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStateSuccess, stored.State)
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, http.StatusOK, stored.LastStatusCode)
	assert.NotNil(t, stored.SucceededAt)

	headers := gotHeaders.Load()
	require.NotNil(t, headers)
	assert.Equal(t, "sig", headers.Get("X-Webhook-Signature"))
	assert.Equal(t, "transaction.authorized", headers.Get("X-Webhook-Event"))
	assert.Equal(t, n.ID, headers.Get("X-Webhook-Id"))
	assert.Equal(t, "1", headers.Get("X-Webhook-Attempt"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
}

func TestDispatchNon2xxSchedulesRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer server.Close()

	f := newDispatcherFixture(t)
	n := f.pendingNotification(t, server.URL)

	delivered, err := f.dispatcher.Dispatch(context.Background(), n)
	require.NoError(t, err)
	assert.False(t, delivered)

	stored, err := f.webhooks.GetByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStateFailed, stored.State)
	assert.False(t, stored.Exhausted)
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, http.StatusBadGateway, stored.LastStatusCode)
	assert.Contains(t, stored.LastResponseBody, "upstream broken")

	// First retry backs off one minute
	require.NotNil(t, stored.NextAttemptAt)
	delay := time.Until(*stored.NextAttemptAt)
	assert.InDelta(t, time.Minute.Seconds(), delay.Seconds(), 5)
}

func TestDispatchConnectionErrorSchedulesRetry(t *testing.T) {
	f := newDispatcherFixture(t)
	// Nothing listens here
	n := f.pendingNotification(t, "http://127.0.0.1:1/webhooks")

	delivered, err := f.dispatcher.Dispatch(context.Background(), n)
	require.NoError(t, err)
	assert.False(t, delivered)

	stored, _ := f.webhooks.GetByID(context.Background(), n.ID)
	assert.Equal(t, domain.DeliveryStateFailed, stored.State)
	assert.NotEmpty(t, stored.LastError)
}

func TestDispatchExhaustedMakesNoNetworkCall(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := newDispatcherFixture(t)
	n := f.pendingNotification(t, server.URL)

	// Burn all attempts directly in the store
	n.Attempts = n.MaxAttempts
	n.State = domain.DeliveryStateFailed
	require.NoError(t, f.webhooks.Update(context.Background(), n))

	delivered, err := f.dispatcher.Dispatch(context.Background(), n)
	require.NoError(t, err)
	assert.False(t, delivered)
	assert.Equal(t, int32(0), calls.Load())

	stored, _ := f.webhooks.GetByID(context.Background(), n.ID)
	assert.Equal(t, domain.DeliveryStateFailed, stored.State)
	assert.True(t, stored.Exhausted)
	assert.True(t, stored.IsTerminal())
}

func TestDispatchTerminalNotificationIsRejected(t *testing.T) {
	f := newDispatcherFixture(t)
	n := f.pendingNotification(t, "https://unused.example.com")
	n.State = domain.DeliveryStateSuccess
	require.NoError(t, f.webhooks.Update(context.Background(), n))

	delivered, err := f.dispatcher.Dispatch(context.Background(), n)
	assert.ErrorIs(t, err, domain.ErrNotificationTerminal)
	assert.True(t, delivered)
}

func TestDispatchRetriesUntilExhaustedThenStops(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := newDispatcherFixture(t)
	n := f.pendingNotification(t, server.URL)

	for i := 0; i < domain.DefaultMaxDeliveryAttempts; i++ {
		current, err := f.webhooks.GetByID(context.Background(), n.ID)
		require.NoError(t, err)
		// Clear the backoff so each attempt is immediately claimable
		current.NextAttemptAt = nil
		require.NoError(t, f.webhooks.Update(context.Background(), current))

		_, err = f.dispatcher.Dispatch(context.Background(), current)
		require.NoError(t, err)
	}

	stored, _ := f.webhooks.GetByID(context.Background(), n.ID)
	assert.Equal(t, domain.DefaultMaxDeliveryAttempts, stored.Attempts)
	assert.True(t, stored.Exhausted)

	// One more dispatch is refused without touching the network
	_, err := f.dispatcher.Dispatch(context.Background(), stored)
	assert.ErrorIs(t, err, domain.ErrNotificationTerminal)
}

func TestSchedulerSweepPendingDeliversDueNotifications(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := newDispatcherFixture(t)
	n := f.pendingNotification(t, server.URL)

	scheduler := NewScheduler(f.webhooks, f.dispatcher, 10, DefaultPurgeRetention, logger.Get())
	scheduler.SweepPending(context.Background())

	stored, _ := f.webhooks.GetByID(context.Background(), n.ID)
	assert.Equal(t, domain.DeliveryStateSuccess, stored.State)
}

func TestSchedulerPurgeRemovesOldDeliveredNotifications(t *testing.T) {
	f := newDispatcherFixture(t)
	n := f.pendingNotification(t, "https://unused.example.com")

	old := time.Now().UTC().Add(-40 * 24 * time.Hour)
	n.State = domain.DeliveryStateSuccess
	n.SucceededAt = &old
	require.NoError(t, f.webhooks.Update(context.Background(), n))

	scheduler := NewScheduler(f.webhooks, f.dispatcher, 10, DefaultPurgeRetention, logger.Get())
	scheduler.Purge(context.Background())

	assert.Equal(t, 0, f.webhooks.Count())
}
