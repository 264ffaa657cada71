package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagforte/payment-gateway/internal/adapter"
	"github.com/pagforte/payment-gateway/internal/capacity"
	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/registry"
	"github.com/pagforte/payment-gateway/internal/repository"
	"github.com/pagforte/payment-gateway/internal/routing"
	"github.com/pagforte/payment-gateway/internal/webhook"
	"github.com/pagforte/payment-gateway/pkg/logger"
)

// stubAdapter returns scripted results so routing outcomes are deterministic
type stubAdapter struct {
	code      string
	result    *adapter.PaymentResult
	err       error
	authCalls int
}

func (a *stubAdapter) Authorize(ctx context.Context, p *domain.Processor, req *adapter.AuthorizeRequest) (*adapter.PaymentResult, error) {
	a.authCalls++
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func (a *stubAdapter) Capture(ctx context.Context, p *domain.Processor, req *adapter.CaptureRequest) (*adapter.PaymentResult, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &adapter.PaymentResult{Success: true, Status: "captured", ProcessorReference: req.ProcessorReference}, nil
}

func (a *stubAdapter) Void(ctx context.Context, p *domain.Processor, req *adapter.VoidRequest) (*adapter.PaymentResult, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &adapter.PaymentResult{Success: true, Status: "voided", ProcessorReference: req.ProcessorReference}, nil
}

func (a *stubAdapter) HealthCheck(ctx context.Context, p *domain.Processor) bool { return true }

func (a *stubAdapter) Code() string { return a.code }

type serviceFixture struct {
	service      PaymentService
	transactions *repository.MemoryTransactionRepository
	merchants    *repository.MemoryMerchantRepository
	webhooks     *repository.MemoryWebhookRepository
	processors   *registry.ProcessorRegistry
	adapters     map[string]*stubAdapter
}

func eligibleProcessor(code string, priority int) *domain.Processor {
	return &domain.Processor{
		Code:           code,
		Name:           code,
		Kind:           domain.ProcessorKindAcquirer,
		OperatingState: domain.OperatingStateEnabled,
		HealthState:    domain.HealthStateUp,
		Priority:       priority,
		Capabilities:   domain.Capabilities{Capture: true, Void: true, Refund: true, MaxInstallments: 12},
		Stats: domain.ProcessorStats{
			TotalCount:   100,
			SuccessCount: 97,
			SuccessRate:  97,
			AvgLatencyMs: 300,
		},
	}
}

func newServiceFixture(t *testing.T, procs ...*domain.Processor) *serviceFixture {
	t.Helper()
	log := logger.Get()

	processors := registry.NewProcessorRegistry()
	adapterReg := registry.NewAdapterRegistry()
	stubs := make(map[string]*stubAdapter)
	for _, p := range procs {
		require.NoError(t, processors.Register(p))
		stub := &stubAdapter{
			code:   p.Code,
			result: &adapter.PaymentResult{Success: true, Status: "authorized", ProcessorReference: "ref-" + p.Code, AuthorizationCode: "auth-" + p.Code},
		}
		stubs[p.Code] = stub
		require.NoError(t, adapterReg.Register(stub))
	}

	transactions := repository.NewMemoryTransactionRepository()
	merchants := repository.NewMemoryMerchantRepository()
	webhooks := repository.NewMemoryWebhookRepository()
	require.NoError(t, merchants.Create(context.Background(), &domain.Merchant{
		ID:            "mer_1",
		Name:          "Loja Um",
		CallbackURL:   "https://loja.example.com/webhooks",
		WebhookSecret: "s3cret",
	}))

	ledger := capacity.NewLedger(processors, merchants, log)
	engine := routing.NewEngine(processors, log)
	composer := webhook.NewComposer(merchants, webhooks, log)

	svc := NewPaymentService(transactions, merchants, processors, adapterReg, engine, ledger, composer, &PaymentServiceConfig{
		Currency:     "BRL",
		MaxFailovers: 1,
	}, log)

	return &serviceFixture{
		service:      svc,
		transactions: transactions,
		merchants:    merchants,
		webhooks:     webhooks,
		processors:   processors,
		adapters:     stubs,
	}
}

func authorizeRequest() *AuthorizePaymentRequest {
	return &AuthorizePaymentRequest{
		MerchantID:   "mer_1",
		Amount:       12990,
		Installments: 3,
		CardToken:    "tok_abc",
		CardBrand:    "visa",
		CardLastFour: "4242",
		Customer:     domain.Customer{Name: "Ana Souza", Email: "ana@example.com"},
	}
}

func TestAuthorizeSuccess(t *testing.T) {
	f := newServiceFixture(t, eligibleProcessor("cielo", 10))

	tx, err := f.service.Authorize(context.Background(), authorizeRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusAuthorized, tx.Status)
	assert.Equal(t, "cielo", tx.ProcessorCode)
	assert.Equal(t, "ref-cielo", tx.ProcessorReference)
	assert.Equal(t, "auth-cielo", tx.AuthorizationCode)
	assert.Equal(t, "BRL", tx.Currency)
	assert.NotNil(t, tx.AuthorizedAt)

	// Outcome folded into the processor counters and daily volume
	proc, _ := f.processors.Lookup("cielo")
	assert.Equal(t, int64(101), proc.Stats.TotalCount)
	assert.Equal(t, int64(98), proc.Stats.SuccessCount)
	assert.Equal(t, int64(12990), proc.VolumeToday)

	// Merchant monthly volume recorded
	merchant, _ := f.merchants.GetByID(context.Background(), "mer_1")
	assert.Equal(t, int64(12990), merchant.VolumeThisMonth)

	// Status webhook composed
	notifications, _ := f.webhooks.GetByTransactionID(context.Background(), tx.ID)
	require.Len(t, notifications, 1)
	assert.Equal(t, "transaction.authorized", notifications[0].Event)
}

func TestAuthorizeDeclineIsTerminal(t *testing.T) {
	f := newServiceFixture(t, eligibleProcessor("cielo", 10), eligibleProcessor("rede", 20))
	f.adapters["cielo"].result = &adapter.PaymentResult{
		Success:      false,
		Status:       "denied",
		ErrorCode:    "insufficient_funds",
		ErrorMessage: "card has insufficient funds",
	}

	tx, err := f.service.Authorize(context.Background(), authorizeRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusDenied, tx.Status)
	assert.Equal(t, "insufficient_funds", tx.ErrorCode)
	// A decline never fails over to another processor
	assert.Equal(t, 0, f.adapters["rede"].authCalls)

	notifications, _ := f.webhooks.GetByTransactionID(context.Background(), tx.ID)
	require.Len(t, notifications, 1)
	assert.Equal(t, "transaction.denied", notifications[0].Event)
}

func TestAuthorizeFailsOverOnProcessorError(t *testing.T) {
	f := newServiceFixture(t, eligibleProcessor("cielo", 10), eligibleProcessor("rede", 20))
	f.adapters["cielo"].err = errors.New("connection reset by peer")

	tx, err := f.service.Authorize(context.Background(), authorizeRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusAuthorized, tx.Status)
	assert.Equal(t, "rede", tx.ProcessorCode)
	assert.Equal(t, 1, f.adapters["cielo"].authCalls)
	assert.Equal(t, 1, f.adapters["rede"].authCalls)

	// The failed attempt still lands in cielo's counters
	cielo, _ := f.processors.Lookup("cielo")
	assert.Equal(t, int64(101), cielo.Stats.TotalCount)
	assert.Equal(t, int64(97), cielo.Stats.SuccessCount)
	assert.Equal(t, int64(0), cielo.VolumeToday)
}

func TestAuthorizeAllProcessorsFail(t *testing.T) {
	f := newServiceFixture(t, eligibleProcessor("cielo", 10), eligibleProcessor("rede", 20))
	f.adapters["cielo"].err = errors.New("connection reset by peer")
	f.adapters["rede"].err = errors.New("tls handshake timeout")

	tx, err := f.service.Authorize(context.Background(), authorizeRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusFailed, tx.Status)
	assert.Equal(t, "GATEWAY_ERROR", tx.ErrorCode)

	notifications, _ := f.webhooks.GetByTransactionID(context.Background(), tx.ID)
	require.Len(t, notifications, 1)
	assert.Equal(t, "transaction.failed", notifications[0].Event)
}

func TestAuthorizeNoProcessorAvailable(t *testing.T) {
	down := eligibleProcessor("cielo", 10)
	down.HealthState = domain.HealthStateDown
	f := newServiceFixture(t, down)

	tx, err := f.service.Authorize(context.Background(), authorizeRequest())
	assert.ErrorIs(t, err, domain.ErrNoProcessorAvailable)
	require.NotNil(t, tx)
	assert.Equal(t, domain.TransactionStatusFailed, tx.Status)
	assert.Equal(t, "NO_PROCESSOR_AVAILABLE", tx.ErrorCode)
}

func TestAuthorizeMonthlyCeilingExceeded(t *testing.T) {
	f := newServiceFixture(t, eligibleProcessor("cielo", 10))
	merchant, _ := f.merchants.GetByID(context.Background(), "mer_1")
	merchant.MonthlyCeiling = 10000
	merchant.VolumeThisMonth = 9000
	require.NoError(t, f.merchants.Update(context.Background(), merchant))

	tx, err := f.service.Authorize(context.Background(), authorizeRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusFailed, tx.Status)
	assert.Equal(t, "MONTHLY_CEILING_EXCEEDED", tx.ErrorCode)
	assert.Equal(t, 0, f.adapters["cielo"].authCalls)
}

func TestAuthorizeUnknownMerchant(t *testing.T) {
	f := newServiceFixture(t, eligibleProcessor("cielo", 10))
	req := authorizeRequest()
	req.MerchantID = "mer_missing"

	_, err := f.service.Authorize(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrMerchantNotFound)
}

func TestAuthorizeDailyCeilingTriggersFailover(t *testing.T) {
	full := eligibleProcessor("cielo", 10)
	full.DailyCeiling = 10000
	full.VolumeToday = 9999
	f := newServiceFixture(t, full, eligibleProcessor("rede", 20))

	tx, err := f.service.Authorize(context.Background(), authorizeRequest())
	require.NoError(t, err)

	// cielo has no headroom so routing never selects it
	assert.Equal(t, domain.TransactionStatusAuthorized, tx.Status)
	assert.Equal(t, "rede", tx.ProcessorCode)
	assert.Equal(t, 0, f.adapters["cielo"].authCalls)
}

func TestCaptureSuccess(t *testing.T) {
	f := newServiceFixture(t, eligibleProcessor("cielo", 10))
	tx, err := f.service.Authorize(context.Background(), authorizeRequest())
	require.NoError(t, err)

	captured, err := f.service.Capture(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCaptured, captured.Status)
	assert.NotNil(t, captured.CapturedAt)

	notifications, _ := f.webhooks.GetByTransactionID(context.Background(), tx.ID)
	assert.Len(t, notifications, 2)
}

func TestCaptureNotSupported(t *testing.T) {
	proc := eligibleProcessor("wallet99", 10)
	proc.Capabilities.Capture = false
	f := newServiceFixture(t, proc)

	tx, err := f.service.Authorize(context.Background(), authorizeRequest())
	require.NoError(t, err)

	_, err = f.service.Capture(context.Background(), tx.ID)
	assert.ErrorIs(t, err, domain.ErrCaptureNotSupported)
}

func TestVoidSuccess(t *testing.T) {
	f := newServiceFixture(t, eligibleProcessor("cielo", 10))
	tx, err := f.service.Authorize(context.Background(), authorizeRequest())
	require.NoError(t, err)

	voided, err := f.service.Void(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusVoided, voided.Status)
}

func TestVoidNotSupported(t *testing.T) {
	proc := eligibleProcessor("subacq1", 10)
	proc.Capabilities.Void = false
	f := newServiceFixture(t, proc)

	tx, err := f.service.Authorize(context.Background(), authorizeRequest())
	require.NoError(t, err)

	_, err = f.service.Void(context.Background(), tx.ID)
	assert.ErrorIs(t, err, domain.ErrVoidNotSupported)
}

func TestGetTransactionNotFound(t *testing.T) {
	f := newServiceFixture(t, eligibleProcessor("cielo", 10))

	_, err := f.service.GetTransaction(context.Background(), "tx_missing")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestGetMerchantTransactionsClampsLimit(t *testing.T) {
	f := newServiceFixture(t, eligibleProcessor("cielo", 10))
	for i := 0; i < 3; i++ {
		_, err := f.service.Authorize(context.Background(), authorizeRequest())
		require.NoError(t, err)
	}

	txs, err := f.service.GetMerchantTransactions(context.Background(), "mer_1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 3)
}
