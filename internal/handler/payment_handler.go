package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/dto"
	"github.com/pagforte/payment-gateway/internal/service"
)

// PaymentHandler handles payment HTTP endpoints
type PaymentHandler struct {
	paymentService service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// merchantID resolves the calling merchant from the auth middleware, with
// a header fallback for internal tooling
func merchantID(c *gin.Context) string {
	if id := c.GetString("merchant_id"); id != "" {
		return id
	}
	return c.GetHeader("X-Merchant-ID")
}

// AuthorizePayment handles POST /transactions
// Routes the payment to the best processor and authorizes it
func (h *PaymentHandler) AuthorizePayment(c *gin.Context) {
	var req dto.AuthorizePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("VALIDATION_ERROR", err.Error()))
		return
	}

	merchant := merchantID(c)
	if merchant == "" {
		c.JSON(http.StatusUnauthorized, dto.NewErrorResponse("UNAUTHORIZED", "merchant_id is required"))
		return
	}

	svcReq := &service.AuthorizePaymentRequest{
		MerchantID:   merchant,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Installments: req.Installments,
		CardToken:    req.CardToken,
		CardBrand:    req.CardBrand,
		CardLastFour: req.CardLastFour,
		Customer: domain.Customer{
			Name:     req.Customer.Name,
			Email:    req.Customer.Email,
			Document: req.Customer.Document,
		},
		Metadata: req.Metadata,
	}

	tx, err := h.paymentService.Authorize(c.Request.Context(), svcReq)
	if err != nil {
		if errors.Is(err, domain.ErrMerchantNotFound) {
			c.JSON(http.StatusUnauthorized, dto.NewErrorResponse("UNKNOWN_MERCHANT", "merchant not found"))
			return
		}
		if errors.Is(err, domain.ErrNoProcessorAvailable) {
			// The transaction record exists with its failure reason
			c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse("NO_PROCESSOR_AVAILABLE", "no processor available to handle this payment"))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("AUTHORIZE_FAILED", err.Error()))
		return
	}

	c.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.FromTransaction(tx)))
}

// GetTransaction handles GET /transactions/:id
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	transactionID := c.Param("id")
	if transactionID == "" {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("VALIDATION_ERROR", "transaction_id is required"))
		return
	}

	tx, err := h.paymentService.GetTransaction(c.Request.Context(), transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			c.JSON(http.StatusNotFound, dto.NewErrorResponse("NOT_FOUND", "transaction not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("GET_FAILED", err.Error()))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.FromTransaction(tx)))
}

// GetMerchantTransactions handles GET /transactions
// Returns the calling merchant's transactions with pagination
func (h *PaymentHandler) GetMerchantTransactions(c *gin.Context) {
	merchant := merchantID(c)
	if merchant == "" {
		c.JSON(http.StatusUnauthorized, dto.NewErrorResponse("UNAUTHORIZED", "merchant_id is required"))
		return
	}

	limit := 20
	offset := 0
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	transactions, err := h.paymentService.GetMerchantTransactions(c.Request.Context(), merchant, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("GET_FAILED", err.Error()))
		return
	}

	responses := make([]*dto.TransactionResponse, len(transactions))
	for i, tx := range transactions {
		responses[i] = dto.FromTransaction(tx)
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(&dto.TransactionListResponse{
		Transactions: responses,
		Total:        len(responses),
	}))
}

// CaptureTransaction handles POST /transactions/:id/capture
func (h *PaymentHandler) CaptureTransaction(c *gin.Context) {
	transactionID := c.Param("id")
	if transactionID == "" {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("VALIDATION_ERROR", "transaction_id is required"))
		return
	}

	tx, err := h.paymentService.Capture(c.Request.Context(), transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			c.JSON(http.StatusNotFound, dto.NewErrorResponse("NOT_FOUND", "transaction not found"))
			return
		}
		if errors.Is(err, domain.ErrCaptureNotSupported) {
			c.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponse("CAPTURE_NOT_SUPPORTED", "processor does not support capture"))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("CAPTURE_FAILED", err.Error()))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.FromTransaction(tx)))
}

// VoidTransaction handles POST /transactions/:id/void
func (h *PaymentHandler) VoidTransaction(c *gin.Context) {
	transactionID := c.Param("id")
	if transactionID == "" {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("VALIDATION_ERROR", "transaction_id is required"))
		return
	}

	tx, err := h.paymentService.Void(c.Request.Context(), transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			c.JSON(http.StatusNotFound, dto.NewErrorResponse("NOT_FOUND", "transaction not found"))
			return
		}
		if errors.Is(err, domain.ErrVoidNotSupported) {
			c.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponse("VOID_NOT_SUPPORTED", "processor does not support void"))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("VOID_FAILED", err.Error()))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.FromTransaction(tx)))
}
