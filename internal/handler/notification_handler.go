package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/dto"
	"github.com/pagforte/payment-gateway/internal/repository"
	"github.com/pagforte/payment-gateway/internal/webhook"
)

// NotificationHandler exposes webhook notification delivery state
type NotificationHandler struct {
	webhooks   repository.WebhookRepository
	dispatcher *webhook.Dispatcher
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(webhooks repository.WebhookRepository, dispatcher *webhook.Dispatcher) *NotificationHandler {
	return &NotificationHandler{
		webhooks:   webhooks,
		dispatcher: dispatcher,
	}
}

// GetTransactionNotifications handles GET /transactions/:id/notifications
func (h *NotificationHandler) GetTransactionNotifications(c *gin.Context) {
	transactionID := c.Param("id")
	if transactionID == "" {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("VALIDATION_ERROR", "transaction_id is required"))
		return
	}

	notifications, err := h.webhooks.GetByTransactionID(c.Request.Context(), transactionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("GET_FAILED", err.Error()))
		return
	}

	responses := make([]*dto.NotificationResponse, len(notifications))
	for i, n := range notifications {
		responses[i] = dto.FromNotification(n)
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(&dto.NotificationListResponse{
		Notifications: responses,
		Total:         len(responses),
	}))
}

// RedeliverNotification handles POST /notifications/:id/redeliver
// Forces an immediate delivery attempt for a non-terminal notification
func (h *NotificationHandler) RedeliverNotification(c *gin.Context) {
	notificationID := c.Param("id")

	n, err := h.webhooks.GetByID(c.Request.Context(), notificationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, dto.NewErrorResponse("NOT_FOUND", "notification not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("GET_FAILED", err.Error()))
		return
	}

	if _, err := h.dispatcher.Dispatch(c.Request.Context(), n); err != nil {
		if errors.Is(err, domain.ErrNotificationTerminal) {
			c.JSON(http.StatusConflict, dto.NewErrorResponse("TERMINAL", "notification is in a terminal state"))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("REDELIVER_FAILED", err.Error()))
		return
	}

	updated, err := h.webhooks.GetByID(c.Request.Context(), notificationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("GET_FAILED", err.Error()))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.FromNotification(updated)))
}
