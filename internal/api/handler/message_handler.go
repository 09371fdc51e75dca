package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/leadflowhq/leadflow/internal/domain"
	"github.com/leadflowhq/leadflow/internal/store"
)

// MessageHandler handles message-related HTTP requests.
type MessageHandler struct {
	logger *slog.Logger
	store  *store.Store
}

// NewMessageHandler creates a new MessageHandler instance.
func NewMessageHandler(deps *Dependencies) *MessageHandler {
	return &MessageHandler{
		logger: deps.Logger,
		store:  deps.Store,
	}
}

// GetMessage handles GET /api/v1/messages/:message_id.
func (h *MessageHandler) GetMessage(c *gin.Context) {
	message, err := h.store.GetMessage(c.Request.Context(), c.Param("message_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, message)
}

// ListMessages handles GET /api/v1/campaigns/:campaign_id/messages.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	messages, err := h.store.ListMessages(c.Request.Context(),
		c.Param("campaign_id"), domain.MessageStatus(c.Query("status")), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// UpdateMessageStatusRequest is the PUT
// /api/v1/messages/:message_id/status body. Delivery webhooks land
// here: delivered, bounced, unsubscribed.
type UpdateMessageStatusRequest struct {
	Status            string  `json:"status" binding:"required"`
	ProviderMessageID *string `json:"provider_message_id"`
	ErrorMessage      *string `json:"error_message"`
}

// UpdateMessageStatus handles PUT /api/v1/messages/:message_id/status.
// Illegal transitions are rejected with 409 and leave the message
// untouched.
func (h *MessageHandler) UpdateMessageStatus(c *gin.Context) {
	var req UpdateMessageStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	status := domain.MessageStatus(req.Status)
	switch status {
	case domain.MessageStatusDraft, domain.MessageStatusScheduled, domain.MessageStatusSent,
		domain.MessageStatusDelivered, domain.MessageStatusFailed, domain.MessageStatusRetryPending,
		domain.MessageStatusBounced, domain.MessageStatusUnsubscribed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown message status"})
		return
	}

	message, err := h.store.UpdateMessageStatus(c.Request.Context(), c.Param("message_id"), status, store.MessageStatusUpdate{
		ProviderMessageID: req.ProviderMessageID,
		ErrorMessage:      req.ErrorMessage,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, message)
}
