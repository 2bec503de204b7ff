package handler

import (
	"log/slog"

	"github.com/financial-twin-engine/internal/api_gateway/service"
	"github.com/gin-gonic/gin"
)

// WebhookHandler receives aggregator notifications
type WebhookHandler struct {
	webhookService service.WebhookService
	logger         *slog.Logger
}

func NewWebhookHandler(logger *slog.Logger, webhookService service.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		logger:         logger,
	}
}

func (h *WebhookHandler) Aggregator(c *gin.Context) {
	var req AggregatorWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid aggregator webhook", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	eventID, err := h.webhookService.HandleAggregatorWebhook(c.Request.Context(), service.AggregatorWebhook{
		WebhookID:   req.WebhookID,
		WebhookType: req.WebhookType,
		ItemID:      req.ItemID,
	})
	if err != nil {
		RespondServiceError(c, h.logger, err)
		return
	}
	RespondAccepted(c, gin.H{"event_id": eventID, "status": "QUEUED"})
}
