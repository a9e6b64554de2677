package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homelab-ir/backend/internal/model"
	"github.com/homelab-ir/backend/internal/service"
)

// alertGateway - Gateway 서비스 인터페이스
type alertGateway interface {
	Receive(ctx context.Context, webhook model.AlertmanagerWebhook) (int, error)
}

// AlertHandler - Alertmanager 웹훅 수신 핸들러
type AlertHandler struct {
	gateway alertGateway
}

func NewAlertHandler(gateway alertGateway) *AlertHandler {
	return &AlertHandler{gateway: gateway}
}

// ReceiveWebhook godoc
// @Summary Receive an Alertmanager webhook
// @Description Accepts a batch of alerts, dedups firing alerts and queues them for the pipeline.
// @Tags alerts
// @Accept json
// @Produce json
// @Param request body model.AlertmanagerWebhook true "Alertmanager webhook payload"
// @Success 202 {object} model.AlertWebhookResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /alert [post]
func (h *AlertHandler) ReceiveWebhook(c *gin.Context) {
	var webhook model.AlertmanagerWebhook

	if err := c.ShouldBindJSON(&webhook); err != nil {
		log.Printf("Failed to parse alert webhook: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	log.Printf("Received alert webhook (status=%s, alertCount=%d, receiver=%s)",
		webhook.Status, len(webhook.Alerts), webhook.Receiver)

	accepted, err := h.gateway.Receive(c.Request.Context(), webhook)
	if err != nil {
		if errors.Is(err, service.ErrIntakeFull) {
			// 업스트림(Alertmanager)이 재시도하므로 503으로 명시 거절
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert intake buffer is full"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, model.AlertWebhookResponse{
		Status:     "accepted",
		AlertCount: len(webhook.Alerts),
		Accepted:   accepted,
	})
}
