package handler

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/homelab-ir/backend/internal/model"
)

// notifyWebhookStore - 웹훅 설정 저장소 인터페이스
type notifyWebhookStore interface {
	GetNotifyWebhooks(ctx context.Context) ([]model.NotifyWebhook, error)
	CreateNotifyWebhook(ctx context.Context, hook model.NotifyWebhook) (int, error)
	UpdateNotifyWebhook(ctx context.Context, id int, hook model.NotifyWebhook) error
	DeleteNotifyWebhook(ctx context.Context, id int) error
}

// NotifyWebhookHandler - 아웃바운드 알림 웹훅 설정 핸들러
type NotifyWebhookHandler struct {
	store notifyWebhookStore
}

func NewNotifyWebhookHandler(store notifyWebhookStore) *NotifyWebhookHandler {
	return &NotifyWebhookHandler{store: store}
}

// List godoc
// @Summary List notify webhooks
// @Tags settings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.NotifyWebhookListResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks [get]
func (h *NotifyWebhookHandler) List(c *gin.Context) {
	hooks, err := h.store.GetNotifyWebhooks(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, model.NotifyWebhookListResponse{Status: "success", Data: hooks})
}

// Create godoc
// @Summary Create a notify webhook
// @Tags settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.NotifyWebhookRequest true "Webhook config"
// @Success 201 {object} model.NotifyWebhookMutationResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks [post]
func (h *NotifyWebhookHandler) Create(c *gin.Context) {
	var req model.NotifyWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}
	if msg := validateWebhookRequest(req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": msg})
		return
	}

	id, err := h.store.CreateNotifyWebhook(c.Request.Context(), hookFromRequest(req))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, model.NotifyWebhookMutationResponse{
		Status:  "success",
		Message: "webhook created",
		ID:      id,
	})
}

// Update godoc
// @Summary Update a notify webhook
// @Tags settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Webhook ID"
// @Param request body model.NotifyWebhookRequest true "Webhook config"
// @Success 200 {object} model.NotifyWebhookMutationResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks/{id} [put]
func (h *NotifyWebhookHandler) Update(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid id"})
		return
	}

	var req model.NotifyWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}
	if msg := validateWebhookRequest(req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": msg})
		return
	}

	if err := h.store.UpdateNotifyWebhook(c.Request.Context(), id, hookFromRequest(req)); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, model.NotifyWebhookMutationResponse{
		Status:  "success",
		Message: "webhook updated",
		ID:      id,
	})
}

// Delete godoc
// @Summary Delete a notify webhook
// @Tags settings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Webhook ID"
// @Success 200 {object} model.NotifyWebhookMutationResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/settings/webhooks/{id} [delete]
func (h *NotifyWebhookHandler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid id"})
		return
	}

	if err := h.store.DeleteNotifyWebhook(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, model.NotifyWebhookMutationResponse{
		Status:  "success",
		Message: "webhook deleted",
		ID:      id,
	})
}

func validateWebhookRequest(req model.NotifyWebhookRequest) string {
	parsed, err := url.Parse(req.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "url must be a valid http(s) URL"
	}
	switch req.Method {
	case "", http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return "method must be POST, PUT or PATCH"
	}
	return ""
}

func hookFromRequest(req model.NotifyWebhookRequest) model.NotifyWebhook {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	headers := req.Headers
	if headers == nil {
		headers = []model.NotifyHeader{}
	}
	return model.NotifyWebhook{
		URL:     req.URL,
		Method:  method,
		Headers: headers,
		Body:    req.Body,
	}
}
