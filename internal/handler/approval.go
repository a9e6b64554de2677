package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homelab-ir/backend/internal/model"
	"github.com/homelab-ir/backend/internal/service"
)

// approvalService - 승인 상태 머신 인터페이스
type approvalService interface {
	Pending() []model.PendingAction
	Resolve(confirmationID string, approve bool, resolvedBy string) (model.PendingAction, error)
}

// ApprovalHandler - 승인 대기 조회 및 승인/거부 핸들러
type ApprovalHandler struct {
	svc approvalService
}

func NewApprovalHandler(svc approvalService) *ApprovalHandler {
	return &ApprovalHandler{svc: svc}
}

// ListPending godoc
// @Summary List pending remediation actions
// @Tags approvals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.ApprovalListEnvelope
// @Router /api/v1/approvals [get]
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	pending := h.svc.Pending()
	c.JSON(http.StatusOK, model.ApprovalListEnvelope{
		Status: "success",
		Count:  len(pending),
		Data:   pending,
	})
}

// Approve godoc
// @Summary Approve a pending remediation action
// @Tags approvals
// @Produce json
// @Security BearerAuth
// @Param id path string true "Confirmation ID"
// @Success 200 {object} model.ApprovalResolveResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/approvals/{id}/approve [post]
func (h *ApprovalHandler) Approve(c *gin.Context) {
	h.resolve(c, true)
}

// Reject godoc
// @Summary Reject a pending remediation action
// @Tags approvals
// @Produce json
// @Security BearerAuth
// @Param id path string true "Confirmation ID"
// @Success 200 {object} model.ApprovalResolveResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/approvals/{id}/reject [post]
func (h *ApprovalHandler) Reject(c *gin.Context) {
	h.resolve(c, false)
}

func (h *ApprovalHandler) resolve(c *gin.Context, approve bool) {
	confirmationID := c.Param("id")

	resolvedBy := "unknown"
	if user := GetAuthUser(c); user != nil {
		resolvedBy = user.LoginID
	}

	pending, err := h.svc.Resolve(confirmationID, approve, resolvedBy)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownConfirmation):
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown confirmation id"})
		case errors.Is(err, service.ErrAlreadyResolved):
			// 늦은 신호는 멱등 처리. 현재 상태를 그대로 돌려줌
			c.JSON(http.StatusOK, model.ApprovalResolveResponse{
				Status:         "ignored",
				ConfirmationID: confirmationID,
				State:          pending.State,
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, model.ApprovalResolveResponse{
		Status:         "success",
		ConfirmationID: pending.ConfirmationID,
		State:          pending.State,
	})
}
