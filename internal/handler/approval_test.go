package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/homelab-ir/backend/internal/model"
	"github.com/homelab-ir/backend/internal/service"
)

type stubApprovals struct {
	pending  []model.PendingAction
	resolved model.PendingAction
	err      error

	lastID      string
	lastApprove bool
	lastBy      string
}

func (s *stubApprovals) Pending() []model.PendingAction {
	return s.pending
}

func (s *stubApprovals) Resolve(confirmationID string, approve bool, resolvedBy string) (model.PendingAction, error) {
	s.lastID = confirmationID
	s.lastApprove = approve
	s.lastBy = resolvedBy
	return s.resolved, s.err
}

func newApprovalRouter(svc *stubApprovals) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewApprovalHandler(svc)
	r.GET("/api/v1/approvals", h.ListPending)
	r.POST("/api/v1/approvals/:id/approve", h.Approve)
	r.POST("/api/v1/approvals/:id/reject", h.Reject)
	return r
}

func TestListPending(t *testing.T) {
	svc := &stubApprovals{pending: []model.PendingAction{{ConfirmationID: "c-1", State: "awaiting_approval"}}}
	r := newApprovalRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/approvals", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestApproveResolvesWithOperator(t *testing.T) {
	svc := &stubApprovals{resolved: model.PendingAction{ConfirmationID: "c-1", State: "executed"}}
	r := newApprovalRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/approvals/c-1/approve", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if svc.lastID != "c-1" || !svc.lastApprove {
		t.Fatalf("unexpected resolve call: id=%s approve=%v", svc.lastID, svc.lastApprove)
	}
}

func TestRejectUnknownConfirmation(t *testing.T) {
	svc := &stubApprovals{err: service.ErrUnknownConfirmation}
	r := newApprovalRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/approvals/nope/reject", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestApproveAlreadyResolvedIsIdempotent(t *testing.T) {
	svc := &stubApprovals{
		resolved: model.PendingAction{ConfirmationID: "c-1", State: "expired"},
		err:      service.ErrAlreadyResolved,
	}
	r := newApprovalRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/approvals/c-1/approve", nil))

	// 늦은 신호는 오류가 아니라 무시로 응답
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for late approval, got %d", w.Code)
	}
}
