// 승인 상태 머신 비즈니스 로직 정의
//
// 처리 흐름:
//  1. Submit: 액션 분류 → low는 즉시 실행, medium/high는 PendingAction 생성
//  2. 승인 요청을 notification collaborator로 전송
//  3. Resolve(approve/reject) 또는 TTL 스윕이 터미널 상태로 전이
//  4. 상태 전이는 atomic CAS로 보호 — 늦은 승인과 스윕이 경합해도
//     먼저 이긴 쪽만 유효, 진 쪽은 no-op
//
// fingerprint당 PendingAction은 최대 1개. 대기 중에 같은 fingerprint로
// 새 제안이 오면 기존 PendingAction에 병합 (조용히 큐잉하지 않음)

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/homelab-ir/backend/internal/config"
	"github.com/homelab-ir/backend/internal/model"
)

var (
	ErrUnknownConfirmation = errors.New("unknown confirmation id")
	ErrAlreadyResolved     = errors.New("confirmation already resolved")
)

// RemediationExecutor - 복구 액션 실행 collaborator
type RemediationExecutor interface {
	Execute(ctx context.Context, action model.ProposedAction) (model.ExecutionResult, error)
}

// ApprovalNotifier - 승인 요청 전송 collaborator
type ApprovalNotifier interface {
	NotifyApprovalRequest(ctx context.Context, pending model.PendingAction, alert model.Alert) error
}

// pendingEntry - 승인 대기 중인 액션의 내부 표현
// state는 CAS 전이를 위해 atomic으로 관리
type pendingEntry struct {
	view   model.PendingAction
	alert  model.Alert
	action model.ProposedAction

	state atomic.Int32

	// done: 터미널 상태 도달 시 닫힘. CAS 승자만 닫으므로 중복 close 없음
	done chan struct{}

	mu      sync.Mutex
	outcome model.RemediationOutcome
}

func (e *pendingEntry) setOutcome(outcome model.RemediationOutcome) {
	e.mu.Lock()
	e.outcome = outcome
	e.mu.Unlock()
}

func (e *pendingEntry) getOutcome() model.RemediationOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outcome
}

// ApprovalService - 위험 분류 + 승인 상태 머신
type ApprovalService struct {
	risk     *RiskTable
	executor RemediationExecutor
	notifier ApprovalNotifier

	ttl           time.Duration
	sweepInterval time.Duration
	execTimeout   time.Duration

	mu            sync.Mutex
	byID          map[string]*pendingEntry
	byFingerprint map[string]*pendingEntry
}

func NewApprovalService(risk *RiskTable, executor RemediationExecutor, notifier ApprovalNotifier, cfg config.ApprovalConfig) *ApprovalService {
	return &ApprovalService{
		risk:          risk,
		executor:      executor,
		notifier:      notifier,
		ttl:           cfg.TTL,
		sweepInterval: cfg.SweepInterval,
		execTimeout:   30 * time.Second,
		byID:          map[string]*pendingEntry{},
		byFingerprint: map[string]*pendingEntry{},
	}
}

// Submit - Remediate 단계 진입점
//
// low 위험: AutoApproved로 즉시 실행하고 결과 반환 (PendingAction 없음)
// medium/high 위험: PendingAction 생성 후 터미널 상태까지 대기
// ctx가 먼저 끝나면(파이프라인 전체 예산 초과) PendingAction을 강제 만료
func (s *ApprovalService) Submit(ctx context.Context, alert model.Alert, action model.ProposedAction) model.RemediationOutcome {
	level := s.risk.Classify(action.Type)

	if level == model.RiskLow {
		return s.autoExecute(ctx, alert, action, level)
	}

	entry, merged := s.propose(alert, action, level)
	if merged {
		log.Printf("Merged remediation proposal into existing pending action (fingerprint=%s, confirmation_id=%s)",
			alert.Fingerprint, entry.view.ConfirmationID)
	} else {
		// 승인 요청 전송. 실패해도 대기는 계속 (스윕이 만료 처리)
		if err := s.notifier.NotifyApprovalRequest(ctx, entry.view, alert); err != nil {
			log.Printf("Failed to send approval request (fingerprint=%s, confirmation_id=%s): %v",
				alert.Fingerprint, entry.view.ConfirmationID, err)
		}
	}

	select {
	case <-entry.done:
		return entry.getOutcome()
	case <-ctx.Done():
		s.forceExpire(entry, "pipeline run budget exceeded before approval")
		// CAS에서 졌다면 다른 쪽(승인 실행 등)이 끝나기를 기다림
		<-entry.done
		return entry.getOutcome()
	}
}

// autoExecute - low 위험 액션의 동기 실행 (Proposed → AutoApproved → Executed)
func (s *ApprovalService) autoExecute(ctx context.Context, alert model.Alert, action model.ProposedAction, level model.RiskLevel) model.RemediationOutcome {
	log.Printf("Auto-approving low-risk action (fingerprint=%s, action=%s, target=%s)",
		alert.Fingerprint, action.Type, action.Target)

	outcome := model.RemediationOutcome{
		State:     model.StateExecuted,
		StateName: model.StateExecuted.String(),
		RiskLevel: level,
		Executed:  true,
	}

	result, err := s.executor.Execute(ctx, action)
	if err != nil {
		outcome.Success = false
		outcome.Detail = fmt.Sprintf("execution failed: %v", err)
		return outcome
	}

	outcome.Success = result.Success
	outcome.Detail = result.Output
	return outcome
}

// propose - PendingAction 생성 또는 기존 대기 건에 병합
// 리턴값 merged가 true면 이미 대기 중이던 entry를 돌려준 것
func (s *ApprovalService) propose(alert model.Alert, action model.ProposedAction, level model.RiskLevel) (*pendingEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byFingerprint[alert.Fingerprint]; ok {
		if !model.ApprovalState(existing.state.Load()).Terminal() {
			return existing, true
		}
	}

	now := time.Now()
	entry := &pendingEntry{
		view: model.PendingAction{
			ConfirmationID:   uuid.NewString(),
			AlertFingerprint: alert.Fingerprint,
			ProposedAction:   action.Summary,
			ActionType:       action.Type,
			RiskLevel:        level,
			State:            model.StateAwaitingApproval.String(),
			CreatedAt:        now,
			ExpiresAt:        now.Add(s.ttl),
		},
		alert:  alert,
		action: action,
		done:   make(chan struct{}),
	}
	entry.state.Store(int32(model.StateAwaitingApproval))

	s.byID[entry.view.ConfirmationID] = entry
	s.byFingerprint[alert.Fingerprint] = entry

	log.Printf("Created pending action (fingerprint=%s, confirmation_id=%s, risk=%s, expires_at=%s)",
		alert.Fingerprint, entry.view.ConfirmationID, level, entry.view.ExpiresAt.Format(time.RFC3339))

	return entry, false
}

// Resolve - 외부 승인 신호 처리 (approve/reject)
//
// 모르는 confirmation id, 이미 터미널 상태인 id에 대한 신호는 no-op
// (멱등, 로그만 남김)
func (s *ApprovalService) Resolve(confirmationID string, approve bool, resolvedBy string) (model.PendingAction, error) {
	s.mu.Lock()
	entry, ok := s.byID[confirmationID]
	s.mu.Unlock()

	if !ok {
		log.Printf("Ignoring approval signal for unknown confirmation (confirmation_id=%s)", confirmationID)
		return model.PendingAction{}, ErrUnknownConfirmation
	}

	if approve {
		return s.resolveApprove(entry, resolvedBy)
	}
	return s.resolveReject(entry, resolvedBy)
}

func (s *ApprovalService) resolveApprove(entry *pendingEntry, resolvedBy string) (model.PendingAction, error) {
	// CAS: TTL 스윕과의 경합에서 먼저 이긴 쪽만 유효
	if !entry.state.CompareAndSwap(int32(model.StateAwaitingApproval), int32(model.StateApproved)) {
		log.Printf("Ignoring late approval (confirmation_id=%s, state=%s)",
			entry.view.ConfirmationID, model.ApprovalState(entry.state.Load()))
		return s.viewOf(entry), ErrAlreadyResolved
	}

	log.Printf("Action approved (confirmation_id=%s, approved_by=%s)", entry.view.ConfirmationID, resolvedBy)

	execCtx, cancel := context.WithTimeout(context.Background(), s.execTimeout)
	defer cancel()

	outcome := model.RemediationOutcome{
		RiskLevel:      entry.view.RiskLevel,
		ConfirmationID: entry.view.ConfirmationID,
		ResolvedBy:     resolvedBy,
		Executed:       true,
	}

	result, err := s.executor.Execute(execCtx, entry.action)
	if err != nil {
		outcome.Success = false
		outcome.Detail = fmt.Sprintf("execution failed: %v", err)
	} else {
		outcome.Success = result.Success
		outcome.Detail = result.Output
	}

	entry.state.Store(int32(model.StateExecuted))
	outcome.State = model.StateExecuted
	outcome.StateName = model.StateExecuted.String()

	s.finish(entry, outcome)
	return s.viewOf(entry), nil
}

func (s *ApprovalService) resolveReject(entry *pendingEntry, resolvedBy string) (model.PendingAction, error) {
	if !entry.state.CompareAndSwap(int32(model.StateAwaitingApproval), int32(model.StateRejected)) {
		log.Printf("Ignoring late rejection (confirmation_id=%s, state=%s)",
			entry.view.ConfirmationID, model.ApprovalState(entry.state.Load()))
		return s.viewOf(entry), ErrAlreadyResolved
	}

	log.Printf("Action rejected (confirmation_id=%s, rejected_by=%s)", entry.view.ConfirmationID, resolvedBy)

	s.finish(entry, model.RemediationOutcome{
		State:          model.StateRejected,
		StateName:      model.StateRejected.String(),
		RiskLevel:      entry.view.RiskLevel,
		ConfirmationID: entry.view.ConfirmationID,
		ResolvedBy:     resolvedBy,
		Detail:         "rejected by operator",
	})
	return s.viewOf(entry), nil
}

// SweepExpired - 만료된 PendingAction을 Expired로 전이
// 동시에 여러 번 호출되어도 CAS 덕분에 각 건은 정확히 1회만 만료됨
func (s *ApprovalService) SweepExpired() int {
	s.mu.Lock()
	entries := make([]*pendingEntry, 0, len(s.byID))
	for _, entry := range s.byID {
		entries = append(entries, entry)
	}
	s.mu.Unlock()

	now := time.Now()
	expired := 0
	for _, entry := range entries {
		if now.Before(entry.view.ExpiresAt) {
			continue
		}
		if s.expire(entry, "approval timed out") {
			expired++
		}
	}
	return expired
}

// StartSweeper - 백그라운드 만료 스윕 루프
func (s *ApprovalService) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.SweepExpired(); n > 0 {
					log.Printf("Expired %d pending action(s)", n)
				}
			}
		}
	}()
}

func (s *ApprovalService) forceExpire(entry *pendingEntry, reason string) {
	s.expire(entry, reason)
}

func (s *ApprovalService) expire(entry *pendingEntry, reason string) bool {
	if !entry.state.CompareAndSwap(int32(model.StateAwaitingApproval), int32(model.StateExpired)) {
		return false
	}

	log.Printf("Pending action expired (fingerprint=%s, confirmation_id=%s, reason=%s)",
		entry.view.AlertFingerprint, entry.view.ConfirmationID, reason)

	s.finish(entry, model.RemediationOutcome{
		State:          model.StateExpired,
		StateName:      model.StateExpired.String(),
		RiskLevel:      entry.view.RiskLevel,
		ConfirmationID: entry.view.ConfirmationID,
		Detail:         reason,
	})
	return true
}

// finish - outcome 기록, 인덱스 제거, 대기자 깨움
// 호출자는 반드시 CAS 승자 (단일 호출 보장)
func (s *ApprovalService) finish(entry *pendingEntry, outcome model.RemediationOutcome) {
	entry.setOutcome(outcome)

	s.mu.Lock()
	delete(s.byID, entry.view.ConfirmationID)
	if current, ok := s.byFingerprint[entry.view.AlertFingerprint]; ok && current == entry {
		delete(s.byFingerprint, entry.view.AlertFingerprint)
	}
	s.mu.Unlock()

	close(entry.done)
}

// Pending - 대기 중인 액션 목록 (API 노출용)
func (s *ApprovalService) Pending() []model.PendingAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]model.PendingAction, 0, len(s.byID))
	for _, entry := range s.byID {
		list = append(list, s.viewOf(entry))
	}
	return list
}

func (s *ApprovalService) viewOf(entry *pendingEntry) model.PendingAction {
	view := entry.view
	view.State = model.ApprovalState(entry.state.Load()).String()
	return view
}
