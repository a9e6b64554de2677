// 승인 상태 머신에서 사용하는 모델 정의
//
// 상태 전이:
//
//	Proposed → AutoApproved → Executed                    (low risk)
//	Proposed → AwaitingApproval → Approved → Executed     (승인됨)
//	Proposed → AwaitingApproval → Rejected                (거부됨)
//	Proposed → AwaitingApproval → Expired                 (TTL 초과)
//
// 터미널 상태(Executed/Rejected/Expired)에서 되돌아가는 전이는 없음

package model

import "time"

// RiskLevel - 제안된 복구 액션의 위험 등급
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ApprovalState - 승인 상태 머신의 상태
// CAS 전이를 위해 int32 기반으로 정의
type ApprovalState int32

const (
	StateProposed ApprovalState = iota
	StateAutoApproved
	StateAwaitingApproval
	StateApproved
	StateExecuted
	StateRejected
	StateExpired
)

func (s ApprovalState) String() string {
	switch s {
	case StateProposed:
		return "proposed"
	case StateAutoApproved:
		return "auto_approved"
	case StateAwaitingApproval:
		return "awaiting_approval"
	case StateApproved:
		return "approved"
	case StateExecuted:
		return "executed"
	case StateRejected:
		return "rejected"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal - 터미널 상태 여부
func (s ApprovalState) Terminal() bool {
	return s == StateExecuted || s == StateRejected || s == StateExpired
}

// ProposedAction - Diagnose 단계가 제안하는 복구 액션
type ProposedAction struct {
	// Type: 위험 등급 테이블의 키 (예: restart_container, reboot_vm)
	Type string `json:"type"`

	// Target: 액션 대상 리소스 (예: 컨테이너 이름, VM ID)
	Target string `json:"target"`

	// Summary: 사람이 읽는 한 줄 설명
	Summary string `json:"summary"`
}

// PendingAction - 승인 대기 중인 액션의 외부 노출용 뷰
// 내부 상태 필드는 service 레이어가 원자적으로 관리
type PendingAction struct {
	ConfirmationID   string    `json:"confirmation_id"`
	AlertFingerprint string    `json:"alert_fingerprint"`
	ProposedAction   string    `json:"proposed_action"`
	ActionType       string    `json:"action_type"`
	RiskLevel        RiskLevel `json:"risk_level"`
	RequestedBy      string    `json:"requested_by,omitempty"`
	State            string    `json:"state"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// RemediationOutcome - Remediate 단계의 최종 결과
type RemediationOutcome struct {
	State          ApprovalState `json:"-"`
	StateName      string        `json:"state"`
	RiskLevel      RiskLevel     `json:"risk_level"`
	ConfirmationID string        `json:"confirmation_id,omitempty"`
	Executed       bool          `json:"executed"`
	Success        bool          `json:"success"`
	ResolvedBy     string        `json:"resolved_by,omitempty"`
	Detail         string        `json:"detail,omitempty"`
}

// ApprovalListEnvelope - 승인 대기 목록 API 응답 구조체
type ApprovalListEnvelope struct {
	Status string          `json:"status"`
	Count  int             `json:"count"`
	Data   []PendingAction `json:"data"`
}

// ApprovalResolveResponse - 승인/거부 API 응답 구조체
type ApprovalResolveResponse struct {
	Status         string `json:"status"`
	ConfirmationID string `json:"confirmation_id"`
	State          string `json:"state"`
}
