// 파이프라인 단계별 입출력 구조체 정의
// 각 단계는 이전 단계의 출력 + 원본 Alert만 입력으로 받음

package model

import "time"

// TargetState - 모니터링 조회 결과 (Detect 단계 입력)
type TargetState struct {
	Reachable bool   `json:"reachable"`
	Healthy   bool   `json:"healthy"`
	Detail    string `json:"detail"`
}

// DetectResult - Detect 단계 출력
type DetectResult struct {
	// Confirmed: 모니터링 조회로 알림이 실제 장애로 확인되었는지
	Confirmed bool `json:"confirmed"`

	// Degraded: 모니터링 대상에 접근하지 못해 신뢰도가 낮아진 상태
	Degraded bool `json:"degraded"`

	Severity string `json:"severity"`
	Summary  string `json:"summary"`
}

// Diagnosis - Diagnose 단계 출력
type Diagnosis struct {
	RootCauseHypothesis string         `json:"root_cause_hypothesis"`
	Action              ProposedAction `json:"proposed_action"`

	// Confidence: 0.0 ~ 1.0
	Confidence float64 `json:"confidence"`

	// HistoricalContext: Incident Memory에서 가져온 유사 사례 다이제스트
	HistoricalContext string `json:"historical_context"`
}

// ExecutionResult - 복구 액션 실행 결과 (remediation collaborator 응답)
type ExecutionResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
}

// RunResult - 파이프라인 1회 실행의 최종 결과 (Communicate 단계 입력)
type RunResult struct {
	Alert      Alert              `json:"alert"`
	Detect     DetectResult       `json:"detect"`
	Diagnosis  Diagnosis          `json:"diagnosis"`
	Outcome    RemediationOutcome `json:"outcome"`
	IncidentID string             `json:"incident_id"`
	StartedAt  time.Time          `json:"started_at"`
	Duration   time.Duration      `json:"duration"`
}
