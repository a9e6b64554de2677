package model

import "time"

// ============================================================================
// Incident 모델 (처리 완료된 알림 1건의 기록 단위)
// ============================================================================

// Incident 처리 결과 상태
// pending은 기록 직후의 과도 상태이며, 종결된 Incident는 resolved 또는 failed
const (
	ResolutionPending  = "pending"
	ResolutionResolved = "resolved"
	ResolutionFailed   = "failed"
)

// IncidentRecord - Incident Memory에 저장되는 기록
// 한 번 쓰이면 상태 종결 업데이트 1회를 제외하고 불변
type IncidentRecord struct {
	ID                string    `json:"incident_id"`
	AlertName         string    `json:"alert_name"`
	Description       string    `json:"description"`
	Severity          string    `json:"severity"`
	RootCause         *string   `json:"root_cause"`
	RemediationTaken  *string   `json:"remediation_taken"`
	ResolutionStatus  string    `json:"resolution_status"`
	FailureReason     *string   `json:"failure_reason,omitempty"`
	ResolutionSeconds *int      `json:"resolution_seconds"`
	CreatedAt         time.Time `json:"created_at"`
}

// SimilarIncident - 유사도 검색 결과 1건
// Score는 [0,1] 구간으로 정규화된 코사인 유사도
type SimilarIncident struct {
	Record IncidentRecord `json:"record"`
	Score  float64        `json:"score"`
}

// IncidentStats - 저장된 전체 Incident에 대한 집계
type IncidentStats struct {
	TotalIncidents       int            `json:"totalIncidents"`
	SuccessRate          float64        `json:"successRate"`
	AvgResolutionSeconds float64        `json:"avgResolutionTimeSeconds"`
	BySeverity           map[string]int `json:"bySeverity"`
}

// IncidentListEnvelope - Incident 목록 API 응답 구조체
type IncidentListEnvelope struct {
	Status string           `json:"status"`
	Count  int              `json:"count"`
	Data   []IncidentRecord `json:"data"`
}

// StatsEnvelope - 통계 API 응답 구조체
type StatsEnvelope struct {
	Status string         `json:"status"`
	Data   *IncidentStats `json:"data"`
}

// HealthResponse - 헬스체크 응답 구조체
type HealthResponse struct {
	Status               string     `json:"status"`
	MemoryStoreConnected bool       `json:"memoryStoreConnected"`
	IncidentCount        int        `json:"incidentCount"`
	LastAlertAt          *time.Time `json:"lastAlertAt,omitempty"`
	LastCompletedAt      *time.Time `json:"lastCompletedAt,omitempty"`
}
