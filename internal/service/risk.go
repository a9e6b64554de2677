// 복구 액션 위험 등급 분류
//
// 선언적 테이블 기반: 액션 타입 -> 위험 등급 룩업.
// 모르는 액션 타입은 high로 분류 (fail safe)

package service

import "github.com/homelab-ir/backend/internal/model"

// RiskTable - 액션 타입별 위험 등급 테이블
type RiskTable struct {
	levels map[string]model.RiskLevel
}

// DefaultRiskTable - 홈랩 기본 등급 테이블
//
//	low:    이미 죽어 있는 것을 살리는 류의 액션 (부작용 없음)
//	medium: 동작 중인 리소스를 멈추거나 재시작하는 액션
//	high:   네트워크/방화벽/복원 등 파급 범위가 큰 액션
func DefaultRiskTable() *RiskTable {
	return &RiskTable{
		levels: map[string]model.RiskLevel{
			"start_container":   model.RiskLow,
			"restart_container": model.RiskLow,
			"restart_service":   model.RiskLow,
			"clear_cache":       model.RiskLow,
			"prune_disk":        model.RiskLow,
			"notify_only":       model.RiskLow,

			"stop_container": model.RiskMedium,
			"restart_vm":     model.RiskMedium,
			"reboot_vm":      model.RiskMedium,
			"stop_vm":        model.RiskMedium,
			"scale_service":  model.RiskMedium,

			"modify_firewall": model.RiskHigh,
			"modify_network":  model.RiskHigh,
			"update_dns":      model.RiskHigh,
			"restore_backup":  model.RiskHigh,
			"shutdown_host":   model.RiskHigh,
		},
	}
}

// Classify - 액션 타입을 위험 등급으로 매핑. 미지의 타입은 high
func (t *RiskTable) Classify(actionType string) model.RiskLevel {
	if level, ok := t.levels[actionType]; ok {
		return level
	}
	return model.RiskHigh
}

// Override - 운영 환경별 등급 재정의 (테스트 및 설정 주입용)
func (t *RiskTable) Override(actionType string, level model.RiskLevel) {
	t.levels[actionType] = level
}

// Known - 테이블에 등재된 액션 타입인지 확인
func (t *RiskTable) Known(actionType string) bool {
	_, ok := t.levels[actionType]
	return ok
}
