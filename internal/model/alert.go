// Alertmanager 웹훅 페이로드 및 정규화된 Alert 구조체를 정의
// handler, service, client 레이어에서 공통으로 사용하기 때문에 model 레이어에 별도로 정의

package model

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"
)

// 심각도 enum. 이 세 가지 외의 값은 수신 시점에 검증 오류 처리
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert 상태
const (
	StatusFiring   = "firing"
	StatusResolved = "resolved"
)

// AlertmanagerWebhook - Alertmanager 웹훅 페이로드
// 여러 개의 알림이 그룹으로 묶여서 전송 가능
type AlertmanagerWebhook struct {
	Version string `json:"version"`

	// 동일한 GroupKey를 가진 알림들은 함께 그룹핑됨
	GroupKey string `json:"groupKey"`

	TruncatedAlerts int    `json:"truncatedAlerts"`
	Status          string `json:"status"`
	Receiver        string `json:"receiver"`

	GroupLabels       map[string]string `json:"groupLabels"`
	CommonLabels      map[string]string `json:"commonLabels"`
	CommonAnnotations map[string]string `json:"commonAnnotations"`
	ExternalURL       string            `json:"externalURL"`

	// 개별 알림 리스트
	Alerts []WebhookAlert `json:"alerts"`
}

// WebhookAlert - 웹훅에 실려오는 개별 알림 (정규화 전)
type WebhookAlert struct {
	Status string `json:"status"`

	// - alertname: 알림 이름 (예: "ContainerDown", "DiskAlmostFull")
	// - severity: 심각도 (info, warning, critical)
	// - instance: 문제 발생 호스트/컨테이너
	Labels map[string]string `json:"labels"`

	// - summary: 알림 요약
	// - description: 알림 상세 설명
	Annotations map[string]string `json:"annotations"`

	// StartsAt: 알림 발생 시각 (UTC)
	StartsAt time.Time `json:"startsAt"`

	// EndsAt: resolved 상태일 때만 유효한 값 설정
	EndsAt time.Time `json:"endsAt"`

	GeneratorURL string `json:"generatorURL"`

	// Fingerprint: Alertmanager가 계산한 고유 식별자
	// 비어 있으면 수신 측에서 name+labels 해시로 직접 계산
	Fingerprint string `json:"fingerprint"`
}

// Alert - 파이프라인 내부에서 사용하는 정규화된 알림
type Alert struct {
	Fingerprint string            `json:"fingerprint"`
	Name        string            `json:"name"`
	Severity    string            `json:"severity"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	Status      string            `json:"status"`
	StartedAt   time.Time         `json:"startedAt"`

	// AcceptedAt: Gateway가 수락한 시각. 해결 소요 시간의 기점이며
	// intake 큐 대기 시간도 포함된다
	AcceptedAt time.Time `json:"acceptedAt"`
}

// NormalizeAlert - 웹훅 알림을 내부 Alert 형태로 변환
//
// 검증 규칙:
//   - alertname 라벨 필수
//   - status는 firing 또는 resolved
//   - severity는 info/warning/critical (비어 있으면 warning으로 보정)
//
// 하나의 알림이 잘못되어도 배치 전체를 실패시키지 않도록
// 오류는 개별 항목 단위로 반환합니다.
func NormalizeAlert(raw WebhookAlert) (Alert, error) {
	name := raw.Labels["alertname"]
	if name == "" {
		return Alert{}, fmt.Errorf("missing alertname label")
	}

	if raw.Status != StatusFiring && raw.Status != StatusResolved {
		return Alert{}, fmt.Errorf("invalid status: %q", raw.Status)
	}

	severity := raw.Labels["severity"]
	switch severity {
	case SeverityInfo, SeverityWarning, SeverityCritical:
	case "":
		severity = SeverityWarning
	default:
		return Alert{}, fmt.Errorf("invalid severity: %q", severity)
	}

	fingerprint := raw.Fingerprint
	if fingerprint == "" {
		fingerprint = ComputeFingerprint(name, raw.Labels)
	}

	startedAt := raw.StartsAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	labels := raw.Labels
	if labels == nil {
		labels = map[string]string{}
	}
	annotations := raw.Annotations
	if annotations == nil {
		annotations = map[string]string{}
	}

	return Alert{
		Fingerprint: fingerprint,
		Name:        name,
		Severity:    severity,
		Labels:      labels,
		Annotations: annotations,
		Status:      raw.Status,
		StartedAt:   startedAt,
	}, nil
}

// ComputeFingerprint - name + 정렬된 라벨 집합의 FNV-1a 해시
// Alertmanager가 fingerprint를 주지 않는 업스트림(자작 모니터 등) 대응용
func ComputeFingerprint(name string, labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := fnv.New64a()
	h.Write([]byte(name))
	for _, k := range keys {
		h.Write([]byte{0xff})
		h.Write([]byte(k))
		h.Write([]byte{0xfe})
		h.Write([]byte(labels[k]))
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// Description - annotations에서 설명 텍스트 추출 (description 우선, 없으면 summary)
func (a Alert) Description() string {
	if desc := a.Annotations["description"]; desc != "" {
		return desc
	}
	return a.Annotations["summary"]
}

// Component - 알림이 가리키는 대상 리소스 식별자
func (a Alert) Component() string {
	for _, key := range []string{"instance", "container", "vm", "service", "job"} {
		if v := a.Labels[key]; v != "" {
			return v
		}
	}
	return a.Name
}

// QueryText - 유사 Incident 검색에 사용하는 텍스트
func (a Alert) QueryText() string {
	desc := a.Description()
	if desc == "" {
		return a.Name
	}
	return strings.TrimSpace(a.Name + " " + desc)
}
