// Package template provides notify webhook body template rendering.
//
// 지원하는 변수 형식:
//
//	{{incident.id}}, {{incident.alert_name}}, {{incident.severity}},
//	{{incident.status}}, {{incident.root_cause}}, {{incident.remediation}},
//	{{incident.duration_seconds}}
//
//	{{alert.alertname}}, {{alert.severity}}, {{alert.component}},
//	{{alert.status}}, {{alert.description}}, {{alert.fingerprint}},
//	{{alert.started_at}}
//
//	{{action.type}}, {{action.target}}, {{action.summary}},
//	{{action.risk}}, {{action.confirmation_id}}, {{action.state}}
package template

import (
	"strconv"
	"strings"
	"time"

	"github.com/homelab-ir/backend/internal/model"
)

// IncidentData - 템플릿 렌더링에 사용할 Incident 데이터
type IncidentData struct {
	ID              string
	AlertName       string
	Severity        string
	Status          string
	RootCause       string
	Remediation     string
	DurationSeconds int
}

// ActionData - 템플릿 렌더링에 사용할 복구 액션 데이터
type ActionData struct {
	Type           string
	Target         string
	Summary        string
	Risk           string
	ConfirmationID string
	State          string
}

// IncidentDataFromRecord - IncidentRecord에서 IncidentData 생성
func IncidentDataFromRecord(rec model.IncidentRecord) IncidentData {
	rootCause := ""
	if rec.RootCause != nil {
		rootCause = *rec.RootCause
	}
	remediation := ""
	if rec.RemediationTaken != nil {
		remediation = *rec.RemediationTaken
	}
	seconds := 0
	if rec.ResolutionSeconds != nil {
		seconds = *rec.ResolutionSeconds
	}
	return IncidentData{
		ID:              rec.ID,
		AlertName:       rec.AlertName,
		Severity:        rec.Severity,
		Status:          rec.ResolutionStatus,
		RootCause:       rootCause,
		Remediation:     remediation,
		DurationSeconds: seconds,
	}
}

// ActionDataFromOutcome - 파이프라인 결과에서 ActionData 생성
func ActionDataFromOutcome(action model.ProposedAction, outcome model.RemediationOutcome) ActionData {
	return ActionData{
		Type:           action.Type,
		Target:         action.Target,
		Summary:        action.Summary,
		Risk:           string(outcome.RiskLevel),
		ConfirmationID: outcome.ConfirmationID,
		State:          outcome.StateName,
	}
}

// RenderBody - notify webhook body 템플릿의 변수를 실제 값으로 치환
//
// incident, alert, action 중 일부만 전달해도 동작합니다.
// nil로 전달된 항목의 변수는 빈 문자열로 치환됩니다.
func RenderBody(body string, incident *IncidentData, alert *model.Alert, action *ActionData) string {
	pairs := make([]string, 0, 40)

	if incident != nil {
		pairs = append(pairs,
			"{{incident.id}}", incident.ID,
			"{{incident.alert_name}}", incident.AlertName,
			"{{incident.severity}}", incident.Severity,
			"{{incident.status}}", incident.Status,
			"{{incident.root_cause}}", incident.RootCause,
			"{{incident.remediation}}", incident.Remediation,
			"{{incident.duration_seconds}}", strconv.Itoa(incident.DurationSeconds),
		)
	} else {
		pairs = append(pairs,
			"{{incident.id}}", "",
			"{{incident.alert_name}}", "",
			"{{incident.severity}}", "",
			"{{incident.status}}", "",
			"{{incident.root_cause}}", "",
			"{{incident.remediation}}", "",
			"{{incident.duration_seconds}}", "",
		)
	}

	if alert != nil {
		pairs = append(pairs,
			"{{alert.alertname}}", alert.Name,
			"{{alert.severity}}", alert.Severity,
			"{{alert.component}}", alert.Component(),
			"{{alert.status}}", alert.Status,
			"{{alert.description}}", alert.Description(),
			"{{alert.fingerprint}}", alert.Fingerprint,
			"{{alert.started_at}}", alert.StartedAt.Format(time.RFC3339),
		)
	} else {
		pairs = append(pairs,
			"{{alert.alertname}}", "",
			"{{alert.severity}}", "",
			"{{alert.component}}", "",
			"{{alert.status}}", "",
			"{{alert.description}}", "",
			"{{alert.fingerprint}}", "",
			"{{alert.started_at}}", "",
		)
	}

	if action != nil {
		pairs = append(pairs,
			"{{action.type}}", action.Type,
			"{{action.target}}", action.Target,
			"{{action.summary}}", action.Summary,
			"{{action.risk}}", action.Risk,
			"{{action.confirmation_id}}", action.ConfirmationID,
			"{{action.state}}", action.State,
		)
	} else {
		pairs = append(pairs,
			"{{action.type}}", "",
			"{{action.target}}", "",
			"{{action.summary}}", "",
			"{{action.risk}}", "",
			"{{action.confirmation_id}}", "",
			"{{action.state}}", "",
		)
	}

	return strings.NewReplacer(pairs...).Replace(body)
}
