// Slack 인시던트 메시지 관련 메서드 정의
//
// 운영자에게 보이는 메시지는 두 종류뿐:
//   - 자동 조치 보고 / 최종 요약 (SendOutcomeSummary)
//   - 승인 요청 / 만료 통지 (SendApprovalRequest, 만료는 요약에 포함)
//
// 같은 fingerprint의 메시지는 thread_ts로 한 스레드에 묶음

package client

import (
	"context"
	"fmt"
	"time"

	"github.com/homelab-ir/backend/internal/model"
)

// SendApprovalRequest - medium/high 위험 액션에 대한 승인 요청 메시지 전송
func (c *SlackClient) SendApprovalRequest(ctx context.Context, pending model.PendingAction, alert model.Alert) error {
	if !c.IsConfigured() {
		return fmt.Errorf("slack bot token or channel ID not configured")
	}

	title := fmt.Sprintf("🔐 [%s] 승인 필요: %s", pending.RiskLevel, alert.Name)

	fields := []SlackField{
		{Title: "Component", Value: alert.Component(), Short: true},
		{Title: "Severity", Value: alert.Severity, Short: true},
		{Title: "Risk", Value: string(pending.RiskLevel), Short: true},
		{Title: "Expires", Value: pending.ExpiresAt.Format(time.RFC3339), Short: true},
		{Title: "Proposed Fix", Value: pending.ProposedAction, Short: false},
		{Title: "Confirmation ID", Value: pending.ConfirmationID, Short: false},
	}

	msg := SlackMessage{
		Channel: c.channelID,
		Attachments: []SlackAttachment{
			{
				Color:  colorForRisk(pending.RiskLevel),
				Title:  title,
				Text:   alert.Description(),
				Fields: fields,
				Footer: "homelab-ir",
				Ts:     time.Now().Unix(),
			},
		},
	}

	if threadTS, ok := c.GetThreadTS(alert.Fingerprint); ok {
		msg.ThreadTS = threadTS
	}

	resp, err := c.send(ctx, msg)
	if err != nil {
		return err
	}

	if msg.ThreadTS == "" && resp.TS != "" {
		c.StoreThreadTS(alert.Fingerprint, resp.TS)
	}
	return nil
}

// SendOutcomeSummary - 파이프라인 종료 시 최종 요약 전송 (결과와 무관하게 1회)
func (c *SlackClient) SendOutcomeSummary(ctx context.Context, result model.RunResult) error {
	if !c.IsConfigured() {
		return fmt.Errorf("slack bot token or channel ID not configured")
	}

	alert := result.Alert
	emoji := "✅"
	color := "#36a64f" // green
	if result.Outcome.State != model.StateExecuted || !result.Outcome.Success {
		emoji = "❌"
		color = "#dc3545" // red
	}

	title := fmt.Sprintf("%s [%s] %s — %s", emoji, alert.Severity, alert.Name, result.Outcome.StateName)

	fields := []SlackField{
		{Title: "Component", Value: alert.Component(), Short: true},
		{Title: "Status", Value: result.Outcome.StateName, Short: true},
		{Title: "Root Cause", Value: result.Diagnosis.RootCauseHypothesis, Short: false},
		{Title: "Action", Value: result.Diagnosis.Action.Summary, Short: false},
		{Title: "Duration", Value: result.Duration.Round(time.Second).String(), Short: true},
	}
	if result.Outcome.Detail != "" {
		fields = append(fields, SlackField{Title: "Detail", Value: result.Outcome.Detail, Short: false})
	}

	msg := SlackMessage{
		Channel: c.channelID,
		Attachments: []SlackAttachment{
			{
				Color:  color,
				Title:  title,
				Text:   alert.Description(),
				Fields: fields,
				Footer: "homelab-ir",
				Ts:     time.Now().Unix(),
			},
		},
	}

	if threadTS, ok := c.GetThreadTS(alert.Fingerprint); ok {
		msg.ThreadTS = threadTS
	}

	_, err := c.send(ctx, msg)
	if err != nil {
		return err
	}

	// 인시던트가 종결되었으므로 스레드 매핑 정리
	c.DeleteThreadTS(alert.Fingerprint)
	return nil
}

// 위험 등급에 따른 메시지 색상 반환
func colorForRisk(risk model.RiskLevel) string {
	switch risk {
	case model.RiskHigh:
		return "#dc3545" // red
	case model.RiskMedium:
		return "#ffc107" // yellow
	default:
		return "#17a2b8" // blue
	}
}
