// Communicate 단계 알림 전파 로직 정의
//
// 전송 대상:
//  1. Slack (설정된 경우): 승인 요청 + 최종 요약, fingerprint별 스레드
//  2. DB에 등록된 아웃바운드 웹훅: body 템플릿 렌더링 후 fan-out
//
// Slack 전송 실패는 최대 3회 재시도 (backoff 2배 증가)
// 웹훅 개별 실패는 로그만 남기고 나머지 대상 전송은 계속

package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/homelab-ir/backend/internal/client"
	"github.com/homelab-ir/backend/internal/model"
	"github.com/homelab-ir/backend/internal/template"
)

const (
	notifyMaxAttempts  = 3
	notifyInitialDelay = 500 * time.Millisecond
)

// NotifyWebhookRepo - 아웃바운드 웹훅 설정 조회 인터페이스
type NotifyWebhookRepo interface {
	GetNotifyWebhooks(ctx context.Context) ([]model.NotifyWebhook, error)
}

type NotifyService struct {
	slack      *client.SlackClient
	webhooks   NotifyWebhookRepo
	httpClient *http.Client
}

func NewNotifyService(slack *client.SlackClient, webhooks NotifyWebhookRepo) *NotifyService {
	return &NotifyService{
		slack:    slack,
		webhooks: webhooks,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NotifyApprovalRequest - 승인 요청 전송 (ApprovalService collaborator)
func (s *NotifyService) NotifyApprovalRequest(ctx context.Context, pending model.PendingAction, alert model.Alert) error {
	if s.slack == nil || !s.slack.IsConfigured() {
		log.Printf("Slack not configured, approval request not delivered (confirmation_id=%s)", pending.ConfirmationID)
		return nil
	}
	return s.withRetry(ctx, "approval request", func(ctx context.Context) error {
		return s.slack.SendApprovalRequest(ctx, pending, alert)
	})
}

// NotifyOutcome - 최종 요약 전송 (PipelineService collaborator)
// Slack과 웹훅 fan-out 중 한쪽 실패가 다른 쪽을 막지 않음
func (s *NotifyService) NotifyOutcome(ctx context.Context, result model.RunResult) error {
	var firstErr error

	if s.slack != nil && s.slack.IsConfigured() {
		err := s.withRetry(ctx, "outcome summary", func(ctx context.Context) error {
			return s.slack.SendOutcomeSummary(ctx, result)
		})
		if err != nil {
			firstErr = err
		}
	}

	if err := s.fanOutWebhooks(ctx, result); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// withRetry - 최대 notifyMaxAttempts회 시도, 지연 2배 증가
func (s *NotifyService) withRetry(ctx context.Context, what string, fn func(ctx context.Context) error) error {
	delay := notifyInitialDelay
	var lastErr error

	for attempt := 1; attempt <= notifyMaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		log.Printf("Slack %s send failed (attempt=%d/%d): %v", what, attempt, notifyMaxAttempts, lastErr)

		if attempt == notifyMaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay *= 2
		}
	}
	return fmt.Errorf("slack %s failed after %d attempts: %w", what, notifyMaxAttempts, lastErr)
}

// fanOutWebhooks - 등록된 모든 아웃바운드 웹훅으로 결과 전송
func (s *NotifyService) fanOutWebhooks(ctx context.Context, result model.RunResult) error {
	if s.webhooks == nil {
		return nil
	}

	hooks, err := s.webhooks.GetNotifyWebhooks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load notify webhooks: %w", err)
	}
	if len(hooks) == 0 {
		return nil
	}

	incident := template.IncidentDataFromRecord(recordFromRun(result))
	action := template.ActionDataFromOutcome(result.Diagnosis.Action, result.Outcome)

	var firstErr error
	for _, hook := range hooks {
		body := template.RenderBody(hook.Body, &incident, &result.Alert, &action)
		if err := s.sendWebhook(ctx, hook, body); err != nil {
			log.Printf("Notify webhook delivery failed (webhook_id=%d, url=%s): %v", hook.ID, hook.URL, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		log.Printf("Notify webhook delivered (webhook_id=%d, incident_id=%s)", hook.ID, result.IncidentID)
	}
	return firstErr
}

func (s *NotifyService) sendWebhook(ctx context.Context, hook model.NotifyWebhook, body string) error {
	method := hook.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, hook.URL, bytes.NewBufferString(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}

	hasContentType := false
	for _, h := range hook.Headers {
		if h.Key == "" {
			continue
		}
		req.Header.Set(h.Key, h.Value)
		if http.CanonicalHeaderKey(h.Key) == "Content-Type" {
			hasContentType = true
		}
	}
	if !hasContentType {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
