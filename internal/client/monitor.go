// 모니터링 조회 collaborator와 HTTP 통신하는 클라이언트 정의
//
// 환경변수:
//   - MONITOR_URL: 모니터링 서비스 URL (예: http://uptime.lab.internal:3001)
//
// Detect 단계가 알림이 실제 장애인지 현재 상태를 교차 확인할 때 사용

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/homelab-ir/backend/internal/config"
	"github.com/homelab-ir/backend/internal/model"
)

// MonitorClient 구조체 정의
type MonitorClient struct {
	baseURL    string
	httpClient *http.Client
}

// monitorStateResponse - GET /api/status 응답
type monitorStateResponse struct {
	Status string `json:"status"` // up, down, degraded
	Detail string `json:"detail"`
}

// MonitorClient 객체 생성
func NewMonitorClient(cfg config.MonitorConfig) *MonitorClient {
	return &MonitorClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *MonitorClient) IsConfigured() bool {
	return c.baseURL != ""
}

// CheckTarget - 알림 대상의 현재 상태 조회
func (c *MonitorClient) CheckTarget(ctx context.Context, alert model.Alert) (model.TargetState, error) {
	endpoint := fmt.Sprintf("%s/api/status?target=%s", c.baseURL, url.QueryEscape(alert.Component()))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return model.TargetState{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.TargetState{}, fmt.Errorf("failed to query monitor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.TargetState{}, fmt.Errorf("monitor returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.TargetState{}, fmt.Errorf("failed to read response: %w", err)
	}

	var state monitorStateResponse
	if err := json.Unmarshal(body, &state); err != nil {
		return model.TargetState{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return model.TargetState{
		Reachable: true,
		Healthy:   state.Status == "up",
		Detail:    state.Detail,
	}, nil
}
