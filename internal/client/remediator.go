// 복구 액션 실행 collaborator와 HTTP 통신하는 클라이언트 정의
//
// 환경변수:
//   - REMEDIATOR_URL: 실행기 서비스 URL (예: http://executor.lab.internal:9300)
//
// 실행기는 컨테이너/VM/서비스의 시작·중지·재시작 등을 수행하고
// 성공/실패만 반환하는 얇은 API (core 외부)

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/homelab-ir/backend/internal/config"
	"github.com/homelab-ir/backend/internal/model"
)

// RemediatorClient 구조체 정의
type RemediatorClient struct {
	baseURL    string
	httpClient *http.Client
}

// executeRequest - POST /api/execute 요청
type executeRequest struct {
	Action string `json:"action"`
	Target string `json:"target"`
}

// executeResponse - POST /api/execute 응답
type executeResponse struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
}

// RemediatorClient 객체 생성
func NewRemediatorClient(cfg config.RemediatorConfig) *RemediatorClient {
	return &RemediatorClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second, // 재시작류 작업 시간 고려
		},
	}
}

func (c *RemediatorClient) IsConfigured() bool {
	return c.baseURL != ""
}

// Execute - 제안된 복구 액션 실행 (동기)
func (c *RemediatorClient) Execute(ctx context.Context, action model.ProposedAction) (model.ExecutionResult, error) {
	payload, err := json.Marshal(executeRequest{
		Action: action.Type,
		Target: action.Target,
	})
	if err != nil {
		return model.ExecutionResult{}, fmt.Errorf("failed to marshal execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/execute", bytes.NewBuffer(payload))
	if err != nil {
		return model.ExecutionResult{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.ExecutionResult{}, fmt.Errorf("failed to send request to remediator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.ExecutionResult{}, fmt.Errorf("remediator returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.ExecutionResult{}, fmt.Errorf("failed to read response: %w", err)
	}

	var execResp executeResponse
	if err := json.Unmarshal(body, &execResp); err != nil {
		return model.ExecutionResult{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return model.ExecutionResult{
		Success: execResp.Success,
		Output:  execResp.Output,
	}, nil
}
