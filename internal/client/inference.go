// 자유 텍스트 추론(진단 가설 생성)을 담당하는 클라이언트
// 백엔드 교체가 가능하도록 core는 Infer(prompt) -> text 계약만 의존

package client

import (
	"context"
	"fmt"

	"github.com/homelab-ir/backend/internal/config"
	"google.golang.org/genai"
)

type InferenceClient struct {
	client *genai.Client
	model  string
}

func NewInferenceClient(cfg config.InferenceConfig) (*InferenceClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing AI_API_KEY")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, err
	}
	return &InferenceClient{client: client, model: cfg.Model}, nil
}

func (c *InferenceClient) Infer(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	res, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", fmt.Errorf("empty inference result")
	}
	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("empty inference result")
	}
	return text, nil
}
