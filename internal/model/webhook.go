package model

import "time"

// NotifyHeader - 헤더 키-값 쌍
type NotifyHeader struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NotifyWebhook - DB에 저장되는 아웃바운드 알림 웹훅 설정
// Communicate 단계가 Slack 외에 추가로 전송하는 대상 (ntfy, Discord 등)
type NotifyWebhook struct {
	ID        int            `json:"id"`
	URL       string         `json:"url"`
	Method    string         `json:"method"`
	Headers   []NotifyHeader `json:"headers"`
	Body      string         `json:"body"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NotifyWebhookRequest - 웹훅 설정 생성/수정 요청 구조체
type NotifyWebhookRequest struct {
	URL     string         `json:"url"`
	Method  string         `json:"method"`
	Headers []NotifyHeader `json:"headers"`
	Body    string         `json:"body"`
}

// NotifyWebhookListResponse - 목록 조회 응답
type NotifyWebhookListResponse struct {
	Status string          `json:"status"`
	Data   []NotifyWebhook `json:"data"`
}

// NotifyWebhookMutationResponse - 생성/수정/삭제 응답
type NotifyWebhookMutationResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	ID      int    `json:"id,omitempty"`
}
