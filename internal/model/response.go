package model

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type AuthLogoutResponse struct {
	Status string `json:"status"`
}

type AuthMeResponse struct {
	UserID  int64  `json:"userId"`
	LoginID string `json:"loginId"`
}

// AlertWebhookResponse - POST /alert 응답 구조체
type AlertWebhookResponse struct {
	Status     string `json:"status"`
	AlertCount int    `json:"alertCount"`
	Accepted   int    `json:"accepted"`
}
