package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/homelab-ir/backend/internal/model"
)

// EnsureNotifyWebhookSchema - notify_webhooks 테이블 생성 (없으면)
func (db *Postgres) EnsureNotifyWebhookSchema(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS notify_webhooks (
			id         SERIAL       PRIMARY KEY,
			url        TEXT         NOT NULL DEFAULT '',
			method     TEXT         NOT NULL DEFAULT 'POST',
			headers    JSONB        NOT NULL DEFAULT '[]',
			body       TEXT         NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create notify_webhooks table: %w", err)
	}
	return nil
}

// GetNotifyWebhooks - 아웃바운드 웹훅 설정 전체 목록 조회 (최신순)
func (db *Postgres) GetNotifyWebhooks(ctx context.Context) ([]model.NotifyWebhook, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, url, method, headers, body, updated_at
		FROM notify_webhooks
		ORDER BY updated_at DESC;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query notify webhooks: %w", err)
	}
	defer rows.Close()

	var hooks []model.NotifyWebhook
	for rows.Next() {
		var hook model.NotifyWebhook
		var headersJSON []byte
		if err := rows.Scan(&hook.ID, &hook.URL, &hook.Method, &headersJSON, &hook.Body, &hook.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notify webhook: %w", err)
		}
		if err := json.Unmarshal(headersJSON, &hook.Headers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal headers: %w", err)
		}
		hooks = append(hooks, hook)
	}
	if hooks == nil {
		hooks = []model.NotifyWebhook{}
	}
	return hooks, nil
}

// CreateNotifyWebhook - 신규 웹훅 설정 저장
func (db *Postgres) CreateNotifyWebhook(ctx context.Context, hook model.NotifyWebhook) (int, error) {
	headersJSON, err := json.Marshal(hook.Headers)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal headers: %w", err)
	}

	var id int
	err = db.Pool.QueryRow(ctx, `
		INSERT INTO notify_webhooks (url, method, headers, body, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id;
	`, hook.URL, hook.Method, headersJSON, hook.Body).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert notify webhook: %w", err)
	}
	return id, nil
}

// UpdateNotifyWebhook - ID로 웹훅 설정 수정
func (db *Postgres) UpdateNotifyWebhook(ctx context.Context, id int, hook model.NotifyWebhook) error {
	headersJSON, err := json.Marshal(hook.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal headers: %w", err)
	}

	tag, err := db.Pool.Exec(ctx, `
		UPDATE notify_webhooks
		SET url = $1, method = $2, headers = $3, body = $4, updated_at = NOW()
		WHERE id = $5;
	`, hook.URL, hook.Method, headersJSON, hook.Body, id)
	if err != nil {
		return fmt.Errorf("failed to update notify webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notify webhook not found: id=%d", id)
	}
	return nil
}

// DeleteNotifyWebhook - ID로 웹훅 설정 삭제
func (db *Postgres) DeleteNotifyWebhook(ctx context.Context, id int) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM notify_webhooks WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete notify webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notify webhook not found: id=%d", id)
	}
	return nil
}
