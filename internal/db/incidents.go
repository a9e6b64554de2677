// Incident Memory 영속화 레이어
//
// incidents 테이블이 곧 Incident Memory Store의 저장소:
//   - 기록은 embedding(pgvector) 컬럼과 함께 저장
//   - 유사도 검색은 pgvector의 <=> (코사인 거리) 연산자로 수행
//   - 집계(성공률, 평균 해결 시간, 심각도 히스토그램)는 SQL로 계산

package db

import (
	"context"
	"fmt"

	"github.com/homelab-ir/backend/internal/model"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingDim - text-embedding-004 출력 차원
const EmbeddingDim = 768

// EnsureIncidentSchema - incidents 테이블 및 인덱스 생성 (멱등)
func (db *Postgres) EnsureIncidentSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS incidents (
			incident_id TEXT PRIMARY KEY,
			alert_name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL DEFAULT 'warning',
			root_cause TEXT,
			remediation_taken TEXT,
			resolution_status TEXT NOT NULL DEFAULT 'pending',
			failure_reason TEXT,
			resolution_seconds INT,
			embedding vector(%d),
			embedding_model TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`, EmbeddingDim),
		`ALTER TABLE incidents ADD COLUMN IF NOT EXISTS failure_reason TEXT`,
		`CREATE INDEX IF NOT EXISTS incidents_severity_idx ON incidents(severity)`,
		`CREATE INDEX IF NOT EXISTS incidents_created_at_idx ON incidents(created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// InsertIncident - Incident 기록 저장 (upsert)
// embedding이 nil이면 벡터 없이 저장 (유사도 검색 대상에서만 제외)
func (db *Postgres) InsertIncident(ctx context.Context, rec model.IncidentRecord, embedding []float32, embeddingModel string) error {
	query := `
		INSERT INTO incidents (
			incident_id, alert_name, description, severity,
			root_cause, remediation_taken, resolution_status, failure_reason, resolution_seconds,
			embedding, embedding_model, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (incident_id) DO UPDATE SET
			resolution_status = EXCLUDED.resolution_status,
			failure_reason = EXCLUDED.failure_reason,
			resolution_seconds = EXCLUDED.resolution_seconds
	`

	var vec interface{}
	if embedding != nil {
		v := pgvector.NewVector(embedding)
		vec = v
	}

	_, err := db.Pool.Exec(ctx, query,
		rec.ID,
		rec.AlertName,
		rec.Description,
		rec.Severity,
		rec.RootCause,
		rec.RemediationTaken,
		rec.ResolutionStatus,
		rec.FailureReason,
		rec.ResolutionSeconds,
		vec,
		embeddingModel,
		rec.CreatedAt,
	)
	return err
}

// FinalizeIncident - pending 상태 기록의 단일 종결 업데이트
func (db *Postgres) FinalizeIncident(ctx context.Context, id, status string, resolutionSeconds int) error {
	query := `
		UPDATE incidents
		SET resolution_status = $2, resolution_seconds = $3
		WHERE incident_id = $1 AND resolution_status = 'pending'
	`
	_, err := db.Pool.Exec(ctx, query, id, status, resolutionSeconds)
	return err
}

// SearchSimilar - 코사인 거리 기준 최근접 검색
//
// distance = embedding <=> $1 (0이면 동일, 2면 정반대)
// 점수 변환([0,1] 정규화)은 service 레이어 담당
// 동률일 때 최근 기록 우선
func (db *Postgres) SearchSimilar(ctx context.Context, embedding []float32, severity string, limit int) ([]model.IncidentRecord, []float64, error) {
	query := `
		SELECT
			incident_id, alert_name, description, severity,
			root_cause, remediation_taken, resolution_status, failure_reason, resolution_seconds,
			created_at, embedding <=> $1 AS distance
		FROM incidents
		WHERE embedding IS NOT NULL
		  AND ($2 = '' OR severity = $2)
		ORDER BY embedding <=> $1 ASC, created_at DESC
		LIMIT $3
	`

	rows, err := db.Pool.Query(ctx, query, pgvector.NewVector(embedding), severity, limit)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var records []model.IncidentRecord
	var distances []float64
	for rows.Next() {
		var rec model.IncidentRecord
		var distance float64
		if err := rows.Scan(
			&rec.ID,
			&rec.AlertName,
			&rec.Description,
			&rec.Severity,
			&rec.RootCause,
			&rec.RemediationTaken,
			&rec.ResolutionStatus,
			&rec.FailureReason,
			&rec.ResolutionSeconds,
			&rec.CreatedAt,
			&distance,
		); err != nil {
			return nil, nil, err
		}
		records = append(records, rec)
		distances = append(distances, distance)
	}

	return records, distances, rows.Err()
}

// ListIncidents - 최근 Incident 목록 조회 (Reporting용)
func (db *Postgres) ListIncidents(ctx context.Context, limit int, severity string) ([]model.IncidentRecord, error) {
	query := `
		SELECT
			incident_id, alert_name, description, severity,
			root_cause, remediation_taken, resolution_status, failure_reason, resolution_seconds,
			created_at
		FROM incidents
		WHERE ($2 = '' OR severity = $2)
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := db.Pool.Query(ctx, query, limit, severity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.IncidentRecord
	for rows.Next() {
		var rec model.IncidentRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.AlertName,
			&rec.Description,
			&rec.Severity,
			&rec.RootCause,
			&rec.RemediationTaken,
			&rec.ResolutionStatus,
			&rec.FailureReason,
			&rec.ResolutionSeconds,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}

	if list == nil {
		list = []model.IncidentRecord{}
	}
	return list, rows.Err()
}

// GetIncidentStats - 전체 기록에 대한 집계
//
// successRate는 종결된(resolved/failed) 기록 대비 resolved 비율
// 평균 해결 시간은 resolution_seconds가 기록된 건만 대상
func (db *Postgres) GetIncidentStats(ctx context.Context) (*model.IncidentStats, error) {
	stats := &model.IncidentStats{BySeverity: map[string]int{}}

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE resolution_status = 'resolved'),
			COUNT(*) FILTER (WHERE resolution_status IN ('resolved', 'failed')),
			COALESCE(AVG(resolution_seconds) FILTER (WHERE resolution_seconds IS NOT NULL), 0)
		FROM incidents
	`

	var resolved, terminal int
	err := db.Pool.QueryRow(ctx, query).Scan(
		&stats.TotalIncidents,
		&resolved,
		&terminal,
		&stats.AvgResolutionSeconds,
	)
	if err != nil {
		return nil, err
	}

	if terminal > 0 {
		stats.SuccessRate = float64(resolved) / float64(terminal)
	}

	rows, err := db.Pool.Query(ctx, `SELECT severity, COUNT(*) FROM incidents GROUP BY severity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, err
		}
		stats.BySeverity[severity] = count
	}

	return stats, rows.Err()
}

// CountIncidents - 헬스체크용 전체 건수
func (db *Postgres) CountIncidents(ctx context.Context) (int, error) {
	var count int
	err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&count)
	return count, err
}
