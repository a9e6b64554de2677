// Incident Memory 비즈니스 로직 정의
//
// 처리 흐름:
//  1. Store: alertName + description 임베딩 계산 후 기록 저장
//     - 임베딩 실패 시 벡터 없이 저장 (유사도 검색 대상에서만 제외)
//     - 저장 실패는 1회 재시도, 그래도 실패하면 경고만 (파이프라인 비차단)
//  2. FindSimilar: 질의 텍스트 임베딩 → 코사인 최근접 검색 → [0,1] 점수 변환
//  3. Stats: 전체 집계, 짧은 TTL 캐시 (읽기 많은 Reporting 대응)

package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/homelab-ir/backend/internal/model"
)

// IncidentRepo - Incident 영속화 인터페이스
type IncidentRepo interface {
	InsertIncident(ctx context.Context, rec model.IncidentRecord, embedding []float32, embeddingModel string) error
	FinalizeIncident(ctx context.Context, id, status string, resolutionSeconds int) error
	SearchSimilar(ctx context.Context, embedding []float32, severity string, limit int) ([]model.IncidentRecord, []float64, error)
	ListIncidents(ctx context.Context, limit int, severity string) ([]model.IncidentRecord, error)
	GetIncidentStats(ctx context.Context) (*model.IncidentStats, error)
	CountIncidents(ctx context.Context) (int, error)
}

// Embedder - 텍스트 임베딩 collaborator
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, string, error)
}

const statsCacheTTL = 30 * time.Second

type MemoryService struct {
	repo     IncidentRepo
	embedder Embedder

	statsMu     sync.Mutex
	cachedStats *model.IncidentStats
	cachedAt    time.Time
}

func NewMemoryService(repo IncidentRepo, embedder Embedder) *MemoryService {
	return &MemoryService{repo: repo, embedder: embedder}
}

// Store - Incident 기록 저장
// 메모리 쓰기 손실이 인시던트 처리를 막는 일은 없어야 하므로
// 호출자는 리턴된 오류를 경고로만 취급한다
func (s *MemoryService) Store(ctx context.Context, rec model.IncidentRecord) error {
	if rec.ID == "" || rec.AlertName == "" {
		return fmt.Errorf("incident id and alert name are required")
	}

	embedding, embeddingModel, err := s.embedder.EmbedText(ctx, rec.AlertName+" "+rec.Description)
	if err != nil {
		log.Printf("Failed to embed incident text, storing without vector (incident_id=%s): %v", rec.ID, err)
		embedding = nil
		embeddingModel = ""
	}

	if err := s.repo.InsertIncident(ctx, rec, embedding, embeddingModel); err != nil {
		// 단 1회 재시도. 무한 재시도 금지
		log.Printf("Incident store failed, retrying once (incident_id=%s): %v", rec.ID, err)
		if err := s.repo.InsertIncident(ctx, rec, embedding, embeddingModel); err != nil {
			return fmt.Errorf("incident store failed after retry: %w", err)
		}
	}

	s.invalidateStats()
	return nil
}

// Finalize - pending 상태 Incident의 종결 처리
// 이미 종결된 레코드는 저장소 레이어에서 no-op 처리됨
func (s *MemoryService) Finalize(ctx context.Context, id, status string, resolutionSeconds int) error {
	if err := s.repo.FinalizeIncident(ctx, id, status, resolutionSeconds); err != nil {
		return err
	}
	s.invalidateStats()
	return nil
}

// FindSimilar - 질의 텍스트와 유사한 과거 Incident 검색
//
// 빈 저장소면 빈 리스트 반환 (오류 아님)
// 점수는 코사인 거리 d를 (2-d)/2로 [0,1] 변환한 값
func (s *MemoryService) FindSimilar(ctx context.Context, queryText string, limit int, severity string) ([]model.SimilarIncident, error) {
	if limit <= 0 {
		limit = 3
	}

	embedding, _, err := s.embedder.EmbedText(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	records, distances, err := s.repo.SearchSimilar(ctx, embedding, severity, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	results := make([]model.SimilarIncident, 0, len(records))
	for i, rec := range records {
		results = append(results, model.SimilarIncident{
			Record: rec,
			Score:  distanceToScore(distances[i]),
		})
	}
	return results, nil
}

// distanceToScore - pgvector 코사인 거리([0,2])를 [0,1] 점수로 변환
func distanceToScore(distance float64) float64 {
	score := (2 - distance) / 2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// FormatHistoricalContext - 유사 Incident를 진단 단계용 다이제스트로 렌더링
// 결정적 포맷, 입력을 변경하지 않음
func FormatHistoricalContext(results []model.SimilarIncident) string {
	if len(results) == 0 {
		return "No similar past incidents found."
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Found %d similar past incident(s):\n", len(results)))
	for i, r := range results {
		rec := r.Record
		rootCause := "unknown"
		if rec.RootCause != nil && *rec.RootCause != "" {
			rootCause = *rec.RootCause
		}
		remediation := "none recorded"
		if rec.RemediationTaken != nil && *rec.RemediationTaken != "" {
			remediation = *rec.RemediationTaken
		}
		resolution := "n/a"
		if rec.ResolutionSeconds != nil {
			resolution = fmt.Sprintf("%ds", *rec.ResolutionSeconds)
		}

		b.WriteString(fmt.Sprintf("%d. [%.2f] %s (%s)\n", i+1, r.Score, rec.AlertName, rec.Severity))
		b.WriteString(fmt.Sprintf("   root cause: %s\n", rootCause))
		b.WriteString(fmt.Sprintf("   remediation: %s (status=%s, resolution=%s)\n",
			remediation, rec.ResolutionStatus, resolution))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Stats - 전체 Incident 집계 (30s TTL 캐시)
func (s *MemoryService) Stats(ctx context.Context) (*model.IncidentStats, error) {
	s.statsMu.Lock()
	if s.cachedStats != nil && time.Since(s.cachedAt) < statsCacheTTL {
		cached := *s.cachedStats
		s.statsMu.Unlock()
		return &cached, nil
	}
	s.statsMu.Unlock()

	stats, err := s.repo.GetIncidentStats(ctx)
	if err != nil {
		return nil, err
	}

	s.statsMu.Lock()
	s.cachedStats = stats
	s.cachedAt = time.Now()
	s.statsMu.Unlock()

	snapshot := *stats
	return &snapshot, nil
}

func (s *MemoryService) invalidateStats() {
	s.statsMu.Lock()
	s.cachedStats = nil
	s.statsMu.Unlock()
}

// List - 최근 Incident 목록 (Reporting용)
func (s *MemoryService) List(ctx context.Context, limit int, severity string) ([]model.IncidentRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListIncidents(ctx, limit, severity)
}

// Count - 전체 건수 (헬스체크용)
func (s *MemoryService) Count(ctx context.Context) (int, error) {
	return s.repo.CountIncidents(ctx)
}
