package service

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/homelab-ir/backend/internal/model"
)

// wordEmbedder - 단어 집합 기반 결정적 임베딩
// 같은 텍스트는 항상 같은 벡터, 단어가 겹칠수록 코사인 거리가 가까움
type wordEmbedder struct {
	failures int
}

func (e *wordEmbedder) EmbedText(ctx context.Context, text string) ([]float32, string, error) {
	if e.failures > 0 {
		e.failures--
		return nil, "fake", errors.New("embedding backend down")
	}
	vec := make([]float32, 64)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%64]++
	}
	return vec, "fake", nil
}

type storedIncident struct {
	rec       model.IncidentRecord
	embedding []float32
}

// memIncidentRepo - 코사인 거리를 직접 계산하는 인메모리 저장소
type memIncidentRepo struct {
	incidents   []storedIncident
	insertFails int
	statsCalls  int
}

func (r *memIncidentRepo) InsertIncident(ctx context.Context, rec model.IncidentRecord, embedding []float32, embeddingModel string) error {
	if r.insertFails > 0 {
		r.insertFails--
		return errors.New("insert failed")
	}
	r.incidents = append(r.incidents, storedIncident{rec: rec, embedding: embedding})
	return nil
}

func (r *memIncidentRepo) FinalizeIncident(ctx context.Context, id, status string, resolutionSeconds int) error {
	for i := range r.incidents {
		if r.incidents[i].rec.ID == id && r.incidents[i].rec.ResolutionStatus == model.ResolutionPending {
			r.incidents[i].rec.ResolutionStatus = status
			seconds := resolutionSeconds
			r.incidents[i].rec.ResolutionSeconds = &seconds
		}
	}
	return nil
}

func (r *memIncidentRepo) SearchSimilar(ctx context.Context, embedding []float32, severity string, limit int) ([]model.IncidentRecord, []float64, error) {
	type scored struct {
		rec      model.IncidentRecord
		distance float64
	}
	var results []scored
	for _, inc := range r.incidents {
		if inc.embedding == nil {
			continue
		}
		if severity != "" && inc.rec.Severity != severity {
			continue
		}
		results = append(results, scored{rec: inc.rec, distance: cosineDistance(embedding, inc.embedding)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].distance < results[j].distance })
	if len(results) > limit {
		results = results[:limit]
	}

	records := make([]model.IncidentRecord, len(results))
	distances := make([]float64, len(results))
	for i, s := range results {
		records[i] = s.rec
		distances[i] = s.distance
	}
	return records, distances, nil
}

func (r *memIncidentRepo) ListIncidents(ctx context.Context, limit int, severity string) ([]model.IncidentRecord, error) {
	var out []model.IncidentRecord
	for _, inc := range r.incidents {
		if severity != "" && inc.rec.Severity != severity {
			continue
		}
		out = append(out, inc.rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memIncidentRepo) GetIncidentStats(ctx context.Context) (*model.IncidentStats, error) {
	r.statsCalls++
	stats := &model.IncidentStats{BySeverity: map[string]int{}}
	resolved, terminal := 0, 0
	for _, inc := range r.incidents {
		stats.TotalIncidents++
		stats.BySeverity[inc.rec.Severity]++
		switch inc.rec.ResolutionStatus {
		case model.ResolutionResolved:
			resolved++
			terminal++
		case model.ResolutionFailed:
			terminal++
		}
	}
	if terminal > 0 {
		stats.SuccessRate = float64(resolved) / float64(terminal)
	}
	return stats, nil
}

func (r *memIncidentRepo) CountIncidents(ctx context.Context) (int, error) {
	return len(r.incidents), nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

func TestStoreAndFindSimilarRoundTrip(t *testing.T) {
	repo := &memIncidentRepo{}
	svc := NewMemoryService(repo, &wordEmbedder{})
	ctx := context.Background()

	rootCause := "container OOM killed"
	rec := model.IncidentRecord{
		ID:               "inc-1",
		AlertName:        "ContainerDown",
		Description:      "Container jellyfin has been down for 2 minutes",
		Severity:         model.SeverityCritical,
		RootCause:        &rootCause,
		ResolutionStatus: model.ResolutionResolved,
		CreatedAt:        time.Now(),
	}
	if err := svc.Store(ctx, rec); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	results, err := svc.FindSimilar(ctx, "ContainerDown Container jellyfin has been down for 2 minutes", 3, "")
	if err != nil {
		t.Fatalf("find similar failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Score <= 0.95 {
		t.Fatalf("identical text should score above 0.95, got %f", results[0].Score)
	}
	if results[0].Record.ID != "inc-1" {
		t.Fatalf("unexpected record %s", results[0].Record.ID)
	}
}

func TestFindSimilarOrdersRelatedFirst(t *testing.T) {
	repo := &memIncidentRepo{}
	svc := NewMemoryService(repo, &wordEmbedder{})
	ctx := context.Background()

	related := model.IncidentRecord{
		ID: "inc-related", AlertName: "ContainerDown",
		Description: "Container jellyfin down after OOM",
		Severity:    model.SeverityCritical, ResolutionStatus: model.ResolutionResolved,
	}
	unrelated := model.IncidentRecord{
		ID: "inc-unrelated", AlertName: "CertExpiringSoon",
		Description: "TLS certificate for vault expires in 5 days",
		Severity:    model.SeverityWarning, ResolutionStatus: model.ResolutionResolved,
	}
	for _, rec := range []model.IncidentRecord{related, unrelated} {
		if err := svc.Store(ctx, rec); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}

	results, err := svc.FindSimilar(ctx, "ContainerDown Container jellyfin crashed", 2, "")
	if err != nil {
		t.Fatalf("find similar failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Record.ID != "inc-related" {
		t.Fatalf("related incident should rank first, got %s", results[0].Record.ID)
	}
	if results[0].Score <= results[1].Score {
		t.Fatalf("related score %f should exceed unrelated %f", results[0].Score, results[1].Score)
	}
}

func TestFindSimilarEmptyStore(t *testing.T) {
	svc := NewMemoryService(&memIncidentRepo{}, &wordEmbedder{})

	results, err := svc.FindSimilar(context.Background(), "anything", 3, "")
	if err != nil {
		t.Fatalf("empty store must not error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result, got %d", len(results))
	}
}

func TestStoreSurvivesEmbeddingFailure(t *testing.T) {
	repo := &memIncidentRepo{}
	svc := NewMemoryService(repo, &wordEmbedder{failures: 1})

	rec := model.IncidentRecord{ID: "inc-2", AlertName: "DiskAlmostFull", Severity: model.SeverityWarning, ResolutionStatus: model.ResolutionResolved}
	if err := svc.Store(context.Background(), rec); err != nil {
		t.Fatalf("store should succeed without vector: %v", err)
	}
	if len(repo.incidents) != 1 {
		t.Fatal("record should be persisted without embedding")
	}
	if repo.incidents[0].embedding != nil {
		t.Fatal("embedding should be nil after embed failure")
	}
}

func TestStoreRetriesInsertOnce(t *testing.T) {
	repo := &memIncidentRepo{insertFails: 1}
	svc := NewMemoryService(repo, &wordEmbedder{})

	rec := model.IncidentRecord{ID: "inc-3", AlertName: "DiskAlmostFull", Severity: model.SeverityWarning, ResolutionStatus: model.ResolutionResolved}
	if err := svc.Store(context.Background(), rec); err != nil {
		t.Fatalf("single transient failure should be retried: %v", err)
	}

	repo2 := &memIncidentRepo{insertFails: 2}
	svc2 := NewMemoryService(repo2, &wordEmbedder{})
	if err := svc2.Store(context.Background(), rec); err == nil {
		t.Fatal("two consecutive failures should surface an error")
	}
}

func TestStatsCaching(t *testing.T) {
	repo := &memIncidentRepo{}
	svc := NewMemoryService(repo, &wordEmbedder{})
	ctx := context.Background()

	if _, err := svc.Stats(ctx); err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if _, err := svc.Stats(ctx); err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if repo.statsCalls != 1 {
		t.Fatalf("second call within TTL should hit the cache, got %d queries", repo.statsCalls)
	}

	// 저장이 캐시를 무효화해야 함
	if err := svc.Store(ctx, model.IncidentRecord{ID: "inc-4", AlertName: "X", Severity: model.SeverityInfo, ResolutionStatus: model.ResolutionResolved}); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if repo.statsCalls != 2 {
		t.Fatalf("store should invalidate the stats cache, got %d queries", repo.statsCalls)
	}
	if stats.TotalIncidents != 1 {
		t.Fatalf("expected 1 incident in stats, got %d", stats.TotalIncidents)
	}
}

func TestFormatHistoricalContext(t *testing.T) {
	if got := FormatHistoricalContext(nil); got != "No similar past incidents found." {
		t.Fatalf("unexpected empty digest: %q", got)
	}

	rootCause := "OOM kill"
	remediation := "restart_container jellyfin"
	seconds := 95
	digest := FormatHistoricalContext([]model.SimilarIncident{
		{
			Record: model.IncidentRecord{
				ID: "inc-1", AlertName: "ContainerDown", Severity: model.SeverityCritical,
				RootCause: &rootCause, RemediationTaken: &remediation,
				ResolutionStatus: model.ResolutionResolved, ResolutionSeconds: &seconds,
			},
			Score: 0.91,
		},
	})

	for _, want := range []string{"0.91", "ContainerDown", "OOM kill", "restart_container jellyfin", "95s", "resolved"} {
		if !strings.Contains(digest, want) {
			t.Fatalf("digest missing %q:\n%s", want, digest)
		}
	}
}
