package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/homelab-ir/backend/internal/model"
	"github.com/homelab-ir/backend/internal/service"
	"github.com/prometheus/client_golang/prometheus"
)

// statsOnlyRepo - 집계 조회만 의미 있게 응답하는 IncidentRepo 스텁
type statsOnlyRepo struct {
	stats model.IncidentStats
}

func (r *statsOnlyRepo) InsertIncident(ctx context.Context, rec model.IncidentRecord, embedding []float32, embeddingModel string) error {
	return nil
}

func (r *statsOnlyRepo) FinalizeIncident(ctx context.Context, id, status string, resolutionSeconds int) error {
	return nil
}

func (r *statsOnlyRepo) SearchSimilar(ctx context.Context, embedding []float32, severity string, limit int) ([]model.IncidentRecord, []float64, error) {
	return nil, nil, nil
}

func (r *statsOnlyRepo) ListIncidents(ctx context.Context, limit int, severity string) ([]model.IncidentRecord, error) {
	return []model.IncidentRecord{}, nil
}

func (r *statsOnlyRepo) GetIncidentStats(ctx context.Context) (*model.IncidentStats, error) {
	stats := r.stats
	return &stats, nil
}

func (r *statsOnlyRepo) CountIncidents(ctx context.Context) (int, error) {
	return r.stats.TotalIncidents, nil
}

type noopEmbedder struct{}

func (noopEmbedder) EmbedText(ctx context.Context, text string) ([]float32, string, error) {
	return nil, "", nil
}

func TestMetricsExposesAggregateSeries(t *testing.T) {
	repo := &statsOnlyRepo{stats: model.IncidentStats{
		TotalIncidents:       5,
		SuccessRate:          0.8,
		AvgResolutionSeconds: 42,
		BySeverity:           map[string]int{"critical": 2, "warning": 3},
	}}
	memory := service.NewMemoryService(repo, noopEmbedder{})

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", NewMetricsHandler(prometheus.NewRegistry(), memory))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := w.Body.String()
	for _, line := range []string{
		"incidents_total 5",
		"success_rate 0.8",
		"avg_resolution_seconds 42",
		`incidents_by_severity{severity="critical"} 2`,
		`incidents_by_severity{severity="warning"} 3`,
	} {
		if !strings.Contains(body, line) {
			t.Fatalf("scrape output missing %q:\n%s", line, body)
		}
	}
}
