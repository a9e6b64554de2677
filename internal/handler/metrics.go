// Prometheus 노출 핸들러
//
// 카운터(service.Metrics)는 기본 registry 경로로 등록되고,
// Incident 집계는 스크레이프 시점에 DB에서 읽는 Collector로 노출

package handler

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/homelab-ir/backend/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 집계 시리즈는 스크레이퍼 설정과 맞춘 고정 이름 (접두사 없음)
var (
	incidentsTotalDesc = prometheus.NewDesc(
		"incidents_total",
		"Total incidents stored in the memory store.",
		nil, nil,
	)
	successRateDesc = prometheus.NewDesc(
		"success_rate",
		"Share of terminal incidents that were resolved.",
		nil, nil,
	)
	avgResolutionDesc = prometheus.NewDesc(
		"avg_resolution_seconds",
		"Average resolution time of resolved incidents.",
		nil, nil,
	)
	bySeverityDesc = prometheus.NewDesc(
		"incidents_by_severity",
		"Incident count by severity.",
		[]string{"severity"}, nil,
	)
)

// statsCollector - 스크레이프 시점에 Incident 집계를 읽는 Collector
// MemoryService의 Stats 캐시(30s)가 DB 부하를 막아줌
type statsCollector struct {
	memory *service.MemoryService
}

func (col *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- incidentsTotalDesc
	ch <- successRateDesc
	ch <- avgResolutionDesc
	ch <- bySeverityDesc
}

func (col *statsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := col.memory.Stats(ctx)
	if err != nil {
		log.Printf("Metrics scrape: stats query failed: %v", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(incidentsTotalDesc, prometheus.GaugeValue, float64(stats.TotalIncidents))
	ch <- prometheus.MustNewConstMetric(successRateDesc, prometheus.GaugeValue, stats.SuccessRate)
	ch <- prometheus.MustNewConstMetric(avgResolutionDesc, prometheus.GaugeValue, stats.AvgResolutionSeconds)
	for severity, count := range stats.BySeverity {
		ch <- prometheus.MustNewConstMetric(bySeverityDesc, prometheus.GaugeValue, float64(count), severity)
	}
}

// NewMetricsHandler - /metrics 핸들러 생성
// registry에는 service.Metrics 카운터가 이미 등록되어 있어야 함
func NewMetricsHandler(registry *prometheus.Registry, memory *service.MemoryService) gin.HandlerFunc {
	registry.MustRegister(&statsCollector{memory: memory})
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
