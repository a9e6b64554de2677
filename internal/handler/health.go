package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/homelab-ir/backend/internal/db"
	"github.com/homelab-ir/backend/internal/model"
	"github.com/homelab-ir/backend/internal/service"
)

// HealthHandler - 헬스체크 핸들러
// 메모리 저장소 연결 상태와 파이프라인 하트비트를 함께 노출
type HealthHandler struct {
	pg       *db.Postgres
	memory   *service.MemoryService
	gateway  *service.GatewayService
	pipeline *service.PipelineService
}

func NewHealthHandler(pg *db.Postgres, memory *service.MemoryService, gateway *service.GatewayService, pipeline *service.PipelineService) *HealthHandler {
	return &HealthHandler{pg: pg, memory: memory, gateway: gateway, pipeline: pipeline}
}

// Health godoc
// @Summary Health check
// @Description Reports memory store connectivity, incident count and pipeline heartbeats.
// @Tags health
// @Produce json
// @Success 200 {object} model.HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	resp := model.HealthResponse{
		Status:          "healthy",
		LastAlertAt:     h.gateway.LastAlertAt(),
		LastCompletedAt: h.pipeline.LastCompletedAt(),
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	defer pingCancel()

	if err := h.pg.Ping(pingCtx); err != nil {
		// 저장소가 죽어도 알림 수신/승인은 계속 동작하므로 200 유지
		log.Printf("Health check: memory store unreachable: %v", err)
		resp.Status = "degraded"
		resp.MemoryStoreConnected = false
		c.JSON(http.StatusOK, resp)
		return
	}
	resp.MemoryStoreConnected = true

	count, err := h.memory.Count(ctx)
	if err != nil {
		log.Printf("Health check: incident count failed: %v", err)
	} else {
		resp.IncidentCount = count
	}

	c.JSON(http.StatusOK, resp)
}
