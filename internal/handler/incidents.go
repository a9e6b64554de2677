package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/homelab-ir/backend/internal/model"
	"github.com/homelab-ir/backend/internal/service"
)

// IncidentHandler - Incident 목록/통계 조회 핸들러 (Reporting)
type IncidentHandler struct {
	memory *service.MemoryService
}

func NewIncidentHandler(memory *service.MemoryService) *IncidentHandler {
	return &IncidentHandler{memory: memory}
}

// GetIncidents godoc
// @Summary List recent incidents
// @Tags incidents
// @Produce json
// @Param limit query int false "Max records (default 50)"
// @Param severity query string false "Filter by severity (info, warning, critical)"
// @Success 200 {object} model.IncidentListEnvelope
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /incidents [get]
func (h *IncidentHandler) GetIncidents(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	severity := c.Query("severity")
	switch severity {
	case "", model.SeverityInfo, model.SeverityWarning, model.SeverityCritical:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid severity"})
		return
	}

	incidents, err := h.memory.List(c.Request.Context(), limit, severity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.IncidentListEnvelope{
		Status: "success",
		Count:  len(incidents),
		Data:   incidents,
	})
}

// GetStats godoc
// @Summary Aggregate incident statistics
// @Tags incidents
// @Produce json
// @Success 200 {object} model.StatsEnvelope
// @Failure 500 {object} model.ErrorResponse
// @Router /stats [get]
func (h *IncidentHandler) GetStats(c *gin.Context) {
	stats, err := h.memory.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.StatsEnvelope{
		Status: "success",
		Data:   stats,
	})
}
