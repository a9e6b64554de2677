package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/homelab-ir/backend/internal/client"
	"github.com/homelab-ir/backend/internal/config"
	"github.com/homelab-ir/backend/internal/db"
	"github.com/homelab-ir/backend/internal/handler"
	"github.com/homelab-ir/backend/internal/service"
)

func main() {
	// .env 파일이 있으면 로드 (없어도 무시)
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg := config.Load()
	ctx := context.Background()

	// Postgres(+pgvector) 연결 및 스키마 준비
	pg, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pg.Pool.Close()

	if err := pg.EnsureIncidentSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure incident schema: %v", err)
	}
	if err := pg.EnsureNotifyWebhookSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure notify webhook schema: %v", err)
	}

	// 운영자 인증
	authService, err := service.NewAuthService(pg, cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to init auth service: %v", err)
	}
	if err := authService.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure auth schema: %v", err)
	}
	if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminLoginID, cfg.Auth.AdminPassword); err != nil {
		log.Fatalf("Failed to ensure admin operator: %v", err)
	}

	// 외부 collaborator 클라이언트
	embeddingClient, err := client.NewEmbeddingClient(cfg.Embedding)
	if err != nil {
		log.Fatalf("Failed to init embedding client: %v", err)
	}
	inferenceClient, err := client.NewInferenceClient(cfg.Inference)
	if err != nil {
		log.Fatalf("Failed to init inference client: %v", err)
	}

	slackClient := client.NewSlackClient(cfg.Slack)
	if !slackClient.IsConfigured() {
		log.Println("Slack is not configured, operator notifications will be logged only")
	}

	monitorClient := client.NewMonitorClient(cfg.Monitor)
	remediatorClient := client.NewRemediatorClient(cfg.Remediator)

	// 메트릭 registry 및 카운터
	registry := prometheus.NewRegistry()
	metrics := service.NewMetrics(registry)

	// 서비스 조립
	memoryService := service.NewMemoryService(pg, embeddingClient)
	notifyService := service.NewNotifyService(slackClient, pg)
	approvalService := service.NewApprovalService(service.DefaultRiskTable(), remediatorClient, notifyService, cfg.Approval)
	pipelineService := service.NewPipelineService(
		monitorClient, memoryService, inferenceClient, approvalService, notifyService, metrics, cfg.Pipeline)
	gatewayService := service.NewGatewayService(
		pipelineService, pipelineService, metrics, cfg.Gateway.DedupWindow, cfg.Gateway.IntakeBuffer, cfg.Pipeline.MaxConcurrent)

	// 백그라운드 루프 기동
	approvalService.StartSweeper(ctx)
	gatewayService.Start(ctx)

	// 핸들러
	alertHandler := handler.NewAlertHandler(gatewayService)
	approvalHandler := handler.NewApprovalHandler(approvalService)
	incidentHandler := handler.NewIncidentHandler(memoryService)
	healthHandler := handler.NewHealthHandler(pg, memoryService, gatewayService, pipelineService)
	authHandler := handler.NewAuthHandler(authService)
	webhookHandler := handler.NewNotifyWebhookHandler(pg)
	metricsHandler := handler.NewMetricsHandler(registry, memoryService)

	router := gin.Default()
	router.Use(handler.CORSMiddleware(cfg.Server.CORSOrigins, true))

	// 인증 불필요 엔드포인트
	router.POST("/alert", alertHandler.ReceiveWebhook)
	router.GET("/health", healthHandler.Health)
	router.GET("/incidents", incidentHandler.GetIncidents)
	router.GET("/stats", incidentHandler.GetStats)
	router.GET("/metrics", metricsHandler)

	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authHandler.Logout)
	}

	// 운영자 인증 필요 엔드포인트 (승인 및 설정 변경)
	protected := router.Group("/api/v1", handler.AuthMiddleware(authService))
	{
		protected.GET("/auth/me", authHandler.Me)

		protected.GET("/approvals", approvalHandler.ListPending)
		protected.POST("/approvals/:id/approve", approvalHandler.Approve)
		protected.POST("/approvals/:id/reject", approvalHandler.Reject)

		protected.GET("/settings/webhooks", webhookHandler.List)
		protected.POST("/settings/webhooks", webhookHandler.Create)
		protected.PUT("/settings/webhooks/:id", webhookHandler.Update)
		protected.DELETE("/settings/webhooks/:id", webhookHandler.Delete)
	}

	log.Printf("Starting homelab-ir backend (addr=%s)", cfg.Server.Addr)
	if err := router.Run(cfg.Server.Addr); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}
