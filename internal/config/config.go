package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Slack      SlackConfig
	Embedding  EmbeddingConfig
	Inference  InferenceConfig
	Monitor    MonitorConfig
	Remediator RemediatorConfig
	Gateway    GatewayConfig
	Pipeline   PipelineConfig
	Approval   ApprovalConfig
	Auth       AuthConfig
	Postgres   PostgresConfig
}

type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

type SlackConfig struct {
	BotToken  string
	ChannelID string
}

type EmbeddingConfig struct {
	APIKey string
	Model  string
}

type InferenceConfig struct {
	APIKey string
	Model  string
}

type MonitorConfig struct {
	BaseURL string
}

type RemediatorConfig struct {
	BaseURL string
}

// GatewayConfig - 알림 수신/중복 제거 설정
type GatewayConfig struct {
	// DedupWindow: 같은 fingerprint의 firing 알림을 억제하는 윈도우
	DedupWindow time.Duration

	// IntakeBuffer: 파이프라인 동시 실행 한도를 넘은 알림을 담는 버퍼 크기
	// 가득 차면 503으로 거절 (업스트림이 재시도)
	IntakeBuffer int
}

// PipelineConfig - 파이프라인 실행 설정
type PipelineConfig struct {
	// MaxConcurrent: 동시에 실행 가능한 파이프라인 수
	MaxConcurrent int

	// RunTimeout: 파이프라인 1회 실행의 전체 벽시계 예산
	RunTimeout time.Duration

	// CallTimeout: 외부 collaborator 호출 1건당 타임아웃
	CallTimeout time.Duration
}

// ApprovalConfig - 승인 상태 머신 설정
type ApprovalConfig struct {
	// TTL: PendingAction 만료 시간
	TTL time.Duration

	// SweepInterval: 만료 스윕 주기
	SweepInterval time.Duration
}

type AuthConfig struct {
	JWTSecret     string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AdminLoginID  string
	AdminPassword string
	CookieSecure  bool
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Addr:        getenv("LISTEN_ADDR", ":8080"),
			CORSOrigins: strings.Split(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		},
		Slack: SlackConfig{
			BotToken:  os.Getenv("SLACK_BOT_TOKEN"),
			ChannelID: os.Getenv("SLACK_CHANNEL_ID"),
		},
		Embedding: EmbeddingConfig{
			APIKey: os.Getenv("AI_API_KEY"),
			Model:  getenv("EMBEDDING_MODEL", "text-embedding-004"),
		},
		Inference: InferenceConfig{
			APIKey: os.Getenv("AI_API_KEY"),
			Model:  getenv("INFERENCE_MODEL", "gemini-2.0-flash"),
		},
		Monitor: MonitorConfig{
			BaseURL: getenv("MONITOR_URL", "http://uptime.lab.internal:3001"),
		},
		Remediator: RemediatorConfig{
			BaseURL: getenv("REMEDIATOR_URL", "http://executor.lab.internal:9300"),
		},
		Gateway: GatewayConfig{
			DedupWindow:  getenvDuration("DEDUP_WINDOW", 300*time.Second),
			IntakeBuffer: getenvInt("INTAKE_BUFFER", 64),
		},
		Pipeline: PipelineConfig{
			MaxConcurrent: getenvInt("PIPELINE_MAX_CONCURRENT", 10),
			RunTimeout:    getenvDuration("PIPELINE_RUN_TIMEOUT", 5*time.Minute),
			CallTimeout:   getenvDuration("PIPELINE_CALL_TIMEOUT", 20*time.Second),
		},
		Approval: ApprovalConfig{
			TTL:           getenvDuration("APPROVAL_TTL", 5*time.Minute),
			SweepInterval: getenvDuration("APPROVAL_SWEEP_INTERVAL", 15*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:     os.Getenv("JWT_SECRET"),
			AccessTTL:     getenvDuration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTTL:    getenvDuration("JWT_REFRESH_TTL", 168*time.Hour),
			AdminLoginID:  os.Getenv("ADMIN_USERNAME"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
			CookieSecure:  getenvBool("AUTH_COOKIE_SECURE", false),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
