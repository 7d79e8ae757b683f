package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port             string   `env:"PORT" envDefault:"8080"`
	Env              string   `env:"ENV" envDefault:"dev"`
	LogLevel         string   `env:"LOG_LEVEL" envDefault:"info"`
	CORSAllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	FrontendOrigin   string   `env:"FRONTEND_ORIGIN" envDefault:"http://localhost:5173"`
	DatabaseURL      string   `env:"DATABASE_URL"`
	MaxUploadMB      int64    `env:"MAX_UPLOAD_MB" envDefault:"20"`

	ObjectStoreType string `env:"OBJECT_STORE" envDefault:"local"`
	LocalStoreDir   string `env:"LOCAL_STORE_DIR" envDefault:"./data"`
	AWSRegion       string `env:"AWS_REGION"`
	S3Bucket        string `env:"S3_BUCKET"`
	S3Prefix        string `env:"S3_PREFIX"`
	S3Endpoint      string `env:"S3_ENDPOINT"`
	SSEKMSKeyID     string `env:"SSE_KMS_KEY_ID"`
	Minio           Minio  `envPrefix:"MINIO_"`

	LLM        LLM
	JWT        JWT        `envPrefix:"JWT_"`
	Enrichment Enrichment `envPrefix:"ENRICHMENT_"`
	SMTP       SMTP       `envPrefix:"SMTP_"`

	SQSQueueURL        string `env:"SQS_QUEUE_URL"`
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`
	UIRedirectURL      string `env:"UI_REDIRECT_URL"`
}

// Minio contains S3-compatible self-hosted storage parameters.
type Minio struct {
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET" envDefault:"legaldoc-files"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// LLM contains model provider parameters.
type LLM struct {
	Provider       string `env:"LLM_PROVIDER" envDefault:"openai"`
	Model          string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	APIKey         string `env:"OPENAI_API_KEY"`
	BaseURL        string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1/chat/completions"`
	TimeoutSeconds int    `env:"OPENAI_TIMEOUT_SECONDS" envDefault:"120"`
}

// JWT contains bearer token parameters.
type JWT struct {
	Secret string `env:"SECRET"`
	TTLMin int    `env:"TTL_MINUTES" envDefault:"10080"`
}

// Enrichment controls how background AI runs are dispatched.
type Enrichment struct {
	Dispatch  string `env:"DISPATCH" envDefault:"inline"`
	Workers   int    `env:"WORKERS" envDefault:"4"`
	QueueSize int    `env:"QUEUE_SIZE" envDefault:"100"`
}

// SMTP contains outgoing mail parameters. An empty Host disables delivery.
type SMTP struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"no-reply@legaldoc.local"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	// Best-effort load of local env files for dev convenience.
	_ = godotenv.Load(".env")
	_ = godotenv.Load("cmd/.env")

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.Env = normalizeEnv(cfg.Env)
	cfg.ObjectStoreType = normalizeStoreType(cfg.ObjectStoreType)
	cfg.Enrichment.Dispatch = normalizeDispatch(cfg.Enrichment.Dispatch)

	if cfg.IsProduction() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required in production")
		}
		if cfg.JWT.Secret == "" {
			return Config{}, fmt.Errorf("JWT_SECRET is required in production")
		}
	}
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = "dev-secret"
	}
	if cfg.Enrichment.Dispatch == "sqs" && cfg.SQSQueueURL == "" {
		return Config{}, fmt.Errorf("SQS_QUEUE_URL is required when ENRICHMENT_DISPATCH=sqs")
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// MaxUploadBytes returns the upload limit in bytes.
func (c Config) MaxUploadBytes() int64 {
	if c.MaxUploadMB <= 0 {
		return 20 << 20
	}
	return c.MaxUploadMB << 20
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "minio":
		return "minio"
	default:
		return "local"
	}
}

func normalizeDispatch(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqs":
		return "sqs"
	default:
		return "inline"
	}
}
