package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"false"`

	// Security
	AdminAPIKey string `envconfig:"ADMIN_API_KEY" required:"true"`

	// Embedding model
	ExtractorType    string `envconfig:"EXTRACTOR_TYPE" default:"deepface"`
	DeepFaceURL      string `envconfig:"DEEPFACE_URL" default:"http://localhost:5005"`
	DeepFaceModel    string `envconfig:"DEEPFACE_MODEL" default:"Facenet512"`
	DeepFaceDetector string `envconfig:"DEEPFACE_DETECTOR" default:"retinaface"`
	AntiSpoofing     bool   `envconfig:"ANTI_SPOOFING" default:"false"`
	ONNXModelPath    string `envconfig:"ONNX_MODEL_PATH" default:"models/w600k_r50.onnx"`
	ONNXLibraryPath  string `envconfig:"ONNX_LIBRARY_PATH"`
	ModelVersion     string `envconfig:"MODEL_VERSION" default:"facenet512-v1"`
	EmbeddingDim     int    `envconfig:"EMBEDDING_DIM" default:"512"`

	// Quality gate
	QualityGate string `envconfig:"QUALITY_GATE" default:"luma"`
	AWSRegion   string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Check-in policy
	LoginThreshold        float64       `envconfig:"LOGIN_THRESHOLD" default:"0.70"`
	AdminThreshold        float64       `envconfig:"ADMIN_THRESHOLD" default:"0.85"`
	DefaultBreak          time.Duration `envconfig:"DEFAULT_BREAK" default:"30m"`
	RecheckCooldown       time.Duration `envconfig:"RECHECK_COOLDOWN" default:"1m"`
	ExtractionTimeout     time.Duration `envconfig:"EXTRACTION_TIMEOUT" default:"10s"`
	PositionTimeout       time.Duration `envconfig:"POSITION_TIMEOUT" default:"10s"`
	MaxExtractionFailures int           `envconfig:"MAX_EXTRACTION_FAILURES" default:"3"`

	// Optional integrations, disabled when empty
	RedisURL string `envconfig:"REDIS_URL"`
	NATSURL  string `envconfig:"NATS_URL"`
	MinIO    MinIOConfig
	Webhook  WebhookConfig
}

// WebhookConfig points attendance events at an HTTP endpoint.
type WebhookConfig struct {
	URL         string `envconfig:"WEBHOOK_URL"`
	Secret      string `envconfig:"WEBHOOK_SECRET"`
	MaxAttempts int    `envconfig:"WEBHOOK_MAX_ATTEMPTS" default:"5"`
}

type MinIOConfig struct {
	Endpoint  string `envconfig:"MINIO_ENDPOINT"`
	AccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	SecretKey string `envconfig:"MINIO_SECRET_KEY"`
	Bucket    string `envconfig:"MINIO_BUCKET" default:"ponto-enrollments"`
	UseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`
}

func (m MinIOConfig) Enabled() bool {
	return m.Endpoint != ""
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.ExtractorType {
	case "deepface", "onnx", "mock":
	default:
		return fmt.Errorf("unknown EXTRACTOR_TYPE %q (supported: deepface, onnx, mock)", c.ExtractorType)
	}

	switch c.QualityGate {
	case "luma", "rekognition":
	default:
		return fmt.Errorf("unknown QUALITY_GATE %q (supported: luma, rekognition)", c.QualityGate)
	}

	if !unitInterval(c.LoginThreshold) || !unitInterval(c.AdminThreshold) {
		return errors.New("thresholds must be between 0 and 1")
	}
	if c.EmbeddingDim < 0 {
		return errors.New("EMBEDDING_DIM must not be negative")
	}
	if c.MaxExtractionFailures < 1 {
		return errors.New("MAX_EXTRACTION_FAILURES must be at least 1")
	}
	return nil
}

// unitInterval is false for NaN.
func unitInterval(v float64) bool {
	return v >= 0 && v <= 1
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
