package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Stream   StreamConfig
	Worker   WorkerConfig
	Database DatabaseConfig
	MinIO    MinIOConfig
	S3       S3Config
	FS       FSConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `envconfig:"API_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"10s"`
}

type UploadConfig struct {
	StagingDir   string `envconfig:"UPLOAD_STAGING_DIR" default:"/tmp/strata/uploads"`
	MaxSizeBytes int64  `envconfig:"UPLOAD_MAX_SIZE_BYTES" default:"8589934592"`
}

type StreamConfig struct {
	// ChunkSize * ChunkCount bounds the per-stream buffer (~1 MiB default).
	ChunkSize   int           `envconfig:"STREAM_CHUNK_SIZE" default:"65536"`
	ChunkCount  int           `envconfig:"STREAM_CHUNK_COUNT" default:"16"`
	HeadTimeout time.Duration `envconfig:"STREAM_HEAD_TIMEOUT" default:"10s"`
}

type WorkerConfig struct {
	MaxRetries      int           `envconfig:"WORKER_MAX_RETRIES" default:"3"`
	ShutdownTimeout time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"30s"`
}

type DatabaseConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"strata"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"strata"`
	DBName   string `envconfig:"POSTGRES_DB" default:"strata"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// MinIOConfig configures the primary tier. An empty endpoint
// leaves the tier unconfigured.
type MinIOConfig struct {
	Endpoint       string `envconfig:"MINIO_ENDPOINT" default:""`
	PublicEndpoint string `envconfig:"MINIO_PUBLIC_ENDPOINT" default:""`
	AccessKey      string `envconfig:"MINIO_ACCESS_KEY" default:""`
	SecretKey      string `envconfig:"MINIO_SECRET_KEY" default:""`
	Bucket         string `envconfig:"MINIO_BUCKET" default:"videos"`
	UseSSL         bool   `envconfig:"MINIO_USE_SSL" default:"false"`
}

func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

// S3Config configures the secondary tier. An empty bucket leaves
// the tier unconfigured.
type S3Config struct {
	Region         string `envconfig:"S3_REGION" default:""`
	Bucket         string `envconfig:"S3_BUCKET" default:""`
	Endpoint       string `envconfig:"S3_ENDPOINT" default:""`
	AccessKey      string `envconfig:"S3_ACCESS_KEY" default:""`
	SecretKey      string `envconfig:"S3_SECRET_KEY" default:""`
	ForcePathStyle bool   `envconfig:"S3_FORCE_PATH_STYLE" default:"false"`
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// FSConfig configures the local filesystem fallback tier.
// An empty directory leaves the tier unconfigured.
type FSConfig struct {
	Dir string `envconfig:"FS_TIER_DIR" default:""`
}

func (c FSConfig) Enabled() bool {
	return c.Dir != ""
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RabbitMQConfig struct {
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"strata"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"strata"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
