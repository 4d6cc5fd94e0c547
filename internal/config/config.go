package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Queue     QueueConfig
	Auth      AuthConfig
	OpenAI    OpenAIConfig
	Metadata  MetadataConfig
	Generator GeneratorConfig
	Metrics   MetricsConfig
	Tracing   TracingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration. When Enabled is false the
// service falls back to the in-memory store.
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds the job-record cache configuration
type RedisConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Password    string
	DB          int
	StatusTTL   time.Duration
	TerminalTTL time.Duration
}

// StorageConfig holds object storage configuration for rendered artifacts
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
}

// QueueConfig holds message queue configuration. When Enabled is false jobs
// are processed by an in-process worker pool instead of RabbitMQ.
type QueueConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// AuthConfig holds identity verification configuration
type AuthConfig struct {
	JWTSecret   string
	AdminEmails []string
}

// OpenAIConfig holds the generative text backend configuration. An empty
// APIKey disables the backend and the synthesizer runs on templates alone.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// MetadataConfig holds URL metadata extraction configuration
type MetadataConfig struct {
	YouTubeAPIKey string
	UserAgent     string
	Timeout       time.Duration
}

// GeneratorConfig holds poster generation configuration
type GeneratorConfig struct {
	Workers          int
	QueueBuffer      int
	JobTimeout       time.Duration
	MaxParallelPages int
	CreditsPerPoster int
	DailyLimit       int
	SessionFreeLimit int
}

// MetricsConfig holds the standalone metrics server configuration
type MetricsConfig struct {
	Port int
}

// TracingConfig holds Jaeger tracing configuration
type TracingConfig struct {
	Enabled        bool
	JaegerEndpoint string
}

// Load reads configuration from file and environment variables. A missing
// config file is not an error; defaults and environment apply.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")

	// Database defaults
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "postersnap")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxConns", 25)
	viper.SetDefault("database.minConns", 5)

	// Redis defaults
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.statusTTL", "2s")
	viper.SetDefault("redis.terminalTTL", "5m")

	// Storage defaults
	viper.SetDefault("storage.enabled", false)
	viper.SetDefault("storage.endpoint", "localhost:9000")
	viper.SetDefault("storage.accessKeyID", "minioadmin")
	viper.SetDefault("storage.secretAccessKey", "minioadmin")
	viper.SetDefault("storage.bucketName", "posters")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.useSSL", false)

	// Queue defaults
	viper.SetDefault("queue.enabled", false)
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")

	// Auth defaults
	viper.SetDefault("auth.jwtSecret", "")
	viper.SetDefault("auth.adminEmails", []string{})

	// OpenAI defaults
	viper.SetDefault("openai.apiKey", "")
	viper.SetDefault("openai.model", "gpt-4o")
	viper.SetDefault("openai.maxTokens", 1000)
	viper.SetDefault("openai.temperature", 0.8)

	// Metadata defaults
	viper.SetDefault("metadata.youtubeAPIKey", "")
	viper.SetDefault("metadata.userAgent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	viper.SetDefault("metadata.timeout", "10s")

	// Generator defaults
	viper.SetDefault("generator.workers", 2)
	viper.SetDefault("generator.queueBuffer", 64)
	viper.SetDefault("generator.jobTimeout", "2m")
	viper.SetDefault("generator.maxParallelPages", 3)
	viper.SetDefault("generator.creditsPerPoster", 1)
	viper.SetDefault("generator.dailyLimit", 50)
	viper.SetDefault("generator.sessionFreeLimit", 1)

	// Metrics defaults
	viper.SetDefault("metrics.port", 9091)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.jaegerEndpoint", "http://localhost:14268/api/traces")
}
