// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Channels  ChannelsConfig  `mapstructure:"channels"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	HTTP      HTTPConfig      `mapstructure:"http"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	AuditIndex string   `mapstructure:"audit_index"`
	Enabled    bool     `mapstructure:"enabled"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	EventsTopic      string   `mapstructure:"events_topic"`
	DeadLetterTopic  string   `mapstructure:"dead_letter_topic"`
	ConsumerGroup    string   `mapstructure:"consumer_group"`
	MaxConsumeRetry  int      `mapstructure:"max_consume_retry"`
	FromBeginning    bool     `mapstructure:"from_beginning"`
}

// --- Channel Configuration ---

type ChannelsConfig struct {
	Email EmailChannelConfig `mapstructure:"email"`
	SMS   SMSChannelConfig   `mapstructure:"sms"`
	Push  PushChannelConfig  `mapstructure:"push"`
}

type EmailChannelConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	AWSRegion  string           `mapstructure:"aws_region"`
	FromEmail  string           `mapstructure:"from_email"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
}

type SMSChannelConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	AWSRegion  string           `mapstructure:"aws_region"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
}

type PushChannelConfig struct {
	Enabled     bool             `mapstructure:"enabled"`
	ProviderURL string           `mapstructure:"provider_url"`
	APIKey      string           `mapstructure:"api_key"`
	Resilience  ResilienceConfig `mapstructure:"resilience"`
}

// ResilienceConfig tunes the per-channel breaker, retry, and timeout.
type ResilienceConfig struct {
	FailureRateThreshold float64       `mapstructure:"failure_rate_threshold"` // 0..1
	SlidingWindow        uint32        `mapstructure:"sliding_window"`
	MinimumCalls         uint32        `mapstructure:"minimum_calls"`
	OpenWait             time.Duration `mapstructure:"open_wait"`
	HalfOpenProbes       uint32        `mapstructure:"half_open_probes"`
	MaxRetryAttempts     int           `mapstructure:"max_retry_attempts"`
	RetryWait            time.Duration `mapstructure:"retry_wait"`
	CallTimeout          time.Duration `mapstructure:"call_timeout"`
}

// --- Pipeline Configuration ---

type DispatchConfig struct {
	WorkerPoolSize int           `mapstructure:"worker_pool_size"`
	QueueSize      int           `mapstructure:"queue_size"`
	PreferenceTTL  time.Duration `mapstructure:"preference_ttl"` // redis cache TTL
}

type RealtimeConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type HTTPConfig struct {
	Address string `mapstructure:"address"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
