// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DATABASE_POSTGRES_PASSWORD
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment overlay, e.g. config.production.yaml
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile tries multiple paths so binaries and tests can run from
// different directories.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "dispatch-service"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.HTTP.Address == "" {
		cfg.HTTP.Address = ":8080"
	}

	if cfg.Dispatch.WorkerPoolSize <= 0 {
		cfg.Dispatch.WorkerPoolSize = 8
	}
	if cfg.Dispatch.QueueSize <= 0 {
		cfg.Dispatch.QueueSize = 256
	}
	if cfg.Dispatch.PreferenceTTL <= 0 {
		cfg.Dispatch.PreferenceTTL = 5 * time.Minute
	}

	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = "notification-dispatch"
	}
	if cfg.Kafka.EventsTopic == "" {
		cfg.Kafka.EventsTopic = "order-events"
	}
	if cfg.Kafka.DeadLetterTopic == "" {
		cfg.Kafka.DeadLetterTopic = "order-events-dlq"
	}
	if cfg.Kafka.MaxConsumeRetry <= 0 {
		cfg.Kafka.MaxConsumeRetry = 3
	}

	if cfg.Realtime.WriteTimeout <= 0 {
		cfg.Realtime.WriteTimeout = 10 * time.Second
	}
	if cfg.Realtime.PongWait <= 0 {
		cfg.Realtime.PongWait = 60 * time.Second
	}
	if cfg.Realtime.MaxMessageSize <= 0 {
		cfg.Realtime.MaxMessageSize = 4096
	}

	// Email favors availability: loose threshold, wide window. SMS favors
	// fast-fail: each attempt may cost money.
	applyResilienceDefaults(&cfg.Channels.Email.Resilience, ResilienceConfig{
		FailureRateThreshold: 0.6,
		SlidingWindow:        20,
		MinimumCalls:         10,
		OpenWait:             30 * time.Second,
		HalfOpenProbes:       3,
		MaxRetryAttempts:     3,
		RetryWait:            500 * time.Millisecond,
		CallTimeout:          10 * time.Second,
	})
	applyResilienceDefaults(&cfg.Channels.SMS.Resilience, ResilienceConfig{
		FailureRateThreshold: 0.3,
		SlidingWindow:        10,
		MinimumCalls:         5,
		OpenWait:             60 * time.Second,
		HalfOpenProbes:       1,
		MaxRetryAttempts:     2,
		RetryWait:            250 * time.Millisecond,
		CallTimeout:          5 * time.Second,
	})
	applyResilienceDefaults(&cfg.Channels.Push.Resilience, ResilienceConfig{
		FailureRateThreshold: 0.5,
		SlidingWindow:        10,
		MinimumCalls:         5,
		OpenWait:             30 * time.Second,
		HalfOpenProbes:       2,
		MaxRetryAttempts:     3,
		RetryWait:            500 * time.Millisecond,
		CallTimeout:          5 * time.Second,
	})
}

func applyResilienceDefaults(rc *ResilienceConfig, def ResilienceConfig) {
	if rc.FailureRateThreshold <= 0 {
		rc.FailureRateThreshold = def.FailureRateThreshold
	}
	if rc.SlidingWindow == 0 {
		rc.SlidingWindow = def.SlidingWindow
	}
	if rc.MinimumCalls == 0 {
		rc.MinimumCalls = def.MinimumCalls
	}
	if rc.OpenWait <= 0 {
		rc.OpenWait = def.OpenWait
	}
	if rc.HalfOpenProbes == 0 {
		rc.HalfOpenProbes = def.HalfOpenProbes
	}
	if rc.MaxRetryAttempts <= 0 {
		rc.MaxRetryAttempts = def.MaxRetryAttempts
	}
	if rc.RetryWait <= 0 {
		rc.RetryWait = def.RetryWait
	}
	if rc.CallTimeout <= 0 {
		rc.CallTimeout = def.CallTimeout
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Channels.Email.Enabled && cfg.Channels.Email.FromEmail == "" {
		return fmt.Errorf("channels.email.from_email is required when email is enabled")
	}
	if cfg.Channels.Push.Enabled && cfg.Channels.Push.ProviderURL == "" {
		return fmt.Errorf("channels.push.provider_url is required when push is enabled")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must not be empty")
	}
	return nil
}
