package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	ServicePort int
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Validation  ValidationConfig
	Anomaly     AnomalyConfig
	Photos      PhotoConfig
	Report      ReportConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// RabbitMQConfig holds RabbitMQ connection and queue settings
type RabbitMQConfig struct {
	URL               string
	CommandExchange   string
	CommandQueue      string
	CommandRoutingKey string
	EventExchange     string
	DLQQueue          string
	PrefetchCount     int
}

// ValidationConfig holds validation settings
type ValidationConfig struct {
	TimestampToleranceMinutes int
}

// AnomalyConfig holds consumption anomaly detection settings
type AnomalyConfig struct {
	SpikeThreshold            float64
	MinDataPointsForDetection int
}

// PhotoConfig holds reading photo storage settings
type PhotoConfig struct {
	Dir     string
	BaseURL string
}

// ReportConfig holds billing report export settings
type ReportConfig struct {
	Locale string
}

var defaults = map[string]any{
	"SERVICE_NAME":                           "submetering-worker",
	"SERVICE_PORT":                           8081,
	"RABBITMQ_COMMAND_EXCHANGE":              "submetering.commands.exchange",
	"RABBITMQ_COMMAND_QUEUE":                 "submetering.commands.queue",
	"RABBITMQ_COMMAND_ROUTING_KEY":           "submetering.#",
	"RABBITMQ_EVENT_EXCHANGE":                "submetering.events.exchange",
	"RABBITMQ_DLQ_QUEUE":                     "submetering.commands.dlq",
	"RABBITMQ_PREFETCH":                      10,
	"VALIDATION_TIMESTAMP_TOLERANCE_MINUTES": 10080,
	"ANOMALY_SPIKE_THRESHOLD":                3.0,
	"ANOMALY_MIN_DATA_POINTS":                3,
	"PHOTOS_DIR":                             "./data/meter-photos",
	"PHOTOS_BASE_URL":                        "/meter-photos",
	"REPORT_LOCALE":                          "cs",
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	cfg := &Config{
		ServiceName: v.GetString("SERVICE_NAME"),
		ServicePort: v.GetInt("SERVICE_PORT"),
		Database: DatabaseConfig{
			URL: v.GetString("DATABASE_URL"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:               v.GetString("RABBITMQ_URL"),
			CommandExchange:   v.GetString("RABBITMQ_COMMAND_EXCHANGE"),
			CommandQueue:      v.GetString("RABBITMQ_COMMAND_QUEUE"),
			CommandRoutingKey: v.GetString("RABBITMQ_COMMAND_ROUTING_KEY"),
			EventExchange:     v.GetString("RABBITMQ_EVENT_EXCHANGE"),
			DLQQueue:          v.GetString("RABBITMQ_DLQ_QUEUE"),
			PrefetchCount:     v.GetInt("RABBITMQ_PREFETCH"),
		},
		Validation: ValidationConfig{
			TimestampToleranceMinutes: v.GetInt("VALIDATION_TIMESTAMP_TOLERANCE_MINUTES"),
		},
		Anomaly: AnomalyConfig{
			SpikeThreshold:            v.GetFloat64("ANOMALY_SPIKE_THRESHOLD"),
			MinDataPointsForDetection: v.GetInt("ANOMALY_MIN_DATA_POINTS"),
		},
		Photos: PhotoConfig{
			Dir:     v.GetString("PHOTOS_DIR"),
			BaseURL: v.GetString("PHOTOS_BASE_URL"),
		},
		Report: ReportConfig{
			Locale: v.GetString("REPORT_LOCALE"),
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}

	return cfg, nil
}

// RequireRabbitMQ checks the settings only the worker needs
func (c *Config) RequireRabbitMQ() error {
	if c.RabbitMQ.URL == "" {
		return fmt.Errorf("RABBITMQ_URL is required but not set in environment variables")
	}
	return nil
}
