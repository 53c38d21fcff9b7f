package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	API       APIConfig       `mapstructure:"api"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Terminal  TerminalConfig  `mapstructure:"terminal"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Mirror    MirrorConfig    `mapstructure:"mirror"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Sim       SimConfig       `mapstructure:"sim"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

type AppConfig struct {
	Env string `mapstructure:"env"` // e.g., "local", "prod"
}

// APIConfig points at the backend REST API. The terminal only reports it;
// REST traffic belongs to the backend's own clients.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type FeedConfig struct {
	URL                  string        `mapstructure:"url"`
	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	HandshakeTimeout     time.Duration `mapstructure:"handshake_timeout"`
	MaxMessageSize       int64         `mapstructure:"max_message_size"`
}

type TerminalConfig struct {
	Symbols    []string `mapstructure:"symbols"`
	Strategies []string `mapstructure:"strategies"`
	StatusAddr string   `mapstructure:"status_addr"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MirrorConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Workers int           `mapstructure:"workers"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
	// Partitions of the frames topic; 0 means one per relay worker.
	Partitions        int `mapstructure:"partitions"`
	ReplicationFactor int `mapstructure:"replication_factor"`
}

// SimConfig configures the development feed server.
type SimConfig struct {
	Port     string        `mapstructure:"port"`
	Source   string        `mapstructure:"source"` // "synthetic" or "kafka"
	Symbols  []string      `mapstructure:"symbols"`
	Interval time.Duration `mapstructure:"interval"`
}

type ProcessorConfig struct {
	NumWorkers int `mapstructure:"num_workers"`
}

type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // "json" or "console"
}

const (
	SourceSynthetic = "synthetic"
	SourceKafka     = "kafka"
)

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// .env values become real env vars so viper sees them below
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	v.SetDefault("app.env", "local")

	v.SetDefault("api.base_url", "http://localhost:8000")

	v.SetDefault("feed.url", "ws://localhost:8000/ws/ticks")
	v.SetDefault("feed.reconnect_delay", 3*time.Second)
	v.SetDefault("feed.max_reconnect_attempts", 10)
	v.SetDefault("feed.handshake_timeout", 10*time.Second)
	v.SetDefault("feed.max_message_size", 64*1024)

	v.SetDefault("terminal.symbols", []string{"NIFTY", "BANKNIFTY", "FINNIFTY"})
	v.SetDefault("terminal.strategies", []string{})
	v.SetDefault("terminal.status_addr", ":8081")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.workers", 4)
	v.SetDefault("mirror.ttl", time.Hour)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "market_frames")
	v.SetDefault("kafka.group_id", "feedsim-relay")
	v.SetDefault("kafka.partitions", 0)
	v.SetDefault("kafka.replication_factor", 1)

	v.SetDefault("sim.port", ":8000")
	v.SetDefault("sim.source", SourceSynthetic)
	v.SetDefault("sim.symbols", []string{"NIFTY", "BANKNIFTY", "FINNIFTY"})
	v.SetDefault("sim.interval", time.Second)

	v.SetDefault("processor.num_workers", 4)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	// "feed.url" -> "FEED_URL"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v, "app.env")
	bindEnv(v, "feed.reconnect_delay", "feed.max_reconnect_attempts", "feed.handshake_timeout", "feed.max_message_size")
	bindEnv(v, "terminal.symbols", "terminal.strategies", "terminal.status_addr")
	bindEnv(v, "redis.addr", "redis.password", "redis.db")
	bindEnv(v, "mirror.enabled", "mirror.workers", "mirror.ttl")
	bindEnv(v, "kafka.brokers", "kafka.topic", "kafka.group_id", "kafka.partitions", "kafka.replication_factor")
	bindEnv(v, "sim.port", "sim.source", "sim.symbols", "sim.interval")
	bindEnv(v, "processor.num_workers")
	bindEnv(v, "logger.level", "logger.encoding")

	// The web front-end's variable names are honoured as fallbacks.
	if err := v.BindEnv("api.base_url", "API_BASE_URL", "NEXT_PUBLIC_API_URL"); err != nil {
		log.Printf("Could not bind env var for key api.base_url: %v", err)
	}
	if err := v.BindEnv("feed.url", "FEED_URL", "NEXT_PUBLIC_WS_URL"); err != nil {
		log.Printf("Could not bind env var for key feed.url: %v", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if cfg.Kafka.Partitions == 0 {
		cfg.Kafka.Partitions = cfg.Processor.NumWorkers
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the values the services cannot run without.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Feed.URL, "ws://") && !strings.HasPrefix(c.Feed.URL, "wss://") {
		return fmt.Errorf("feed url must be ws:// or wss://, got %q", c.Feed.URL)
	}
	if c.Feed.ReconnectDelay <= 0 {
		return fmt.Errorf("feed reconnect delay must be positive")
	}
	// -1 is unlimited, 0 disables reconnecting
	if c.Feed.MaxReconnectAttempts < -1 {
		return fmt.Errorf("feed max reconnect attempts must be -1 or more, got %d", c.Feed.MaxReconnectAttempts)
	}
	if c.Sim.Source != SourceSynthetic && c.Sim.Source != SourceKafka {
		return fmt.Errorf("unknown sim source %q", c.Sim.Source)
	}
	if c.Sim.Source == SourceKafka && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers cannot be empty")
	}
	if c.Processor.NumWorkers <= 0 {
		return fmt.Errorf("processor workers must be positive")
	}
	if c.Kafka.Partitions < 0 || c.Kafka.ReplicationFactor <= 0 {
		return fmt.Errorf("kafka partitions and replication factor must be positive")
	}
	if c.Mirror.Enabled && c.Mirror.Workers <= 0 {
		return fmt.Errorf("mirror workers must be positive")
	}
	return nil
}

// NewLogger builds the zap logger shared by every service.
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Encoding == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
