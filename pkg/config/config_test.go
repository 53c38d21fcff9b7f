package config_test

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/marketfeed/pkg/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Feed.URL != "ws://localhost:8000/ws/ticks" {
		t.Errorf("Unexpected default feed url %q", cfg.Feed.URL)
	}
	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Errorf("Unexpected default api url %q", cfg.API.BaseURL)
	}
	if cfg.Feed.ReconnectDelay != 3*time.Second {
		t.Errorf("Expected 3s reconnect delay, got %v", cfg.Feed.ReconnectDelay)
	}
	if cfg.Feed.MaxReconnectAttempts != 10 {
		t.Errorf("Expected 10 reconnect attempts, got %d", cfg.Feed.MaxReconnectAttempts)
	}
	if cfg.Sim.Source != config.SourceSynthetic {
		t.Errorf("Expected synthetic sim source, got %q", cfg.Sim.Source)
	}
	if cfg.Feed.MaxMessageSize != 64*1024 {
		t.Errorf("Expected 64KiB message limit, got %d", cfg.Feed.MaxMessageSize)
	}
	if cfg.Kafka.Partitions != cfg.Processor.NumWorkers {
		t.Errorf("Expected one partition per relay worker, got %d partitions for %d workers",
			cfg.Kafka.Partitions, cfg.Processor.NumWorkers)
	}
	if cfg.Kafka.ReplicationFactor != 1 {
		t.Errorf("Expected replication factor 1, got %d", cfg.Kafka.ReplicationFactor)
	}
}

func TestLoadConfig_PartitionsFollowRelayWorkers(t *testing.T) {
	t.Setenv("PROCESSOR_NUM_WORKERS", "6")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Kafka.Partitions != 6 {
		t.Errorf("Expected 6 partitions, got %d", cfg.Kafka.Partitions)
	}

	t.Setenv("KAFKA_PARTITIONS", "12")
	cfg, err = config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Kafka.Partitions != 12 {
		t.Errorf("KAFKA_PARTITIONS not applied, got %d", cfg.Kafka.Partitions)
	}
}

func TestLoadConfig_ReconnectAttemptBounds(t *testing.T) {
	tests := []struct {
		value   string
		want    int
		wantErr bool
	}{
		{value: "-1", want: -1},
		{value: "0", want: 0},
		{value: "5", want: 5},
		{value: "-2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("FEED_MAX_RECONNECT_ATTEMPTS", tt.value)

			cfg, err := config.LoadConfig()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %s attempts", tt.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			if cfg.Feed.MaxReconnectAttempts != tt.want {
				t.Errorf("MaxReconnectAttempts = %d, want %d", cfg.Feed.MaxReconnectAttempts, tt.want)
			}
		})
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("FEED_URL", "wss://feed.example.com/ws/ticks")
	t.Setenv("FEED_RECONNECT_DELAY", "500ms")
	t.Setenv("FEED_MAX_RECONNECT_ATTEMPTS", "3")
	t.Setenv("REDIS_ADDR", "redis:6380")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Feed.URL != "wss://feed.example.com/ws/ticks" {
		t.Errorf("FEED_URL not applied, got %q", cfg.Feed.URL)
	}
	if cfg.Feed.ReconnectDelay != 500*time.Millisecond {
		t.Errorf("FEED_RECONNECT_DELAY not applied, got %v", cfg.Feed.ReconnectDelay)
	}
	if cfg.Feed.MaxReconnectAttempts != 3 {
		t.Errorf("FEED_MAX_RECONNECT_ATTEMPTS not applied, got %d", cfg.Feed.MaxReconnectAttempts)
	}
	if cfg.Redis.Addr != "redis:6380" {
		t.Errorf("REDIS_ADDR not applied, got %q", cfg.Redis.Addr)
	}
}

func TestLoadConfig_FrontendEnvFallback(t *testing.T) {
	t.Setenv("NEXT_PUBLIC_WS_URL", "ws://backend:8000/ws/ticks")
	t.Setenv("NEXT_PUBLIC_API_URL", "http://backend:8000")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Feed.URL != "ws://backend:8000/ws/ticks" {
		t.Errorf("NEXT_PUBLIC_WS_URL fallback not applied, got %q", cfg.Feed.URL)
	}
	if cfg.API.BaseURL != "http://backend:8000" {
		t.Errorf("NEXT_PUBLIC_API_URL fallback not applied, got %q", cfg.API.BaseURL)
	}
}

func TestLoadConfig_RejectsHTTPFeedURL(t *testing.T) {
	t.Setenv("FEED_URL", "http://localhost:8000/ws/ticks")

	if _, err := config.LoadConfig(); err == nil {
		t.Error("Expected error for non-websocket feed url")
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := config.NewLogger(config.LoggerConfig{Level: "debug", Encoding: "console"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !logger.Core().Enabled(zap.DebugLevel) {
		t.Error("Expected debug level to be enabled")
	}

	if _, err := config.NewLogger(config.LoggerConfig{Level: "loud"}); err == nil {
		t.Error("Expected error for unknown level")
	}
}
