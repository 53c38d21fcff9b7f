package relay

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/marketfeed/pkg/feedgen"
)

// Logger abstracts the logging library
type Logger interface {
	Info(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

// KafkaReader abstracts the input stream
type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Broadcaster receives relayed frames; the hub implements it.
type Broadcaster interface {
	WriteFrames(ctx context.Context, msgs ...feedgen.Message) error
}
