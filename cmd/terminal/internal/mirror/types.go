package mirror

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubham-shewale/marketfeed/pkg/models"
)

// Logger abstracts the logging library
type Logger interface {
	Info(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

// RedisClient is the subset of *redis.Client the mirror uses.
type RedisClient interface {
	Pipeline() redis.Pipeliner
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Close() error
}

// TickSource is where mirrored ticks come from. *store.Store satisfies it.
type TickSource interface {
	SubscribeAllTicks(fn func(tick *models.Tick)) (unsubscribe func())
}

// TickSink receives warm-start ticks. *store.Store satisfies it.
type TickSink interface {
	UpdateTick(tick *models.Tick)
}
