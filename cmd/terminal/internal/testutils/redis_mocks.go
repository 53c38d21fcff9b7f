package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type MockPipeline struct {
	redis.Pipeliner // satisfies the methods the mirror never calls

	ExecCount    int
	ExecErr      error
	RecordedCmds []string
	Mu           sync.Mutex
}

func (m *MockPipeline) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RecordedCmds = append(m.RecordedCmds, "SET "+key)
	return redis.NewStatusCmd(ctx)
}

func (m *MockPipeline) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RecordedCmds = append(m.RecordedCmds, "PUBLISH "+channel)
	return redis.NewIntCmd(ctx)
}

func (m *MockPipeline) Exec(ctx context.Context) ([]redis.Cmder, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.ExecCount++
	return nil, m.ExecErr
}

// MockRedisClient records pipelines and answers MGET from Values.
type MockRedisClient struct {
	PipelineSpy *MockPipeline
	Values      map[string]string
	MGetErr     error
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{PipelineSpy: &MockPipeline{}, Values: map[string]string{}}
}

func (m *MockRedisClient) Pipeline() redis.Pipeliner {
	return m.PipelineSpy
}

func (m *MockRedisClient) MGet(ctx context.Context, keys ...string) *redis.SliceCmd {
	if m.MGetErr != nil {
		return redis.NewSliceResult(nil, m.MGetErr)
	}
	vals := make([]interface{}, len(keys))
	for i, k := range keys {
		if v, ok := m.Values[k]; ok {
			vals[i] = v
		}
	}
	return redis.NewSliceResult(vals, nil)
}

func (m *MockRedisClient) Close() error { return nil }
