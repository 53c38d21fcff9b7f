// Package mirror copies the terminal's live ticks into Redis so that other
// processes can read the latest price per symbol, and so a restarted
// terminal can paint its watchlist before the feed delivers a tick.
package mirror

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/marketfeed/pkg/config"
	"github.com/shubham-shewale/marketfeed/pkg/models"
)

const (
	keyPrefix     = "tick:"
	channelPrefix = "ticks."

	queueSize = 100
)

func Key(symbol string) string     { return keyPrefix + symbol }
func Channel(symbol string) string { return channelPrefix + symbol }

type Mirror struct {
	logger     Logger
	rdb        RedisClient
	ttl        time.Duration
	numWorkers int

	// guards sends on the worker queues against their close
	mu          sync.RWMutex
	queues      []chan *models.Tick
	stopped     bool
	unsubscribe func()
	wg          sync.WaitGroup
}

func New(cfg config.MirrorConfig, logger Logger, rdb RedisClient) *Mirror {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Mirror{
		logger:     logger,
		rdb:        rdb,
		ttl:        ttl,
		numWorkers: workers,
	}
}

// Start subscribes to src and starts the workers. Ticks published after
// Start returns are mirrored until Stop.
func (m *Mirror) Start(src TickSource) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unsubscribe != nil {
		return
	}

	m.queues = make([]chan *models.Tick, m.numWorkers)
	for i := range m.queues {
		m.queues[i] = make(chan *models.Tick, queueSize)
		m.wg.Add(1)
		go m.worker(i, m.queues[i])
	}
	m.stopped = false
	m.unsubscribe = src.SubscribeAllTicks(m.enqueue)

	m.logger.Info("Tick mirror started", zap.Int("workers", m.numWorkers))
}

// Stop unsubscribes, lets the workers drain what is queued and waits for
// them.
func (m *Mirror) Stop() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe == nil {
		return
	}
	// Outside the lock: a listener may be running enqueue right now.
	unsubscribe()

	m.mu.Lock()
	m.stopped = true
	for _, q := range m.queues {
		close(q)
	}
	m.mu.Unlock()

	m.logger.Info("Waiting for mirror workers to drain...")
	m.wg.Wait()
}

// enqueue runs on the store's mutating goroutine and never blocks it.
func (m *Mirror) enqueue(tick *models.Tick) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.stopped || tick == nil {
		return
	}

	// Same symbol always goes to the same worker, which keeps per-symbol order.
	workerID := shard(tick.Symbol, m.numWorkers)
	select {
	case m.queues[workerID] <- tick:
	default:
		m.logger.Warn("Dropping tick for mirror", zap.String("symbol", tick.Symbol), zap.Int("worker_id", workerID))
	}
}

func (m *Mirror) worker(id int, ticks <-chan *models.Tick) {
	defer m.wg.Done()
	// Background context so a shutdown does not abort a half-written pipeline.
	ctx := context.Background()

	last := make(map[string]models.Tick)

	for tick := range ticks {
		if prev, ok := last[tick.Symbol]; ok && prev == *tick {
			m.logger.Debug("Skipping unchanged tick", zap.String("symbol", tick.Symbol))
			continue
		}

		payload, err := json.Marshal(tick)
		if err != nil {
			m.logger.Error("JSON Marshal Error", zap.Error(err), zap.String("symbol", tick.Symbol))
			continue
		}

		pipe := m.rdb.Pipeline()
		pipe.Set(ctx, Key(tick.Symbol), payload, m.ttl)
		pipe.Publish(ctx, Channel(tick.Symbol), payload)

		if _, err := pipe.Exec(ctx); err != nil {
			m.logger.Error("Redis Pipeline Error", zap.Error(err), zap.String("symbol", tick.Symbol))
			continue
		}
		m.logger.Debug("Mirrored", zap.String("symbol", tick.Symbol), zap.Int("worker_id", id))
		last[tick.Symbol] = *tick
	}
}

func shard(symbol string, numWorkers int) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32() % uint32(numWorkers))
}
