package health

import (
	"sync"

	"go.uber.org/zap"

	"github.com/shubham-shewale/marketfeed/pkg/models"
)

// HealthSource is the part of the store a Watcher needs.
type HealthSource interface {
	Health() models.ConnectionHealth
	SubscribeHealth(fn func(models.ConnectionHealth)) (unsubscribe func())
}

// Watcher logs badge transitions and remembers the current badge.
type Watcher struct {
	logger   *zap.Logger
	onChange func(Badge)

	mu    sync.RWMutex
	badge Badge
	stop  func()
}

type WatcherOption func(*Watcher)

// OnChange registers fn to be called with each new badge.
func OnChange(fn func(Badge)) WatcherOption {
	return func(w *Watcher) { w.onChange = fn }
}

func NewWatcher(src HealthSource, logger *zap.Logger, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		logger: logger,
		badge:  FromHealth(src.Health()),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.stop = src.SubscribeHealth(w.observe)
	return w
}

func (w *Watcher) observe(h models.ConnectionHealth) {
	next := FromHealth(h)

	w.mu.Lock()
	prev := w.badge
	w.badge = next
	w.mu.Unlock()

	if prev == next {
		return
	}

	fields := []zap.Field{
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
		zap.Bool("connected", h.Connected),
		zap.String("quality", string(h.Quality)),
	}
	switch next {
	case Live:
		w.logger.Info("Feed status", fields...)
	default:
		w.logger.Warn("Feed status", fields...)
	}

	if w.onChange != nil {
		w.onChange(next)
	}
}

func (w *Watcher) Badge() Badge {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.badge
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() {
	w.mu.Lock()
	stop := w.stop
	w.stop = nil
	w.mu.Unlock()

	if stop != nil {
		stop()
	}
}
