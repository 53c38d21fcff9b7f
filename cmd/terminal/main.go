package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubham-shewale/marketfeed/cmd/terminal/internal/feed"
	"github.com/shubham-shewale/marketfeed/cmd/terminal/internal/health"
	"github.com/shubham-shewale/marketfeed/cmd/terminal/internal/mirror"
	"github.com/shubham-shewale/marketfeed/cmd/terminal/internal/store"
	"github.com/shubham-shewale/marketfeed/pkg/config"
	"github.com/shubham-shewale/marketfeed/pkg/models"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Terminal starting",
		zap.String("env", cfg.App.Env),
		zap.String("feed_url", cfg.Feed.URL),
		zap.String("api_url", cfg.API.BaseURL),
	)

	marketStore := store.New()

	var (
		rdb *redis.Client
		mir *mirror.Mirror
	)
	if cfg.Mirror.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		mir = mirror.New(cfg.Mirror, logger, rdb)

		warmCtx, warmCancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rdb.Ping(warmCtx).Err(); err != nil {
			logger.Warn("Redis unavailable, mirror disabled", zap.Error(err))
			mir = nil
		} else if _, err := mir.Warm(warmCtx, marketStore, cfg.Terminal.Symbols); err != nil {
			logger.Warn("Warm start failed", zap.Error(err))
		}
		warmCancel()

		if mir != nil {
			mir.Start(marketStore)
		}
	}

	unwatch := watch(marketStore, cfg.Terminal, logger)

	badge := health.NewWatcher(marketStore, logger)

	client := feed.New(marketStore, logger,
		feed.WithURL(cfg.Feed.URL),
		feed.WithReconnectDelay(cfg.Feed.ReconnectDelay),
		feed.WithMaxReconnectAttempts(cfg.Feed.MaxReconnectAttempts),
		feed.WithHandshakeTimeout(cfg.Feed.HandshakeTimeout),
		feed.WithMaxMessageSize(cfg.Feed.MaxMessageSize),
	)
	if err := client.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start feed", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", health.Handler(marketStore))
	srv := &http.Server{Addr: cfg.Terminal.StatusAddr, Handler: mux}

	go func() {
		logger.Info("Status server started", zap.String("addr", cfg.Terminal.StatusAddr))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("Shutdown signal received")
	case <-client.Done():
		// Only an exhausted reconnect budget ends the client on its own.
		// The terminal keeps serving its last known state with an Offline badge.
		logger.Error("Feed stopped", zap.String("badge", string(badge.Badge())))
		<-stop
	}

	if err := client.Stop(); err != nil && !errors.Is(err, feed.ErrReconnectExhausted) {
		logger.Error("Feed stop error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	badge.Close()
	unwatch()

	if mir != nil {
		mir.Stop()
	}
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("Shutdown Complete")
}

// watch logs updates for the configured symbols and strategies and every
// order event. It returns a func that removes all the listeners.
func watch(s *store.Store, cfg config.TerminalConfig, logger *zap.Logger) func() {
	var unsubs []func()

	for _, sym := range cfg.Symbols {
		unsubs = append(unsubs, s.SubscribeTick(sym, func(t *models.Tick) {
			if t == nil {
				return
			}
			logger.Info("Tick",
				zap.String("symbol", t.Symbol),
				zap.Float64("ltp", t.LTP),
				zap.Float64("change", t.Change),
				zap.Float64("change_pct", t.ChangePercent),
				zap.Int64("volume", t.Volume),
				zap.String("ts", t.Timestamp),
			)
		}))
	}

	for _, id := range cfg.Strategies {
		unsubs = append(unsubs, s.SubscribePnL(id, func(p *models.StrategyPnL) {
			if p == nil {
				return
			}
			logger.Info("P&L",
				zap.String("strategy_id", p.StrategyID),
				zap.Float64("current", p.CurrentPnL),
				zap.Float64("total", p.TotalPnL),
				zap.Int("open_positions", p.OpenPositions),
			)
		}))
	}

	unsubs = append(unsubs, s.SubscribeOrders(func(orders []models.OrderEvent) {
		if len(orders) == 0 {
			return
		}
		o := orders[0]
		logger.Info("Order",
			zap.String("order_id", o.OrderID),
			zap.String("strategy_id", o.StrategyID),
			zap.String("symbol", o.Symbol),
			zap.String("side", string(o.Side)),
			zap.Int64("qty", o.Quantity),
			zap.Float64("price", o.Price),
			zap.String("status", string(o.Status)),
			zap.Int("log_size", len(orders)),
		)
	}))

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
