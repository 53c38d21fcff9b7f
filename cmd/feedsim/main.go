package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gobwas/ws"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/marketfeed/cmd/feedsim/internal/hub"
	"github.com/shubham-shewale/marketfeed/cmd/feedsim/internal/relay"
	"github.com/shubham-shewale/marketfeed/cmd/feedsim/internal/session"
	"github.com/shubham-shewale/marketfeed/pkg/config"
	"github.com/shubham-shewale/marketfeed/pkg/feedgen"
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

	wsHub := hub.NewHub(cfg.Sim.Symbols, logger)
	clock := feedgen.RealClock{}

	ctx, cancel := context.WithCancel(context.Background())
	sourceDone := make(chan struct{})

	var reader *kafka.Reader
	switch cfg.Sim.Source {
	case config.SourceKafka:
		reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:           cfg.Kafka.Brokers,
			Topic:             cfg.Kafka.Topic,
			GroupID:           cfg.Kafka.GroupID,
			MinBytes:          1,
			MaxBytes:          10e6,
			MaxWait:           200 * time.Millisecond,
			CommitInterval:    time.Second,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    10 * time.Second,
		})
		rl := relay.NewRelay(cfg.Processor.NumWorkers, logger, reader, wsHub)
		go func() {
			defer close(sourceDone)
			rl.Run(ctx)
		}()

	default:
		settings := feedgen.DefaultSettings(cfg.Sim.Symbols, cfg.Sim.Interval)
		gen := feedgen.New(logger, wsHub, settings, feedgen.NewRealRand(), clock)
		go func() {
			defer close(sourceDone)
			gen.Run(ctx)
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/ticks", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			logger.Debug("Upgrade failed", zap.Error(err))
			return
		}
		session.New(conn, wsHub, logger, clock).Start()
	})

	srv := &http.Server{Addr: cfg.Sim.Port, Handler: mux}

	go func() {
		logger.Info("Feed simulator started",
			zap.String("port", cfg.Sim.Port),
			zap.String("source", cfg.Sim.Source),
			zap.Strings("symbols", cfg.Sim.Symbols),
		)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("Shutdown signal received")

	cancel()
	<-sourceDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	wsHub.Shutdown()

	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("Error closing reader", zap.Error(err))
		}
	}
	logger.Info("Shutdown Complete")
}
