package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

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

	ctx, cancel := context.WithCancel(context.Background())
	clock := feedgen.RealClock{}

	dialer := &feedgen.RealKafkaDialer{Dialer: &kafka.Dialer{Timeout: 10 * time.Second}}
	topic := feedgen.TopicSpec{
		Name:              cfg.Kafka.Topic,
		Partitions:        cfg.Kafka.Partitions,
		ReplicationFactor: cfg.Kafka.ReplicationFactor,
	}
	if err := feedgen.NewTopicCreator(logger, dialer, clock).Ensure(ctx, cfg.Kafka.Brokers, topic); err != nil {
		logger.Fatal("Failed to prepare Kafka topic", zap.String("topic", topic.Name), zap.Error(err))
	}

	writer := &kafka.Writer{
		Addr:  kafka.TCP(cfg.Kafka.Brokers...),
		Topic: cfg.Kafka.Topic,
		// Hash keeps each symbol on one partition, so consumers see its ticks in order.
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	}
	out := feedgen.NewKafkaFrameWriter(writer)

	settings := feedgen.DefaultSettings(cfg.Sim.Symbols, cfg.Sim.Interval)
	gen := feedgen.New(logger, out, settings, feedgen.NewRealRand(), clock)

	done := make(chan struct{})
	go func() {
		defer close(done)
		gen.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received")
	cancel()
	<-done

	// Async writer: Close flushes what is still buffered.
	if err := out.Close(); err != nil {
		logger.Error("Error closing Kafka writer", zap.Error(err))
	} else {
		logger.Info("Kafka writer closed cleanly")
	}
}
