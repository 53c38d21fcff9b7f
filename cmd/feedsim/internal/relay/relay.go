// Package relay feeds frames published to Kafka by tickgen into the hub.
package relay

import (
	"bytes"
	"context"
	"errors"
	"hash/fnv"
	"io"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/marketfeed/pkg/feedgen"
	"github.com/shubham-shewale/marketfeed/pkg/protocol"
)

const queueSize = 100

type Relay struct {
	logger     Logger
	reader     KafkaReader
	out        Broadcaster
	numWorkers int
}

func NewRelay(numWorkers int, logger Logger, reader KafkaReader, out Broadcaster) *Relay {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Relay{
		logger:     logger,
		reader:     reader,
		out:        out,
		numWorkers: numWorkers,
	}
}

// Run relays until ctx is done or the reader reports the end of the
// stream, then drains the workers.
func (r *Relay) Run(ctx context.Context) error {
	workerChans := make([]chan kafka.Message, r.numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < r.numWorkers; i++ {
		workerChans[i] = make(chan kafka.Message, queueSize)
		wg.Add(1)
		go r.worker(ctx, i, workerChans[i], &wg)
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		r.logger.Info("Relay Started", zap.Int("workers", r.numWorkers))
		for {
			m, err := r.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
					return
				}
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
					r.logger.Info("Kafka stream ended", zap.Error(err))
					return
				}
				r.logger.Error("Kafka Read Error", zap.Error(err))
				continue
			}

			// Deterministic sharding: same key always goes to same worker
			workerID := getWorkerID(m.Key, r.numWorkers)

			select {
			case workerChans[workerID] <- m:
			case <-ctx.Done():
				return
			default:
				r.logger.Warn("Dropping slow packet", zap.String("key", string(m.Key)), zap.Int("worker_id", workerID))
			}
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("Shutdown signal received, stopping relay...")
	case <-readDone:
	}
	<-readDone

	for _, ch := range workerChans {
		close(ch)
	}
	r.logger.Info("Waiting for relay workers to drain...")
	wg.Wait()

	return nil
}

func (r *Relay) worker(ctx context.Context, id int, msgs <-chan kafka.Message, wg *sync.WaitGroup) {
	defer wg.Done()

	// Per-key redelivery filter; sound only because of deterministic sharding.
	last := make(map[string][]byte)

	for m := range msgs {
		key := string(m.Key)
		if prev, ok := last[key]; ok && bytes.Equal(prev, m.Value) {
			r.logger.Debug("Skipping duplicate frame", zap.String("key", key))
			continue
		}

		frame, err := protocol.Decode(m.Value)
		if err != nil {
			r.logger.Error("Frame Decode Error", zap.Error(err), zap.String("key", key))
			continue
		}

		typ, ok := feedgen.FrameType(m)
		if !ok {
			typ = protocol.TypeOf(frame)
		}

		if err := r.out.WriteFrames(ctx, feedgen.Message{Key: key, Type: typ, Value: m.Value}); err != nil {
			r.logger.Error("Broadcast Error", zap.Error(err), zap.String("key", key))
			continue
		}
		r.logger.Debug("Relayed", zap.String("key", key), zap.String("type", string(typ)), zap.Int("worker_id", id))
		last[key] = m.Value
	}
}

func getWorkerID(key []byte, numWorkers int) int {
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32() % uint32(numWorkers))
}
