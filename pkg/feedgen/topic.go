package feedgen

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrTopicNotReady = errors.New("topic has no partitions yet")

const (
	topicPollInterval = 200 * time.Millisecond
	topicPollAttempts = 5
)

// TopicSpec is the layout of the frames topic. Partitions should match the
// relay's shard count so each relay worker owns whole partitions.
type TopicSpec struct {
	Name              string
	Partitions        int
	ReplicationFactor int
}

type TopicCreator struct {
	logger *zap.Logger
	dialer KafkaDialer
	clock  Clock
}

func NewTopicCreator(logger *zap.Logger, dialer KafkaDialer, clock Clock) *TopicCreator {
	return &TopicCreator{
		logger: logger,
		dialer: dialer,
		clock:  clock,
	}
}

// Ensure creates the topic through the cluster controller unless it already
// exists, then waits until its partitions are visible.
func (tc *TopicCreator) Ensure(ctx context.Context, brokers []string, spec TopicSpec) error {
	if spec.Partitions <= 0 || spec.ReplicationFactor <= 0 {
		return fmt.Errorf("topic %q: partitions and replication factor must be positive", spec.Name)
	}

	conn, err := tc.dialAny(ctx, brokers)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := tc.createOnController(ctx, conn, spec); err != nil {
		return err
	}

	partitions, err := tc.awaitPartitions(ctx, conn, spec.Name)
	if err != nil {
		return err
	}
	if partitions < spec.Partitions {
		tc.logger.Warn("Topic has fewer partitions than requested",
			zap.String("topic", spec.Name),
			zap.Int("have", partitions),
			zap.Int("want", spec.Partitions))
	}
	return nil
}

func (tc *TopicCreator) dialAny(ctx context.Context, brokers []string) (KafkaConn, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	var errs []error
	for _, addr := range brokers {
		conn, err := tc.dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", addr, err))
	}
	return nil, fmt.Errorf("dial kafka brokers: %w", errors.Join(errs...))
}

func (tc *TopicCreator) createOnController(ctx context.Context, conn KafkaConn, spec TopicSpec) error {
	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find kafka controller: %w", err)
	}

	addr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	cc, err := tc.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial kafka controller %s: %w", addr, err)
	}
	defer cc.Close()

	err = cc.CreateTopics(kafka.TopicConfig{
		Topic:             spec.Name,
		NumPartitions:     spec.Partitions,
		ReplicationFactor: spec.ReplicationFactor,
	})
	switch {
	case errors.Is(err, kafka.TopicAlreadyExists):
		tc.logger.Info("Topic already exists", zap.String("topic", spec.Name))
	case err != nil:
		return fmt.Errorf("create topic %q: %w", spec.Name, err)
	default:
		tc.logger.Info("Topic created",
			zap.String("topic", spec.Name),
			zap.Int("partitions", spec.Partitions),
			zap.Int("replication_factor", spec.ReplicationFactor))
	}
	return nil
}

func (tc *TopicCreator) awaitPartitions(ctx context.Context, conn KafkaConn, topic string) (int, error) {
	var lastErr error
	for i := 0; i < topicPollAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		partitions, err := conn.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			return len(partitions), nil
		}
		lastErr = err
		tc.clock.Sleep(topicPollInterval)
	}
	if lastErr != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrTopicNotReady, topic, lastErr)
	}
	return 0, fmt.Errorf("%w: %q", ErrTopicNotReady, topic)
}
