package feedgen

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/marketfeed/pkg/protocol"
)

// TypeHeader carries the frame type on Kafka records so consumers can route
// without decoding the value.
const TypeHeader = "frame-type"

// KafkaFrameWriter publishes frames to a Kafka topic keyed by Message.Key,
// which keeps every symbol on one partition.
type KafkaFrameWriter struct {
	writer KafkaWriter
}

func NewKafkaFrameWriter(w KafkaWriter) *KafkaFrameWriter {
	return &KafkaFrameWriter{writer: w}
}

func (k *KafkaFrameWriter) WriteFrames(ctx context.Context, msgs ...Message) error {
	records := make([]kafka.Message, len(msgs))
	for i, m := range msgs {
		records[i] = kafka.Message{
			Key:     []byte(m.Key),
			Value:   m.Value,
			Headers: []kafka.Header{{Key: TypeHeader, Value: []byte(m.Type)}},
		}
	}
	if err := k.writer.WriteMessages(ctx, records...); err != nil {
		return fmt.Errorf("write %d frames: %w", len(records), err)
	}
	return nil
}

func (k *KafkaFrameWriter) Close() error {
	return k.writer.Close()
}

// FrameType returns the type recorded in a Kafka record's headers.
func FrameType(m kafka.Message) (protocol.MessageType, bool) {
	for _, h := range m.Headers {
		if h.Key == TypeHeader {
			return protocol.MessageType(h.Value), true
		}
	}
	return "", false
}
