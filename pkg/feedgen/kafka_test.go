package feedgen_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/marketfeed/pkg/feedgen"
	"github.com/shubham-shewale/marketfeed/pkg/protocol"
)

func TestKafkaFrameWriter(t *testing.T) {
	w := &MockKafkaWriter{}
	fw := feedgen.NewKafkaFrameWriter(w)

	err := fw.WriteFrames(context.Background(),
		feedgen.Message{Key: "NIFTY", Type: protocol.TypeTick, Value: []byte(`{"type":"tick"}`)},
		feedgen.Message{Key: "s1", Type: protocol.TypePnL, Value: []byte(`{"type":"pnl"}`)},
	)
	if err != nil {
		t.Fatalf("WriteFrames: %v", err)
	}

	if len(w.Messages) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(w.Messages))
	}
	if string(w.Messages[0].Key) != "NIFTY" {
		t.Errorf("Key = %s", w.Messages[0].Key)
	}
	if typ, ok := feedgen.FrameType(w.Messages[1]); !ok || typ != protocol.TypePnL {
		t.Errorf("FrameType = %s, %v", typ, ok)
	}

	if err := fw.Close(); err != nil || !w.Closed {
		t.Error("Close should close the underlying writer")
	}
}

func TestKafkaFrameWriter_Error(t *testing.T) {
	fw := feedgen.NewKafkaFrameWriter(&MockKafkaWriter{ShouldFail: true})

	if err := fw.WriteFrames(context.Background(), feedgen.Message{Key: "NIFTY"}); err == nil {
		t.Error("Expected write error")
	}
}

func TestFrameType_Missing(t *testing.T) {
	if _, ok := feedgen.FrameType(kafka.Message{}); ok {
		t.Error("Expected no frame type")
	}
}

var framesTopic = feedgen.TopicSpec{Name: "market_frames", Partitions: 4, ReplicationFactor: 1}

func TestTopicCreator_Flow(t *testing.T) {
	dialer := &MockKafkaDialer{Fail: map[string]bool{"down:9092": true}}
	tc := feedgen.NewTopicCreator(zap.NewNop(), dialer, &MockClock{})

	err := tc.Ensure(context.Background(), []string{"down:9092", "broker:9092"}, framesTopic)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	if dialer.ConnSpy == nil {
		t.Fatal("Dialer was never called")
	}
	created := dialer.ConnSpy.CreatedTopics
	if len(created) != 1 {
		t.Fatalf("CreatedTopics = %v", created)
	}
	if created[0].Topic != "market_frames" || created[0].NumPartitions != 4 || created[0].ReplicationFactor != 1 {
		t.Errorf("Topic config = %+v", created[0])
	}
	// broker conn and controller conn
	if dialer.ConnSpy.Closed != 2 {
		t.Errorf("Expected both connections closed, got %d", dialer.ConnSpy.Closed)
	}
	if dialer.Dialed[len(dialer.Dialed)-1] != "localhost:9092" {
		t.Errorf("Expected topic creation on the controller, dialed %v", dialer.Dialed)
	}
}

func TestTopicCreator_AllBrokersDown(t *testing.T) {
	dialer := &MockKafkaDialer{Fail: map[string]bool{"a:9092": true, "b:9092": true}}
	tc := feedgen.NewTopicCreator(zap.NewNop(), dialer, &MockClock{})

	err := tc.Ensure(context.Background(), []string{"a:9092", "b:9092"}, framesTopic)
	if err == nil {
		t.Fatal("Expected dial error")
	}
	if !strings.Contains(err.Error(), "a:9092") || !strings.Contains(err.Error(), "b:9092") {
		t.Errorf("Error should name every broker: %v", err)
	}
	if dialer.ConnSpy != nil {
		t.Error("No connection should have been made")
	}
	if len(dialer.Dialed) != 2 {
		t.Errorf("Dialed = %v", dialer.Dialed)
	}
}

func TestTopicCreator_AlreadyExists(t *testing.T) {
	conn := &MockKafkaConn{CreateErr: kafka.TopicAlreadyExists, Partitions: []kafka.Partition{{ID: 0}, {ID: 1}}}
	tc := feedgen.NewTopicCreator(zap.NewNop(), &MockKafkaDialer{ConnSpy: conn}, &MockClock{})

	if err := tc.Ensure(context.Background(), []string{"broker:9092"}, framesTopic); err != nil {
		t.Errorf("Existing topic should be accepted, got %v", err)
	}
}

func TestTopicCreator_Errors(t *testing.T) {
	tests := []struct {
		name string
		conn *MockKafkaConn
		spec feedgen.TopicSpec
		want error
	}{
		{
			name: "controller lookup",
			conn: &MockKafkaConn{ControllerErr: errors.New("no controller")},
			spec: framesTopic,
		},
		{
			name: "create rejected",
			conn: &MockKafkaConn{CreateErr: kafka.InvalidReplicationFactor},
			spec: framesTopic,
			want: kafka.InvalidReplicationFactor,
		},
		{
			name: "never ready",
			conn: &MockKafkaConn{},
			spec: framesTopic,
			want: feedgen.ErrTopicNotReady,
		},
		{
			name: "bad layout",
			conn: &MockKafkaConn{},
			spec: feedgen.TopicSpec{Name: "market_frames", Partitions: 0, ReplicationFactor: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := feedgen.NewTopicCreator(zap.NewNop(), &MockKafkaDialer{ConnSpy: tt.conn}, &MockClock{})

			err := tc.Ensure(context.Background(), []string{"broker:9092"}, tt.spec)
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTopicCreator_StopsWaitingOnCancel(t *testing.T) {
	conn := &MockKafkaConn{}
	tc := feedgen.NewTopicCreator(zap.NewNop(), &MockKafkaDialer{ConnSpy: conn}, &MockClock{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tc.Ensure(ctx, []string{"broker:9092"}, framesTopic)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Error = %v, want context.Canceled", err)
	}
	if conn.PartitionPoll != 0 {
		t.Errorf("Polled %d times after cancel", conn.PartitionPoll)
	}
}
