package testutils

import (
	"context"
	"io"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/marketfeed/pkg/feedgen"
)

// MockClient simulates a connected websocket session
type MockClient struct {
	IDVal    string
	RawBytes []string
	Closed   int
	Mu       sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed++
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RawBytes = append(m.RawBytes, string(b))
}

func (m *MockClient) Received() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return append([]string(nil), m.RawBytes...)
}

type MockKafkaReader struct {
	Messages []kafka.Message
	Index    int
	Mu       sync.Mutex
	// Closed simulates a closed connection or end of stream
	Closed bool
	// CloseWhenDrained makes the reader report io.EOF once Messages run out,
	// like a kafka.Reader closed after its backlog.
	CloseWhenDrained bool
}

func (m *MockKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.Closed {
		return kafka.Message{}, io.EOF
	}
	if m.Index >= len(m.Messages) {
		if m.CloseWhenDrained {
			m.Closed = true
			return kafka.Message{}, io.EOF
		}
		// ends the relay's read loop
		return kafka.Message{}, context.DeadlineExceeded
	}

	msg := m.Messages[m.Index]
	m.Index++
	return msg, nil
}

func (m *MockKafkaReader) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}

// MockBroadcaster records relayed frames.
type MockBroadcaster struct {
	Frames []feedgen.Message
	Mu     sync.Mutex
}

func (m *MockBroadcaster) WriteFrames(ctx context.Context, msgs ...feedgen.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Frames = append(m.Frames, msgs...)
	return nil
}

func (m *MockBroadcaster) All() []feedgen.Message {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return append([]feedgen.Message(nil), m.Frames...)
}
