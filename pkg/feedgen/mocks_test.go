package feedgen_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/marketfeed/pkg/feedgen"
)

type MockFrameWriter struct {
	Messages   []feedgen.Message
	Mu         sync.Mutex
	ShouldFail bool
}

func (m *MockFrameWriter) WriteFrames(ctx context.Context, msgs ...feedgen.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("write failed")
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockFrameWriter) All() []feedgen.Message {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return append([]feedgen.Message(nil), m.Messages...)
}

type MockKafkaWriter struct {
	Messages   []kafka.Message
	Mu         sync.Mutex
	ShouldFail bool
	Closed     bool
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("kafka error")
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}

// MockClock advances instantly on Sleep.
type MockClock struct {
	Mu          sync.Mutex
	CurrentTime time.Time
}

func (m *MockClock) Now() time.Time {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.CurrentTime
}

func (m *MockClock) Sleep(d time.Duration) {
	m.Mu.Lock()
	m.CurrentTime = m.CurrentTime.Add(d)
	m.Mu.Unlock()
	// yield so a cancelled context is noticed promptly
	time.Sleep(time.Millisecond)
}

type MockRand struct {
	ValInt   int
	ValFloat float64
}

func (m *MockRand) Intn(n int) int {
	if m.ValInt >= n {
		return n - 1
	}
	return m.ValInt
}
func (m *MockRand) Float64() float64 { return m.ValFloat }

type MockKafkaConn struct {
	CreatedTopics []kafka.TopicConfig
	CreateErr     error
	ControllerErr error
	Partitions    []kafka.Partition
	PartitionsErr error
	PartitionPoll int
	Closed        int
}

func (m *MockKafkaConn) Controller() (kafka.Broker, error) {
	if m.ControllerErr != nil {
		return kafka.Broker{}, m.ControllerErr
	}
	return kafka.Broker{Host: "localhost", Port: 9092}, nil
}
func (m *MockKafkaConn) Close() error {
	m.Closed++
	return nil
}
func (m *MockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.CreatedTopics = append(m.CreatedTopics, topics...)
	return nil
}
func (m *MockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	m.PartitionPoll++
	return m.Partitions, m.PartitionsErr
}

type MockKafkaDialer struct {
	// ConnSpy is handed out on every successful dial; preset it to script
	// broker behaviour.
	ConnSpy *MockKafkaConn
	Fail    map[string]bool
	Dialed  []string
}

func (m *MockKafkaDialer) DialContext(ctx context.Context, network, address string) (feedgen.KafkaConn, error) {
	m.Dialed = append(m.Dialed, address)
	if m.Fail[address] {
		return nil, errors.New("connection refused")
	}
	if m.ConnSpy == nil {
		m.ConnSpy = &MockKafkaConn{Partitions: []kafka.Partition{{ID: 0}}}
	}
	return m.ConnSpy, nil
}
