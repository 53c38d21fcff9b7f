package testutils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shubham-shewale/marketfeed/pkg/models"
)

// FeedServer is a WebSocket test server; handle scripts each accepted
// connection. n counts connections from 1.
type FeedServer struct {
	*httptest.Server
	connections atomic.Int32
}

func NewFeedServer(t *testing.T, handle func(n int, conn *websocket.Conn)) *FeedServer {
	t.Helper()

	fs := &FeedServer{}
	upgrader := websocket.Upgrader{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(int(fs.connections.Add(1)), conn)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *FeedServer) WSURL() string {
	return "ws" + strings.TrimPrefix(fs.URL, "http")
}

func (fs *FeedServer) Connections() int {
	return int(fs.connections.Load())
}

// RefusedURL returns a ws:// address nothing listens on.
func RefusedURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()
	return url
}

// SendText writes one text frame, failing the test on error.
func SendText(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Errorf("server write failed: %v", err)
	}
}

// HoldOpen blocks until the peer goes away.
func HoldOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// HealthRecorder collects connection health notifications.
type HealthRecorder struct {
	Mu   sync.Mutex
	Seen []models.ConnectionHealth
}

func (r *HealthRecorder) Record(h models.ConnectionHealth) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.Seen = append(r.Seen, h)
}

func (r *HealthRecorder) All() []models.ConnectionHealth {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return append([]models.ConnectionHealth(nil), r.Seen...)
}

// WaitFor polls cond until it holds or timeout passes.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
