package session_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shubham-shewale/marketfeed/cmd/feedsim/internal/hub"
	"github.com/shubham-shewale/marketfeed/cmd/feedsim/internal/session"
	"github.com/shubham-shewale/marketfeed/pkg/feedgen"
	"github.com/shubham-shewale/marketfeed/pkg/protocol"
)

func startServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	h := hub.NewHub([]string{"NIFTY", "BANKNIFTY", "FINNIFTY"}, zap.NewNop())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		session.New(conn, h, zap.NewNop(), feedgen.RealClock{}).Start()
	}))
	t.Cleanup(server.Close)

	return server, h
}

func connectWS(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(serverURL, "http")
	wsConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect to websocket: %v", err)
	}
	t.Cleanup(func() { wsConn.Close() })
	return wsConn
}

func readFrame(t *testing.T, conn *websocket.Conn) protocol.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	frame, err := protocol.Decode(msg)
	if err != nil {
		t.Fatalf("Server sent undecodable frame %s: %v", msg, err)
	}
	return frame
}

func readType(t *testing.T, conn *websocket.Conn) protocol.MessageType {
	t.Helper()
	return protocol.TypeOf(readFrame(t, conn))
}

func waitForClients(t *testing.T, h *hub.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Count() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Hub has %d clients, want %d", h.Count(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSession_SendsHelloFirst(t *testing.T) {
	server, _ := startServer(t)
	conn := connectWS(t, server.URL)

	frame := readFrame(t, conn)
	hello, ok := frame.(protocol.ConnectedFrame)
	if !ok {
		t.Fatalf("First frame = %T, want ConnectedFrame", frame)
	}
	if hello.Message != "Connected to market data stream" || hello.Timestamp == "" {
		t.Errorf("Unexpected hello %+v", hello)
	}
}

func TestSession_PingPong(t *testing.T) {
	server, _ := startServer(t)
	conn := connectWS(t, server.URL)
	readType(t, conn)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))

	if typ := readType(t, conn); typ != protocol.TypePong {
		t.Errorf("Reply type = %s, want pong", typ)
	}
}

func TestSession_SubscribeNarrowsTicks(t *testing.T) {
	server, h := startServer(t)
	conn := connectWS(t, server.URL)
	readType(t, conn)
	waitForClients(t, h, 1)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe","symbols":[" nifty ","SENSEX"]}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read ack: %v", err)
	}
	if !strings.Contains(string(msg), `"type":"subscribed"`) || !strings.Contains(string(msg), `"NIFTY"`) {
		t.Fatalf("Unexpected ack %s", msg)
	}
	if strings.Contains(string(msg), "SENSEX") {
		t.Errorf("Ack should not contain unknown symbol: %s", msg)
	}

	for _, sym := range []string{"BANKNIFTY", "NIFTY"} {
		frame, _ := protocol.Encode(protocol.TypeTick, map[string]any{"symbol": sym, "ltp": 100})
		h.Broadcast(feedgen.Message{Key: sym, Type: protocol.TypeTick, Value: frame})
	}

	tf, ok := readFrame(t, conn).(protocol.TickFrame)
	if !ok || tf.Tick.Symbol != "NIFTY" {
		t.Errorf("Expected only the NIFTY tick, got %+v", tf)
	}
}

func TestSession_InvalidJSONKeepsConnection(t *testing.T) {
	server, _ := startServer(t)
	conn := connectWS(t, server.URL)
	readType(t, conn)

	conn.WriteMessage(websocket.TextMessage, []byte(`{ "type": "pi`))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))

	if typ := readType(t, conn); typ != protocol.TypePong {
		t.Errorf("Reply type = %s, want pong", typ)
	}
}

func TestSession_MaxMessageSize(t *testing.T) {
	server, h := startServer(t)
	conn := connectWS(t, server.URL)
	readType(t, conn)
	waitForClients(t, h, 1)

	huge := `{"type":"subscribe","symbols":["` + strings.Repeat("a", 65*1024) + `"]}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(huge)); err != nil {
		return
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Server should have closed connection for huge message")
	}
	waitForClients(t, h, 0)
}

func TestSession_ShutdownClosesNormally(t *testing.T) {
	server, h := startServer(t)
	conn := connectWS(t, server.URL)
	readType(t, conn)
	waitForClients(t, h, 1)

	h.Shutdown()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("Expected normal close, got %v", err)
	}
}
