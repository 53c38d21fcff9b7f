// Package session serves one /ws/ticks connection on top of gobwas/ws.
package session

import (
	"encoding/json"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/shubham-shewale/marketfeed/cmd/feedsim/internal/hub"
	"github.com/shubham-shewale/marketfeed/pkg/feedgen"
	"github.com/shubham-shewale/marketfeed/pkg/protocol"
)

const (
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// normalClose carries status 1000 so clients treat a server shutdown as a
// clean close rather than a transport error.
var normalClose = ws.MustCompileFrame(ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, "")))

type Session struct {
	conn   net.Conn
	hub    *hub.Hub
	send   chan []byte
	logger *zap.Logger
	clock  feedgen.Clock

	mu     sync.Mutex
	closed bool

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

func New(conn net.Conn, h *hub.Hub, logger *zap.Logger, clock feedgen.Clock) *Session {
	return &Session{
		conn:       conn,
		hub:        h,
		send:       make(chan []byte, sendBuffer),
		logger:     logger.With(zap.String("client", conn.RemoteAddr().String())),
		clock:      clock,
		writeWait:  5 * time.Second,
		pongWait:   60 * time.Second,
		pingPeriod: 50 * time.Second,
	}
}

// Start queues the connected hello, joins the hub and starts the pumps.
func (s *Session) Start() {
	if hello, err := feedgen.Hello(s.clock); err == nil {
		s.SendBytes(hello)
	}
	s.hub.Register(s)

	go s.writePump()
	go s.readPump()
}

func (s *Session) ID() string { return s.conn.RemoteAddr().String() }

// Close stops the write pump, which closes the connection.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// SendBytes queues b without blocking. A slow client loses frames rather
// than stalling the hub.
func (s *Session) SendBytes(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- b:
	default:
		s.logger.Debug("Dropping frame for slow client")
	}
}

func (s *Session) readPump() {
	defer func() {
		s.hub.Unregister(s)
		s.Close()
		s.conn.Close()
	}()

	s.conn.SetReadDeadline(time.Now().Add(s.pongWait))

	for {
		header, err := ws.ReadHeader(s.conn)
		if err != nil {
			return
		}

		if header.Length > int64(maxMessageSize) {
			s.logger.Warn("Msg too big", zap.Int64("size", header.Length))
			return
		}

		if !header.Fin {
			s.logger.Warn("Client sent fragmented message (not supported)")
			return
		}

		payload := make([]byte, header.Length)
		if _, err := io.ReadFull(s.conn, payload); err != nil {
			return
		}

		if header.Masked {
			ws.Cipher(payload, header.Mask, 0)
		}

		switch header.OpCode {
		case ws.OpClose:
			return
		case ws.OpPong:
			s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
		case ws.OpText:
			s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
			s.handleRequest(payload)
		}
	}
}

func (s *Session) handleRequest(payload []byte) {
	var req protocol.ClientRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.logger.Warn("Ignoring invalid client message", zap.Error(err))
		return
	}

	ts := feedgen.Timestamp(s.clock)

	switch req.Type {
	case protocol.TypePing:
		if frame, err := protocol.EncodePong(ts); err == nil {
			s.SendBytes(frame)
		}

	case protocol.TypeSubscribe:
		symbols := make([]string, 0, len(req.Symbols))
		for _, sym := range req.Symbols {
			symbols = append(symbols, strings.ToUpper(strings.TrimSpace(sym)))
		}
		accepted := s.hub.Subscribe(s, symbols)
		if frame, err := protocol.EncodeSubscribed(accepted, ts); err == nil {
			s.SendBytes(frame)
		}

	default:
		s.logger.Debug("Ignoring client message", zap.String("type", string(req.Type)))
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(s.pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if !ok {
				s.conn.Write(normalClose)
				return
			}
			if err := wsutil.WriteServerText(s.conn, msg); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := wsutil.WriteServerMessage(s.conn, ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}
