// Package protocol defines the JSON frames exchanged over the market feed
// WebSocket.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shubham-shewale/marketfeed/pkg/models"
)

type MessageType string

// Server to client.
const (
	TypeTick       MessageType = "tick"
	TypeOrder      MessageType = "order"
	TypePnL        MessageType = "pnl"
	TypeConnected  MessageType = "connected"
	TypePong       MessageType = "pong"
	TypeSubscribed MessageType = "subscribed"
)

// Client to server. The terminal never sends these; feedsim accepts them.
const (
	TypePing      MessageType = "ping"
	TypeSubscribe MessageType = "subscribe"
)

var (
	ErrMalformed      = errors.New("protocol: malformed frame")
	ErrMissingType    = errors.New("protocol: frame has no type")
	ErrMissingPayload = errors.New("protocol: frame has no data")
)

// Envelope is the outer shape of every frame.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
	Symbols   []string        `json:"symbols,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// Frame is the closed set of decoded inbound frames. The unexported method
// keeps other packages from adding variants, so a type switch over
// TickFrame, OrderFrame, PnLFrame, ConnectedFrame and UnknownFrame covers
// every value Decode can return.
type Frame interface {
	frameType() MessageType
}

type TickFrame struct{ Tick *models.Tick }

type OrderFrame struct{ Order models.OrderEvent }

type PnLFrame struct{ PnL *models.StrategyPnL }

type ConnectedFrame struct {
	Message   string
	Timestamp string
}

type UnknownFrame struct {
	Type MessageType
	Raw  []byte
}

func (TickFrame) frameType() MessageType      { return TypeTick }
func (OrderFrame) frameType() MessageType     { return TypeOrder }
func (PnLFrame) frameType() MessageType       { return TypePnL }
func (ConnectedFrame) frameType() MessageType { return TypeConnected }
func (f UnknownFrame) frameType() MessageType { return f.Type }

// TypeOf reports the discriminator a frame was decoded from.
func TypeOf(f Frame) MessageType { return f.frameType() }

// Decode parses one inbound feed frame. Payload shape is checked here;
// domain validation is left to the caller.
func Decode(raw []byte) (Frame, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, ErrMissingType
	}

	switch env.Type {
	case TypeTick:
		// Ticks may carry their fields directly on the envelope.
		src := env.Data
		if !hasPayload(src) {
			src = raw
		}
		var tick models.Tick
		if err := json.Unmarshal(src, &tick); err != nil {
			return nil, fmt.Errorf("%w: tick: %v", ErrMalformed, err)
		}
		return TickFrame{Tick: &tick}, nil

	case TypeOrder:
		if !hasPayload(env.Data) {
			return nil, fmt.Errorf("%w: order", ErrMissingPayload)
		}
		var order models.OrderEvent
		if err := json.Unmarshal(env.Data, &order); err != nil {
			return nil, fmt.Errorf("%w: order: %v", ErrMalformed, err)
		}
		return OrderFrame{Order: order}, nil

	case TypePnL:
		if !hasPayload(env.Data) {
			return nil, fmt.Errorf("%w: pnl", ErrMissingPayload)
		}
		var pnl models.StrategyPnL
		if err := json.Unmarshal(env.Data, &pnl); err != nil {
			return nil, fmt.Errorf("%w: pnl: %v", ErrMalformed, err)
		}
		return PnLFrame{PnL: &pnl}, nil

	case TypeConnected:
		return ConnectedFrame{Message: env.Message, Timestamp: env.Timestamp}, nil

	default:
		return UnknownFrame{Type: env.Type, Raw: raw}, nil
	}
}

func hasPayload(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && !bytes.Equal(b, []byte("null"))
}

// Encode wraps data in an envelope of the given type.
func Encode(t MessageType, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Data: payload})
}

func EncodeConnected(message, timestamp string) ([]byte, error) {
	return json.Marshal(Envelope{Type: TypeConnected, Message: message, Timestamp: timestamp})
}

func EncodePong(timestamp string) ([]byte, error) {
	return json.Marshal(Envelope{Type: TypePong, Timestamp: timestamp})
}

func EncodeSubscribed(symbols []string, timestamp string) ([]byte, error) {
	return json.Marshal(Envelope{Type: TypeSubscribed, Symbols: symbols, Timestamp: timestamp})
}

// ClientRequest is a command sent by a feed consumer to the server.
type ClientRequest struct {
	Type    MessageType `json:"type"`
	Symbols []string    `json:"symbols,omitempty"`
}
