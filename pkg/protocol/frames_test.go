package protocol_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shubham-shewale/marketfeed/pkg/models"
	"github.com/shubham-shewale/marketfeed/pkg/protocol"
)

func TestDecode_Tick(t *testing.T) {
	raw := `{"type":"tick","data":{"symbol":"NIFTY","ltp":24185.75,"change":-125.5,"changePercent":-0.52,"volume":2500000,"timestamp":"2024-01-01T10:00:00Z"}}`

	frame, err := protocol.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	tf, ok := frame.(protocol.TickFrame)
	if !ok {
		t.Fatalf("Expected TickFrame, got %T", frame)
	}

	want := models.Tick{
		Symbol: "NIFTY", LTP: 24185.75, Change: -125.5, ChangePercent: -0.52,
		Volume: 2500000, Timestamp: "2024-01-01T10:00:00Z",
	}
	if *tf.Tick != want {
		t.Errorf("Tick mismatch.\nGot:  %+v\nWant: %+v", *tf.Tick, want)
	}
}

func TestDecode_FlatTick(t *testing.T) {
	raw := `{"type":"tick","symbol":"BANKNIFTY","ltp":45000,"change_pct":0.1,"volume":5,"timestamp":"2025-12-16T10:30:00"}`

	frame, err := protocol.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	tf := frame.(protocol.TickFrame)
	if tf.Tick.Symbol != "BANKNIFTY" || tf.Tick.ChangePercent != 0.1 {
		t.Errorf("Unexpected flat tick: %+v", *tf.Tick)
	}
}

func TestDecode_OrderAndPnL(t *testing.T) {
	order := `{"type":"order","data":{"orderId":"123","strategyId":"456","symbol":"NIFTY24000CE","side":"BUY","quantity":50,"price":150.5,"status":"COMPLETE","timestamp":"2025-12-16T10:30:00"}}`
	frame, err := protocol.Decode([]byte(order))
	if err != nil {
		t.Fatalf("Decode order: %v", err)
	}
	of := frame.(protocol.OrderFrame)
	if of.Order.OrderID != "123" || of.Order.Side != models.SideBuy || of.Order.Status != models.OrderComplete {
		t.Errorf("Unexpected order: %+v", of.Order)
	}

	pnl := `{"type":"pnl","data":{"strategyId":"test-strategy-1","currentPnL":2500.5,"totalPnL":15000,"openPositions":2}}`
	frame, err = protocol.Decode([]byte(pnl))
	if err != nil {
		t.Fatalf("Decode pnl: %v", err)
	}
	pf := frame.(protocol.PnLFrame)
	if pf.PnL.StrategyID != "test-strategy-1" || pf.PnL.OpenPositions != 2 {
		t.Errorf("Unexpected pnl: %+v", *pf.PnL)
	}
}

func TestDecode_ConnectedAndUnknown(t *testing.T) {
	frame, err := protocol.Decode([]byte(`{"type":"connected","message":"Connected to market data stream"}`))
	if err != nil {
		t.Fatalf("Decode connected: %v", err)
	}
	if cf := frame.(protocol.ConnectedFrame); cf.Message != "Connected to market data stream" {
		t.Errorf("Unexpected hello message %q", cf.Message)
	}

	frame, err = protocol.Decode([]byte(`{"type":"unknown_future_type","data":{}}`))
	if err != nil {
		t.Fatalf("Decode unknown: %v", err)
	}
	uf, ok := frame.(protocol.UnknownFrame)
	if !ok || uf.Type != "unknown_future_type" {
		t.Errorf("Expected UnknownFrame, got %#v", frame)
	}
	if protocol.TypeOf(frame) != "unknown_future_type" {
		t.Errorf("TypeOf = %s", protocol.TypeOf(frame))
	}
}

func TestDecode_Errors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `{broken-json`, protocol.ErrMalformed},
		{"no type", `{"data":{}}`, protocol.ErrMissingType},
		{"order without data", `{"type":"order"}`, protocol.ErrMissingPayload},
		{"pnl null data", `{"type":"pnl","data":null}`, protocol.ErrMissingPayload},
		{"tick wrong shape", `{"type":"tick","data":{"ltp":"high"}}`, protocol.ErrMalformed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := protocol.Decode([]byte(tc.raw))
			if !errors.Is(err, tc.want) {
				t.Errorf("Decode() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestEncode_WrapsPayload(t *testing.T) {
	tick := models.Tick{Symbol: "FINNIFTY", LTP: 19500, Timestamp: "t"}
	b, err := protocol.Encode(protocol.TypeTick, tick)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var env protocol.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("Encoded frame is not JSON: %v", err)
	}
	if env.Type != protocol.TypeTick {
		t.Errorf("Expected type tick, got %s", env.Type)
	}

	frame, err := protocol.Decode(b)
	if err != nil {
		t.Fatalf("Decode of encoded frame: %v", err)
	}
	if got := frame.(protocol.TickFrame).Tick; *got != tick {
		t.Errorf("Round trip mismatch: %+v", *got)
	}
}
