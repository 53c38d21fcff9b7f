package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// OrderLogCapacity is the maximum number of order events kept by the store.
const OrderLogCapacity = 100

var (
	ErrInvalidTick  = errors.New("models: invalid tick")
	ErrInvalidOrder = errors.New("models: invalid order event")
	ErrInvalidPnL   = errors.New("models: invalid strategy pnl")
)

// Tick represents a single market quote for one instrument
type Tick struct {
	Symbol        string  `json:"symbol"`
	LTP           float64 `json:"ltp"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Volume        int64   `json:"volume"`
	Timestamp     string  `json:"timestamp"` // ISO-8601 as sent by the feed
}

// UnmarshalJSON accepts the flat feed schema, which names the percent
// change "change_pct" instead of "changePercent".
func (t *Tick) UnmarshalJSON(b []byte) error {
	type plain Tick
	var aux struct {
		plain
		ChangePct *float64 `json:"change_pct"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*t = Tick(aux.plain)
	if aux.ChangePct != nil && t.ChangePercent == 0 {
		t.ChangePercent = *aux.ChangePct
	}
	return nil
}

func (t *Tick) Validate() error {
	switch {
	case t.Symbol == "":
		return fmt.Errorf("%w: empty symbol", ErrInvalidTick)
	case !finite(t.LTP) || t.LTP <= 0:
		return fmt.Errorf("%w: ltp %v for %s", ErrInvalidTick, t.LTP, t.Symbol)
	case !finite(t.Change) || !finite(t.ChangePercent):
		return fmt.Errorf("%w: non-finite change for %s", ErrInvalidTick, t.Symbol)
	case t.Volume < 0:
		return fmt.Errorf("%w: negative volume for %s", ErrInvalidTick, t.Symbol)
	}
	return nil
}

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderComplete  OrderStatus = "COMPLETE"
	OrderRejected  OrderStatus = "REJECTED"
	OrderCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderPending, OrderComplete, OrderRejected, OrderCancelled:
		return true
	default:
		return false
	}
}

// OrderEvent is one immutable order-state transition
type OrderEvent struct {
	OrderID    string      `json:"orderId"`
	StrategyID string      `json:"strategyId"`
	Symbol     string      `json:"symbol"`
	Side       Side        `json:"side"`
	Quantity   int64       `json:"quantity"`
	Price      float64     `json:"price"`
	Status     OrderStatus `json:"status"`
	Timestamp  string      `json:"timestamp"`
}

func (o *OrderEvent) Validate() error {
	switch {
	case o.OrderID == "":
		return fmt.Errorf("%w: empty order id", ErrInvalidOrder)
	case o.StrategyID == "" || o.Symbol == "":
		return fmt.Errorf("%w: order %s missing strategy or symbol", ErrInvalidOrder, o.OrderID)
	case o.Side != SideBuy && o.Side != SideSell:
		return fmt.Errorf("%w: order %s side %q", ErrInvalidOrder, o.OrderID, o.Side)
	case !o.Status.IsValid():
		return fmt.Errorf("%w: order %s status %q", ErrInvalidOrder, o.OrderID, o.Status)
	case o.Quantity <= 0:
		return fmt.Errorf("%w: order %s quantity %d", ErrInvalidOrder, o.OrderID, o.Quantity)
	case !finite(o.Price) || o.Price < 0:
		return fmt.Errorf("%w: order %s price %v", ErrInvalidOrder, o.OrderID, o.Price)
	}
	return nil
}

// StrategyPnL is the latest profit and loss snapshot of one strategy
type StrategyPnL struct {
	StrategyID    string  `json:"strategyId"`
	CurrentPnL    float64 `json:"currentPnL"`
	TotalPnL      float64 `json:"totalPnL"`
	OpenPositions int     `json:"openPositions"`
	Timestamp     string  `json:"timestamp,omitempty"`
}

func (p *StrategyPnL) Validate() error {
	switch {
	case p.StrategyID == "":
		return fmt.Errorf("%w: empty strategy id", ErrInvalidPnL)
	case !finite(p.CurrentPnL) || !finite(p.TotalPnL):
		return fmt.Errorf("%w: non-finite pnl for %s", ErrInvalidPnL, p.StrategyID)
	case p.OpenPositions < 0:
		return fmt.Errorf("%w: negative open positions for %s", ErrInvalidPnL, p.StrategyID)
	}
	return nil
}

// Quality is the coarse connection health reported to consumers.
type Quality string

const (
	QualityGood         Quality = "good"
	QualityDegraded     Quality = "degraded"
	QualityDisconnected Quality = "disconnected"
)

type ConnectionHealth struct {
	Connected bool    `json:"connected"`
	Quality   Quality `json:"quality"`
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
