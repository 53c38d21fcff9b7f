// Package feedgen produces a synthetic market feed: random-walk index ticks,
// sample order events and strategy P&L, encoded as feed frames.
package feedgen

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shubham-shewale/marketfeed/pkg/models"
	"github.com/shubham-shewale/marketfeed/pkg/protocol"
)

// TimestampLayout matches the naive ISO-8601 strings the backend emits.
const TimestampLayout = "2006-01-02T15:04:05.999999"

const (
	defaultBasePrice  = 1000.0
	defaultStrategyID = "test-strategy-1"

	maxStep     = 50.0
	minVolume   = 100000
	maxVolume   = 5000000
	lotSize     = 50
	strikeRound = 100
)

var DefaultBasePrices = map[string]float64{
	"NIFTY":     21500,
	"BANKNIFTY": 45000,
	"FINNIFTY":  19500,
}

type Settings struct {
	Symbols    []string
	BasePrices map[string]float64
	Interval   time.Duration

	// An order frame goes out every OrderEvery rounds and a P&L frame every
	// PnLEvery rounds. Zero disables them.
	OrderEvery int
	PnLEvery   int
	StrategyID string
}

func DefaultSettings(symbols []string, interval time.Duration) Settings {
	return Settings{
		Symbols:    symbols,
		BasePrices: DefaultBasePrices,
		Interval:   interval,
		OrderEvery: 5,
		PnLEvery:   2,
		StrategyID: defaultStrategyID,
	}
}

type Generator struct {
	logger   *zap.Logger
	out      FrameWriter
	settings Settings
	prices   map[string]decimal.Decimal
	rand     Rand
	clock    Clock
	newID    func() string
	round    int
}

func New(logger *zap.Logger, out FrameWriter, settings Settings, rnd Rand, clock Clock) *Generator {
	if settings.Interval <= 0 {
		settings.Interval = time.Second
	}
	if settings.StrategyID == "" {
		settings.StrategyID = defaultStrategyID
	}

	prices := make(map[string]decimal.Decimal, len(settings.Symbols))
	for _, sym := range settings.Symbols {
		base, ok := settings.BasePrices[sym]
		if !ok {
			base = defaultBasePrice
		}
		prices[sym] = decimal.NewFromFloat(base)
	}

	return &Generator{
		logger:   logger,
		out:      out,
		settings: settings,
		prices:   prices,
		rand:     rnd,
		clock:    clock,
		newID:    uuid.NewString,
	}
}

// Run emits one round of frames per interval until ctx is done.
func (g *Generator) Run(ctx context.Context) {
	g.logger.Info("Generator Started",
		zap.Strings("symbols", g.settings.Symbols),
		zap.Duration("interval", g.settings.Interval),
	)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			msgs, err := g.Round()
			if err != nil {
				g.logger.Error("Frame encode error", zap.Error(err))
			} else if len(msgs) > 0 {
				if err := g.out.WriteFrames(ctx, msgs...); err != nil && ctx.Err() == nil {
					g.logger.Error("Frame write error", zap.Error(err))
				}
			}
			g.clock.Sleep(g.settings.Interval)
		}
	}
}

// Round advances every symbol one step and returns the frames of one round:
// a tick per symbol, then the order and P&L frames that are due.
func (g *Generator) Round() ([]Message, error) {
	g.round++

	msgs := make([]Message, 0, len(g.settings.Symbols)+2)
	for _, sym := range g.settings.Symbols {
		tick := g.NextTick(sym)
		frame, err := protocol.Encode(protocol.TypeTick, tick)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, Message{Key: sym, Type: protocol.TypeTick, Value: frame})
		g.logger.Debug("Generated tick", zap.String("symbol", sym), zap.Float64("ltp", tick.LTP))
	}

	if due(g.round, g.settings.OrderEvery) && len(g.settings.Symbols) > 0 {
		order := g.NextOrder()
		frame, err := protocol.Encode(protocol.TypeOrder, order)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, Message{Key: order.StrategyID, Type: protocol.TypeOrder, Value: frame})
	}

	if due(g.round, g.settings.PnLEvery) {
		pnl := g.NextPnL()
		frame, err := protocol.Encode(protocol.TypePnL, pnl)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, Message{Key: pnl.StrategyID, Type: protocol.TypePnL, Value: frame})
	}

	return msgs, nil
}

func due(round, every int) bool {
	return every > 0 && round%every == 0
}

// NextTick moves symbol's price by a uniform step in [-50, 50). The stored
// price keeps full precision; the tick carries ltp and change rounded to 2
// places and changePercent to 4.
func (g *Generator) NextTick(symbol string) *models.Tick {
	base, ok := g.prices[symbol]
	if !ok {
		base = decimal.NewFromFloat(defaultBasePrice)
	}

	change := decimal.NewFromFloat(g.rand.Float64()*2*maxStep - maxStep)
	next := base.Add(change)
	g.prices[symbol] = next

	changePct := change.Div(base).Mul(decimal.NewFromInt(100))

	return &models.Tick{
		Symbol:        symbol,
		LTP:           next.Round(2).InexactFloat64(),
		Change:        change.Round(2).InexactFloat64(),
		ChangePercent: changePct.Round(4).InexactFloat64(),
		Volume:        int64(minVolume + g.rand.Intn(maxVolume-minVolume+1)),
		Timestamp:     g.timestamp(),
	}
}

// NextOrder returns an option order on one of the generated symbols, struck
// at the nearest hundred.
func (g *Generator) NextOrder() models.OrderEvent {
	sym := g.settings.Symbols[g.rand.Intn(len(g.settings.Symbols))]
	strike := g.prices[sym].Div(decimal.NewFromInt(strikeRound)).Round(0).Mul(decimal.NewFromInt(strikeRound))

	optType := "CE"
	side := models.SideBuy
	if g.rand.Intn(2) == 1 {
		optType = "PE"
		side = models.SideSell
	}

	statuses := []models.OrderStatus{models.OrderComplete, models.OrderPending, models.OrderComplete, models.OrderRejected}
	premium := decimal.NewFromFloat(50 + g.rand.Float64()*250).Round(2)

	return models.OrderEvent{
		OrderID:    g.newID(),
		StrategyID: g.settings.StrategyID,
		Symbol:     fmt.Sprintf("%s%s%s", sym, strike.StringFixed(0), optType),
		Side:       side,
		Quantity:   int64(lotSize * (1 + g.rand.Intn(4))),
		Price:      premium.InexactFloat64(),
		Status:     statuses[g.rand.Intn(len(statuses))],
		Timestamp:  g.timestamp(),
	}
}

func (g *Generator) NextPnL() *models.StrategyPnL {
	current := decimal.NewFromFloat(g.rand.Float64()*6000 - 1000).Round(2)
	total := decimal.NewFromFloat(g.rand.Float64() * 50000).Round(2)

	return &models.StrategyPnL{
		StrategyID:    g.settings.StrategyID,
		CurrentPnL:    current.InexactFloat64(),
		TotalPnL:      total.InexactFloat64(),
		OpenPositions: g.rand.Intn(6),
		Timestamp:     g.timestamp(),
	}
}

// Hello is the frame sent to a client right after it connects.
func Hello(clock Clock) ([]byte, error) {
	return protocol.EncodeConnected("Connected to market data stream", Timestamp(clock))
}

func Timestamp(clock Clock) string {
	return clock.Now().UTC().Format(TimestampLayout)
}

func (g *Generator) timestamp() string {
	return Timestamp(g.clock)
}
