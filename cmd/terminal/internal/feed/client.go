// Package feed owns the market feed WebSocket connection of a terminal: it
// dials, decodes inbound frames into store mutations and reconnects with a
// constant delay until a lifetime attempt budget runs out.
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shubham-shewale/marketfeed/pkg/models"
	"github.com/shubham-shewale/marketfeed/pkg/protocol"
)

var (
	// ErrReconnectExhausted is returned by Run once the attempt budget is spent.
	ErrReconnectExhausted = errors.New("feed: reconnect attempts exhausted")

	// ErrAlreadyStarted is returned when a client is run twice.
	ErrAlreadyStarted = errors.New("feed: client already started")
)

// Sink receives the state the feed produces. *store.Store satisfies it.
type Sink interface {
	UpdateTick(tick *models.Tick)
	AddOrder(order models.OrderEvent)
	UpdateStrategyPnL(pnl *models.StrategyPnL)
	SetConnectionQuality(q models.Quality)
	SetConnectionHealth(h models.ConnectionHealth)
}

// Client is a receive-only market feed client. A Client is single-use: once
// Run returns it stays in a terminal state.
type Client struct {
	opts   Options
	sink   Sink
	logger *zap.Logger
	dialer websocket.Dialer

	mu     sync.RWMutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	runErr error

	running atomic.Bool
}

// New creates a feed client writing into sink.
func New(sink Sink, logger *zap.Logger, opts ...Option) *Client {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Client{
		opts:   options,
		sink:   sink,
		logger: logger.With(zap.String("feed_url", options.URL)),
		dialer: websocket.Dialer{HandshakeTimeout: options.HandshakeTimeout},
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected returns true while the connection is open.
func (c *Client) IsConnected() bool {
	return c.State() == StateOpen
}

// Start runs the client in the background until Stop is called or ctx ends.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		return ErrAlreadyStarted
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		err := c.Run(ctx)
		c.mu.Lock()
		c.runErr = err
		c.mu.Unlock()
	}(c.done)

	return nil
}

// Stop closes the connection, cancels any pending reconnect and waits for
// the client to finish. It returns what Run returned.
func (c *Client) Stop() error {
	c.mu.RLock()
	cancel, done := c.cancel, c.done
	c.mu.RUnlock()

	if done == nil {
		return nil
	}
	cancel()
	<-done

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runErr
}

// Done is closed when a started client has finished.
func (c *Client) Done() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done
}

// Run connects and keeps the feed flowing until ctx is cancelled (nil,
// state Closed) or the reconnect budget is exhausted (ErrReconnectExhausted,
// state Failed).
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer c.running.Store(false)

	switch c.State() {
	case StateFailed:
		return ErrReconnectExhausted
	case StateClosed:
		return nil
	}

	attempts := 0
	for {
		c.transition(StateConnecting)

		conn, err := c.dial(ctx)
		if ctx.Err() != nil {
			if conn != nil {
				conn.Close()
			}
			c.transition(StateClosed)
			return nil
		}

		if err != nil {
			c.logger.Warn("Feed connect failed", zap.Error(err), zap.Int("attempt", attempts+1))
		} else {
			attempts = 0
			c.transition(StateOpen)
			c.logger.Info("Feed connected")

			err = c.readLoop(ctx, conn)
			if ctx.Err() != nil {
				c.transition(StateClosed)
				c.logger.Info("Feed closed")
				return nil
			}

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("Feed closed by server", zap.Error(err))
			} else {
				c.logger.Warn("Feed transport error", zap.Error(err))
				c.sink.SetConnectionQuality(models.QualityDegraded)
			}
		}

		attempts++
		if c.opts.MaxReconnectAttempts >= 0 && attempts > c.opts.MaxReconnectAttempts {
			c.transition(StateFailed)
			c.logger.Error("Feed reconnect attempts exhausted", zap.Int("max_attempts", c.opts.MaxReconnectAttempts))
			return ErrReconnectExhausted
		}

		c.transition(StateReconnecting)
		c.logger.Info("Feed reconnecting",
			zap.Int("attempt", attempts),
			zap.Duration("delay", c.opts.ReconnectDelay),
		)

		timer := time.NewTimer(c.opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.transition(StateClosed)
			return nil
		case <-timer.C:
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.opts.URL, c.opts.Headers)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// readLoop applies frames until the connection fails or ctx is cancelled.
// On cancel it sends a normal close frame and closes the socket, which
// unblocks ReadMessage.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			c.transition(StateClosing)
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			conn.Close()
		case <-stop:
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
		conn.Close()
	}()

	if c.opts.MaxMessageSize > 0 {
		conn.SetReadLimit(c.opts.MaxMessageSize)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleFrame(msg)
	}
}

// handleFrame validates one frame and applies it to the sink. Bad frames
// are logged and dropped; frames are not acknowledged or retried.
func (c *Client) handleFrame(raw []byte) {
	if len(bytes.TrimSpace(raw)) == 0 {
		c.logger.Warn("Dropping empty frame")
		return
	}

	frame, err := protocol.Decode(raw)
	if err != nil {
		c.logger.Warn("Dropping malformed frame", zap.Error(err), zap.ByteString("frame", truncate(raw)))
		return
	}

	switch f := frame.(type) {
	case protocol.TickFrame:
		if err := f.Tick.Validate(); err != nil {
			c.logger.Warn("Dropping invalid tick", zap.Error(err))
			return
		}
		c.logger.Debug("Tick", zap.String("symbol", f.Tick.Symbol), zap.Float64("ltp", f.Tick.LTP))
		c.sink.UpdateTick(f.Tick)

	case protocol.OrderFrame:
		if err := f.Order.Validate(); err != nil {
			c.logger.Warn("Dropping invalid order event", zap.Error(err))
			return
		}
		c.sink.AddOrder(f.Order)

	case protocol.PnLFrame:
		if err := f.PnL.Validate(); err != nil {
			c.logger.Warn("Dropping invalid pnl", zap.Error(err))
			return
		}
		c.sink.UpdateStrategyPnL(f.PnL)

	case protocol.ConnectedFrame:
		c.logger.Info("Market data stream connected", zap.String("message", f.Message))

	case protocol.UnknownFrame:
		c.logger.Info("Unknown message type", zap.String("type", string(f.Type)))

	default:
		c.logger.Warn("Unhandled frame", zap.String("type", string(protocol.TypeOf(frame))))
	}
}

func (c *Client) transition(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()

	applyHealth(c.sink, s)

	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}

func truncate(b []byte) []byte {
	const maxLogged = 256
	if len(b) > maxLogged {
		return b[:maxLogged]
	}
	return b
}
