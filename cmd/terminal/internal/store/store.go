// Package store holds the live market state of one terminal process: the
// latest tick per symbol, a bounded order log, per-strategy P&L and the feed
// connection health.
//
// Reads go through selectors that return the stored values as-is, so a
// caller can compare results by identity to detect change. Listeners are
// indexed by the key they watch; a mutation only visits the listeners of the
// key it changed.
package store

import (
	"sync"

	"github.com/shubham-shewale/marketfeed/pkg/models"
)

// Listener types are aliases so that plain funcs and narrow consumer
// interfaces match the Subscribe* signatures.
type (
	TickListener   = func(tick *models.Tick)
	PnLListener    = func(pnl *models.StrategyPnL)
	OrdersListener = func(orders []models.OrderEvent)
	HealthListener = func(h models.ConnectionHealth)
)

// Snapshot is a point-in-time copy of the whole store.
type Snapshot struct {
	Ticks      map[string]*models.Tick
	LastUpdate string
	Orders     []models.OrderEvent
	PnL        map[string]*models.StrategyPnL
	Health     models.ConnectionHealth
}

type Store struct {
	// writeMu serializes mutations together with their notifications, so
	// listeners observe changes in mutation order. Listeners must not
	// mutate the store.
	writeMu sync.Mutex
	mu      sync.RWMutex

	ticks      map[string]*models.Tick
	lastUpdate string
	orders     []models.OrderEvent
	pnl        map[string]*models.StrategyPnL
	health     models.ConnectionHealth

	nextID      uint64
	tickSubs    map[string]map[uint64]TickListener
	allTickSubs map[uint64]TickListener
	pnlSubs     map[string]map[uint64]PnLListener
	orderSubs   map[uint64]OrdersListener
	healthSubs  map[uint64]HealthListener
}

func New() *Store {
	return &Store{
		ticks:       make(map[string]*models.Tick),
		pnl:         make(map[string]*models.StrategyPnL),
		orders:      []models.OrderEvent{},
		health:      disconnected(),
		tickSubs:    make(map[string]map[uint64]TickListener),
		allTickSubs: make(map[uint64]TickListener),
		pnlSubs:     make(map[string]map[uint64]PnLListener),
		orderSubs:   make(map[uint64]OrdersListener),
		healthSubs:  make(map[uint64]HealthListener),
	}
}

func disconnected() models.ConnectionHealth {
	return models.ConnectionHealth{Connected: false, Quality: models.QualityDisconnected}
}

// UpdateTick replaces the tick stored for tick.Symbol. There is no
// timestamp check: a late tick overwrites a newer one.
func (s *Store) UpdateTick(tick *models.Tick) {
	if tick == nil {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.ticks[tick.Symbol] = tick
	s.lastUpdate = tick.Timestamp
	fns := make([]TickListener, 0, len(s.tickSubs[tick.Symbol])+len(s.allTickSubs))
	for _, fn := range s.tickSubs[tick.Symbol] {
		fns = append(fns, fn)
	}
	for _, fn := range s.allTickSubs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(tick)
	}
}

// AddOrder prepends order to the log and keeps the newest
// models.OrderLogCapacity entries. The log slice is replaced, never edited.
func (s *Store) AddOrder(order models.OrderEvent) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	keep := len(s.orders)
	if keep > models.OrderLogCapacity-1 {
		keep = models.OrderLogCapacity - 1
	}
	next := make([]models.OrderEvent, 0, keep+1)
	next = append(next, order)
	next = append(next, s.orders[:keep]...)
	s.orders = next
	fns := s.orderListeners()
	s.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}

func (s *Store) UpdateStrategyPnL(pnl *models.StrategyPnL) {
	if pnl == nil {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.pnl[pnl.StrategyID] = pnl
	fns := make([]PnLListener, 0, len(s.pnlSubs[pnl.StrategyID]))
	for _, fn := range s.pnlSubs[pnl.StrategyID] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(pnl)
	}
}

// SetConnectionStatus and SetConnectionQuality are independent; keeping them
// consistent is the caller's job.
func (s *Store) SetConnectionStatus(connected bool) {
	s.setHealth(func(h *models.ConnectionHealth) { h.Connected = connected })
}

func (s *Store) SetConnectionQuality(q models.Quality) {
	s.setHealth(func(h *models.ConnectionHealth) { h.Quality = q })
}

// SetConnectionHealth sets both fields with a single notification, so
// listeners never see a half-applied transition.
func (s *Store) SetConnectionHealth(h models.ConnectionHealth) {
	s.setHealth(func(cur *models.ConnectionHealth) { *cur = h })
}

func (s *Store) setHealth(apply func(*models.ConnectionHealth)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	next := s.health
	apply(&next)
	if next == s.health {
		s.mu.Unlock()
		return
	}
	s.health = next
	fns := s.healthListeners()
	s.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}

func (s *Store) ClearOrders() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if len(s.orders) == 0 {
		s.mu.Unlock()
		return
	}
	s.orders = []models.OrderEvent{}
	orders := s.orders
	fns := s.orderListeners()
	s.mu.Unlock()

	for _, fn := range fns {
		fn(orders)
	}
}

// Reset returns every field to its initial empty, disconnected state.
// Listeners of slices that were already empty are not notified, so a second
// Reset is silent. Tick listeners receive nil for symbols that disappear;
// SubscribeAllTicks listeners are not told.
func (s *Store) Reset() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	var notify []func()

	for sym := range s.ticks {
		for _, fn := range s.tickSubs[sym] {
			fn := fn
			notify = append(notify, func() { fn(nil) })
		}
	}
	for id := range s.pnl {
		for _, fn := range s.pnlSubs[id] {
			fn := fn
			notify = append(notify, func() { fn(nil) })
		}
	}
	if len(s.orders) > 0 {
		empty := []models.OrderEvent{}
		s.orders = empty
		for _, fn := range s.orderListeners() {
			fn := fn
			notify = append(notify, func() { fn(empty) })
		}
	}
	if s.health != disconnected() {
		for _, fn := range s.healthListeners() {
			fn := fn
			notify = append(notify, func() { fn(disconnected()) })
		}
	}

	s.ticks = make(map[string]*models.Tick)
	s.pnl = make(map[string]*models.StrategyPnL)
	s.lastUpdate = ""
	s.health = disconnected()
	s.mu.Unlock()

	for _, n := range notify {
		n()
	}
}

// must hold s.mu
func (s *Store) orderListeners() []OrdersListener {
	fns := make([]OrdersListener, 0, len(s.orderSubs))
	for _, fn := range s.orderSubs {
		fns = append(fns, fn)
	}
	return fns
}

// must hold s.mu
func (s *Store) healthListeners() []HealthListener {
	fns := make([]HealthListener, 0, len(s.healthSubs))
	for _, fn := range s.healthSubs {
		fns = append(fns, fn)
	}
	return fns
}

// TickOf returns the latest tick for symbol, or nil.
func (s *Store) TickOf(symbol string) *models.Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticks[symbol]
}

// PnLOf returns the latest P&L of a strategy, or nil.
func (s *Store) PnLOf(strategyID string) *models.StrategyPnL {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pnl[strategyID]
}

// Orders returns the order log, newest first. The slice is shared and must
// be treated as read-only.
func (s *Store) Orders() []models.OrderEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orders
}

func (s *Store) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health.Connected
}

func (s *Store) ConnectionQuality() models.Quality {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health.Quality
}

func (s *Store) Health() models.ConnectionHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health
}

// LastUpdate is the timestamp of the most recently applied tick.
func (s *Store) LastUpdate() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Ticks:      make(map[string]*models.Tick, len(s.ticks)),
		LastUpdate: s.lastUpdate,
		Orders:     s.orders,
		PnL:        make(map[string]*models.StrategyPnL, len(s.pnl)),
		Health:     s.health,
	}
	for k, v := range s.ticks {
		snap.Ticks[k] = v
	}
	for k, v := range s.pnl {
		snap.PnL[k] = v
	}
	return snap
}
