package store

// Each Subscribe* call returns a func that removes the listener. Calling it
// more than once is harmless.

func (s *Store) SubscribeTick(symbol string, fn TickListener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	if s.tickSubs[symbol] == nil {
		s.tickSubs[symbol] = make(map[uint64]TickListener)
	}
	s.tickSubs[symbol][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.tickSubs[symbol], id)
		if len(s.tickSubs[symbol]) == 0 {
			delete(s.tickSubs, symbol)
		}
	}
}

// SubscribeAllTicks registers fn for every UpdateTick regardless of symbol.
func (s *Store) SubscribeAllTicks(fn TickListener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	s.allTickSubs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.allTickSubs, id)
	}
}

func (s *Store) SubscribePnL(strategyID string, fn PnLListener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	if s.pnlSubs[strategyID] == nil {
		s.pnlSubs[strategyID] = make(map[uint64]PnLListener)
	}
	s.pnlSubs[strategyID][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.pnlSubs[strategyID], id)
		if len(s.pnlSubs[strategyID]) == 0 {
			delete(s.pnlSubs, strategyID)
		}
	}
}

func (s *Store) SubscribeOrders(fn OrdersListener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	s.orderSubs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.orderSubs, id)
	}
}

// SubscribeHealth fires when either the connected flag or the quality changes.
func (s *Store) SubscribeHealth(fn HealthListener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	s.healthSubs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.healthSubs, id)
	}
}

// must hold s.mu
func (s *Store) newID() uint64 {
	s.nextID++
	return s.nextID
}
