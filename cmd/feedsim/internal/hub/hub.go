// Package hub fans feed frames out to connected sessions. Ticks go only to
// sessions watching the tick's symbol; every other frame goes to everyone.
package hub

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/shubham-shewale/marketfeed/pkg/feedgen"
	"github.com/shubham-shewale/marketfeed/pkg/protocol"
)

type ClientInterface interface {
	ID() string
	SendBytes(b []byte)
	Close()
}

type Hub struct {
	// an empty filter means all symbols
	clients      map[ClientInterface]map[string]bool
	validSymbols map[string]bool

	logger *zap.Logger
	mu     sync.RWMutex
}

func NewHub(validSymbols []string, logger *zap.Logger) *Hub {
	valid := make(map[string]bool, len(validSymbols))
	for _, s := range validSymbols {
		valid[s] = true
	}
	return &Hub{
		clients:      make(map[ClientInterface]map[string]bool),
		validSymbols: valid,
		logger:       logger,
	}
}

func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		h.clients[client] = make(map[string]bool)
	}
	h.logger.Info("Client connected", zap.String("client", client.ID()), zap.Int("total", len(h.clients)))
}

// Unregister removes client and closes it. Unknown clients are ignored, so
// a client is closed at most once.
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	client.Close()
	h.logger.Info("Client disconnected", zap.String("client", client.ID()), zap.Int("total", len(h.clients)))
}

// Subscribe narrows client's ticks to symbols, adding to what it already
// watches. Unknown symbols are skipped; the accepted ones are returned.
func (h *Hub) Subscribe(client ClientInterface, symbols []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	filter, ok := h.clients[client]
	if !ok {
		return nil
	}

	accepted := []string{}
	for _, s := range symbols {
		if !h.validSymbols[s] {
			continue
		}
		// Idempotency: already watched symbols are still acknowledged
		filter[s] = true
		accepted = append(accepted, s)
	}

	h.logger.Info("Client subscribed",
		zap.String("client", client.ID()),
		zap.Strings("requested", symbols),
		zap.Strings("accepted", accepted),
	)
	return accepted
}

func (h *Hub) Broadcast(msg feedgen.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client, filter := range h.clients {
		if msg.Type == protocol.TypeTick && len(filter) > 0 && !filter[msg.Key] {
			continue
		}
		client.SendBytes(msg.Value)
	}
}

// WriteFrames lets the hub stand in as a generator's output.
func (h *Hub) WriteFrames(ctx context.Context, msgs ...feedgen.Message) error {
	for _, m := range msgs {
		h.Broadcast(m)
	}
	return nil
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every client.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.Close()
	}
	h.clients = make(map[ClientInterface]map[string]bool)
}
