package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dennisdiepolder/monti/orchestrator/internal/metrics"
	"github.com/rs/zerolog"
)

// ErrBroadcastFull is returned by Publish when the hub cannot keep up
var ErrBroadcastFull = errors.New("broadcast buffer full")

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages for every client
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed by Stop
	done chan struct{}
	once sync.Once

	// Mutex to protect clients map
	mu sync.RWMutex

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewHub creates a new Hub. m may be nil.
func NewHub(m *metrics.Metrics, logger zerolog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		metrics:    m,
		logger:     logger.With().Str("component", "websocket").Logger(),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.RecordWebSocketConnect()
			}
			h.logger.Info().
				Str("client_id", client.id).
				Int("total_clients", total).
				Msg("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.removeLocked(client)
				h.logger.Info().
					Str("client_id", client.id).
					Int("total_clients", len(h.clients)).
					Msg("client disconnected")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.broadcastRaw(message)
		}
	}
}

// Stop terminates Run and disconnects every client
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// Publish encodes v as JSON and queues it for every client without blocking
func (h *Hub) Publish(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	select {
	case h.broadcast <- data:
		return nil
	default:
		if h.metrics != nil {
			h.metrics.RecordWebSocketError()
		}
		return ErrBroadcastFull
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcastRaw sends a raw message to all clients
func (h *Hub) broadcastRaw(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- message:
			if h.metrics != nil {
				h.metrics.RecordWebSocketMessage()
			}
		default:
			// Client's send buffer is full, close and remove it
			h.removeLocked(client)
			h.logger.Warn().
				Str("client_id", client.id).
				Msg("client send buffer full, closing connection")
		}
	}
}

// removeLocked must be called with mu held
func (h *Hub) removeLocked(client *Client) {
	delete(h.clients, client)
	close(client.send)
	if h.metrics != nil {
		h.metrics.RecordWebSocketDisconnect()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.removeLocked(client)
	}
	h.logger.Info().Msg("hub stopped")
}
