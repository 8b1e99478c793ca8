package sse

import (
	"encoding/json"
	"sync"
	"time"

	"codexcity/internal/logger"
)

// Event is the JSON envelope written to the stream.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time int64       `json:"time"`
}

// Hub fans automation progress out to each user's open dashboard streams.
type Hub struct {
	clients    map[string]map[chan []byte]struct{} // userID -> connection channels
	clientsMux sync.RWMutex
	closed     bool

	logger *logger.Logger
}

func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[chan []byte]struct{}),
		logger:  logger.With("sse"),
	}
}

// Subscribe registers a new stream for userID. The returned func removes
// it and closes the channel; calling it more than once is safe.
func (h *Hub) Subscribe(userID string) (<-chan []byte, func()) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	channel := make(chan []byte, 16)
	if h.closed {
		close(channel)
		return channel, func() {}
	}

	if h.clients[userID] == nil {
		h.clients[userID] = make(map[chan []byte]struct{})
	}
	h.clients[userID][channel] = struct{}{}
	h.logger.Debug("Added SSE client for user:", userID, "total clients:", len(h.clients[userID]))

	return channel, func() { h.remove(userID, channel) }
}

func (h *Hub) remove(userID string, channel chan []byte) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	userClients, exists := h.clients[userID]
	if !exists {
		return
	}
	if _, ok := userClients[channel]; !ok {
		return
	}

	delete(userClients, channel)
	close(channel)
	if len(userClients) == 0 {
		delete(h.clients, userID)
	}
}

// Publish sends an event to every stream of userID. A stream whose buffer
// is full misses the event; the pipeline never waits on a slow browser.
func (h *Hub) Publish(userID, eventType string, data interface{}) {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()

	userClients, exists := h.clients[userID]
	if !exists {
		return
	}

	payload, err := json.Marshal(Event{Type: eventType, Data: data, Time: time.Now().Unix()})
	if err != nil {
		h.logger.Error("Failed to marshal event:", err)
		return
	}

	for channel := range userClients {
		select {
		case channel <- payload:
		default:
			h.logger.Warn("Dropping event for slow SSE client of user:", userID)
		}
	}
}

func (h *Hub) ConnectionCount(userID string) int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()

	return len(h.clients[userID])
}

// Close disconnects every stream.
func (h *Hub) Close() {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	h.closed = true
	for userID, userClients := range h.clients {
		for channel := range userClients {
			close(channel)
		}
		delete(h.clients, userID)
	}
}
