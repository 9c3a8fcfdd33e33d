package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Hub manages WebSocket connections and bridges Bus channels to them.
// Each channel with at least one connected subscriber holds exactly one
// bus subscription; a forwarding goroutine fans its events out to the
// subscribed connections.
type Hub struct {
	bus *Bus

	// Active connections: connection_id → *Connection
	connections map[string]*Connection
	mu          sync.RWMutex

	// Channel subscriptions: channel → set of connection_ids, plus the
	// bus subscription ID feeding that channel's forward goroutine.
	channels  map[string]map[string]bool
	busSubs   map[string]int64
	channelMu sync.RWMutex

	// Write timeout for WebSocket sends
	writeTimeout time.Duration
}

// Connection represents a single WebSocket client.
//
// subscriptions is accessed WITHOUT a lock. This is safe because all reads and
// writes (subscribe, unsubscribe, unregisterConnection) happen on the single
// goroutine that owns this connection (HandleConnection's read loop and its
// deferred cleanup). If a Connection is ever mutated from a different goroutine
// (e.g. an admin "kick" feature), subscriptions must be protected by a mutex.
type Connection struct {
	ID            string
	Conn          *websocket.Conn
	subscriptions map[string]bool // channels this connection is subscribed to
	ctx           context.Context
	cancel        context.CancelFunc
}

// wireEvent is the JSON frame delivered to WebSocket clients: the bus
// event plus the channel it arrived on.
type wireEvent struct {
	Channel string `json:"channel"`
	Event
}

// NewHub creates a Hub bridging the given bus to WebSocket clients.
func NewHub(bus *Bus, writeTimeout time.Duration) *Hub {
	return &Hub{
		bus:          bus,
		connections:  make(map[string]*Connection),
		channels:     make(map[string]map[string]bool),
		busSubs:      make(map[string]int64),
		writeTimeout: writeTimeout,
	}
}

// HandleConnection manages the lifecycle of a single WebSocket connection.
// Called by the WebSocket HTTP handler after upgrade. Blocks until the
// connection closes.
func (h *Hub) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	connID := uuid.New().String()
	ctx, cancel := context.WithCancel(parentCtx)

	c := &Connection{
		ID:            connID,
		Conn:          conn,
		subscriptions: make(map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
	}

	h.registerConnection(c)
	defer h.unregisterConnection(c)

	// Send connection established message
	h.sendJSON(c, map[string]string{
		"type":          "connection.established",
		"connection_id": connID,
	})

	// Read loop: process client messages until connection closes
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Connection closed or error, exit read loop
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Invalid WebSocket message",
				"connection_id", connID, "error", err)
			continue
		}

		h.handleClientMessage(c, &msg)
	}
}

// Broadcast sends a raw frame to all connections subscribed to the given channel.
func (h *Hub) Broadcast(channel string, frame []byte) {
	h.channelMu.RLock()
	connIDs, exists := h.channels[channel]
	if !exists {
		h.channelMu.RUnlock()
		return
	}
	// Copy IDs to avoid holding lock during sends
	ids := make([]string, 0, len(connIDs))
	for id := range connIDs {
		ids = append(ids, id)
	}
	h.channelMu.RUnlock()

	// Snapshot connection pointers under the lock, then release before
	// sending. This avoids holding mu.RLock during potentially slow
	// writes (up to writeTimeout per connection), which would stall
	// connection register/unregister operations.
	h.mu.RLock()
	conns := make([]*Connection, 0, len(ids))
	for _, id := range ids {
		if conn, ok := h.connections[id]; ok {
			conns = append(conns, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := h.sendRaw(conn, frame); err != nil {
			slog.Warn("Failed to send to WebSocket client",
				"connection_id", conn.ID, "error", err)
		}
	}
}

// ActiveConnections returns the count of active WebSocket connections.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// subscriberCount returns the number of subscribers for a channel.
// Unexported, used by tests to poll instead of sleeping.
func (h *Hub) subscriberCount(channel string) int {
	h.channelMu.RLock()
	defer h.channelMu.RUnlock()
	return len(h.channels[channel])
}

// handleClientMessage dispatches a client message to the appropriate handler.
func (h *Hub) handleClientMessage(c *Connection, msg *ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if msg.Channel == "" {
			h.sendJSON(c, map[string]string{"type": "error", "message": "channel is required for subscribe"})
			return
		}
		h.subscribe(c, msg.Channel)
		h.sendJSON(c, map[string]string{
			"type":    "subscription.confirmed",
			"channel": msg.Channel,
		})

	case "unsubscribe":
		if msg.Channel == "" {
			h.sendJSON(c, map[string]string{"type": "error", "message": "channel is required for unsubscribe"})
			return
		}
		h.unsubscribe(c, msg.Channel)

	case "ping":
		h.sendJSON(c, map[string]string{"type": "pong"})
	}
}

// subscribe registers a connection for a channel, opening the channel's bus
// subscription when this is the first subscriber. The bus subscription and
// channel registration happen under one lock so a concurrent subscribe
// never opens a second bridge for the same channel.
func (h *Hub) subscribe(c *Connection, channel string) {
	h.channelMu.Lock()
	if _, exists := h.channels[channel]; !exists {
		h.channels[channel] = make(map[string]bool)
		subID, stream := h.bus.Subscribe(channel)
		h.busSubs[channel] = subID
		go h.forward(channel, stream)
	}
	h.channels[channel][c.ID] = true
	h.channelMu.Unlock()

	c.subscriptions[channel] = true
}

// unsubscribe removes a connection from a channel, closing the channel's
// bus subscription when the last subscriber leaves. Done under channelMu,
// so a concurrent resubscribe observes the channel gone and opens a fresh
// bus subscription.
func (h *Hub) unsubscribe(c *Connection, channel string) {
	h.channelMu.Lock()
	if subs, exists := h.channels[channel]; exists {
		delete(subs, c.ID)
		if len(subs) == 0 {
			delete(h.channels, channel)
			if subID, ok := h.busSubs[channel]; ok {
				delete(h.busSubs, channel)
				h.bus.Unsubscribe(channel, subID)
			}
		}
	}
	h.channelMu.Unlock()

	delete(c.subscriptions, channel)
}

// forward relays bus events for one channel to its subscribed connections.
// Exits when the bus subscription closes (last client unsubscribed, or the
// bus shut down).
func (h *Hub) forward(channel string, stream <-chan Event) {
	for evt := range stream {
		frame, err := json.Marshal(wireEvent{Channel: channel, Event: evt})
		if err != nil {
			slog.Warn("Failed to marshal event for WebSocket delivery",
				"channel", channel, "type", evt.Type, "error", err)
			continue
		}
		h.Broadcast(channel, frame)
	}
}

// registerConnection adds a connection to the tracking map.
func (h *Hub) registerConnection(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c.ID] = c
}

// unregisterConnection removes a connection and all its subscriptions.
func (h *Hub) unregisterConnection(c *Connection) {
	// Remove from all channel subscriptions
	for ch := range c.subscriptions {
		h.unsubscribe(c, ch)
	}

	h.mu.Lock()
	delete(h.connections, c.ID)
	h.mu.Unlock()

	c.cancel()
	_ = c.Conn.Close(websocket.StatusNormalClosure, "")
}

// sendJSON marshals and sends a JSON message to a single connection.
func (h *Hub) sendJSON(c *Connection, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to marshal WebSocket message",
			"connection_id", c.ID, "error", err)
		return
	}
	if err := h.sendRaw(c, data); err != nil {
		slog.Warn("Failed to send WebSocket message",
			"connection_id", c.ID, "error", err)
	}
}

// sendRaw sends raw bytes to a single connection with a write timeout.
func (h *Hub) sendRaw(c *Connection, data []byte) error {
	writeCtx, cancel := context.WithTimeout(c.ctx, h.writeTimeout)
	defer cancel()
	return c.Conn.Write(writeCtx, websocket.MessageText, data)
}
