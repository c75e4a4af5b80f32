// Package hub is the Subscription collaborator (§4.9): a websocket
// fan-out keyed by lot, adapted from orange-city-mart's hub/hub.go
// auction-room broadcaster. Chat rooms are dropped (not part of this
// domain); in their place every subscribe delivers a full snapshot of
// the lot before any incremental update, and idle connections are
// kept alive with heartbeats per §4.9's "heartbeat at least every 30s".
package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kartnagrale/auctionhouse/internal/logger"
	"github.com/kartnagrale/auctionhouse/internal/metrics"
)

// MessageType constants for the websocket payload envelope.
const (
	TypeSnapshot    = "lot_snapshot"
	TypeBidPlaced   = "bid_placed"
	TypeOutbid      = "outbid"
	TypeLotExtended = "lot_extended"
	TypeLotClosed   = "lot_closed"
	TypeHeartbeat   = "heartbeat"
)

// Message is the envelope written to every subscriber.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 20 * time.Second // comfortably under the 30s heartbeat ceiling
	pongWait   = pingPeriod * 3 / 2
)

// Client is a single connected websocket subscriber, watching exactly
// one lot; subscribing to another lot creates a new Client.
type Client struct {
	UserID string
	LotID  string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
}

// Hub fans out lot events to every subscriber of that lot.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*Client]struct{}
	lotRooms  map[string][]*Client
	metrics   *metrics.Metrics

	register   chan *Client
	unregister chan *Client
}

// New creates a Hub. Run must be started in its own goroutine before
// any client registers.
func New(m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		lotRooms:   make(map[string][]*Client),
		metrics:    m,
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
	}
}

// Run is the hub's single-goroutine event loop.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.lotRooms[c.LotID] = append(h.lotRooms[c.LotID], c)
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.SubscriberGauge.Inc()
			}

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				h.removeFromRoom(c.LotID, c)
				close(c.send)
			}
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.SubscriberGauge.Dec()
			}
		}
	}
}

func (h *Hub) removeFromRoom(lotID string, c *Client) {
	clients := h.lotRooms[lotID]
	for i, cl := range clients {
		if cl == c {
			h.lotRooms[lotID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.lotRooms[lotID]) == 0 {
		delete(h.lotRooms, lotID)
	}
}

// BroadcastToLot fans msg out to every subscriber of lotID. Non-blocking:
// a subscriber whose send buffer is full misses this message (it stays
// subscribed) rather than stalling the caller — intended to run after the triggering
// transaction has already committed (§4.9 "never block the committing
// transaction on subscriber delivery").
func (h *Hub) BroadcastToLot(lotID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Hub().Error().Err(err).Msg("marshal broadcast message")
		return
	}

	h.mu.RLock()
	clients := make([]*Client, len(h.lotRooms[lotID]))
	copy(clients, h.lotRooms[lotID])
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			logger.Hub().Warn().Str("user_id", c.UserID).Str("lot_id", lotID).Msg("dropped message, slow subscriber")
		}
	}
}

// Subscribe registers a new client for lotID, delivers snapshot as its
// first frame, then starts its read/write pumps.
func (h *Hub) Subscribe(userID, lotID string, conn *websocket.Conn, snapshot json.RawMessage) *Client {
	c := &Client{
		UserID: userID,
		LotID:  lotID,
		conn:   conn,
		send:   make(chan []byte, 64),
		hub:    h,
	}

	// Queue the snapshot before registering so no broadcast can be
	// delivered ahead of it.
	if snapshot != nil {
		data, _ := json.Marshal(Message{Type: TypeSnapshot, Payload: snapshot})
		select {
		case c.send <- data:
		default:
		}
	}
	h.register <- c

	go c.writePump()
	go c.readPump()
	return c
}

// readPump discards inbound frames (this is a read-only feed) but must
// keep running to detect disconnects and drive pong deadlines.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump delivers queued messages and sends periodic pings so idle
// subscribers still see traffic at least every pingPeriod (§4.9).
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
