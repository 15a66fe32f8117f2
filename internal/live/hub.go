package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/desertthunder/multify/internal/queue"
	"github.com/desertthunder/multify/internal/shared"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 8
)

// MessageQueue is the type of a queue snapshot message.
const MessageQueue = "queue.snapshot"

// Snapshotter renders the ranked queue of a party for one viewer. Implemented by queue.Service.
type Snapshotter interface {
	Snapshot(ctx context.Context, partyID, viewer string) ([]queue.RankedTrack, error)
}

// Message is sent to clients whenever their party's queue changes.
type Message struct {
	Type      string              `json:"type"`
	PartyID   string              `json:"party_id"`
	Tracks    []queue.RankedTrack `json:"tracks"`
	Timestamp time.Time           `json:"timestamp"`
}

// Client is one websocket connection watching a party.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	partyID string
	viewer  string
}

// Hub tracks the clients of every party.
//
// Rendering and sending for one party happen under that party's lock so
// subscribers never receive an older snapshot after a newer one.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	locksMu  sync.Mutex
	locks    map[string]*sync.Mutex
	snapshot Snapshotter
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewHub creates a hub rendering snapshots with s.
func NewHub(s Snapshotter, logger *log.Logger) *Hub {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Hub{
		clients:  make(map[string]map[*Client]struct{}),
		locks:    make(map[string]*sync.Mutex),
		snapshot: s,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: shared.WithLogger(logger, "component", "live"),
	}
}

// SetCheckOrigin replaces the origin check of the websocket upgrade.
func (h *Hub) SetCheckOrigin(f func(origin string) bool) {
	h.upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || f(origin)
	}
}

// Clients returns the number of clients connected to a party.
func (h *Hub) Clients(partyID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[partyID])
}

// Serve upgrades the request and streams snapshots of partyID to viewer until the connection closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, partyID, viewer string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		partyID: partyID,
		viewer:  viewer,
	}

	h.register(r.Context(), c)
	go c.writePump()
	c.readPump()
	return nil
}

// partyLock returns the lock serializing snapshots of partyID.
func (h *Hub) partyLock(partyID string) *sync.Mutex {
	h.locksMu.Lock()
	defer h.locksMu.Unlock()

	l, ok := h.locks[partyID]
	if !ok {
		l = &sync.Mutex{}
		h.locks[partyID] = l
	}
	return l
}

func (h *Hub) register(ctx context.Context, c *Client) {
	l := h.partyLock(c.partyID)
	l.Lock()
	defer l.Unlock()

	payload, err := h.render(ctx, c.partyID, c.viewer)

	h.mu.Lock()
	if h.clients[c.partyID] == nil {
		h.clients[c.partyID] = make(map[*Client]struct{})
	}
	h.clients[c.partyID][c] = struct{}{}
	if err == nil {
		c.send <- payload
	}
	h.mu.Unlock()

	h.logger.Debug("client joined", "party", c.partyID, "viewer", c.viewer)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked drops c and closes its send channel. h.mu must be held.
func (h *Hub) removeLocked(c *Client) {
	clients, ok := h.clients[c.partyID]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}

	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.clients, c.partyID)
	}
	h.logger.Debug("client left", "party", c.partyID, "viewer", c.viewer)
}

// Publish sends every client of partyID a fresh snapshot. Clients whose buffer is full are dropped.
func (h *Hub) Publish(partyID string) {
	l := h.partyLock(partyID)
	l.Lock()
	defer l.Unlock()

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[partyID]))
	for c := range h.clients[partyID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	rendered := make(map[string][]byte)
	payloads := make(map[*Client][]byte, len(targets))
	for _, c := range targets {
		payload, ok := rendered[c.viewer]
		if !ok {
			var err error
			if payload, err = h.render(ctx, partyID, c.viewer); err != nil {
				continue
			}
			rendered[c.viewer] = payload
		}
		payloads[c] = payload
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c, payload := range payloads {
		if _, ok := h.clients[partyID][c]; !ok {
			continue
		}
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("dropping slow client", "party", partyID, "viewer", c.viewer)
			h.removeLocked(c)
		}
	}
}

func (h *Hub) render(ctx context.Context, partyID, viewer string) ([]byte, error) {
	tracks, err := h.snapshot.Snapshot(ctx, partyID, viewer)
	if err != nil {
		h.logger.Error("failed to render snapshot", "party", partyID, "viewer", viewer, "error", err)
		return nil, err
	}
	if tracks == nil {
		tracks = []queue.RankedTrack{}
	}

	return json.Marshal(Message{
		Type:      MessageQueue,
		PartyID:   partyID,
		Tracks:    tracks,
		Timestamp: time.Now().UTC(),
	})
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.clients {
		for c := range clients {
			h.removeLocked(c)
		}
	}
}

// readPump discards inbound messages and keeps the read deadline alive on pongs.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Debug("websocket read failed", "party", c.partyID, "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
