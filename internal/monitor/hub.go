package monitor

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait   = 10 * time.Second
	sendBuffer  = 32
	maxReadSize = 64 << 10
)

// ProgressUpdate is posted by the editor extension as a pipeline runs.
type ProgressUpdate struct {
	JiraNumber string `json:"jiraNumber" binding:"required"`
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	Progress   int    `json:"progress" binding:"gte=0,lte=100"`
	Timestamp  string `json:"timestamp"`
}

// client is one websocket subscriber. Only writePump writes to conn.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn) *client {
	return &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// enqueue never blocks; a full or closed client reports false.
func (c *client) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) writePump(log *slog.Logger) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Debug("client write failed", "client", c.id, "err", err)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// Hub tracks monitor and per-Jira progress subscribers.
type Hub struct {
	log *slog.Logger

	mu       sync.Mutex
	clients  map[string]*client
	progress map[string]map[string]*client
	cache    map[string]ProgressUpdate
}

// NewHub returns an empty hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:      log,
		clients:  make(map[string]*client),
		progress: make(map[string]map[string]*client),
		cache:    make(map[string]ProgressUpdate),
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("client connected", "client", c.id, "connections", n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		c.close()
		h.log.Info("client disconnected", "client", c.id, "connections", n)
	}
}

// registerProgress subscribes c to jira and returns its cached update.
func (h *Hub) registerProgress(c *client, jira string) (ProgressUpdate, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.progress[jira]
	if !ok {
		subs = make(map[string]*client)
		h.progress[jira] = subs
	}
	subs[c.id] = c
	cached, ok := h.cache[jira]
	h.log.Info("progress client connected", "client", c.id, "jira", jira)
	return cached, ok
}

func (h *Hub) unregisterProgress(c *client, jira string) {
	h.mu.Lock()
	if subs, ok := h.progress[jira]; ok {
		delete(subs, c.id)
		if len(subs) == 0 {
			delete(h.progress, jira)
		}
	}
	h.mu.Unlock()
	c.close()
	h.log.Info("progress client disconnected", "client", c.id, "jira", jira)
}

// Connections is the number of monitor clients.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends v to every monitor client. Clients whose buffer is full
// are dropped.
func (h *Hub) Broadcast(v any) int {
	msg, err := json.Marshal(v)
	if err != nil {
		h.log.Error("encoding broadcast", "err", err)
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	sent := 0
	for id, c := range h.clients {
		if c.enqueue(msg) {
			sent++
			continue
		}
		h.log.Warn("dropping slow client", "client", id)
		delete(h.clients, id)
		c.close()
	}
	return sent
}

// BroadcastProgress caches u and fans it out to the subscribers of its Jira.
func (h *Hub) BroadcastProgress(u ProgressUpdate) int {
	msg, err := json.Marshal(u)
	if err != nil {
		h.log.Error("encoding progress", "err", err)
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cache[u.JiraNumber] = u
	sent := 0
	for id, c := range h.progress[u.JiraNumber] {
		if c.enqueue(msg) {
			sent++
			continue
		}
		delete(h.progress[u.JiraNumber], id)
		c.close()
	}
	return sent
}

// Cached returns the last progress update seen for jira.
func (h *Hub) Cached(jira string) (ProgressUpdate, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	u, ok := h.cache[jira]
	return u, ok
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
	for jira, subs := range h.progress {
		for _, c := range subs {
			c.close()
		}
		delete(h.progress, jira)
	}
}

// send queues v for c alone.
func (h *Hub) send(c *client, v any) bool {
	msg, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return c.enqueue(msg)
}
