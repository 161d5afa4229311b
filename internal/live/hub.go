package live

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"schoolsite/pkg/logger"
)

// Event is what staff clients receive.
type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

// Hub fans events out to connected staff dashboards. Each client has a
// bounded queue; a client that falls behind is dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	log     logger.Logger
	now     func() time.Time
}

type client struct {
	ws   *websocket.Conn
	send chan []byte
	once sync.Once
}

const (
	queueSize    = 32
	writeTimeout = 5 * time.Second
	pingEvery    = 30 * time.Second
)

type Stats struct {
	Clients int `json:"clients"`
}

func NewHub(l logger.Logger) *Hub {
	if l == nil {
		l = logger.Default()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		log:     l,
		now:     time.Now,
	}
}

// Publish broadcasts an event of the given type.
func (h *Hub) Publish(kind string, data any) {
	h.BroadcastJSON(Event{Type: kind, At: h.now().UTC(), Data: data})
}

func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Warn("live: marshal event", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			delete(h.clients, c)
			c.close()
		}
	}
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{Clients: len(h.clients)}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func (h *Hub) add(ws *websocket.Conn) *client {
	c := &client{ws: ws, send: make(chan []byte, queueSize)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// writeLoop drains the client queue until it is closed.
func (c *client) writeLoop() {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case b, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
