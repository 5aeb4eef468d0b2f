package events

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	hubSendBuffer = 16
	writeWait     = 5 * time.Second
	maxHistory    = 50
)

// Hub broadcasts events to any number of websocket observers. Sends are
// non-blocking: a slow client drops events rather than stalling a mutation.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*hubClient]struct{}
	history []Event
}

type hubClient struct {
	conn *websocket.Conn
	send chan Event
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*hubClient]struct{}),
	}
}

func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	h.history = append(h.history, e)
	if len(h.history) > maxHistory {
		h.history = h.history[1:]
	}
	for c := range h.clients {
		select {
		case c.send <- e:
		default:
			// Slow consumer; drop rather than block.
		}
	}
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and streams events until the client hangs
// up. Recent history is replayed on connect.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	client := &hubClient{conn: conn, send: make(chan Event, hubSendBuffer)}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	replay := make([]Event, len(h.history))
	copy(replay, h.history)
	h.mu.Unlock()

	go h.writeLoop(client, replay)
	h.readLoop(client)
}

func (h *Hub) writeLoop(c *hubClient, replay []Event) {
	defer c.conn.Close()
	for _, e := range replay {
		if err := h.writeEvent(c, e); err != nil {
			return
		}
	}
	for e := range c.send {
		if err := h.writeEvent(c, e); err != nil {
			return
		}
	}
}

func (h *Hub) writeEvent(c *hubClient, e Event) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

func (h *Hub) readLoop(c *hubClient) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(c.send)
		c.conn.Close()
	}()
	for {
		// Observers are read-only; drain control frames until error.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
