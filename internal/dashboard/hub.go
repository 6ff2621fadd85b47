package dashboard

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/release-tracker/internal/logger"
	"github.com/user/release-tracker/internal/tracker"
)

const (
	writeWait = 10 * time.Second

	// sendBuffer is how many updates may queue for one client before it is
	// treated as stuck and dropped.
	sendBuffer = 8
)

// Hub pushes a short update message to every open dashboard whenever a new
// snapshot is stored. Each client has its own write goroutine so a slow
// browser never holds up a refresh.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type updateMessage struct {
	GeneratedAt time.Time `json:"generated_at"`
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()

	// Clients never send anything; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("Websocket read error")
			}
			break
		}
	}
	h.remove(c)
}

// writePump is the only writer on the connection. It exits when send is
// closed or a write fails, closing the connection either way.
func (c *client) writePump() {
	defer c.conn.Close()

	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.Debug().Err(err).Msg("Dropping websocket client")
			return
		}
	}

	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
		time.Now().Add(time.Second))
}

// Broadcast queues the snapshot timestamp for every connected client
// without waiting on the network. Clients whose queue is full are dropped.
func (h *Hub) Broadcast(snap *tracker.Snapshot) {
	if snap == nil {
		return
	}
	payload, err := json.Marshal(updateMessage{GeneratedAt: snap.GeneratedAt})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			logger.Debug().Msg("Websocket client is not keeping up, dropping it")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client. Each write goroutine sends a going-away
// frame before closing its connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}
