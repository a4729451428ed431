package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/srg/beathard/internal/ringchan"
)

const (
	DefaultClientQueue = 64

	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	maxReadSize  = 4096
)

type client struct {
	id    string
	conn  *websocket.Conn
	queue *ringchan.RingChannel[[]byte]

	sendMu sync.Mutex
}

// send queues data, overwriting the oldest pending message when the client
// is too slow.
func (c *client) send(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.queue.Send(data)
}

// Hub is a WebSocket Publisher. Dashboards connect through ServeHTTP and
// receive every published message as a text frame.
type Hub struct {
	logger    *logrus.Logger
	upgrader  websocket.Upgrader
	queueSize int

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

func NewHub(queueSize int, logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.New()
	}
	if queueSize <= 0 {
		queueSize = DefaultClientQueue
	}
	return &Hub{
		logger:    logger,
		queueSize: queueSize,
		clients:   make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Publish(_ context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if dropped := c.send(data); dropped {
			h.logger.WithField("client_id", c.id).Debug("Slow WebSocket client, dropped oldest message")
		}
	}
	return nil
}

// ServeHTTP upgrades the request and streams messages until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &client{
		id:    uuid.NewString(),
		conn:  conn,
		queue: ringchan.New[[]byte](h.queueSize),
	}
	if !h.add(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	log := h.logger.WithFields(logrus.Fields{"client_id": c.id, "remote": r.RemoteAddr})
	log.Info("WebSocket client connected")

	done := make(chan struct{})
	go h.writePump(c, done)
	h.readPump(c)

	h.remove(c.id)
	<-done
	log.Info("WebSocket client disconnected")
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	return true
}

// remove drops the client and closes its queue, which stops its write pump.
func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	c.queue.Close()
}

// readPump discards inbound frames; it only exists to process control frames
// and detect the peer going away.
func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(maxReadSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.WithField("client_id", c.id).WithError(err).Warn("WebSocket read error")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client, done chan<- struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		close(done)
	}()

	for {
		select {
		case data, ok := <-c.queue.C():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.WithField("client_id", c.id).WithError(err).Debug("WebSocket write failed")
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

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		c.queue.Close()
	}
	return nil
}
