package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"installpro/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Client is a single websocket connection belonging to a user. A user may
// hold several connections (tabs, devices).
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uuid.UUID
	send   chan []byte
}

type userMessage struct {
	userID  uuid.UUID
	payload []byte
}

// Hub tracks connected clients by user and delivers notifications to them.
type Hub struct {
	clients    map[uuid.UUID]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	direct     chan userMessage
	done       chan struct{}
	upgrader   websocket.Upgrader

	mu        sync.RWMutex
	connected int
}

// NewHub builds a hub that accepts upgrades from the given origins. An empty
// list accepts any origin.
func NewHub(allowedOrigins []string) *Hub {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan userMessage, sendBuffer),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || origins[origin]
			},
		},
	}
}

// Run is the dispatch loop. It returns when ctx is cancelled, closing every
// client's send channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for _, set := range h.clients {
				for client := range set {
					close(client.send)
				}
			}
			h.clients = make(map[uuid.UUID]map[*Client]bool)
			h.setConnected(0)
			return
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[client.userID] = set
			}
			set[client] = true
			h.setConnected(h.connectedCount() + 1)
			logger.L().Debug("websocket client connected", zap.String("user_id", client.userID.String()))
		case client := <-h.unregister:
			h.remove(client)
		case msg := <-h.direct:
			for client := range h.clients[msg.userID] {
				select {
				case client.send <- msg.payload:
				default:
					// slow consumer
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.userID]
	if !ok || !set[client] {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
	close(client.send)
	h.setConnected(h.connectedCount() - 1)
	logger.L().Debug("websocket client disconnected", zap.String("user_id", client.userID.String()))
}

func (h *Hub) setConnected(n int) {
	h.mu.Lock()
	h.connected = n
	h.mu.Unlock()
}

func (h *Hub) connectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connected
}

// Connected reports how many client connections are open.
func (h *Hub) Connected() int { return h.connectedCount() }

// PushToUser queues payload for every connection of userID. It never blocks;
// when the queue is full the message is dropped, the notification stays in
// the inbox.
func (h *Hub) PushToUser(userID uuid.UUID, payload []byte) {
	select {
	case h.direct <- userMessage{userID: userID, payload: payload}:
	default:
		logger.L().Warn("websocket push dropped", zap.String("user_id", userID.String()))
	}
}

// ServeWs upgrades an authenticated request and attaches it to the hub.
func (h *Hub) ServeWs(c *gin.Context, userID uuid.UUID) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{hub: h, conn: conn, userID: userID, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
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

// readPump only keeps the connection alive; clients do not send messages.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.L().Warn("websocket read error", zap.Error(err))
			}
			return
		}
	}
}
