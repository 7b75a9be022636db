package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"flashquiz-backend/internal/logger"
	"flashquiz-backend/internal/services"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type tokenParser interface {
	ParseToken(tokenStr string) (string, error)
}

// client serialises writes; gorilla connections allow one writer at a time.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans per-user Redis pub/sub messages (quiz feedback, completion and
// progress events) out to that user's open sockets.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*client
	redisClient *redis.Client
	tokens      tokenParser
	log         *logger.Logger
	cancelFuncs map[string]context.CancelFunc
}

func NewHub(redisClient *redis.Client, tokens tokenParser, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		connections: make(map[string][]*client),
		redisClient: redisClient,
		tokens:      tokens,
		log:         log,
		cancelFuncs: make(map[string]context.CancelFunc),
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate via token query param
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := h.tokens.ParseToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn}
	h.registerConnection(userID, c)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(userID, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[userID] = append(h.connections[userID], c)

	// Start pub/sub subscription if this is the first connection for this user
	if len(h.connections[userID]) == 1 && h.redisClient != nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[userID] = cancel
		go h.subscribeToPubSub(ctx, userID)
	}

	h.log.Debug("websocket connected", "user_id", userID, "connections", len(h.connections[userID]))
}

func (h *Hub) unregisterConnection(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[userID]
	for i, existing := range conns {
		if existing == c {
			h.connections[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	// If no more connections, cancel pub/sub
	if len(h.connections[userID]) == 0 {
		delete(h.connections, userID)
		if cancel, ok := h.cancelFuncs[userID]; ok {
			cancel()
			delete(h.cancelFuncs, userID)
		}
	}

	h.log.Debug("websocket disconnected", "user_id", userID)
}

func (h *Hub) subscribeToPubSub(ctx context.Context, userID string) {
	pubsub := h.redisClient.Subscribe(ctx, services.UserChannel(userID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(userID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(userID string, data []byte) {
	h.mu.RLock()
	conns := append([]*client(nil), h.connections[userID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			h.log.Debug("websocket write failed", "user_id", userID, "error", err)
		}
	}
}

// SendToUser sends a message directly to a user (for use outside pub/sub)
func (h *Hub) SendToUser(userID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.broadcast(userID, data)
}

// Connected reports how many sockets userID has open.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

// Close drops every socket and subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.connections {
		for _, c := range conns {
			c.conn.Close()
		}
		delete(h.connections, userID)
	}
	for userID, cancel := range h.cancelFuncs {
		cancel()
		delete(h.cancelFuncs, userID)
	}
}
