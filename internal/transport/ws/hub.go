package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	// ErrBufferFull is returned when the send buffer is full.
	ErrBufferFull = errors.New("send buffer full")
	// ErrConnectionClosed is returned when sending on an unregistered connection.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrHubStopped is returned once Run has returned.
	ErrHubStopped = errors.New("hub stopped")
)

// Connection represents a single WebSocket connection.
type Connection struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	mu             sync.Mutex
	writeMu        sync.Mutex
	helloDone      bool
	conversationID string
	closed         bool
	inflight       map[string]context.CancelFunc
}

// ConversationID returns the conversation the connection is attached to.
func (c *Connection) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

// track registers cancel under requestID. It fails when the id is already in flight.
func (c *Connection) track(requestID string, cancel context.CancelFunc) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.inflight[requestID]; exists {
		return false
	}
	c.inflight[requestID] = cancel
	return true
}

func (c *Connection) untrack(requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, requestID)
}

// cancel aborts one in-flight request.
func (c *Connection) cancel(requestID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cancel, ok := c.inflight[requestID]
	if ok {
		cancel()
	}
	return ok
}

// cancelAll aborts every in-flight request.
func (c *Connection) cancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cancel := range c.inflight {
		cancel()
	}
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// Hub manages all WebSocket connections and which conversation each one
// watches.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// Watchers maps conversation_id to set of connection IDs
	watchers map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *conversationMessage
	done       chan struct{}

	logger *slog.Logger
	mu     sync.RWMutex
}

type conversationMessage struct {
	ConversationID string
	Data           []byte
	// Skip is a connection ID that does not receive the message.
	Skip string
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		connections: make(map[string]*Connection),
		watchers:    make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *conversationMessage, 256),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Run processes registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			h.mu.Unlock()
			h.logger.Debug("connection registered", "connection_id", conn.ID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				h.unwatchLocked(conn)
				conn.mu.Lock()
				conn.closed = true
				close(conn.Send)
				conn.mu.Unlock()
			}
			h.mu.Unlock()
			h.logger.Debug("connection unregistered", "connection_id", conn.ID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for connID := range h.watchers[msg.ConversationID] {
				if connID == msg.Skip {
					continue
				}
				if conn, exists := h.connections[connID]; exists {
					if err := h.SendToConnection(conn, msg.Data); errors.Is(err, ErrBufferFull) {
						h.logger.Warn("connection buffer full, closing", "connection_id", connID)
						go h.Unregister(conn)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NewConnection creates a new connection. It must be registered before use.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:       uuid.New().String(),
		Conn:     ws,
		Send:     make(chan []byte, 256),
		inflight: make(map[string]context.CancelFunc),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Watch attaches a connection to a conversation, replacing the previous one.
func (h *Hub) Watch(conn *Connection, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unwatchLocked(conn)
	conn.mu.Lock()
	conn.conversationID = conversationID
	conn.mu.Unlock()
	if conversationID == "" {
		return
	}
	if h.watchers[conversationID] == nil {
		h.watchers[conversationID] = make(map[string]bool)
	}
	h.watchers[conversationID][conn.ID] = true
}

func (h *Hub) unwatchLocked(conn *Connection) {
	old := conn.ConversationID()
	if old == "" || h.watchers[old] == nil {
		return
	}
	delete(h.watchers[old], conn.ID)
	if len(h.watchers[old]) == 0 {
		delete(h.watchers, old)
	}
}

// BroadcastJSON sends v to every connection watching the conversation.
func (h *Hub) BroadcastJSON(conversationID string, v interface{}) error {
	return h.BroadcastJSONExcept(conversationID, "", v)
}

// BroadcastJSONExcept sends v to every watcher of the conversation except
// the connection with ID skip.
func (h *Hub) BroadcastJSONExcept(conversationID, skip string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := &conversationMessage{ConversationID: conversationID, Data: data, Skip: skip}
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.broadcast <- msg:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// SendToConnection queues data on one connection without blocking.
func (h *Hub) SendToConnection(conn *Connection, data []byte) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return ErrConnectionClosed
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendJSONToConnection sends a JSON message to a specific connection.
func (h *Hub) SendJSONToConnection(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToConnection(conn, data)
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// WatcherCount returns how many connections watch a conversation.
func (h *Hub) WatcherCount(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[conversationID])
}
