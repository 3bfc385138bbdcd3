// Package ws relays chat streams over WebSocket connections.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/spaceboy202105/chatbot-test/internal/config"
	"github.com/spaceboy202105/chatbot-test/internal/domain"
	"github.com/spaceboy202105/chatbot-test/internal/service"
)

// ChatService is the part of the orchestrator the relay drives.
type ChatService interface {
	ChatStream(ctx context.Context, req domain.ChatRequest, handler service.FragmentHandler) (*domain.ChatResult, error)
}

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	hub      *Hub
	service  ChatService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *Hub, svc ChatService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		hub:     h,
		service: svc,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the socket endpoint.
func (s *Server) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", s.HandleWebSocket)
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", "error", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.WSMaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *Connection) {
	defer func() {
		conn.cancelAll()
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read failed", "connection_id", conn.ID, "error", err)
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))

		s.handleMessage(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(s.cfg.WSPingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Warn("websocket write failed", "connection_id", conn.ID, "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *Connection, data []byte) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case TypeHello:
		s.handleHello(conn, data)
	case TypeChat:
		s.handleChat(conn, data)
	case TypeCancel:
		s.handleCancel(conn, base)
	default:
		s.sendError(conn, base.RequestID, ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

// handleHello completes the handshake and attaches the connection to the
// requested conversation, if any.
func (s *Server) handleHello(conn *Connection, data []byte) {
	var msg HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid hello message")
		return
	}

	conn.mu.Lock()
	conn.helloDone = true
	conn.mu.Unlock()
	s.hub.Watch(conn, msg.ConversationID)

	ack := HelloAckMessage{
		BaseMessage: BaseMessage{
			Type:           TypeHelloAck,
			Ts:             time.Now().UnixMilli(),
			RequestID:      msg.RequestID,
			ConversationID: msg.ConversationID,
		},
	}
	s.hub.SendJSONToConnection(conn, ack)
	s.logger.Debug("hello handshake completed", "connection_id", conn.ID, "conversation_id", msg.ConversationID)
}

// handleChat runs one streamed chat cycle off the read loop.
func (s *Server) handleChat(conn *Connection, data []byte) {
	var msg ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid chat message")
		return
	}
	if !conn.hasHello() {
		s.sendError(conn, msg.RequestID, ErrorCodeHelloRequired, "must send hello first")
		return
	}
	if msg.RequestID == "" {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "request_id is required")
		return
	}

	conversationID := msg.ConversationID
	if conversationID == "" {
		conversationID = conn.ConversationID()
	}
	req := domain.ChatRequest{
		Message:          msg.Message,
		ConversationID:   conversationID,
		Model:            msg.Model,
		SystemPrompt:     msg.SystemPrompt,
		Stream:           true,
		GenerationParams: msg.GenerationParams,
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.cfg.LLMTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), s.cfg.LLMTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	if !conn.track(msg.RequestID, cancel) {
		cancel()
		s.sendError(conn, msg.RequestID, ErrorCodeInvalidMessage, "request_id already in flight")
		return
	}

	go func() {
		defer cancel()
		defer conn.untrack(msg.RequestID)
		s.runChat(ctx, conn, msg.RequestID, req)
	}()
}

func (s *Server) runChat(ctx context.Context, conn *Connection, requestID string, req domain.ChatRequest) {
	result, err := s.service.ChatStream(ctx, req, func(fragment string) error {
		return s.hub.SendJSONToConnection(conn, ContentMessage{
			BaseMessage: BaseMessage{Type: TypeContent, Ts: time.Now().UnixMilli(), RequestID: requestID},
			Text:        fragment,
		})
	})

	if result != nil && result.ConversationID != "" {
		s.hub.Watch(conn, result.ConversationID)
	}
	// An abandoned stream still closes with done; the committed text is partial.
	if errors.Is(err, domain.ErrStreamAborted) && result != nil {
		s.logger.Info("websocket chat cancelled", "connection_id", conn.ID, "request_id", requestID, "error", err)
		err = nil
	}
	if err != nil {
		conversationID := ""
		if result != nil {
			conversationID = result.ConversationID
		}
		s.logger.Warn("websocket chat failed", "connection_id", conn.ID, "request_id", requestID, "error", err)
		s.sendErrorFrame(conn, ErrorMessage{
			BaseMessage: BaseMessage{
				Type:           TypeError,
				Ts:             time.Now().UnixMilli(),
				RequestID:      requestID,
				ConversationID: conversationID,
			},
			Code:    domain.ErrorCode(err),
			Message: err.Error(),
		})
		return
	}

	done := DoneMessage{
		BaseMessage: BaseMessage{
			Type:           TypeDone,
			Ts:             time.Now().UnixMilli(),
			RequestID:      requestID,
			ConversationID: result.ConversationID,
		},
		Partial: result.Partial,
	}
	if err := s.hub.SendJSONToConnection(conn, done); err != nil && !errors.Is(err, ErrConnectionClosed) {
		s.logger.Warn("failed to send done", "connection_id", conn.ID, "request_id", requestID, "error", err)
	}
	// Other watchers of the conversation learn about the new message.
	if err := s.hub.BroadcastJSONExcept(result.ConversationID, conn.ID, done); err != nil && !errors.Is(err, ErrHubStopped) {
		s.logger.Error("failed to broadcast done", "error", err)
	}
}

// handleCancel aborts an in-flight request.
func (s *Server) handleCancel(conn *Connection, base BaseMessage) {
	if base.RequestID == "" {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "request_id is required")
		return
	}
	if !conn.cancel(base.RequestID) {
		s.sendError(conn, base.RequestID, ErrorCodeUnknownRequest, "no request in flight with this id")
	}
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *Connection, requestID, code, message string) {
	s.sendErrorFrame(conn, ErrorMessage{
		BaseMessage: BaseMessage{
			Type:           TypeError,
			Ts:             time.Now().UnixMilli(),
			RequestID:      requestID,
			ConversationID: conn.ConversationID(),
		},
		Code:    code,
		Message: message,
	})
}

func (s *Server) sendErrorFrame(conn *Connection, msg ErrorMessage) {
	if err := s.hub.SendJSONToConnection(conn, msg); err != nil && !errors.Is(err, ErrConnectionClosed) {
		s.logger.Warn("failed to send error frame", "connection_id", conn.ID, "error", err)
	}
}

func (c *Connection) hasHello() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.helloDone
}
