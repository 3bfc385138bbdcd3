// Package main provides an interactive CLI client for the chatgate WebSocket relay.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/spaceboy202105/chatbot-test/internal/transport/ws"
)

// Client represents a WebSocket client.
type Client struct {
	conn  *websocket.Conn
	model string
	done  chan struct{}

	mu             sync.Mutex
	conversationID string
	inflight       string
}

// NewClient creates a new client and connects to the server.
func NewClient(addr, model string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn:  conn,
		model: model,
		done:  make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

// SendHello sends a hello message and waits for hello_ack.
func (c *Client) SendHello(conversationID string) error {
	msg := ws.HelloMessage{
		BaseMessage: ws.BaseMessage{
			Type:           ws.TypeHello,
			Ts:             time.Now().UnixMilli(),
			ConversationID: conversationID,
		},
		ClientMeta: map[string]string{
			"client": "chatcli",
		},
	}

	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	// Wait for hello_ack
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}

	var base ws.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}

	if base.Type == ws.TypeError {
		var errMsg ws.ErrorMessage
		json.Unmarshal(data, &errMsg)
		return fmt.Errorf("hello failed: %s - %s", errMsg.Code, errMsg.Message)
	}

	if base.Type != ws.TypeHelloAck {
		return fmt.Errorf("expected hello_ack, got: %s", base.Type)
	}

	c.setConversation(base.ConversationID)
	return nil
}

// SendChat sends one chat turn in the current conversation.
func (c *Client) SendChat(content string) error {
	requestID := "req_" + uuid.NewString()
	msg := ws.ChatMessage{
		BaseMessage: ws.BaseMessage{
			Type:           ws.TypeChat,
			Ts:             time.Now().UnixMilli(),
			RequestID:      requestID,
			ConversationID: c.Conversation(),
		},
		Message: content,
		Model:   c.model,
	}

	c.mu.Lock()
	c.inflight = requestID
	c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

// CancelInflight abandons the request in progress, if any.
func (c *Client) CancelInflight() (bool, error) {
	c.mu.Lock()
	requestID := c.inflight
	c.mu.Unlock()
	if requestID == "" {
		return false, nil
	}
	msg := ws.CancelMessage{
		BaseMessage: ws.BaseMessage{
			Type:      ws.TypeCancel,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
		},
	}
	return true, c.conn.WriteJSON(msg)
}

// Reset detaches the connection from its conversation so the next chat
// starts a new one.
func (c *Client) Reset() error {
	c.setConversation("")
	return c.conn.WriteJSON(ws.HelloMessage{
		BaseMessage: ws.BaseMessage{Type: ws.TypeHello, Ts: time.Now().UnixMilli()},
	})
}

// Conversation returns the conversation the client continues.
func (c *Client) Conversation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

func (c *Client) setConversation(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conversationID = id
}

func (c *Client) finish(requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == requestID {
		c.inflight = ""
	}
}

// ReadMessages reads and prints messages from the server.
func (c *Client) ReadMessages() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}

			var base ws.BaseMessage
			if err := json.Unmarshal(data, &base); err != nil {
				log.Printf("Unmarshal error: %v", err)
				continue
			}

			switch base.Type {
			case ws.TypeHelloAck:
				fmt.Print("Started a new conversation\n> ")
			case ws.TypeContent:
				var msg ws.ContentMessage
				if err := json.Unmarshal(data, &msg); err == nil {
					fmt.Print(msg.Text)
				}
			case ws.TypeDone:
				var msg ws.DoneMessage
				json.Unmarshal(data, &msg)
				c.finish(msg.RequestID)
				if msg.ConversationID != "" {
					c.setConversation(msg.ConversationID)
				}
				if msg.Partial {
					fmt.Print(" [cancelled]")
				}
				fmt.Printf("\n[%s]\n> ", msg.ConversationID)
			case ws.TypeError:
				var msg ws.ErrorMessage
				json.Unmarshal(data, &msg)
				c.finish(msg.RequestID)
				fmt.Printf("\n[error] %s: %s\n> ", msg.Code, msg.Message)
			default:
				fmt.Printf("\n[%s] %s\n> ", base.Type, string(data))
			}
		}
	}
}

func main() {
	addr := flag.String("addr", "ws://localhost:8000/api/ws", "WebSocket server address")
	model := flag.String("model", "", "Model to use; empty uses the conversation or server default")
	conversation := flag.String("conversation", "", "Conversation ID to continue")
	flag.Parse()

	log.SetFlags(log.Ltime)

	fmt.Printf("Connecting to %s...\n", *addr)

	client, err := NewClient(*addr, *model)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if err := client.SendHello(*conversation); err != nil {
		log.Fatalf("Hello failed: %v", err)
	}

	if id := client.Conversation(); id != "" {
		fmt.Printf("Continuing conversation %s\n", id)
	}
	fmt.Println("\nType a message and press Enter to send.")
	fmt.Println("Commands: /new to start a new conversation, /cancel to stop the reply, /quit to exit")

	// Start reading messages in background
	go client.ReadMessages()

	// Handle Ctrl+C
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		fmt.Println("\nInterrupted")
		client.Close()
		os.Exit(0)
	}()

	// Read user input
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			fmt.Print("> ")
			continue
		case "/quit":
			fmt.Println("Bye!")
			return
		case "/new":
			if err := client.Reset(); err != nil {
				log.Printf("Reset error: %v", err)
			}
			continue
		case "/cancel":
			sent, err := client.CancelInflight()
			if err != nil {
				log.Printf("Cancel error: %v", err)
			} else if !sent {
				fmt.Print("Nothing to cancel\n> ")
			}
			continue
		}

		if err := client.SendChat(input); err != nil {
			log.Printf("Send error: %v", err)
		}
	}
}
