package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yegors/aeris/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Message is one frame sent to a page
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// inbound is a frame received from a page; Data is decoded by the handler
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MessageHandler drives the connected pages. Connected runs before any
// message of the client is read; returning an error closes the connection.
type MessageHandler interface {
	Connected(client *Client, r *http.Request) error
	HandleMessage(client *Client, messageType string, data json.RawMessage) error
	Disconnected(client *Client)
}

// Client is one connected page
type Client struct {
	conn       *websocket.Conn
	send       chan *Message
	server     *Server
	remoteAddr string

	mu     sync.Mutex
	closed bool
}

// Server accepts page connections and tracks them until they go away
type Server struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *logger.Logger
	mu         sync.RWMutex
	handler    MessageHandler
}

// NewServer creates a new WebSocket server
func NewServer(log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		logger: log.Named("web-socket"),
	}
}

// SetMessageHandler sets the handler for page connections. It must be set
// before the server accepts connections.
func (s *Server) SetMessageHandler(handler MessageHandler) {
	s.handler = handler
}

// Run tracks clients until ctx is done, then closes every connection
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("Starting WebSocket server")
	defer close(s.done)

	for {
		select {
		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			count := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client registered", logger.Int("client_count", count))

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				client.shutdown()
			}
			count := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client unregistered", logger.Int("client_count", count))

		case <-ctx.Done():
			s.mu.Lock()
			for client := range s.clients {
				delete(s.clients, client)
				client.shutdown()
			}
			s.mu.Unlock()
			s.logger.Info("WebSocket server stopped")
			return
		}
	}
}

// ClientCount returns the number of connected pages
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ServeHTTP upgrades the request and serves the page connection
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("Handling new WebSocket connection request",
		logger.String("remote_addr", r.RemoteAddr),
		logger.String("user_agent", r.UserAgent()))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered with an HTTP error
		s.logger.Warn("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		conn:       conn,
		send:       make(chan *Message, sendBuffer),
		server:     s,
		remoteAddr: r.RemoteAddr,
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.writePump()

	if s.handler != nil {
		if err := s.handler.Connected(client, r); err != nil {
			s.logger.Warn("Rejected WebSocket client", logger.Error(err), logger.String("remote_addr", r.RemoteAddr))
			s.remove(client)
			return
		}
	}

	go client.readPump()
}

func (s *Server) remove(c *Client) {
	select {
	case s.unregister <- c:
	case <-s.done:
		c.shutdown()
	}
}

// RemoteAddr returns the address the page connected from
func (c *Client) RemoteAddr() string {
	return c.remoteAddr
}

// SendMessage queues a message for this client. It reports false when the
// client is gone or its queue is full; the message is then dropped.
func (c *Client) SendMessage(message *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		c.server.logger.Warn("Client send queue full, dropping message",
			logger.String("message_type", message.Type),
			logger.String("remote_addr", c.remoteAddr))
		return false
	}
}

// shutdown stops the write pump, which closes the connection
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump hands incoming frames to the handler until the page goes away
func (c *Client) readPump() {
	s := c.server
	defer func() {
		s.remove(c)
		if s.handler != nil {
			s.handler.Disconnected(c)
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Warn("Failed to parse WebSocket message", logger.Error(err))
			continue
		}

		s.logger.Debug("Received WebSocket message",
			logger.String("type", msg.Type),
			logger.String("client", c.remoteAddr))

		if s.handler == nil {
			continue
		}
		if err := s.handler.HandleMessage(c, msg.Type, msg.Data); err != nil {
			s.logger.Warn("Failed to handle WebSocket message",
				logger.Error(err),
				logger.String("type", msg.Type))
		}
	}
}

// writePump is the only writer of the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				c.server.logger.Error("Failed to marshal message", logger.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
