package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/aeris/pkg/logger"
)

type echoHandler struct {
	mu           sync.Mutex
	reject       bool
	received     []string
	disconnected int
}

func (h *echoHandler) Connected(c *Client, r *http.Request) error {
	if h.reject {
		return errors.New("rejected")
	}
	c.SendMessage(&Message{Type: "hello", Data: map[string]string{"q": r.URL.Query().Get("q")}})
	return nil
}

func (h *echoHandler) HandleMessage(c *Client, messageType string, data json.RawMessage) error {
	h.mu.Lock()
	h.received = append(h.received, messageType)
	h.mu.Unlock()
	if messageType == "fail" {
		return errors.New("unsupported")
	}
	c.SendMessage(&Message{Type: "echo", Data: data})
	return nil
}

func (h *echoHandler) Disconnected(*Client) {
	h.mu.Lock()
	h.disconnected++
	h.mu.Unlock()
}

func (h *echoHandler) disconnects() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disconnected
}

func startServer(t *testing.T, h MessageHandler) (*Server, string, context.CancelFunc) {
	t.Helper()
	s := NewServer(logger.NewNop())
	s.SetMessageHandler(h)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	srv := httptest.NewServer(s)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return s, "ws" + strings.TrimPrefix(srv.URL, "http"), cancel
}

func readFrame(t *testing.T, conn *websocket.Conn) (string, string) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&f))
	return f.Type, string(f.Data)
}

func TestServer_ConnectAndEcho(t *testing.T) {
	h := &echoHandler{}
	s, url, _ := startServer(t, h)

	conn, _, err := websocket.DefaultDialer.Dial(url+"/?q=abc", nil)
	require.NoError(t, err)
	defer conn.Close()

	typ, data := readFrame(t, conn)
	assert.Equal(t, "hello", typ)
	assert.JSONEq(t, `{"q":"abc"}`, data)
	assert.Eventually(t, func() bool { return s.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	// malformed frames are skipped, handler errors keep the connection open
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{nope")))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "fail"}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping", "data": map[string]int{"n": 1}}))

	typ, data = readFrame(t, conn)
	assert.Equal(t, "echo", typ)
	assert.JSONEq(t, `{"n":1}`, data)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return s.ClientCount() == 0 && h.disconnects() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_RejectedClient(t *testing.T) {
	h := &echoHandler{reject: true}
	s, url, _ := startServer(t, h)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return s.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
	assert.Zero(t, h.disconnects())
}

func TestServer_ShutdownClosesClients(t *testing.T) {
	h := &echoHandler{}
	s, url, cancel := startServer(t, h)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	readFrame(t, conn)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return h.disconnects() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, s.ClientCount())
}

func TestClient_SendAfterShutdown(t *testing.T) {
	c := &Client{send: make(chan *Message, 1), server: NewServer(logger.NewNop())}
	assert.True(t, c.SendMessage(&Message{Type: "a"}))
	assert.False(t, c.SendMessage(&Message{Type: "b"}), "queue full")

	c.shutdown()
	c.shutdown()
	assert.False(t, c.SendMessage(&Message{Type: "c"}))
}
