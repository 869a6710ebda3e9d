package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/yegors/aeris/internal/lookup"
	"github.com/yegors/aeris/internal/metrics"
	"github.com/yegors/aeris/internal/view"
	"github.com/yegors/aeris/internal/websocket"
	"github.com/yegors/aeris/pkg/logger"
)

// Incoming message types
const (
	MessageSearch        = "search"
	MessageSelectHistory = "select_history"
	MessageInput         = "input"
)

// StoreFunc returns the persistent store of a page session
type StoreFunc func(sessionID string) lookup.Store

// Deps are shared by every page session
type Deps struct {
	Fetcher lookup.Fetcher
	Stores  StoreFunc
	View    *view.Engine
	MapOpts lookup.MapOptions
	Metrics *metrics.Registry
}

// Session is one connected page and the controller driving it
type Session struct {
	ID         string
	controller *lookup.Controller
	ctx        context.Context
	cancel     context.CancelFunc
	searches   sync.WaitGroup
}

// Controller returns the session's lookup controller
func (s *Session) Controller() *lookup.Controller {
	return s.controller
}

// Manager gives every page connection its own session. It implements
// websocket.MessageHandler.
type Manager struct {
	deps   Deps
	logger *logger.Logger

	mu       sync.Mutex
	sessions map[*websocket.Client]*Session
}

// NewManager creates a session manager
func NewManager(deps Deps, log *logger.Logger) *Manager {
	return &Manager{
		deps:     deps,
		logger:   log.Named("session"),
		sessions: make(map[*websocket.Client]*Session),
	}
}

// sessionID keeps a page's remembered id when it is a UUID
func sessionID(requested string) string {
	if id, err := uuid.Parse(requested); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// Connected starts a session: the page learns its id, then sees its
// recent searches before any search runs.
func (m *Manager) Connected(client *websocket.Client, r *http.Request) error {
	id := sessionID(r.URL.Query().Get("session"))
	return m.start(client, id)
}

func (m *Manager) start(client *websocket.Client, id string) error {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{ID: id, ctx: ctx, cancel: cancel}
	s.controller = lookup.NewController(lookup.Deps{
		Fetcher:  m.deps.Fetcher,
		Store:    m.deps.Stores(id),
		View:     m.deps.View,
		Renderer: pageRenderer{out: client},
		Map:      pageMap{out: client},
		MapOpts:  m.deps.MapOpts,
	}, m.logger.With(logger.String("session_id", id)))

	if !client.SendMessage(&websocket.Message{Type: MessageSession, Data: map[string]string{"id": id}}) {
		cancel()
		return fmt.Errorf("client went away before session %s started", id)
	}

	m.mu.Lock()
	m.sessions[client] = s
	m.mu.Unlock()

	s.controller.Start(ctx)
	if m.deps.Metrics != nil {
		m.deps.Metrics.SessionsActive.Inc()
	}
	m.logger.Info("Page session started",
		logger.String("session_id", id),
		logger.String("remote_addr", client.RemoteAddr()))
	return nil
}

type flightPayload struct {
	Flight string `json:"flight"`
}

type inputPayload struct {
	Value string `json:"value"`
}

// HandleMessage dispatches a page message. Searches run on their own
// goroutine so a new search can start while one is pending.
func (m *Manager) HandleMessage(client *websocket.Client, messageType string, data json.RawMessage) error {
	s := m.session(client)
	if s == nil {
		return fmt.Errorf("no session for client %s", client.RemoteAddr())
	}

	switch messageType {
	case MessageSearch:
		var p flightPayload
		if err := decodePayload(data, &p); err != nil {
			return err
		}
		m.run(s, func(ctx context.Context) lookup.Outcome {
			return s.controller.SubmitSearch(ctx, p.Flight)
		})
	case MessageSelectHistory:
		var p flightPayload
		if err := decodePayload(data, &p); err != nil {
			return err
		}
		m.run(s, func(ctx context.Context) lookup.Outcome {
			return s.controller.SelectHistory(ctx, p.Flight)
		})
	case MessageInput:
		var p inputPayload
		if err := decodePayload(data, &p); err != nil {
			return err
		}
		s.controller.SetInput(p.Value)
	default:
		return fmt.Errorf("unknown message type %q", messageType)
	}
	return nil
}

func decodePayload(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid message payload: %w", err)
	}
	return nil
}

func (m *Manager) run(s *Session, search func(ctx context.Context) lookup.Outcome) {
	s.searches.Add(1)
	go func() {
		defer s.searches.Done()
		out := search(s.ctx)

		state := string(out.State)
		if out.Stale {
			state = "stale"
		}
		m.deps.Metrics.Search(state)
	}()
}

// Disconnected ends the session and abandons its pending searches
func (m *Manager) Disconnected(client *websocket.Client) {
	m.mu.Lock()
	s, ok := m.sessions[client]
	delete(m.sessions, client)
	m.mu.Unlock()
	if !ok {
		return
	}

	s.cancel()
	s.searches.Wait()
	if m.deps.Metrics != nil {
		m.deps.Metrics.SessionsActive.Dec()
	}
	m.logger.Info("Page session ended", logger.String("session_id", s.ID))
}

func (m *Manager) session(client *websocket.Client) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[client]
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
