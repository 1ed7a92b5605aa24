package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mauassist/internal/feedback"
	"mauassist/internal/logging"
)

// Live feed event types. Tracker events keep their feedback.Event* names.
const (
	EventChatMessage    = "chat_message"
	EventKnowledgeAdded = "knowledge_added"
)

const writeWait = 5 * time.Second

// ChatActivity is broadcast to admins for every answered message
type ChatActivity struct {
	SessionID  string  `json:"session_id"`
	StudentID  string  `json:"student_id"`
	Message    string  `json:"message"`
	Reply      string  `json:"reply"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// feedMessage is the JSON frame sent to clients
type feedMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub manages admin WebSocket connections
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex
	logger     *logging.Logger
}

// NewHub creates a hub. Run must be called for messages to be delivered.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns the client set until ctx is cancelled, then closes every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
			h.logger.Debug("live feed client connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an event for all clients. Events are dropped when the
// queue is full.
func (h *Hub) Broadcast(eventType string, data interface{}) {
	payload, err := json.Marshal(feedMessage{Type: eventType, Data: data})
	if err != nil {
		h.logger.WithContext("error", err.Error()).Warn("failed to encode live feed event")
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.logger.WithContext("event_type", eventType).Warn("live feed queue full, dropping event")
	}
}

// Publish forwards tracker events to the live feed
func (h *Hub) Publish(e feedback.Event) {
	h.Broadcast(e.Type, e.Question)
}

// handleWebSocket upgrades HTTP to WebSocket for admins
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithContext("error", err.Error()).Debug("websocket upgrade failed")
		return
	}

	select {
	case s.hub.register <- conn:
	case <-s.hub.done:
		conn.Close()
		return
	}

	// Read loop so closed connections are noticed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		select {
		case s.hub.unregister <- conn:
		case <-s.hub.done:
		}
	}()
}
