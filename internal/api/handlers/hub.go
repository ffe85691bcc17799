package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/pkg/logger"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StageEvent is the message pushed to websocket clients after each stage attempt
type StageEvent struct {
	Type   string                `json:"type"`
	RunID  string                `json:"run_id"`
	Report contracts.StageReport `json:"report"`
	Counts contracts.Counts      `json:"counts"`
}

// sendBuffer is the per-client event queue; a full queue drops new events
const sendBuffer = 32

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub streams stage reports to websocket clients. It is a pipeline observer.
// OnStage never blocks on a client: each client has its own writer goroutine.
type Hub struct {
	clients map[*websocket.Conn]*client
	mu      sync.RWMutex
	logger  *logger.Logger
}

// NewHub creates an empty hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*client),
		logger:  log,
	}
}

// ServeWS upgrades the request and keeps the client until it disconnects
// GET /ws/runs
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()
	h.logger.WithField("clients", h.Clients()).Debug("WebSocket client connected")

	go h.writeLoop(c)

	// 클라이언트 메시지는 무시; 읽기 실패 = 연결 종료
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(conn)
}

// writeLoop drains one client's queue until remove closes it
func (h *Hub) writeLoop(c *client) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.WithError(err).Warn("Failed to send stage event, dropping client")
			h.remove(c.conn)
			// drain so remove never races a pending send
			for range c.send {
			}
			return
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnStage broadcasts a stage report
func (h *Hub) OnStage(runID string, report contracts.StageReport) {
	data, err := json.Marshal(StageEvent{
		Type:   "stage",
		RunID:  runID,
		Report: report,
		Counts: report.Counts(),
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal stage event")
		return
	}
	h.broadcast(data)
}

// broadcast enqueues data for every client without blocking
func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.WithField("remote", c.conn.RemoteAddr().String()).Warn("Client queue full, stage event dropped")
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	c, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()

	if ok {
		close(c.send)
		conn.Close()
	}
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*websocket.Conn]*client)
	h.mu.Unlock()

	for conn, c := range clients {
		close(c.send)
		conn.Close()
	}
}
