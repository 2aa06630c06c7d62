package sync

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"komikverse/internal/logging"
	"komikverse/internal/metrics"
)

const writeWait = 2 * time.Second

// Hub fans bookmark events out to every websocket a user has open.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*websocket.Conn]struct{}
	logger  *zap.Logger
}

type Stats struct {
	Users     int `json:"users"`
	WSClients int `json:"ws_clients"`
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*websocket.Conn]struct{}),
		logger:  logging.OrNop(logger),
	}
}

func (h *Hub) Add(userID string, ws *websocket.Conn) {
	h.mu.Lock()
	conns, ok := h.clients[userID]
	if !ok {
		conns = make(map[*websocket.Conn]struct{})
		h.clients[userID] = conns
	}
	conns[ws] = struct{}{}
	h.mu.Unlock()
	metrics.IncWSClients()
}

func (h *Hub) Remove(userID string, ws *websocket.Conn) {
	h.mu.Lock()
	removed := h.removeLocked(userID, ws)
	h.mu.Unlock()
	if removed {
		metrics.DecWSClients()
	}
	_ = ws.Close()
}

func (h *Hub) removeLocked(userID string, ws *websocket.Conn) bool {
	conns, ok := h.clients[userID]
	if !ok {
		return false
	}
	if _, ok := conns[ws]; !ok {
		return false
	}
	delete(conns, ws)
	if len(conns) == 0 {
		delete(h.clients, userID)
	}
	return true
}

// SendJSON writes v to every connection of userID, dropping connections that fail.
func (h *Hub) SendJSON(userID string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("sync marshal failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for ws := range h.clients[userID] {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			_ = ws.Close()
			if h.removeLocked(userID, ws) {
				metrics.DecWSClients()
			}
		}
	}
}

// Publish delivers a bookmark event to its owner's sessions.
func (h *Hub) Publish(ev BookmarkEvent) {
	if h == nil {
		return
	}
	h.SendJSON(ev.UserID, ev)
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := Stats{Users: len(h.clients)}
	for _, conns := range h.clients {
		s.WSClients += len(conns)
	}
	return s
}
