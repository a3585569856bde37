// Package websocket provides the hub that pushes upload-progress events to
// subscribed browsers. Events are advisory: losing one never changes the
// outcome of the pipeline that emitted it.
package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"octvision/logger"
)

// Stage identifies a scan-pipeline transition.
type Stage string

const (
	StageReceived   Stage = "received"
	StageProcessing Stage = "processing"
	StageClassified Stage = "classified"
	StageComplete   Stage = "complete"
)

// Message is the wire format of a progress event.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
	Time    int64  `json:"time"`
}

// ProgressPayload describes one pipeline transition for one user's upload.
type ProgressPayload struct {
	UserId int    `json:"userId"`
	Stage  Stage  `json:"stage"`
	Status string `json:"status"`
}

// Client is one connected browser.
type Client struct {
	ID     string
	UserId int
	Send   chan []byte
}

// Hub fans progress events out to registered clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	closed  bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

func (h *Hub) Register(client *Client) {
	if h == nil || client == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(client.Send)
		return
	}
	h.clients[client] = true
	logger.Debugf("progress client connected: %s (total: %d)", client.ID, len(h.clients))
}

func (h *Hub) Unregister(client *Client) {
	if h == nil || client == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
		logger.Debugf("progress client disconnected: %s (total: %d)", client.ID, len(h.clients))
	}
}

// Progress broadcasts one pipeline transition to the uploading user's
// connections. Slow clients are skipped rather than blocked on.
func (h *Hub) Progress(userId int, stage Stage, status string) {
	if h == nil {
		return
	}

	data, err := json.Marshal(Message{
		Type:    "progress",
		Payload: ProgressPayload{UserId: userId, Stage: stage, Status: status},
		Time:    time.Now().UnixMilli(),
	})
	if err != nil {
		logger.Error("failed to marshal progress message:", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.UserId != userId {
			continue
		}
		select {
		case client.Send <- data:
		default:
			logger.Debugf("progress client %s send buffer full, dropping event", client.ID)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop closes all client channels. Further registrations are rejected.
func (h *Hub) Stop() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]bool)
}
