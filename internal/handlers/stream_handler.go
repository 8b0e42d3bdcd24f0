package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/common"
	"github.com/ternarybob/tadawul/internal/metrics"
	"github.com/ternarybob/tadawul/internal/services/market"
	"golang.org/x/time/rate"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboard may be served from another origin
	},
}

// WSMessage is the frame pushed to stream clients.
type WSMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Partial   bool        `json:"partial,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// OverviewProvider produces the default market overview.
type OverviewProvider interface {
	Warm(ctx context.Context) *market.Result
}

type streamClient struct {
	id string
	mu sync.Mutex
}

// StreamHandler pushes market overview snapshots to websocket clients.
type StreamHandler struct {
	logger     arbor.ILogger
	provider   OverviewProvider
	metrics    *metrics.Metrics
	clients    map[*websocket.Conn]*streamClient
	mu         sync.RWMutex
	throttle   *rate.Limiter
	latestMu   sync.RWMutex
	latest     *WSMessage
	instanceID string // Clients use this to detect a server restart
}

func NewStreamHandler(provider OverviewProvider, logger arbor.ILogger, config *common.WebSocketConfig, m *metrics.Metrics) *StreamHandler {
	h := &StreamHandler{
		logger:     logger,
		provider:   provider,
		metrics:    m,
		clients:    make(map[*websocket.Conn]*streamClient),
		instanceID: uuid.New().String(),
	}

	if config != nil && config.MinInterval != "" {
		if interval, err := time.ParseDuration(config.MinInterval); err == nil && interval > 0 {
			h.throttle = rate.NewLimiter(rate.Every(interval), 1)
		} else {
			logger.Warn().Str("interval", config.MinInterval).Msg("Invalid websocket min_interval, throttling disabled")
		}
	}

	logger.Info().Str("server_instance_id", h.instanceID).Msg("Stream handler initialized")
	return h
}

// InstanceID identifies this server process.
func (h *StreamHandler) InstanceID() string {
	return h.instanceID
}

// ClientCount returns the number of connected clients.
func (h *StreamHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the connection, sends a hello and the latest snapshot, then waits for close.
func (h *StreamHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := &streamClient{id: common.NewClientID()}
	h.mu.Lock()
	h.clients[conn] = client
	total := len(h.clients)
	h.mu.Unlock()
	h.metrics.StreamConnected()

	h.logger.Debug().Str("client_id", client.id).Int("total", total).Msg("WebSocket client connected")

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		remaining := len(h.clients)
		h.mu.Unlock()
		h.metrics.StreamDisconnected()

		conn.Close()
		h.logger.Debug().Str("client_id", client.id).Int("remaining", remaining).Msg("WebSocket client disconnected")
	}()

	h.send(conn, client, WSMessage{
		Type: "hello",
		Payload: map[string]string{
			"clientId":         client.id,
			"serverInstanceId": h.instanceID,
		},
		Timestamp: time.Now().UTC(),
	})

	if msg := h.snapshot(r.Context()); msg != nil {
		h.send(conn, client, *msg)
	}

	// Read until the client goes away; inbound messages are ignored
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Str("client_id", client.id).Msg("WebSocket error")
			}
			return
		}
	}
}

// Broadcast pushes a fresh overview to every client. Results arriving faster
// than the configured minimum interval are dropped. Returns true when sent.
func (h *StreamHandler) Broadcast(result *market.Result) bool {
	if result == nil || result.Outcome == market.OutcomeFailure {
		return false
	}
	if h.throttle != nil && !h.throttle.Allow() {
		return false
	}

	msg := overviewMessage(result)
	h.latestMu.Lock()
	h.latest = &msg
	h.latestMu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal overview message")
		return false
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	clients := make([]*streamClient, 0, len(h.clients))
	for conn, client := range h.clients {
		conns = append(conns, conn)
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for i, conn := range conns {
		h.write(conn, clients[i], data)
	}
	return true
}

// snapshot returns the last broadcast message, fetching one when nothing has been pushed yet.
func (h *StreamHandler) snapshot(ctx context.Context) *WSMessage {
	h.latestMu.RLock()
	latest := h.latest
	h.latestMu.RUnlock()
	if latest != nil || h.provider == nil {
		return latest
	}

	result := h.provider.Warm(ctx)
	if result == nil || result.Outcome == market.OutcomeFailure {
		return nil
	}
	msg := overviewMessage(result)
	return &msg
}

func overviewMessage(result *market.Result) WSMessage {
	return WSMessage{
		Type:      "market_overview",
		Payload:   result.Payload,
		Partial:   result.Partial,
		Timestamp: time.Now().UTC(),
	}
}

func (h *StreamHandler) send(conn *websocket.Conn, client *streamClient, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal stream message")
		return
	}
	h.write(conn, client, data)
}

func (h *StreamHandler) write(conn *websocket.Conn, client *streamClient, data []byte) {
	client.mu.Lock()
	defer client.mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Warn().Err(err).Str("client_id", client.id).Msg("Failed to send to client")
	}
}
