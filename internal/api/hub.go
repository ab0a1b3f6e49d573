package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"goldwatch/internal/alerting"
	"goldwatch/internal/metrics"
)

const writeTimeout = 5 * time.Second

// TriggerMessage is what websocket subscribers receive.
type TriggerMessage struct {
	alerting.TriggerEvent
	Timestamp time.Time `json:"timestamp"`
}

// Hub broadcasts alert triggers to websocket subscribers.
type Hub struct {
	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	broadcast chan TriggerMessage
	shutdown  chan struct{}
	once      sync.Once
	wg        sync.WaitGroup
}

// NewHub starts the broadcaster goroutine; call Shutdown to stop it.
func NewHub(logger zerolog.Logger) *Hub {
	h := &Hub{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:    logger.With().Str("component", "ws_hub").Logger(),
		broadcast: make(chan TriggerMessage, 256),
		shutdown:  make(chan struct{}),
	}
	h.wg.Add(1)
	go h.runBroadcaster()
	return h
}

// ServeHTTP upgrades the request and registers the subscriber.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.ConnectedClients.Inc()
	h.logger.Info().Int("clients", total).Msg("subscriber connected")

	go h.handleClientReads(conn)
}

func (h *Hub) handleClientReads(conn *websocket.Conn) {
	defer h.drop(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	total := len(h.clients)
	h.mu.Unlock()

	conn.Close()
	if ok {
		metrics.ConnectedClients.Dec()
		h.logger.Info().Int("clients", total).Msg("subscriber disconnected")
	}
}

// Clients reports the number of live subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify queues a trigger for broadcast. A full queue drops the message.
func (h *Hub) Notify(_ context.Context, note alerting.Notification) error {
	msg := TriggerMessage{TriggerEvent: note.Event, Timestamp: note.At}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn().Int64("alert_id", note.Event.AlertID).Msg("broadcast queue full, trigger dropped")
	}
	return nil
}

func (h *Hub) runBroadcaster() {
	defer h.wg.Done()

	for {
		select {
		case msg := <-h.broadcast:
			h.mu.RLock()
			current := make([]*websocket.Conn, 0, len(h.clients))
			for client := range h.clients {
				current = append(current, client)
			}
			h.mu.RUnlock()

			for _, client := range current {
				_ = client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WriteJSON(msg); err != nil {
					h.logger.Debug().Err(err).Msg("write failed, dropping subscriber")
					h.drop(client)
				}
			}

		case <-h.shutdown:
			return
		}
	}
}

// Shutdown stops the broadcaster and disconnects every subscriber.
func (h *Hub) Shutdown() {
	h.once.Do(func() {
		close(h.shutdown)
		h.wg.Wait()

		h.mu.RLock()
		current := make([]*websocket.Conn, 0, len(h.clients))
		for client := range h.clients {
			current = append(current, client)
		}
		h.mu.RUnlock()

		for _, client := range current {
			_ = client.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(time.Second))
			h.drop(client)
		}
	})
}

var _ alerting.Notifier = (*Hub)(nil)
