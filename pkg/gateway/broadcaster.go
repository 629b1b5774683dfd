package gateway

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// EventBroadcaster pushes memory lifecycle events to all authenticated
// WebSocket clients.
type EventBroadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
	seq     uint64
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *EventBroadcaster {
	return &EventBroadcaster{
		clients: clients,
		logger:  logger,
	}
}

// Broadcast sends an event to all authenticated clients
func (b *EventBroadcaster) Broadcast(event string, data interface{}) {
	msg := EventMessage{
		Type:      "event",
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
		Seq:       int64(atomic.AddUint64(&b.seq, 1)),
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error().Err(err).Str("event", msg.Event).Msg("Failed to marshal event")
		return
	}

	clients := b.clients.GetAuthenticatedClients()
	if len(clients) == 0 {
		return
	}

	for _, client := range clients {
		if err := client.Conn.WriteMessage(websocket.TextMessage, jsonData); err != nil {
			b.logger.Warn().
				Err(err).
				Str("clientId", client.ID).
				Str("event", msg.Event).
				Msg("Failed to broadcast to client")
		}
	}
}
