// Package realtime streams feedback lifecycle events to space members over
// WebSocket, bridged across instances with Redis pub/sub.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event names broadcast to space feeds.
const (
	EventRequestCreated   = "feedback_request.created"
	EventRequestClaimed   = "feedback_request.claimed"
	EventRequestCompleted = "feedback_request.completed"
	EventRequestFulfilled = "feedback_request.fulfilled"
	EventRequestCancelled = "feedback_request.cancelled"
	EventRequestReleased  = "feedback_request.released"
	EventRequestExpired   = "feedback_request.expired"
)

// Heartbeat timing in seconds.
const (
	PingInterval = 30
	PongWait     = 60
)

// RedisPublisher publishes to Redis for cross-instance broadcast.
type RedisPublisher interface {
	PublishSpaceEvent(spaceID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to space channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeSpace(spaceID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains space_id -> set of connections and fans events out to them.
type Hub struct {
	spaces   map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per space
	mu       sync.RWMutex
	logger   *zap.Logger
	redisPub RedisPublisher
	redisSub RedisSubscriber
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		spaces:   make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redisPub: redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a space feed. Starts the Redis subscription for
// the space when its first client connects.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.spaces[c.SpaceID] == nil {
		h.spaces[c.SpaceID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeSpace(c.SpaceID, func(event string, payload []byte) {
				h.broadcastLocal(c.SpaceID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.SpaceID] = cancel
			}
		}
	}
	h.spaces[c.SpaceID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined space feed", zap.String("client_id", c.ID), zap.String("space_id", c.SpaceID.String()))
}

// Unregister removes a client from a space feed. Cancels the Redis
// subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.spaces[c.SpaceID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.spaces, c.SpaceID)
			if cancel, ok := h.subs[c.SpaceID]; ok {
				cancel()
				delete(h.subs, c.SpaceID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left space feed", zap.String("client_id", c.ID), zap.String("space_id", c.SpaceID.String()))
}

// Broadcast delivers an event to every member connected to the space feed,
// across all instances. With Redis configured it publishes only: the
// subscription callback performs the one local broadcast per instance, so
// clients never receive duplicates.
func (h *Hub) Broadcast(spaceID uuid.UUID, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if h.redisPub != nil {
		return h.redisPub.PublishSpaceEvent(spaceID, event, data)
	}
	h.broadcastLocal(spaceID, event, json.RawMessage(data))
	return nil
}

// broadcastLocal sends to clients connected to this instance only. The client
// set is copied out under the lock; Register and Unregister mutate the same
// map, so iterating it after release would race them.
func (h *Hub) broadcastLocal(spaceID uuid.UUID, event string, data json.RawMessage) {
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.spaces[spaceID]))
	for _, c := range h.spaces[spaceID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// ConnectedCount returns the number of clients on a space feed on this instance.
func (h *Hub) ConnectedCount(spaceID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.spaces[spaceID])
}
