package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/space-queue-system/internal/engine"
	"github.com/space-queue-system/pkg/metrics"
)

// Hub fans committed engine events out to every session subscribed to a
// space. Publish never blocks: each session has a buffered send channel and
// a session that cannot keep up misses events, which is fine because clients
// resync on reconnect instead of relying on gap-filling.
type Hub struct {
	mu     sync.RWMutex
	spaces map[uuid.UUID]map[*Session]struct{}
}

func NewHub() *Hub {
	return &Hub{
		spaces: make(map[uuid.UUID]map[*Session]struct{}),
	}
}

// Subscribe registers a session for one space. A session subscribes to at
// most one space; re-subscribing moves it.
func (h *Hub) Subscribe(spaceID uuid.UUID, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.spaceID != uuid.Nil && s.spaceID != spaceID {
		h.dropLocked(s.spaceID, s)
		metrics.ConnectedClients.WithLabelValues(s.spaceID.String()).Dec()
	}
	if _, exists := h.spaces[spaceID]; !exists {
		h.spaces[spaceID] = make(map[*Session]struct{})
	}
	h.spaces[spaceID][s] = struct{}{}
	s.spaceID = spaceID
	metrics.ConnectedClients.WithLabelValues(spaceID.String()).Inc()
}

// Unsubscribe detaches a session and closes its send channel. The hub owns
// channel closure: deregistration and close happen under the same lock
// Publish takes, so Publish can never write to a closed channel.
func (h *Hub) Unsubscribe(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.spaceID == uuid.Nil {
		return
	}
	h.dropLocked(s.spaceID, s)
	metrics.ConnectedClients.WithLabelValues(s.spaceID.String()).Dec()
	s.spaceID = uuid.Nil
	close(s.send)
}

func (h *Hub) dropLocked(spaceID uuid.UUID, s *Session) {
	if subs, exists := h.spaces[spaceID]; exists {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.spaces, spaceID)
		}
	}
}

// Publish delivers an event to every current subscriber of the space,
// including the session whose command caused it. Called with the space lock
// held, so the enqueue order seen by every session equals commit order.
func (h *Hub) Publish(spaceID uuid.UUID, event engine.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.spaces[spaceID] {
		select {
		case s.send <- payload:
		default:
			// Slow consumer; it will resync after reconnecting.
			metrics.EventsDropped.WithLabelValues(spaceID.String()).Inc()
		}
	}
}

// Subscribers reports how many sessions are attached to a space.
func (h *Hub) Subscribers(spaceID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.spaces[spaceID])
}
