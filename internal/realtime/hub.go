package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"fieldops/portal-sync/internal/logging"
)

// Message is a realtime update pushed to subscribers
type Message struct {
	Type       string          `json:"type"`
	Channel    string          `json:"channel"`
	ObjectUUID string          `json:"object_uuid"`
	EventType  string          `json:"event_type"`
	Changes    json.RawMessage `json:"changes,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Broadcaster publishes realtime updates. Delivery is best effort.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg Message) error
}

// Hub fans messages out to in-process subscribers. A slow subscriber drops
// messages rather than blocking the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscription]struct{}
	buffer int
}

type subscription struct {
	ch chan Message
}

var _ Broadcaster = (*Hub)(nil)

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[string]map[*subscription]struct{}), buffer: buffer}
}

// Subscribe registers for channel; the returned func unsubscribes and closes the stream
func (h *Hub) Subscribe(channel string) (<-chan Message, func()) {
	sub := &subscription{ch: make(chan Message, h.buffer)}

	h.mu.Lock()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[*subscription]struct{})
	}
	h.subs[channel][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[channel], sub)
			if len(h.subs[channel]) == 0 {
				delete(h.subs, channel)
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

func (h *Hub) Broadcast(_ context.Context, msg Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[msg.Channel] {
		select {
		case sub.ch <- msg:
		default:
			logging.Debug("Dropping realtime message for slow subscriber", "channel", msg.Channel)
		}
	}
	return nil
}

// Subscribers returns the number of subscribers on channel
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}
