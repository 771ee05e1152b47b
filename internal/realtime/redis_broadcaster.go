package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"fieldops/portal-sync/internal/logging"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster publishes updates through Redis pub/sub so subscribers
// connected to any instance receive them. Run relays received messages
// into the local hub.
type RedisBroadcaster struct {
	client *redis.Client
	prefix string
	hub    *Hub
}

var _ Broadcaster = (*RedisBroadcaster)(nil)

func NewRedisBroadcaster(client *redis.Client, prefix string, hub *Hub) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, prefix: prefix + ":realtime:", hub: hub}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal realtime message: %w", err)
	}
	if err := b.client.Publish(ctx, b.prefix+msg.Channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish realtime message: %w", err)
	}
	return nil
}

// Run relays messages until ctx is cancelled
func (b *RedisBroadcaster) Run(ctx context.Context) {
	pubsub := b.client.PSubscribe(ctx, b.prefix+"*")
	defer pubsub.Close()

	logging.Info("Realtime relay started", "pattern", b.prefix+"*")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			logging.Info("Realtime relay stopped")
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				logging.Warn("Ignoring malformed realtime message", "channel", m.Channel, "error", err)
				continue
			}
			if msg.Channel == "" {
				msg.Channel = strings.TrimPrefix(m.Channel, b.prefix)
			}
			_ = b.hub.Broadcast(ctx, msg)
		}
	}
}
