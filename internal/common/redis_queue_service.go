package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldops/portal-sync/internal/logging"

	"github.com/redis/go-redis/v9"
)

// RedisQueueService carries webhook events between the ingress handler and
// the queue workers using a Redis Stream with a consumer group
type RedisQueueService struct {
	client *redis.Client
	stream string
	group  string
}

// NewRedisQueueService creates a queue bound to one stream and consumer group
func NewRedisQueueService(client *redis.Client, stream, group string) *RedisQueueService {
	return &RedisQueueService{
		client: client,
		stream: stream,
		group:  group,
	}
}

// WebhookQueueItem is one webhook event awaiting processing
type WebhookQueueItem struct {
	EventID    string          `json:"event_id"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// QueuedMessage pairs a dequeued item with its stream message id
type QueuedMessage struct {
	ID   string
	Item *WebhookQueueItem
}

// Enqueue adds an event to the stream
// XADD stream * data <json>
func (s *RedisQueueService) Enqueue(ctx context.Context, item *WebhookQueueItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook item: %w", err)
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{"data": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}
	return nil
}

// Dequeue reads up to count new messages for consumer, blocking up to blockTime.
// Malformed messages are acked and skipped.
func (s *RedisQueueService) Dequeue(ctx context.Context, consumer string, count int64, blockTime time.Duration) ([]QueuedMessage, error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: consumer,
		Streams:  []string{s.stream, ">"},
		Count:    count,
		Block:    blockTime,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	var out []QueuedMessage
	for _, stream := range streams {
		out = append(out, s.parse(ctx, stream.Messages)...)
	}
	return out, nil
}

// Ack acknowledges successful processing of a message
func (s *RedisQueueService) Ack(ctx context.Context, messageID string) error {
	return s.client.XAck(ctx, s.stream, s.group, messageID).Err()
}

// CreateConsumerGroup creates the consumer group if it doesn't exist
// XGROUP CREATE stream group 0 MKSTREAM
func (s *RedisQueueService) CreateConsumerGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

// GetQueueLength returns the number of entries in the stream
func (s *RedisQueueService) GetQueueLength(ctx context.Context) (int64, error) {
	length, err := s.client.XLen(ctx, s.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return length, nil
}

// GetPendingCount returns the number of delivered but unacknowledged messages
func (s *RedisQueueService) GetPendingCount(ctx context.Context) (int64, error) {
	pending, err := s.client.XPending(ctx, s.stream, s.group).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get pending count: %w", err)
	}
	return pending.Count, nil
}

// TrimStream keeps only the most recent maxLen entries
func (s *RedisQueueService) TrimStream(ctx context.Context, maxLen int64) error {
	return s.client.XTrimMaxLen(ctx, s.stream, maxLen).Err()
}

// ClaimStale takes over messages idle longer than minIdle, typically left
// behind by a dead worker
func (s *RedisQueueService) ClaimStale(ctx context.Context, consumer string, minIdle time.Duration) ([]QueuedMessage, error) {
	pending, err := s.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: s.stream,
		Group:  s.group,
		Idle:   minIdle,
		Start:  "-",
		End:    "+",
		Count:  100,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get pending messages: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
	}

	messages, err := s.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   s.stream,
		Group:    s.group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim stale messages: %w", err)
	}

	return s.parse(ctx, messages), nil
}

func (s *RedisQueueService) parse(ctx context.Context, messages []redis.XMessage) []QueuedMessage {
	out := make([]QueuedMessage, 0, len(messages))
	for _, msg := range messages {
		item, err := decodeQueueItem(msg.Values)
		if err != nil {
			logging.Warn("Dropping malformed webhook queue message", "message_id", msg.ID, "error", err)
			_ = s.Ack(ctx, msg.ID)
			continue
		}
		out = append(out, QueuedMessage{ID: msg.ID, Item: item})
	}
	return out
}

func decodeQueueItem(values map[string]interface{}) (*WebhookQueueItem, error) {
	data, ok := values["data"].(string)
	if !ok {
		return nil, errors.New("invalid message format: data field missing")
	}
	var item WebhookQueueItem
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook item: %w", err)
	}
	if item.EventID == "" {
		return nil, errors.New("invalid message format: event_id missing")
	}
	return &item, nil
}
