package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"fieldops/portal-sync/internal/common"
	"fieldops/portal-sync/internal/logging"
	"fieldops/portal-sync/internal/models/dtos"
	"fieldops/portal-sync/internal/services"

	"go.uber.org/zap"
)

// WebhookQueue is the stream the ingress handler feeds
type WebhookQueue interface {
	Dequeue(ctx context.Context, consumer string, count int64, blockTime time.Duration) ([]common.QueuedMessage, error)
	Ack(ctx context.Context, messageID string) error
	CreateConsumerGroup(ctx context.Context) error
	ClaimStale(ctx context.Context, consumer string, minIdle time.Duration) ([]common.QueuedMessage, error)
}

// EventProcessor runs one processing attempt for a webhook event
type EventProcessor interface {
	ProcessEvent(ctx context.Context, eventID string, payload dtos.WebhookPayload, attempt int) error
}

// WebhookQueueWorker drains the webhook stream into the processor
type WebhookQueueWorker struct {
	workerID  string
	queue     WebhookQueue
	processor EventProcessor
	log       *zap.SugaredLogger

	blockTime     time.Duration
	claimInterval time.Duration
	staleAfter    time.Duration
}

func NewWebhookQueueWorker(workerID string, queue WebhookQueue, processor EventProcessor) *WebhookQueueWorker {
	return &WebhookQueueWorker{
		workerID:      workerID,
		queue:         queue,
		processor:     processor,
		log:           logging.Named("webhook-queue-worker").With("worker_id", workerID),
		blockTime:     5 * time.Second,
		claimInterval: 2 * time.Minute,
		staleAfter:    5 * time.Minute,
	}
}

// Start runs numWorkers consumers plus a stale-message claimer until ctx is done
func (w *WebhookQueueWorker) Start(ctx context.Context, numWorkers int) error {
	if numWorkers < 1 {
		numWorkers = 1
	}
	w.log.Infow("Starting workers", "count", numWorkers)

	if err := w.queue.CreateConsumerGroup(ctx); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		consumer := fmt.Sprintf("%s-worker-%d", w.workerID, i)
		go func() {
			defer wg.Done()
			w.processQueue(ctx, consumer)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.claimStaleMessages(ctx)
	}()

	wg.Wait()
	w.log.Infow("All workers stopped")
	return nil
}

func (w *WebhookQueueWorker) processQueue(ctx context.Context, consumer string) {
	processed, failed := 0, 0

	for {
		select {
		case <-ctx.Done():
			w.log.Infow("Shutting down",
				"consumer", consumer,
				"processed", processed,
				"errors", failed,
			)
			return
		default:
		}

		messages, err := w.queue.Dequeue(ctx, consumer, 10, w.blockTime)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Warnw("Error dequeuing", "consumer", consumer, "error", err)
			sleepContext(ctx, time.Second)
			continue
		}

		for _, msg := range messages {
			if w.handle(ctx, msg) {
				processed++
			} else {
				failed++
			}
		}
	}
}

// handle processes one message and always acks it. Retries of a failed
// event are owned by the processor, not by stream redelivery.
func (w *WebhookQueueWorker) handle(ctx context.Context, msg common.QueuedMessage) bool {
	ok := true

	var payload dtos.WebhookPayload
	if err := json.Unmarshal(msg.Item.Payload, &payload); err != nil {
		w.log.Errorw("Unreadable payload", "event_id", msg.Item.EventID, "error", err)
		ok = false
	} else if err := w.processor.ProcessEvent(ctx, msg.Item.EventID, payload, 1); err != nil {
		if !errors.Is(err, services.ErrEventInFlight) {
			w.log.Warnw("Event processing failed", "event_id", msg.Item.EventID, "error", err)
		}
		ok = false
	}

	if err := w.queue.Ack(ctx, msg.ID); err != nil {
		w.log.Warnw("Error acknowledging message", "message_id", msg.ID, "error", err)
	}
	return ok
}

func (w *WebhookQueueWorker) claimStaleMessages(ctx context.Context) {
	ticker := time.NewTicker(w.claimInterval)
	defer ticker.Stop()

	claimer := w.workerID + "-claimer"
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			messages, err := w.queue.ClaimStale(ctx, claimer, w.staleAfter)
			if err != nil {
				w.log.Warnw("Error claiming stale messages", "error", err)
				continue
			}
			if len(messages) > 0 {
				w.log.Infow("Claimed stale messages", "count", len(messages))
			}
			for _, msg := range messages {
				w.handle(ctx, msg)
			}
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
