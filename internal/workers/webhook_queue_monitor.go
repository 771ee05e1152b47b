package workers

import (
	"context"
	"fmt"
	"time"

	"fieldops/portal-sync/internal/logging"
	"fieldops/portal-sync/internal/metrics"
)

const (
	highPendingThreshold = 1000
	highQueueThreshold   = 5000
)

// QueueInspector reports the depth of the webhook stream
type QueueInspector interface {
	GetQueueLength(ctx context.Context) (int64, error)
	GetPendingCount(ctx context.Context) (int64, error)
	TrimStream(ctx context.Context, maxLen int64) error
}

// QueueStats is a point-in-time view of the webhook stream
type QueueStats struct {
	QueueLength  int64     `json:"queue_length"`
	PendingCount int64     `json:"pending_count"`
	Status       string    `json:"status"`
	LastChecked  time.Time `json:"last_checked"`
}

// WebhookQueueMonitor logs and exports webhook stream health
type WebhookQueueMonitor struct {
	queue   QueueInspector
	metrics *metrics.MetricsRegistry
}

func NewWebhookQueueMonitor(queue QueueInspector, m *metrics.MetricsRegistry) *WebhookQueueMonitor {
	return &WebhookQueueMonitor{queue: queue, metrics: m}
}

// Start checks the queue every interval until ctx is done
func (m *WebhookQueueMonitor) Start(ctx context.Context, interval time.Duration) {
	logging.Info("[WebhookQueueMonitor] Starting queue monitoring", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.checkQueue(ctx)

	for {
		select {
		case <-ctx.Done():
			logging.Info("[WebhookQueueMonitor] Shutting down")
			return
		case <-ticker.C:
			m.checkQueue(ctx)
		}
	}
}

func (m *WebhookQueueMonitor) checkQueue(ctx context.Context) {
	stats, err := m.GetQueueStats(ctx)
	if err != nil {
		logging.Warn("[WebhookQueueMonitor] Error getting queue stats", "error", err)
		return
	}

	if stats.Status != "OK" {
		logging.Warn("[WebhookQueueMonitor] Webhook queue needs attention",
			"queue_length", stats.QueueLength,
			"pending", stats.PendingCount,
			"status", stats.Status,
		)
		return
	}
	logging.Debug("[WebhookQueueMonitor] Webhook queue healthy",
		"queue_length", stats.QueueLength,
		"pending", stats.PendingCount,
	)
}

// GetQueueStats reads the stream depth and classifies it
func (m *WebhookQueueMonitor) GetQueueStats(ctx context.Context) (*QueueStats, error) {
	length, err := m.queue.GetQueueLength(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue length: %w", err)
	}

	// the consumer group may not exist yet
	pending, err := m.queue.GetPendingCount(ctx)
	if err != nil {
		pending = 0
	}

	m.metrics.ObserveQueue(length, pending)

	status := "OK"
	if pending > highPendingThreshold {
		status = "HIGH PENDING"
	} else if length > highQueueThreshold {
		status = "HIGH QUEUE"
	}

	return &QueueStats{
		QueueLength:  length,
		PendingCount: pending,
		Status:       status,
		LastChecked:  time.Now().UTC(),
	}, nil
}

// StartAutoTrim trims the stream to maxLen entries every interval
func (m *WebhookQueueMonitor) StartAutoTrim(ctx context.Context, interval time.Duration, maxLen int64) {
	logging.Info("[WebhookQueueMonitor] Starting auto-trim", "interval", interval.String(), "max_length", maxLen)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("[WebhookQueueMonitor] Auto-trim shutting down")
			return
		case <-ticker.C:
			if err := m.queue.TrimStream(ctx, maxLen); err != nil {
				logging.Warn("[WebhookQueueMonitor] Auto-trim error", "error", err)
			}
		}
	}
}
