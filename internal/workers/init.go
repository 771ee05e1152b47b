package workers

import (
	"context"
	"time"

	"fieldops/portal-sync/internal/common"
	"fieldops/portal-sync/internal/config"
	"fieldops/portal-sync/internal/logging"
	"fieldops/portal-sync/internal/metrics"
)

// WorkersContainer holds the running background workers
type WorkersContainer struct {
	QueueWorker  *WebhookQueueWorker
	QueueMonitor *WebhookQueueMonitor
}

// InitWorkers starts the webhook stream consumers and monitor. Without a
// queue there is nothing to consume and nil is returned.
func InitWorkers(
	ctx context.Context,
	cfg config.WebhookConfig,
	queue *common.RedisQueueService,
	processor EventProcessor,
	m *metrics.MetricsRegistry,
) *WorkersContainer {
	if queue == nil {
		return nil
	}

	qWorker := NewWebhookQueueWorker("webhook", queue, processor)
	monitor := NewWebhookQueueMonitor(queue, m)

	go func() {
		if err := qWorker.Start(ctx, cfg.Workers); err != nil {
			logging.Error("Webhook queue worker stopped", "error", err)
		}
	}()
	go monitor.Start(ctx, 30*time.Second)
	go monitor.StartAutoTrim(ctx, time.Hour, 10000)

	return &WorkersContainer{
		QueueWorker:  qWorker,
		QueueMonitor: monitor,
	}
}
