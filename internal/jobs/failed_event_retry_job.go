package jobs

import (
	"context"
	"time"

	"fieldops/portal-sync/internal/logging"
	"fieldops/portal-sync/internal/models/dtos"
)

// FailedEventRetrier re-processes failed webhook events
type FailedEventRetrier interface {
	RetryFailedEvents(ctx context.Context) (dtos.RetryFailedResult, error)
}

// FailedEventRetryJob periodically gives failed webhook events another budget
type FailedEventRetryJob struct {
	retrier FailedEventRetrier
}

func NewFailedEventRetryJob(retrier FailedEventRetrier) *FailedEventRetryJob {
	return &FailedEventRetryJob{retrier: retrier}
}

func (j *FailedEventRetryJob) Run(ctx context.Context) error {
	result, err := j.retrier.RetryFailedEvents(ctx)
	if err != nil {
		return err
	}
	if result.Attempted > 0 {
		logging.Info("[FailedEventRetryJob] Retried failed events",
			"attempted", result.Attempted,
			"succeeded", result.Succeeded,
			"failed", result.Failed,
		)
	}
	return nil
}

func (j *FailedEventRetryJob) RunScheduled(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				logging.Error("[FailedEventRetryJob] Error in scheduled run", "error", err)
			}
		case <-ctx.Done():
			logging.Info("[FailedEventRetryJob] Shutting down")
			return
		}
	}
}
