package jobs

import (
	"context"

	"fieldops/portal-sync/internal/config"
	"fieldops/portal-sync/internal/logging"
)

// Jobs holds the scheduled background jobs
type Jobs struct {
	Reconciliation *ReconciliationJob
	FailedEvents   *FailedEventRetryJob
}

// InitializeJobs builds the jobs and starts the enabled ones in the background
func InitializeJobs(
	ctx context.Context,
	reconCfg config.ReconciliationConfig,
	webhookCfg config.WebhookConfig,
	reconciler Reconciler,
	retrier FailedEventRetrier,
) *Jobs {
	j := &Jobs{
		Reconciliation: NewReconciliationJob(reconciler),
		FailedEvents:   NewFailedEventRetryJob(retrier),
	}

	if reconCfg.SchedulerEnabled && reconCfg.IncrementalInterval > 0 {
		go j.Reconciliation.RunScheduled(ctx, reconCfg.IncrementalInterval, reconCfg.FullInterval)
	} else {
		logging.Info("Reconciliation scheduler disabled")
	}

	if webhookCfg.FailedRetryInterval > 0 {
		go j.FailedEvents.RunScheduled(ctx, webhookCfg.FailedRetryInterval)
	}

	return j
}
