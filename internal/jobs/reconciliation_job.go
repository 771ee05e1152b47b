package jobs

import (
	"context"
	"time"

	"fieldops/portal-sync/internal/constants"
	"fieldops/portal-sync/internal/logging"
	"fieldops/portal-sync/internal/models/dtos"
)

// Reconciler is the part of the reconciliation service the scheduler drives
type Reconciler interface {
	Run(ctx context.Context, runType constants.RunType, triggeredBy string) *dtos.ReconciliationResult
	CheckConsistency(ctx context.Context) (*dtos.ConsistencyReport, error)
	RecoverStaleRuns(ctx context.Context) (int64, error)
}

// ReconciliationJob runs incremental reconciliation on a short interval and
// a full pass plus consistency checks on a long one.
type ReconciliationJob struct {
	reconciler Reconciler
}

func NewReconciliationJob(reconciler Reconciler) *ReconciliationJob {
	return &ReconciliationJob{reconciler: reconciler}
}

// RunIncremental executes one incremental run
func (j *ReconciliationJob) RunIncremental(ctx context.Context) {
	j.run(ctx, constants.RunTypeIncremental)
}

// RunFull executes one full run followed by the consistency checks
func (j *ReconciliationJob) RunFull(ctx context.Context) {
	j.run(ctx, constants.RunTypeFull)

	report, err := j.reconciler.CheckConsistency(ctx)
	if err != nil {
		logging.Error("[ReconciliationJob] Consistency check failed", "error", err)
		return
	}
	logging.Info("[ReconciliationJob] Consistency check complete", "issues_found", report.HasIssues())
}

func (j *ReconciliationJob) run(ctx context.Context, runType constants.RunType) {
	result := j.reconciler.Run(ctx, runType, constants.ActorScheduler)
	if result.Status == constants.RunStatusFailed {
		logging.Warn("[ReconciliationJob] Scheduled run did not complete",
			"type", runType,
			"run_id", result.RunID,
			"message", result.Message,
		)
	}
}

// RunScheduled recovers stale runs, runs one incremental pass immediately,
// then ticks until ctx is cancelled. A zero fullInterval disables full runs.
func (j *ReconciliationJob) RunScheduled(ctx context.Context, incrementalInterval, fullInterval time.Duration) {
	if n, err := j.reconciler.RecoverStaleRuns(ctx); err != nil {
		logging.Error("[ReconciliationJob] Failed to recover stale runs", "error", err)
	} else if n > 0 {
		logging.Info("[ReconciliationJob] Recovered stale runs", "count", n)
	}

	incremental := time.NewTicker(incrementalInterval)
	defer incremental.Stop()

	var fullC <-chan time.Time
	if fullInterval > 0 {
		full := time.NewTicker(fullInterval)
		defer full.Stop()
		fullC = full.C
	}

	j.RunIncremental(ctx)

	for {
		select {
		case <-incremental.C:
			j.RunIncremental(ctx)
		case <-fullC:
			j.RunFull(ctx)
		case <-ctx.Done():
			logging.Info("[ReconciliationJob] Shutting down scheduled reconciliation")
			return
		}
	}
}
